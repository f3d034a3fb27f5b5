package utils

import (
	"regexp"
	"strings"
)

// minStrippedLength guards against over-aggressive cleaning. If stripping
// leaves less than this much content the raw body is stored instead.
const minStrippedLength = 10

var quotedReplyMarkers = []*regexp.Regexp{
	// "On Mon, 2 Jan 2006 ... wrote:" and localized variants
	regexp.MustCompile(`(?mi)^On .{0,200}wrote:\s*$`),
	regexp.MustCompile(`(?mi)^Am .{0,200}schrieb .{0,100}:\s*$`),
	// Outlook style separators
	regexp.MustCompile(`(?mi)^-{2,}\s*Original Message\s*-{2,}\s*$`),
	regexp.MustCompile(`(?mi)^-{2,}\s*Forwarded message\s*-{2,}\s*$`),
	regexp.MustCompile(`(?mi)^_{10,}\s*$`),
	// Header block of a quoted mail
	regexp.MustCompile(`(?mi)^From:\s.+[\r\n]+Sent:\s.+$`),
}

var autoResponseBoilerplate = []*regexp.Regexp{
	regexp.MustCompile(`(?mi)^.*\[Response-ID:\s*[^\]]+\].*$`),
	regexp.MustCompile(`(?mi)^This is an automated (response|acknowledgement).*$`),
	regexp.MustCompile(`(?mi)^Please do not reply directly to this email.*$`),
	regexp.MustCompile(`(?mi)^Your request has been received and assigned ticket.*$`),
}

var quotedLine = regexp.MustCompile(`(?m)^>.*$`)

// StripQuotedReply removes quoted reply text and auto-response boilerplate
// from a follow-up body. When stripping would leave almost nothing the
// original body is returned unchanged; an empty comment must never be stored.
func StripQuotedReply(body string) string {
	cleaned := body

	// Cut everything from the first quote marker onward.
	cut := len(cleaned)
	for _, marker := range quotedReplyMarkers {
		if loc := marker.FindStringIndex(cleaned); loc != nil && loc[0] < cut {
			cut = loc[0]
		}
	}
	cleaned = cleaned[:cut]

	// Drop ">"-quoted lines and acknowledgement boilerplate that survived.
	cleaned = quotedLine.ReplaceAllString(cleaned, "")
	for _, pattern := range autoResponseBoilerplate {
		cleaned = pattern.ReplaceAllString(cleaned, "")
	}

	cleaned = collapseBlankLines(cleaned)
	if len(strings.TrimSpace(cleaned)) < minStrippedLength {
		return strings.TrimSpace(body)
	}
	return cleaned
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

func collapseBlankLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
