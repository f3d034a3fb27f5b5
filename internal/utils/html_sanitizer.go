package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

// HTMLSanitizer cleans HTML email bodies before they are stored against a
// ticket. Inbound mail is fully untrusted input.
type HTMLSanitizer struct {
	policy *bluemonday.Policy
}

// NewHTMLSanitizer builds a policy that keeps common mail-client formatting
// while stripping scripts, event handlers, and unknown attributes.
func NewHTMLSanitizer() *HTMLSanitizer {
	p := bluemonday.NewPolicy()

	// Formatting seen in real mail clients
	p.AllowElements("b", "strong", "i", "em", "u", "s", "strike", "del")
	p.AllowElements("h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowElements("p", "br", "hr", "div", "span")
	p.AllowElements("ul", "ol", "li")
	p.AllowElements("blockquote", "code", "pre")

	// Tables, common in Outlook-generated bodies
	p.AllowElements("table", "thead", "tbody", "tfoot", "tr", "th", "td")
	p.AllowAttrs("colspan", "rowspan").OnElements("td", "th")

	// Images; data URLs carry inline cid: parts resolved during routing
	p.AllowElements("img")
	p.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	p.AllowURLSchemes("http", "https", "data")

	p.AllowElements("a")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireParseableURLs(true)
	p.RequireNoFollowOnLinks(true)
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	return &HTMLSanitizer{policy: p}
}

// Sanitize cleans HTML content.
func (s *HTMLSanitizer) Sanitize(html string) string {
	return s.policy.Sanitize(html)
}

// IsHTML reports whether content looks like an HTML body rather than plain
// text.
func IsHTML(content string) bool {
	htmlTags := []string{"<p>", "<br>", "<div>", "<span>", "<b>", "<i>", "<strong>", "<em>", "<h1>", "<h2>", "<h3>", "<ul>", "<ol>", "<li>", "<table>", "<a ", "<blockquote>", "<img "}
	contentLower := strings.ToLower(content)
	for _, tag := range htmlTags {
		if strings.Contains(contentLower, tag) {
			return true
		}
	}
	return false
}

// MarkdownToHTML renders a markdown template body to HTML. Auto-response
// templates are authored in markdown.
func MarkdownToHTML(markdown string) string {
	md := goldmark.New(
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)
	var buf strings.Builder
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return markdown
	}
	return buf.String()
}

// StripHTML removes all markup and returns plain text, used to derive a text
// body when a message only carries HTML.
func StripHTML(html string) string {
	return bluemonday.StrictPolicy().Sanitize(html)
}
