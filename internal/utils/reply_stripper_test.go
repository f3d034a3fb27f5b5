package utils

import (
	"strings"
	"testing"
)

func TestStripQuotedReplyRemovesQuotedText(t *testing.T) {
	body := "The printer works now, thanks!\n\nOn Mon, 4 Aug 2026 at 10:15, Support <support@deskpilot.test> wrote:\n> Your request has been received\n> [Response-ID: ar_abc]"
	got := StripQuotedReply(body)
	if got != "The printer works now, thanks!" {
		t.Fatalf("unexpected cleaned body: %q", got)
	}
}

func TestStripQuotedReplyOutlookSeparator(t *testing.T) {
	body := "Still broken after the update.\n\n-----Original Message-----\nFrom: support@deskpilot.test\nSubject: Your ticket"
	got := StripQuotedReply(body)
	if got != "Still broken after the update." {
		t.Fatalf("unexpected cleaned body: %q", got)
	}
}

func TestStripQuotedReplyBoilerplateLines(t *testing.T) {
	body := "Everything is resolved now, closing this.\nThis is an automated response to your inquiry.\nPlease do not reply directly to this email."
	got := StripQuotedReply(body)
	if strings.Contains(got, "automated response") || strings.Contains(got, "do not reply") {
		t.Fatalf("boilerplate survived: %q", got)
	}
	if !strings.Contains(got, "Everything is resolved now") {
		t.Fatalf("real content was stripped: %q", got)
	}
}

func TestStripQuotedReplyFallsBackOnShortResult(t *testing.T) {
	body := "Ok\n\nOn Mon, 4 Aug 2026 at 10:15, Support wrote:\n> long quoted text here"
	got := StripQuotedReply(body)
	if got != strings.TrimSpace(body) {
		t.Fatalf("expected raw body fallback, got %q", got)
	}
}

func TestFilterUnicodeDropsEmoji(t *testing.T) {
	if got := FilterUnicode("Printer broken \U0001F620 again"); got != "Printer broken  again" {
		t.Fatalf("unexpected filtered string: %q", got)
	}
}

func TestStripHTML(t *testing.T) {
	if got := StripHTML("<p>Hello <b>world</b></p><script>alert(1)</script>"); !strings.Contains(got, "Hello world") || strings.Contains(got, "alert") {
		t.Fatalf("unexpected stripped text: %q", got)
	}
}
