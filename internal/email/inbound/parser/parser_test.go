package parser

import (
	"strings"
	"testing"
	"time"
)

func crlf(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

func TestParseMultipartMessage(t *testing.T) {
	raw := crlf(
		"From: Alice Example <alice@corp.com>",
		"To: support@helpdesk.test",
		"Subject: =?utf-8?q?Drucker_kaputt?=",
		"Message-ID: <msg-1@corp.com>",
		"In-Reply-To: <parent@corp.com>",
		"References: <root@corp.com> <parent@corp.com>",
		"MIME-Version: 1.0",
		"Content-Type: multipart/mixed; boundary=outer",
		"",
		"--outer",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"The printer is broken.",
		"--outer",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>The printer is <b>broken</b>.</p>",
		"--outer",
		"Content-Type: application/pdf",
		"Content-Disposition: attachment; filename=report.pdf",
		"Content-Transfer-Encoding: base64",
		"",
		"JVBERi0xLjQ=",
		"--outer--",
	)

	received := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	email, err := New().Parse(raw, received)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if email.MessageID != "msg-1@corp.com" {
		t.Fatalf("message id = %q", email.MessageID)
	}
	if email.Subject != "Drucker kaputt" {
		t.Fatalf("subject = %q", email.Subject)
	}
	if got := email.SenderAddress(); got != "alice@corp.com" {
		t.Fatalf("sender = %q", got)
	}
	if got := email.SenderDomain(); got != "corp.com" {
		t.Fatalf("domain = %q", got)
	}
	if email.InReplyTo != "parent@corp.com" {
		t.Fatalf("in-reply-to = %q", email.InReplyTo)
	}
	if len(email.References) != 2 || email.References[0] != "root@corp.com" {
		t.Fatalf("references = %v", email.References)
	}
	if !strings.Contains(email.TextBody, "printer is broken") {
		t.Fatalf("text body = %q", email.TextBody)
	}
	if !strings.Contains(email.HTMLBody, "<b>broken</b>") {
		t.Fatalf("html body = %q", email.HTMLBody)
	}
	if !email.ReceivedAt.Equal(received) {
		t.Fatalf("received at = %v", email.ReceivedAt)
	}

	atts := email.TrueAttachments()
	if len(atts) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(atts))
	}
	if atts[0].Filename != "report.pdf" || atts[0].MimeType != "application/pdf" {
		t.Fatalf("attachment = %+v", atts[0])
	}
	if atts[0].SizeBytes == 0 || len(atts[0].Content) == 0 {
		t.Fatalf("attachment content not decoded")
	}
}

func TestParseInlineImageIsNotTrueAttachment(t *testing.T) {
	raw := crlf(
		"From: bob@corp.com",
		"Subject: with logo",
		"Message-ID: <msg-2@corp.com>",
		"MIME-Version: 1.0",
		"Content-Type: multipart/related; boundary=rel",
		"",
		"--rel",
		"Content-Type: text/html; charset=utf-8",
		"",
		`<img src="cid:logo1">`,
		"--rel",
		"Content-Type: image/png",
		"Content-Disposition: inline",
		"Content-ID: <logo1>",
		"Content-Transfer-Encoding: base64",
		"",
		"iVBORw0KGgo=",
		"--rel--",
	)

	email, err := New().Parse(raw, time.Now())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(email.TrueAttachments()) != 0 {
		t.Fatalf("inline image counted as true attachment")
	}
	inline := email.InlineParts()
	if len(inline) != 1 {
		t.Fatalf("expected 1 inline part, got %d", len(inline))
	}
	if inline[0].ContentID != "logo1" {
		t.Fatalf("content id = %q", inline[0].ContentID)
	}
}

func TestHeaderLookupIsCaseInsensitive(t *testing.T) {
	raw := crlf(
		"From: bob@corp.com",
		"Subject: plain",
		"Message-ID: <msg-3@corp.com>",
		"X-Thread-Id: <thread-9@corp.com>",
		"Auto-Submitted: auto-replied",
		"",
		"body",
	)
	email, err := New().Parse(raw, time.Now())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got := email.Headers.Get("auto-submitted"); got != "auto-replied" {
		t.Fatalf("lowercase lookup = %q", got)
	}
	if got := email.Headers.Get("AUTO-SUBMITTED"); got != "auto-replied" {
		t.Fatalf("uppercase lookup = %q", got)
	}
	if email.ThreadID != "thread-9@corp.com" {
		t.Fatalf("thread id = %q", email.ThreadID)
	}
}

func TestParseEmptyMessage(t *testing.T) {
	if _, err := New().Parse(nil, time.Now()); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestNormalizeMessageIDs(t *testing.T) {
	cases := map[string]string{
		"<abc@x>":    "abc@x",
		" <abc@x> ":  "abc@x",
		"abc@x":      "abc@x",
		`"abc@x"`:    "abc@x",
		"":           "",
	}
	for in, want := range cases {
		if got := normalizeMessageID(in); got != want {
			t.Fatalf("normalizeMessageID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReferencesDeduplicated(t *testing.T) {
	ids := uniqueMessageIDs("<a@x> <b@x>", "<b@x>")
	if len(ids) != 2 || ids[0] != "a@x" || ids[1] != "b@x" {
		t.Fatalf("ids = %v", ids)
	}
}
