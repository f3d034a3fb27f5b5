package filters

import (
	"context"
	"strings"
)

var autoReplySubjectKeywords = []string{
	"auto-reply",
	"autoreply",
	"automatic reply",
	"auto response",
	"out of office",
	"out-of-office",
	"vacation",
	"mailer-daemon",
	"delivery status notification",
	"undeliverable",
}

// AutoReplyFilter rejects automated messages so auto-responders cannot open
// tickets (or worse, loop against our own auto-responses).
type AutoReplyFilter struct{}

func (f *AutoReplyFilter) ID() string { return "auto_reply" }

func (f *AutoReplyFilter) Apply(_ context.Context, m *MessageContext) error {
	if !m.Policy.BlockAutoReplies {
		return nil
	}
	if keyword := matchAutoReplySubject(m.Email.Subject); keyword != "" {
		return Reject("auto_reply", "subject matches auto-reply keyword %q", keyword)
	}
	if header := matchAutoReplyHeader(m); header != "" {
		return Reject("auto_reply", "message carries auto-reply header %s", header)
	}
	return nil
}

func matchAutoReplySubject(subject string) string {
	subject = strings.ToLower(subject)
	for _, keyword := range autoReplySubjectKeywords {
		if strings.Contains(subject, keyword) {
			return keyword
		}
	}
	return ""
}

func matchAutoReplyHeader(m *MessageContext) string {
	headers := m.Email.Headers
	if headers.Get("X-Autoreply") != "" {
		return "X-Autoreply"
	}
	for key := range headers {
		if strings.HasPrefix(strings.ToLower(key), "x-autorespond") {
			return key
		}
	}
	if precedence := strings.ToLower(headers.Get("Precedence")); precedence == "bulk" || precedence == "auto" {
		return "Precedence"
	}
	if auto := strings.ToLower(headers.Get("Auto-Submitted")); auto != "" && auto != "no" {
		return "Auto-Submitted"
	}
	return ""
}
