package filters

import (
	"context"
	"strings"
	"testing"

	"github.com/deskpilot-io/deskpilot/internal/config"
	"github.com/deskpilot-io/deskpilot/internal/email/inbound/parser"
)

func message(from, subject string) *parser.ParsedEmail {
	return &parser.ParsedEmail{
		MessageID: "test@corp.com",
		From:      from,
		Subject:   subject,
		Headers:   parser.Header{},
	}
}

func TestChainFirstFailingRuleWins(t *testing.T) {
	policy := config.FilterPolicy{
		DomainRestrictionMode: config.DomainModeBlacklist,
		BlockedDomains:        []string{"spam.test"},
		BlockEmptySubjects:    true,
	}
	err := DefaultChain().Run(context.Background(), &MessageContext{
		Email:  message("a@spam.test", ""),
		Policy: policy,
	})
	rejection, ok := AsRejection(err)
	if !ok {
		t.Fatalf("expected rejection, got %v", err)
	}
	if rejection.Rule != "domain_policy" {
		t.Fatalf("expected domain rejection before empty-subject, got %s", rejection.Rule)
	}
}

func TestMessageIDFilter(t *testing.T) {
	email := message("a@corp.com", "hi")
	email.MessageID = "  "
	err := DefaultChain().Run(context.Background(), &MessageContext{Email: email})
	rejection, ok := AsRejection(err)
	if !ok || rejection.Rule != "message_id" {
		t.Fatalf("expected message_id rejection, got %v", err)
	}
}

func TestDomainPolicyModes(t *testing.T) {
	cases := []struct {
		name   string
		policy config.FilterPolicy
		sender string
		reject bool
	}{
		{"allow_all default", config.FilterPolicy{}, "a@any.test", false},
		{"disallow_all", config.FilterPolicy{DomainRestrictionMode: config.DomainModeDisallowAll}, "a@corp.com", true},
		{"whitelist pass", config.FilterPolicy{DomainRestrictionMode: config.DomainModeWhitelist, AllowedDomains: []string{"Corp.com"}}, "a@corp.com", false},
		{"whitelist reject", config.FilterPolicy{DomainRestrictionMode: config.DomainModeWhitelist, AllowedDomains: []string{"corp.com"}}, "a@other.com", true},
		{"blacklist pass", config.FilterPolicy{DomainRestrictionMode: config.DomainModeBlacklist, BlockedDomains: []string{"spam.test"}}, "a@corp.com", false},
		{"blacklist reject", config.FilterPolicy{DomainRestrictionMode: config.DomainModeBlacklist, BlockedDomains: []string{"spam.test"}}, "a@spam.test", true},
		{"legacy list acts as whitelist", config.FilterPolicy{LegacyAllowedDomains: []string{"corp.com"}}, "a@other.com", true},
		{"legacy list pass", config.FilterPolicy{LegacyAllowedDomains: []string{"corp.com"}}, "a@corp.com", false},
	}
	filter := &DomainPolicyFilter{}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := filter.Apply(context.Background(), &MessageContext{
				Email:  message(tc.sender, "subject"),
				Policy: tc.policy,
			})
			if tc.reject && err == nil {
				t.Fatalf("expected rejection")
			}
			if !tc.reject && err != nil {
				t.Fatalf("unexpected rejection: %v", err)
			}
		})
	}
}

func TestValidFromFilter(t *testing.T) {
	filter := &ValidFromFilter{}
	policy := config.FilterPolicy{RequireValidFrom: true}

	if err := filter.Apply(context.Background(), &MessageContext{Email: message("", "s"), Policy: policy}); err == nil {
		t.Fatalf("missing sender should be rejected")
	}
	if err := filter.Apply(context.Background(), &MessageContext{Email: message("User <user@corp.com>", "s"), Policy: policy}); err != nil {
		t.Fatalf("valid sender rejected: %v", err)
	}
}

func TestAutoReplyFilter(t *testing.T) {
	policy := config.FilterPolicy{BlockAutoReplies: true}
	filter := &AutoReplyFilter{}

	subjects := []string{
		"Automatic reply: Printer not working",
		"Out of Office until Monday",
		"Undeliverable: your message",
	}
	for _, subject := range subjects {
		err := filter.Apply(context.Background(), &MessageContext{Email: message("a@corp.com", subject), Policy: policy})
		if _, ok := AsRejection(err); !ok {
			t.Fatalf("subject %q should be rejected, got %v", subject, err)
		}
	}

	headerCases := []parser.Header{
		{"X-Autoreply": "yes"},
		{"X-Autorespond-Id": "17"},
		{"Precedence": "bulk"},
		{"Auto-Submitted": "auto-replied"},
	}
	for _, headers := range headerCases {
		email := message("a@corp.com", "regular subject")
		email.Headers = headers
		err := filter.Apply(context.Background(), &MessageContext{Email: email, Policy: policy})
		if _, ok := AsRejection(err); !ok {
			t.Fatalf("headers %v should be rejected, got %v", headers, err)
		}
	}

	normal := message("a@corp.com", "Printer not working")
	normal.Headers = parser.Header{"Auto-Submitted": "no"}
	if err := filter.Apply(context.Background(), &MessageContext{Email: normal, Policy: policy}); err != nil {
		t.Fatalf("Auto-Submitted: no must pass, got %v", err)
	}
}

func TestAttachmentCaps(t *testing.T) {
	email := message("a@corp.com", "caps")
	email.Attachments = []parser.Attachment{
		{Filename: "a.pdf", Disposition: parser.DispositionAttachment, SizeBytes: 3 * 1024 * 1024},
		{Filename: "b.pdf", Disposition: parser.DispositionAttachment, SizeBytes: 1024},
		{Filename: "inline.png", Disposition: parser.DispositionInline, SizeBytes: 50 * 1024 * 1024},
	}

	countErr := (&AttachmentCountFilter{}).Apply(context.Background(), &MessageContext{
		Email:  email,
		Policy: config.FilterPolicy{MaxAttachments: 1},
	})
	if rejection, ok := AsRejection(countErr); !ok || rejection.Rule != "attachment_count" {
		t.Fatalf("expected count rejection, got %v", countErr)
	}

	// The oversized inline part does not count against the per-file cap.
	sizeErr := (&AttachmentSizeFilter{}).Apply(context.Background(), &MessageContext{
		Email:  email,
		Policy: config.FilterPolicy{MaxAttachmentSizeMB: 5},
	})
	if sizeErr != nil {
		t.Fatalf("inline parts must not trip the size cap: %v", sizeErr)
	}

	sizeErr = (&AttachmentSizeFilter{}).Apply(context.Background(), &MessageContext{
		Email:  email,
		Policy: config.FilterPolicy{MaxAttachmentSizeMB: 2},
	})
	rejection, ok := AsRejection(sizeErr)
	if !ok || rejection.Rule != "attachment_size" {
		t.Fatalf("expected size rejection, got %v", sizeErr)
	}
	if !strings.Contains(rejection.Reason, "a.pdf") {
		t.Fatalf("rejection should name the offending file: %s", rejection.Reason)
	}
}
