package filters

import (
	"context"
	"strings"

	"github.com/deskpilot-io/deskpilot/internal/config"
)

// MessageIDFilter rejects messages without an extractable message id. Dedup
// keys on the id, so a message without one can never be safely ingested.
type MessageIDFilter struct{}

func (f *MessageIDFilter) ID() string { return "message_id" }

func (f *MessageIDFilter) Apply(_ context.Context, m *MessageContext) error {
	if m == nil || m.Email == nil || strings.TrimSpace(m.Email.MessageID) == "" {
		return Reject("message_id", "message has no extractable message id")
	}
	return nil
}

// DomainPolicyFilter enforces the configured sender-domain policy.
type DomainPolicyFilter struct{}

func (f *DomainPolicyFilter) ID() string { return "domain_policy" }

func (f *DomainPolicyFilter) Apply(_ context.Context, m *MessageContext) error {
	mode, allowed := m.Policy.EffectiveDomainMode()
	if mode == config.DomainModeAllowAll {
		return nil
	}
	domain := m.Email.SenderDomain()
	switch mode {
	case config.DomainModeDisallowAll:
		return Reject("domain_policy", "inbound email is disabled by domain policy")
	case config.DomainModeWhitelist:
		if domain == "" || !containsDomain(allowed, domain) {
			return Reject("domain_policy", "sender domain %q is not on the allowed list", domain)
		}
	case config.DomainModeBlacklist:
		if containsDomain(m.Policy.BlockedDomains, domain) {
			return Reject("domain_policy", "sender domain %q is blocked", domain)
		}
	default:
		return Reject("domain_policy", "unknown domain restriction mode %q", mode)
	}
	return nil
}

func containsDomain(domains []string, domain string) bool {
	for _, d := range domains {
		if strings.EqualFold(strings.TrimSpace(d), domain) {
			return true
		}
	}
	return false
}

// ValidFromFilter rejects messages whose sender address is missing or
// unparsable when the policy requires one.
type ValidFromFilter struct{}

func (f *ValidFromFilter) ID() string { return "valid_from" }

func (f *ValidFromFilter) Apply(_ context.Context, m *MessageContext) error {
	if !m.Policy.RequireValidFrom {
		return nil
	}
	if m.Email.SenderAddress() == "" {
		return Reject("valid_from", "sender address is missing or unparsable")
	}
	return nil
}

// EmptySubjectFilter rejects empty or whitespace-only subjects.
type EmptySubjectFilter struct{}

func (f *EmptySubjectFilter) ID() string { return "empty_subject" }

func (f *EmptySubjectFilter) Apply(_ context.Context, m *MessageContext) error {
	if !m.Policy.BlockEmptySubjects {
		return nil
	}
	if strings.TrimSpace(m.Email.Subject) == "" {
		return Reject("empty_subject", "subject is empty")
	}
	return nil
}

// AttachmentCountFilter caps the number of true attachments.
type AttachmentCountFilter struct{}

func (f *AttachmentCountFilter) ID() string { return "attachment_count" }

func (f *AttachmentCountFilter) Apply(_ context.Context, m *MessageContext) error {
	max := m.Policy.MaxAttachments
	if max <= 0 {
		return nil
	}
	if count := len(m.Email.TrueAttachments()); count > max {
		return Reject("attachment_count", "message has %d attachments, limit is %d", count, max)
	}
	return nil
}

// AttachmentSizeFilter caps the size of each true attachment.
type AttachmentSizeFilter struct{}

func (f *AttachmentSizeFilter) ID() string { return "attachment_size" }

func (f *AttachmentSizeFilter) Apply(_ context.Context, m *MessageContext) error {
	maxMB := m.Policy.MaxAttachmentSizeMB
	if maxMB <= 0 {
		return nil
	}
	limit := int64(maxMB) * 1024 * 1024
	for _, att := range m.Email.TrueAttachments() {
		if att.SizeBytes > limit {
			return Reject("attachment_size", "attachment %q is %d bytes, limit is %d MB",
				att.Filename, att.SizeBytes, maxMB)
		}
	}
	return nil
}
