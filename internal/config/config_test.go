package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deskpilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: deskpilot\n"))
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 993, cfg.Mail.Port)
	assert.True(t, cfg.Mail.UseTLS)
	assert.Equal(t, "INBOX", cfg.Mail.SourceFolder)
	assert.Equal(t, "Processed", cfg.Mail.SuccessFolder)
	assert.Equal(t, "Errors", cfg.Mail.ErrorFolder)
	assert.True(t, cfg.Mail.Filter.RequireValidFrom)
	assert.True(t, cfg.Mail.Filter.BlockAutoReplies)
	assert.False(t, cfg.Mail.Filter.BlockEmptySubjects)
	assert.Equal(t, 10, cfg.Mail.Filter.MaxAttachments)
	assert.Equal(t, 25, cfg.Mail.Filter.MaxAttachmentSizeMB)
	assert.True(t, cfg.Assignment.Enabled)
	assert.Equal(t, "@every 2m", cfg.Poll.Schedule)
	assert.Equal(t, 9190, cfg.Metrics.Port)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
mail:
  host: mail.corp.test
  port: 143
  use_tls: false
  filter:
    domain_restriction_mode: blacklist
    blocked_domains: [spam.test]
    block_empty_subjects: true
poll:
  schedule: "@every 30s"
`))
	require.NoError(t, err)

	assert.Equal(t, "mail.corp.test", cfg.Mail.Host)
	assert.Equal(t, 143, cfg.Mail.Port)
	assert.False(t, cfg.Mail.UseTLS)
	assert.Equal(t, DomainModeBlacklist, cfg.Mail.Filter.DomainRestrictionMode)
	assert.Equal(t, []string{"spam.test"}, cfg.Mail.Filter.BlockedDomains)
	assert.True(t, cfg.Mail.Filter.BlockEmptySubjects)
	assert.Equal(t, "@every 30s", cfg.Poll.Schedule)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestEffectiveDomainMode(t *testing.T) {
	mode, allowed := FilterPolicy{}.EffectiveDomainMode()
	assert.Equal(t, DomainModeAllowAll, mode)
	assert.Empty(t, allowed)

	mode, allowed = FilterPolicy{LegacyAllowedDomains: []string{"corp.com"}}.EffectiveDomainMode()
	assert.Equal(t, DomainModeWhitelist, mode)
	assert.Equal(t, []string{"corp.com"}, allowed)

	mode, allowed = FilterPolicy{
		DomainRestrictionMode: " Whitelist ",
		AllowedDomains:        []string{"a.test"},
		LegacyAllowedDomains:  []string{"ignored.test"},
	}.EffectiveDomainMode()
	assert.Equal(t, DomainModeWhitelist, mode)
	assert.Equal(t, []string{"a.test"}, allowed)
}
