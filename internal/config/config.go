package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/deskpilot-io/deskpilot/internal/database"
)

// Config is the application configuration. It is constructed by Load and
// passed to consumers explicitly; there is no package-level instance.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Database      database.Config     `mapstructure:"database"`
	Mail          MailConfig          `mapstructure:"mail"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Assignment    AssignmentConfig    `mapstructure:"assignment"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Poll          PollConfig          `mapstructure:"poll"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	Debug    bool   `mapstructure:"debug"`
	Timezone string `mapstructure:"timezone"`
}

// MailConfig describes the polled mailbox and the admission policy applied to
// everything fetched from it.
type MailConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	UseTLS        bool          `mapstructure:"use_tls"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	SourceFolder  string        `mapstructure:"source_folder"`
	SuccessFolder string        `mapstructure:"success_folder"`
	ErrorFolder   string        `mapstructure:"error_folder"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
	Filter        FilterPolicy  `mapstructure:"filter"`
}

// Domain restriction modes.
const (
	DomainModeAllowAll    = "allow_all"
	DomainModeDisallowAll = "disallow_all"
	DomainModeWhitelist   = "whitelist"
	DomainModeBlacklist   = "blacklist"
)

// FilterPolicy enumerates the admission rules applied before any message is
// persisted. LegacyAllowedDomains is honored as a whitelist only when
// DomainRestrictionMode is unset.
type FilterPolicy struct {
	DomainRestrictionMode string   `mapstructure:"domain_restriction_mode"`
	AllowedDomains        []string `mapstructure:"allowed_domains"`
	BlockedDomains        []string `mapstructure:"blocked_domains"`
	LegacyAllowedDomains  []string `mapstructure:"legacy_allowed_domains"`
	RequireValidFrom      bool     `mapstructure:"require_valid_from"`
	BlockEmptySubjects    bool     `mapstructure:"block_empty_subjects"`
	BlockAutoReplies      bool     `mapstructure:"block_auto_replies"`
	MaxAttachments        int      `mapstructure:"max_attachments"`
	MaxAttachmentSizeMB   int      `mapstructure:"max_attachment_size_mb"`
}

// EffectiveDomainMode resolves the domain policy, folding the legacy
// allow-list into whitelist mode when no explicit mode is configured.
func (p FilterPolicy) EffectiveDomainMode() (mode string, allowed []string) {
	mode = strings.ToLower(strings.TrimSpace(p.DomainRestrictionMode))
	if mode != "" {
		return mode, p.AllowedDomains
	}
	if len(p.LegacyAllowedDomains) > 0 {
		return DomainModeWhitelist, p.LegacyAllowedDomains
	}
	return DomainModeAllowAll, nil
}

type NotificationsConfig struct {
	Enabled      bool       `mapstructure:"enabled"`
	From         string     `mapstructure:"from"`
	AutoRespond  bool       `mapstructure:"auto_respond"`
	TemplatePath string     `mapstructure:"template_path"`
	SMTP         SMTPConfig `mapstructure:"smtp"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	UseTLS   bool   `mapstructure:"use_tls"`
}

type AssignmentConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	RulesFile string `mapstructure:"rules_file"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// PollConfig controls the scheduled ingestion loop.
type PollConfig struct {
	Schedule string `mapstructure:"schedule"`
}

// Load reads configuration from the given file (or the default search path
// when empty), applies environment overrides, and returns the parsed config.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("deskpilot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/deskpilot")
	}
	v.SetEnvPrefix("DESKPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Watch re-reads the config file on change and invokes onChange with the new
// value. Parse failures keep the previous configuration.
func Watch(configPath string, onChange func(*Config)) error {
	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := Load(configPath)
		if err != nil {
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "deskpilot")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.timezone", "UTC")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("mail.port", 993)
	v.SetDefault("mail.use_tls", true)
	v.SetDefault("mail.source_folder", "INBOX")
	v.SetDefault("mail.success_folder", "Processed")
	v.SetDefault("mail.error_folder", "Errors")
	v.SetDefault("mail.dial_timeout", "10s")
	v.SetDefault("mail.filter.domain_restriction_mode", "")
	v.SetDefault("mail.filter.require_valid_from", true)
	v.SetDefault("mail.filter.block_empty_subjects", false)
	v.SetDefault("mail.filter.block_auto_replies", true)
	v.SetDefault("mail.filter.max_attachments", 10)
	v.SetDefault("mail.filter.max_attachment_size_mb", 25)

	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.auto_respond", true)
	v.SetDefault("notifications.smtp.port", 587)

	v.SetDefault("assignment.enabled", true)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9190)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("poll.schedule", "@every 2m")
}
