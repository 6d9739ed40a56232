// ABOUTME: Configuration loading and parsing for coven-adapter
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/2389/coven-adapter/internal/credentials"
)

// EnvConfigPath names the environment variable that points at the config file.
const EnvConfigPath = "COVEN_ADAPTER_CONFIG"

// Defaults applied to unset fields.
const (
	DefaultHTTPAddr          = "0.0.0.0:3978"
	DefaultDedupeTTL         = 10 * time.Minute
	DefaultDedupeMaxEntries  = 10000
	DefaultDedupeSweep       = time.Minute
	DefaultMetricsPath       = "/metrics"
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultReadHeaderTimeout = 10 * time.Second
)

// Config represents the complete coven-adapter configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Bot     BotConfig     `yaml:"bot"`
	Dedupe  DedupeConfig  `yaml:"dedupe"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`

	Transcript TranscriptConfig `yaml:"transcript"`
	Admin      AdminConfig      `yaml:"admin"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"-"`

	ShutdownTimeoutRaw string `yaml:"shutdown_timeout"`
}

// BotConfig holds the bot's application identity and cloud selection
type BotConfig struct {
	AppID          string `yaml:"app_id"`
	AppPassword    string `yaml:"app_password"`
	TenantID       string `yaml:"tenant_id"`
	ChannelService string `yaml:"channel_service"`
	OAuthEndpoint  string `yaml:"oauth_endpoint"`
	OpenIDMetadata string `yaml:"openid_metadata"`

	// OAuthConnection names the token-service connection used for sign-in.
	OAuthConnection string `yaml:"oauth_connection"`
}

// Settings converts the bot section into credential resolver settings.
func (b BotConfig) Settings() credentials.Settings {
	return credentials.Settings{
		AppID:          b.AppID,
		AppPassword:    b.AppPassword,
		TenantID:       b.TenantID,
		ChannelService: b.ChannelService,
		OAuthEndpoint:  b.OAuthEndpoint,
		OpenIDMetadata: b.OpenIDMetadata,
	}
}

// DedupeConfig controls suppression of redelivered activities
type DedupeConfig struct {
	Enabled       bool          `yaml:"enabled"`
	MaxEntries    int           `yaml:"max_entries"`
	TTL           time.Duration `yaml:"-"`
	SweepInterval time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	TTLRaw           string `yaml:"ttl"`
	SweepIntervalRaw string `yaml:"sweep_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TranscriptConfig controls the live transcript stream at /api/transcript
type TranscriptConfig struct {
	Enabled bool `yaml:"enabled"`
}

// AdminConfig holds the bearer token guarding the operator routes
// (/api/notify and /api/transcript). An empty token leaves them unmounted.
type AdminConfig struct {
	Token string `yaml:"token"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		Dedupe:  DedupeConfig{Enabled: true},
		Metrics: MetricsConfig{Enabled: true},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	cfg := Config{
		Dedupe:  DedupeConfig{Enabled: true},
		Metrics: MetricsConfig{Enabled: true},
	}
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv loads the file named by COVEN_ADAPTER_CONFIG, or falls back to
// Default when the variable is unset.
func LoadFromEnv() (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Dedupe.TTL == 0 {
		c.Dedupe.TTL = DefaultDedupeTTL
	}
	if c.Dedupe.MaxEntries == 0 {
		c.Dedupe.MaxEntries = DefaultDedupeMaxEntries
	}
	if c.Dedupe.SweepInterval == 0 {
		c.Dedupe.SweepInterval = DefaultDedupeSweep
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	// A password without an app id would silently disable authentication.
	if c.Bot.AppID == "" && c.Bot.AppPassword != "" {
		return fmt.Errorf("bot.app_id is required when bot.app_password is set")
	}
	if c.Bot.AppID != "" && c.Bot.AppPassword == "" {
		return fmt.Errorf("bot.app_password is required when bot.app_id is set")
	}

	if c.Dedupe.MaxEntries < 0 {
		return fmt.Errorf("dedupe.max_entries must not be negative")
	}
	if c.Dedupe.TTL < 0 {
		return fmt.Errorf("dedupe.ttl must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	// The transcript feed carries message text; it is only served behind the admin token.
	if c.Transcript.Enabled && c.Admin.Token == "" {
		return fmt.Errorf("admin.token is required when transcript.enabled is set")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.ShutdownTimeoutRaw != "" {
		cfg.Server.ShutdownTimeout, err = time.ParseDuration(cfg.Server.ShutdownTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing shutdown_timeout %q: %w", cfg.Server.ShutdownTimeoutRaw, err)
		}
	}

	if cfg.Dedupe.TTLRaw != "" {
		cfg.Dedupe.TTL, err = time.ParseDuration(cfg.Dedupe.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing ttl %q: %w", cfg.Dedupe.TTLRaw, err)
		}
	}

	if cfg.Dedupe.SweepIntervalRaw != "" {
		cfg.Dedupe.SweepInterval, err = time.ParseDuration(cfg.Dedupe.SweepIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing sweep_interval %q: %w", cfg.Dedupe.SweepIntervalRaw, err)
		}
	}

	return nil
}
