// Package config assembles the importer settings from defaults, environment
// variables and an optional YAML file, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ModeOnce      = "once"
	ModeScheduler = "scheduler"
)

type Config struct {
	DataPath    string       `yaml:"data_path"`
	DatabaseURL string       `yaml:"database_url"`
	RunMode     string       `yaml:"run_mode"`
	HTTPAddr    string       `yaml:"http_addr"`
	OPhim       OPhimConfig  `yaml:"ophim"`
	Import      ImportConfig `yaml:"import"`
	Email       EmailConfig  `yaml:"email"`
}

type OPhimConfig struct {
	BaseURL        string `yaml:"base_url"`
	UserAgent      string `yaml:"user_agent"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type ImportConfig struct {
	RateLimitMS  int    `yaml:"rate_limit_ms"`
	MaxRetries   int    `yaml:"max_retries"`
	RetryDelayMS int    `yaml:"retry_delay_ms"`
	Schedule     string `yaml:"schedule"`
	// Pages is how many of the newest catalog pages a scheduled run covers.
	Pages int `yaml:"pages"`
	// RunAtStartup triggers one scheduled import as soon as the scheduler starts.
	RunAtStartup bool `yaml:"run_at_startup"`
}

type EmailConfig struct {
	SMTPHost  string `yaml:"smtp_host"`
	SMTPPort  int    `yaml:"smtp_port"`
	Sender    string `yaml:"sender"`
	Password  string `yaml:"password"`
	Recipient string `yaml:"recipient"`
}

// Enabled reports whether enough is configured to send mail.
func (e EmailConfig) Enabled() bool {
	return e.SMTPHost != "" && e.Sender != "" && e.Recipient != ""
}

// Error reports a setting that could not be parsed or is out of range.
type Error struct {
	Field string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid config %s: %v", e.Field, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func Default() Config {
	return Config{
		DataPath: "./data",
		RunMode:  ModeOnce,
		HTTPAddr: ":8080",
		OPhim: OPhimConfig{
			BaseURL:        "https://ophim1.com",
			TimeoutSeconds: 30,
		},
		Import: ImportConfig{
			RateLimitMS:  500,
			MaxRetries:   3,
			RetryDelayMS: 1000,
			// 03:00 every day, with the seconds field first
			Schedule: "0 0 3 * * *",
			Pages:    5,
		},
		Email: EmailConfig{
			SMTPPort: 587,
		},
	}
}

// Load builds the configuration. path may be empty; a missing file is an
// error when a path is given.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, &Error{Field: path, Err: err}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.DataPath, "DATA_PATH")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.RunMode, "RUN_MODE")
	setString(&c.HTTPAddr, "HTTP_ADDR")
	setString(&c.OPhim.BaseURL, "OPHIM_BASE_URL")
	setString(&c.OPhim.UserAgent, "OPHIM_USER_AGENT")
	setString(&c.Import.Schedule, "IMPORT_SCHEDULE")
	setString(&c.Email.SMTPHost, "EMAIL_SMTP_HOST")
	setString(&c.Email.Sender, "EMAIL_SENDER")
	setString(&c.Email.Password, "EMAIL_PASSWORD")
	setString(&c.Email.Recipient, "EMAIL_RECIPIENT")

	ints := []struct {
		dst *int
		key string
	}{
		{&c.OPhim.TimeoutSeconds, "HTTP_TIMEOUT_SECONDS"},
		{&c.Import.RateLimitMS, "RATE_LIMIT_MS"},
		{&c.Import.MaxRetries, "MAX_RETRIES"},
		{&c.Import.RetryDelayMS, "RETRY_DELAY_MS"},
		{&c.Import.Pages, "IMPORT_PAGES"},
		{&c.Email.SMTPPort, "EMAIL_SMTP_PORT"},
	}
	for _, i := range ints {
		if err := setInt(i.dst, i.key); err != nil {
			return err
		}
	}
	return setBool(&c.Import.RunAtStartup, "RUN_AT_STARTUP")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return &Error{Field: key, Err: err}
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return &Error{Field: key, Err: err}
	}
	*dst = b
	return nil
}

func (c *Config) Validate() error {
	switch c.RunMode {
	case ModeOnce, ModeScheduler:
	default:
		return &Error{Field: "run_mode", Err: fmt.Errorf("must be %q or %q, got %q", ModeOnce, ModeScheduler, c.RunMode)}
	}

	checks := []struct {
		field string
		value int
		min   int
	}{
		{"ophim.timeout_seconds", c.OPhim.TimeoutSeconds, 1},
		{"import.rate_limit_ms", c.Import.RateLimitMS, 0},
		{"import.max_retries", c.Import.MaxRetries, 0},
		{"import.retry_delay_ms", c.Import.RetryDelayMS, 0},
		{"import.pages", c.Import.Pages, 1},
	}
	for _, ch := range checks {
		if ch.value < ch.min {
			return &Error{Field: ch.field, Err: fmt.Errorf("must be >= %d, got %d", ch.min, ch.value)}
		}
	}

	if c.Email.SMTPHost != "" && (c.Email.SMTPPort < 1 || c.Email.SMTPPort > 65535) {
		return &Error{Field: "email.smtp_port", Err: fmt.Errorf("out of range: %d", c.Email.SMTPPort)}
	}
	if c.RunMode == ModeScheduler && strings.TrimSpace(c.Import.Schedule) == "" {
		return &Error{Field: "import.schedule", Err: errors.New("required in scheduler mode")}
	}
	return nil
}

func (c Config) RateLimit() time.Duration {
	return time.Duration(c.Import.RateLimitMS) * time.Millisecond
}

func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Import.RetryDelayMS) * time.Millisecond
}

func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.OPhim.TimeoutSeconds) * time.Second
}
