package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment does
// not leak into the tests.
func clearEnv(t *testing.T) {
	for _, key := range []string{
		"DATA_PATH", "DATABASE_URL", "RUN_MODE", "HTTP_ADDR", "OPHIM_BASE_URL", "OPHIM_USER_AGENT",
		"HTTP_TIMEOUT_SECONDS", "RATE_LIMIT_MS", "MAX_RETRIES", "RETRY_DELAY_MS", "IMPORT_SCHEDULE",
		"IMPORT_PAGES", "EMAIL_SMTP_HOST", "EMAIL_SMTP_PORT", "EMAIL_SENDER", "EMAIL_PASSWORD", "EMAIL_RECIPIENT",
		"RUN_AT_STARTUP",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.DataPath)
	assert.Equal(t, ModeOnce, cfg.RunMode)
	assert.Equal(t, "https://ophim1.com", cfg.OPhim.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.RateLimit())
	assert.Equal(t, 3, cfg.Import.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryDelay())
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout())
	assert.False(t, cfg.Email.Enabled())
	assert.False(t, cfg.Import.RunAtStartup)
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATA_PATH", "/var/lib/phimgg")
	t.Setenv("RATE_LIMIT_MS", "250")
	t.Setenv("RUN_MODE", "scheduler")
	t.Setenv("EMAIL_SMTP_HOST", "smtp.example.com")
	t.Setenv("EMAIL_SENDER", "bot@example.com")
	t.Setenv("EMAIL_RECIPIENT", "ops@example.com")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/phimgg", cfg.DataPath)
	assert.Equal(t, 250, cfg.Import.RateLimitMS)
	assert.Equal(t, ModeScheduler, cfg.RunMode)
	assert.True(t, cfg.Email.Enabled())
}

func TestLoad_BadEnvNumber(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_RETRIES", "three")

	_, err := Load("")

	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "MAX_RETRIES", cfgErr.Field)
}

func TestLoad_RunAtStartup(t *testing.T) {
	clearEnv(t)
	t.Setenv("RUN_AT_STARTUP", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Import.RunAtStartup)

	t.Setenv("RUN_AT_STARTUP", "sometimes")
	_, err = Load("")
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "RUN_AT_STARTUP", cfgErr.Field)
}

func TestLoad_FileOverridesEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT_MS", "250")
	t.Setenv("DATA_PATH", "/from/env")

	path := filepath.Join(t.TempDir(), "importer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
import:
  rate_limit_ms: 1200
  pages: 2
ophim:
  base_url: https://ophim.example.test
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1200, cfg.Import.RateLimitMS)
	assert.Equal(t, 2, cfg.Import.Pages)
	assert.Equal(t, "https://ophim.example.test", cfg.OPhim.BaseURL)
	// untouched keys keep the env value
	assert.Equal(t, "/from/env", cfg.DataPath)
	assert.Equal(t, 3, cfg.Import.MaxRetries)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.RunMode = "daemon"
	var cfgErr *Error
	require.ErrorAs(t, cfg.Validate(), &cfgErr)
	assert.Equal(t, "run_mode", cfgErr.Field)

	cfg = Default()
	cfg.Import.RateLimitMS = -1
	require.ErrorAs(t, cfg.Validate(), &cfgErr)
	assert.Equal(t, "import.rate_limit_ms", cfgErr.Field)

	cfg = Default()
	cfg.RunMode = ModeScheduler
	cfg.Import.Schedule = ""
	require.ErrorAs(t, cfg.Validate(), &cfgErr)
	assert.Equal(t, "import.schedule", cfgErr.Field)
}
