package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sheets", cfg.Sheets.Backend)
	assert.Equal(t, "Leads", cfg.Sheets.DefaultTab)
	assert.Equal(t, 6, cfg.Sheets.RetryMaxAttempts)
	assert.Equal(t, 5000, cfg.Sheets.RetryBaseMs)
	assert.Contains(t, cfg.Sheets.DedupTabs, "Leads - HVAC Feb26")
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "https://lead-generation2.p.rapidapi.com", cfg.LeadAPI.BaseURL)
	assert.Equal(t, 30, cfg.LeadAPI.TimeoutSecs)
	assert.Equal(t, 20, cfg.People.TimeoutSecs)
	assert.Equal(t, "/tmp/bizfile_session", cfg.Bizfile.SessionDir)
	assert.Equal(t, 50, cfg.Bizfile.SessionTTLMins)
	assert.Equal(t, 35, cfg.Bizfile.PageTimeoutSecs)
	assert.Equal(t, 20, cfg.Bizfile.ElementTimeoutSecs)
	assert.True(t, cfg.Bizfile.Headless)
	assert.Equal(t, "+14087896543", cfg.Outreach.CallbackPhone)
	assert.Equal(t, "equestrolabs.com", cfg.Outreach.Website)
	assert.False(t, cfg.Outreach.DryRun)
	assert.Equal(t, 1, cfg.Pipeline.MaxConcurrent)
	assert.Equal(t, 3, cfg.Pipeline.Touch2Days)
	assert.Equal(t, 4, cfg.Pipeline.Touch3Days)
	assert.Equal(t, "America/Los_Angeles", cfg.Campaign.Timezone)
	assert.Equal(t, 6, cfg.Campaign.StartHour)
	assert.Equal(t, 23, cfg.Campaign.EndHour)
	assert.Equal(t, 9, cfg.Schedule.Hour)
	assert.Equal(t, 30, cfg.Schedule.PollSecs)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
sheets:
  backend: sqlite
  sqlite_path: local.db
outreach:
  dry_run: true
pipeline:
  max_concurrent: 3
schedule:
  pairs: "Morgan Hill CA|plumber,Gilroy CA|electrician"
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Sheets.Backend)
	assert.Equal(t, "local.db", cfg.Sheets.SQLitePath)
	assert.True(t, cfg.Outreach.DryRun)
	assert.Equal(t, 3, cfg.Pipeline.MaxConcurrent)
	assert.Equal(t, "Morgan Hill CA|plumber,Gilroy CA|electrician", cfg.Schedule.Pairs)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values.
	assert.Equal(t, 50, cfg.Bizfile.SessionTTLMins)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("LEADGEN_STORE_DRIVER", "postgres")
	t.Setenv("LEADGEN_LOG_LEVEL", "warn")
	t.Setenv("LEADGEN_OUTREACH_DRY_RUN", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Outreach.DryRun)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}

func TestInitLogger_RotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leadgen.log")
	require.NoError(t, InitLogger(LogConfig{
		Level:      "info",
		Format:     "json",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
	}))

	zap.L().Info("file sink check", zap.String("component", "config_test"))
	_ = zap.L().Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "file sink check")
}

func validRunConfig() *Config {
	cfg := &Config{}
	cfg.Sheets.Backend = "sqlite"
	cfg.Sheets.SQLitePath = "leads.db"
	cfg.Pipeline.MaxConcurrent = 1
	cfg.Campaign.StartHour = 6
	cfg.Campaign.EndHour = 23
	cfg.Outreach.DryRun = true
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_Run(t *testing.T) {
	cfg := validRunConfig()
	assert.NoError(t, cfg.Validate("run"))
	assert.NoError(t, cfg.Validate("serve"))
	assert.NoError(t, cfg.Validate("leads"))
}

func TestValidate_SheetsRequiresCredentials(t *testing.T) {
	cfg := validRunConfig()
	cfg.Sheets.Backend = "sheets"

	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sheets.spreadsheet_id is required")
	assert.Contains(t, err.Error(), "sheets.credentials_file is required")
}

func TestValidate_SendRequiresBridgeUnlessDryRun(t *testing.T) {
	cfg := validRunConfig()
	cfg.Outreach.DryRun = false

	err := cfg.Validate("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outreach.sms_bridge_url")

	cfg.Outreach.SMSBridgeURL = "http://localhost:9000"
	assert.NoError(t, cfg.Validate("run"))
}

func TestValidate_Bounds(t *testing.T) {
	cfg := validRunConfig()
	cfg.Pipeline.MaxConcurrent = 0
	assert.ErrorContains(t, cfg.Validate("run"), "max_concurrent")

	cfg = validRunConfig()
	cfg.Campaign.StartHour = 22
	cfg.Campaign.EndHour = 6
	assert.ErrorContains(t, cfg.Validate("run"), "start_hour")

	cfg = validRunConfig()
	cfg.Server.Port = 0
	assert.ErrorContains(t, cfg.Validate("serve"), "server.port must be > 0")
	assert.NoError(t, cfg.Validate("run"))
}

func TestValidate_UnknownMode(t *testing.T) {
	assert.ErrorContains(t, validRunConfig().Validate("nope"), "unknown mode")
}

func TestBizfilePassword_PrefersConfig(t *testing.T) {
	cfg := &Config{}
	cfg.Bizfile.Username = "ops@example.com"
	cfg.Bizfile.Password = "hunter2"

	assert.Equal(t, "hunter2", cfg.BizfilePassword())
	assert.Equal(t, "bizfile:ops@example.com", cfg.BizfileKeyringAccount())
}

func TestSetBizfilePassword_RequiresAccount(t *testing.T) {
	cfg := &Config{}
	assert.ErrorContains(t, cfg.SetBizfilePassword("pw"), "username is required")

	cfg.Bizfile.Username = "ops@example.com"
	assert.ErrorContains(t, cfg.SetBizfilePassword("  "), "password is empty")
}
