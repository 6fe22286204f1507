//go:build !integration

package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equestrolabs/leadgen-cli/internal/config"
)

// localConfig is a runnable config backed by temp SQLite files and dry-run
// senders.
func localConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Sheets: config.SheetsConfig{
			Backend:    "sqlite",
			SQLitePath: filepath.Join(dir, "leads.db"),
			DefaultTab: "Leads",
			DedupTabs:  []string{"Leads", "Leads - Plumber Feb26"},
		},
		Store:    config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(dir, "runs.db")},
		Bizfile:  config.BizfileConfig{SessionDir: filepath.Join(dir, "session"), SessionTTLMins: 50, Headless: true},
		Outreach: config.OutreachConfig{DryRun: true, SenderName: "Natalie"},
		Pipeline: config.PipelineConfig{MaxConcurrent: 1, Touch2Days: 3, Touch3Days: 4},
		Campaign: config.CampaignConfig{Timezone: "America/Los_Angeles", StartHour: 6, EndHour: 23},
		Schedule: config.ScheduleConfig{Hour: 9, PollSecs: 30},
		Server:   config.ServerConfig{Port: 8080},
	}
}

func TestRunCmd_RunE_FailsOnValidation(t *testing.T) {
	cfg = &config.Config{Sheets: config.SheetsConfig{Backend: "excel"}}
	defer func() { cfg = nil }()

	runCmd.SetContext(context.Background())
	defer runCmd.SetContext(context.TODO())

	err := runCmd.RunE(runCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sheets.backend must be sheets or sqlite")
}

func TestCampaignRunCmd_FailsOnValidation(t *testing.T) {
	cfg = &config.Config{Sheets: config.SheetsConfig{Backend: "sheets"}}
	defer func() { cfg = nil }()

	campaignRunCmd.SetContext(context.Background())
	defer campaignRunCmd.SetContext(context.TODO())

	err := campaignRunCmd.RunE(campaignRunCmd, []string{defaultCampaignID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sheets.spreadsheet_id is required")
}

func TestInitLeadEnv_Local(t *testing.T) {
	cfg = localConfig(t)
	defer func() { cfg = nil }()

	env, err := initLeadEnv(context.Background(), "run")
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Pipeline)
	assert.NotNil(t, env.Runner)
	assert.NotNil(t, env.Runs)
	assert.Len(t, env.Runner.Campaigns(), 2)
	assert.Equal(t, 6, env.Window.Start)
	assert.Equal(t, "America/Los_Angeles", env.Window.Loc.String())

	require.NoError(t, env.Table("Leads").EnsureTable(context.Background()))
	leads, err := env.Table("Leads").ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestInitLeadEnv_BadDefinitionsFile(t *testing.T) {
	cfg = localConfig(t)
	cfg.Campaign.DefinitionsFile = filepath.Join(t.TempDir(), "missing.yaml")
	defer func() { cfg = nil }()

	_, err := initLeadEnv(context.Background(), "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "campaign: read definitions")
}

func TestInitLeadEnv_BadTimezone(t *testing.T) {
	cfg = localConfig(t)
	cfg.Campaign.Timezone = "Mars/Olympus"
	defer func() { cfg = nil }()

	_, err := initLeadEnv(context.Background(), "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "time zone")
}
