package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the settings a command mode depends on. Modes: "run"
// (pipeline and campaign commands), "serve", and "leads" (table reads only).
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run", "serve":
		errs = append(errs, c.validateTable()...)
		if c.Pipeline.MaxConcurrent < 1 || c.Pipeline.MaxConcurrent > 10 {
			errs = append(errs, "pipeline.max_concurrent must be between 1 and 10")
		}
		if c.Campaign.StartHour < 0 || c.Campaign.EndHour > 23 || c.Campaign.StartHour > c.Campaign.EndHour {
			errs = append(errs, "campaign.start_hour/end_hour must satisfy 0 <= start <= end <= 23")
		}
		if !c.Outreach.DryRun && c.Outreach.SMSBridgeURL == "" {
			errs = append(errs, "outreach.sms_bridge_url is required unless outreach.dry_run is set")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "leads":
		errs = append(errs, c.validateTable()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateTable() []string {
	var errs []string
	switch c.Sheets.Backend {
	case "sheets":
		if c.Sheets.SpreadsheetID == "" {
			errs = append(errs, "sheets.spreadsheet_id is required")
		}
		if c.Sheets.CredentialsFile == "" {
			errs = append(errs, "sheets.credentials_file is required")
		}
	case "sqlite":
		if c.Sheets.SQLitePath == "" {
			errs = append(errs, "sheets.sqlite_path is required")
		}
	default:
		errs = append(errs, "sheets.backend must be sheets or sqlite")
	}
	return errs
}
