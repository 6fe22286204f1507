package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/equestrolabs/leadgen-cli/internal/bizfile"
	"github.com/equestrolabs/leadgen-cli/internal/campaign"
	"github.com/equestrolabs/leadgen-cli/internal/config"
	"github.com/equestrolabs/leadgen-cli/internal/contact"
	"github.com/equestrolabs/leadgen-cli/internal/leadstore"
	"github.com/equestrolabs/leadgen-cli/internal/pipeline"
	"github.com/equestrolabs/leadgen-cli/internal/resilience"
	"github.com/equestrolabs/leadgen-cli/internal/sourcing"
	"github.com/equestrolabs/leadgen-cli/internal/store"
	"github.com/equestrolabs/leadgen-cli/pkg/leadapi"
	"github.com/equestrolabs/leadgen-cli/pkg/messaging"
	"github.com/equestrolabs/leadgen-cli/pkg/peoplesearch"
)

// leadEnv holds the initialized table backend, run store, clients and
// pipeline needed by the run/campaign/serve commands.
type leadEnv struct {
	Backend   leadstore.Backend
	Runs      store.Store
	Registry  *bizfile.Client
	Pipeline  *pipeline.Pipeline
	Campaigns *campaign.Registry
	Runner    *campaign.Runner
	Window    campaign.Window
}

// Close releases resources held by the environment.
func (e *leadEnv) Close() {
	if e.Registry != nil {
		if err := e.Registry.Close(); err != nil {
			zap.L().Warn("close registry browser", zap.Error(err))
		}
	}
	if e.Runs != nil {
		_ = e.Runs.Close()
	}
	if e.Backend != nil {
		_ = e.Backend.Close()
	}
}

// Table opens tab on the environment's backend.
func (e *leadEnv) Table(tab string) *leadstore.Store {
	return openTable(e.Backend, tab)
}

// initLeadEnv validates the config for mode and builds every service a
// pipeline run needs. Callers should defer env.Close().
func initLeadEnv(ctx context.Context, mode string) (*leadEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	campaigns, err := campaign.Load(cfg.Campaign.DefinitionsFile)
	if err != nil {
		return nil, err
	}
	window, err := campaign.NewWindow(cfg.Campaign.StartHour, cfg.Campaign.EndHour, cfg.Campaign.Timezone)
	if err != nil {
		return nil, err
	}
	sms, email, err := initSenders(cfg)
	if err != nil {
		return nil, err
	}

	backend, err := initBackend(ctx)
	if err != nil {
		return nil, err
	}
	env := &leadEnv{Backend: backend, Campaigns: campaigns, Window: window}

	runs, err := initStore(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Runs = runs

	env.Registry = initRegistry(cfg)
	listings := initListings(cfg)
	contacts := initContacts(cfg)

	env.Pipeline = pipeline.New(
		pipelineConfig(cfg, campaigns),
		func(tab string) pipeline.Table { return env.Table(tab) },
		sourcing.New(listings),
		env.Registry,
		contacts,
		sms,
		email,
		pipeline.WithRunRecorder(runs),
	)
	env.Runner = campaign.NewRunner(campaigns, window, env.Pipeline)

	zap.L().Info("lead environment ready",
		zap.String("table_backend", cfg.Sheets.Backend),
		zap.String("store_driver", cfg.Store.Driver),
		zap.Bool("dry_run", cfg.Outreach.DryRun),
		zap.Int("campaigns", len(campaigns.List())),
		zap.Stringer("send_window", window),
	)
	return env, nil
}

// initBackend opens the configured lead table backend.
func initBackend(ctx context.Context) (leadstore.Backend, error) {
	switch cfg.Sheets.Backend {
	case "sqlite":
		return leadstore.NewSQLiteBackend(cfg.Sheets.SQLitePath)
	case "sheets":
		creds, err := leadstore.CredentialsOption(ctx, cfg.Sheets.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return leadstore.NewSheetsBackend(ctx, cfg.Sheets.SpreadsheetID, creds)
	default:
		return nil, eris.Errorf("unsupported table backend: %s", cfg.Sheets.Backend)
	}
}

func openTable(backend leadstore.Backend, tab string) *leadstore.Store {
	retry := resilience.FromRetrySettings(cfg.Sheets.RetryMaxAttempts, cfg.Sheets.RetryBaseMs, cfg.Sheets.RetryMaxMs)
	return leadstore.New(backend, tab, leadstore.WithRetry(retry))
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open run store")
	}
	return st, nil
}

func initRegistry(c *config.Config) *bizfile.Client {
	browser := bizfile.NewRodBrowser(bizfile.RodConfig{
		Headless:       c.Bizfile.Headless,
		BrowserBin:     c.Bizfile.BrowserBin,
		UserAgent:      c.Bizfile.UserAgent,
		PageTimeout:    seconds(c.Bizfile.PageTimeoutSecs),
		ElementTimeout: seconds(c.Bizfile.ElementTimeoutSecs),
		InterceptWait:  seconds(c.Bizfile.InterceptWaitSecs),
	})
	creds := bizfile.Credentials{Username: c.Bizfile.Username, Password: c.BizfilePassword()}
	if creds.Username == "" || creds.Password == "" {
		zap.L().Warn("bizfile credentials not set, owner lookups will report no_credentials")
	}
	cache := bizfile.NewSessionCache(c.Bizfile.SessionDir, time.Duration(c.Bizfile.SessionTTLMins)*time.Minute)
	return bizfile.NewClient(creds, browser, cache)
}

func initListings(c *config.Config) leadapi.Client {
	if c.LeadAPI.Key == "" {
		zap.L().Warn("LEADGEN_LEADAPI_KEY not set, sourcing requests will be rejected")
	}
	return leadapi.NewClient(c.LeadAPI.Key,
		leadapi.WithBaseURL(c.LeadAPI.BaseURL),
		leadapi.WithHost(c.LeadAPI.Host),
		leadapi.WithRateLimit(c.LeadAPI.RequestsPerSec),
		leadapi.WithHTTPClient(&http.Client{Timeout: seconds(c.LeadAPI.TimeoutSecs)}),
	)
}

func initContacts(c *config.Config) *contact.Resolver {
	var people peoplesearch.Client
	if c.People.Key != "" {
		people = peoplesearch.NewClient(c.People.Key,
			peoplesearch.WithBaseURL(c.People.BaseURL),
			peoplesearch.WithHost(c.People.Host),
			peoplesearch.WithRateLimit(c.People.RequestsPerSec),
			peoplesearch.WithHTTPClient(&http.Client{Timeout: seconds(c.People.TimeoutSecs)}),
		)
	} else {
		zap.L().Warn("LEADGEN_PEOPLE_KEY not set, contact lookups will report no_credentials")
	}

	cb := resilience.NewCircuitBreaker("people-search",
		resilience.FromCircuitConfig(c.People.CircuitFailureThreshold, c.People.CircuitResetSecs))
	return contact.NewResolver(people,
		contact.WithCache(time.Duration(c.People.CacheTTLMins)*time.Minute),
		contact.WithCircuitBreaker(cb),
	)
}

// initSenders picks the SMS and email senders. Dry run replaces both.
func initSenders(c *config.Config) (messaging.SMSSender, messaging.EmailSender, error) {
	if c.Outreach.DryRun {
		zap.L().Warn("outreach dry run enabled, messages will be logged and not sent")
		return messaging.DryRunSMS{}, messaging.DryRunEmail{}, nil
	}

	timeout := messaging.WithTimeout(seconds(c.Outreach.TimeoutSecs))
	sms := messaging.NewSMSBridge(c.Outreach.SMSBridgeURL, timeout)

	switch strings.ToLower(c.Outreach.EmailProvider) {
	case "smtp":
		if c.SMTP.Host == "" {
			return nil, nil, eris.New("smtp.host is required for the smtp email provider")
		}
		return sms, messaging.NewSMTPSender(c.SMTP.Host, c.SMTP.Port, c.SMTP.Username, c.SMTP.Password, c.SMTP.From), nil
	case "", "bridge":
		if c.Outreach.EmailBridge == "" {
			return nil, nil, eris.New("outreach.email_bridge_url is required for the bridge email provider")
		}
		return sms, messaging.NewEmailBridge(c.Outreach.EmailBridge, c.Outreach.EmailUserID, timeout), nil
	default:
		return nil, nil, eris.Errorf("unsupported email provider: %s", c.Outreach.EmailProvider)
	}
}

func pipelineConfig(c *config.Config, campaigns *campaign.Registry) pipeline.Config {
	return pipeline.Config{
		DefaultTab:    c.Sheets.DefaultTab,
		MaxConcurrent: c.Pipeline.MaxConcurrent,
		Touch2Delay:   c.Pipeline.Touch2Days,
		Touch3Delay:   c.Pipeline.Touch3Days,
		DedupTabs:     dedupTabs(c, campaigns),
		Sender:        c.Outreach.SenderName,
		Website:       c.Outreach.Website,
		CallbackPhone: c.Outreach.CallbackPhone,
	}
}

// dedupTabs lists every tab whose texted phones block a new Touch 1: the
// configured tabs, the default tab and each campaign's tab.
func dedupTabs(c *config.Config, campaigns *campaign.Registry) []string {
	seen := map[string]bool{}
	var tabs []string
	add := func(tab string) {
		tab = strings.TrimSpace(tab)
		if tab == "" || seen[tab] {
			return
		}
		seen[tab] = true
		tabs = append(tabs, tab)
	}
	for _, t := range c.Sheets.DedupTabs {
		add(t)
	}
	add(c.Sheets.DefaultTab)
	if campaigns != nil {
		for _, camp := range campaigns.List() {
			add(camp.Tab)
		}
	}
	return tabs
}

// newScheduler builds the daily scheduler. It is disabled unless
// schedule.enabled is set and schedule.pairs names at least one pair.
func newScheduler(c *config.Config, env *leadEnv) *campaign.Scheduler {
	var pairs []campaign.Pair
	if c.Schedule.Enabled {
		pairs = campaign.ParsePairs(c.Schedule.Pairs)
	}
	return campaign.NewScheduler(campaign.ScheduleConfig{
		Pairs:        pairs,
		Hour:         c.Schedule.Hour,
		Minute:       c.Schedule.Minute,
		Loc:          env.Window.Loc,
		PollInterval: seconds(c.Schedule.PollSecs),
		MaxToProcess: c.Schedule.MaxToProcess,
	}, env.Pipeline)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
