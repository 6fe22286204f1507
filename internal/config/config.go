package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// KeyringService groups this tool's secrets in the OS keychain.
const KeyringService = "leadgen"

// Config holds the full application configuration.
type Config struct {
	Sheets   SheetsConfig   `yaml:"sheets" mapstructure:"sheets"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	LeadAPI  LeadAPIConfig  `yaml:"leadapi" mapstructure:"leadapi"`
	People   PeopleConfig   `yaml:"people" mapstructure:"people"`
	Bizfile  BizfileConfig  `yaml:"bizfile" mapstructure:"bizfile"`
	Outreach OutreachConfig `yaml:"outreach" mapstructure:"outreach"`
	SMTP     SMTPConfig     `yaml:"smtp" mapstructure:"smtp"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Campaign CampaignConfig `yaml:"campaign" mapstructure:"campaign"`
	Schedule ScheduleConfig `yaml:"schedule" mapstructure:"schedule"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// SheetsConfig selects and configures the lead table backend.
type SheetsConfig struct {
	// Backend is "sheets" (Google Sheets) or "sqlite" (local file).
	Backend         string `yaml:"backend" mapstructure:"backend"`
	SpreadsheetID   string `yaml:"spreadsheet_id" mapstructure:"spreadsheet_id"`
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
	SQLitePath      string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DefaultTab      string `yaml:"default_tab" mapstructure:"default_tab"`
	// DedupTabs are scanned for already-texted phones in addition to every
	// campaign tab.
	DedupTabs        []string `yaml:"dedup_tabs" mapstructure:"dedup_tabs"`
	RetryMaxAttempts int      `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryBaseMs      int      `yaml:"retry_base_ms" mapstructure:"retry_base_ms"`
	RetryMaxMs       int      `yaml:"retry_max_ms" mapstructure:"retry_max_ms"`
}

// StoreConfig configures the run history database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LeadAPIConfig holds listing API settings.
type LeadAPIConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	Host           string  `yaml:"host" mapstructure:"host"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// PeopleConfig holds people-search API settings.
type PeopleConfig struct {
	Key                     string  `yaml:"key" mapstructure:"key"`
	BaseURL                 string  `yaml:"base_url" mapstructure:"base_url"`
	Host                    string  `yaml:"host" mapstructure:"host"`
	TimeoutSecs             int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSec          float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	CacheTTLMins            int     `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
	CircuitFailureThreshold int     `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitResetSecs        int     `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// BizfileConfig configures the business registry browser client.
type BizfileConfig struct {
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	// KeyringAccount is consulted for the password when Password is empty.
	KeyringAccount     string `yaml:"keyring_account" mapstructure:"keyring_account"`
	SessionDir         string `yaml:"session_dir" mapstructure:"session_dir"`
	SessionTTLMins     int    `yaml:"session_ttl_mins" mapstructure:"session_ttl_mins"`
	PageTimeoutSecs    int    `yaml:"page_timeout_secs" mapstructure:"page_timeout_secs"`
	ElementTimeoutSecs int    `yaml:"element_timeout_secs" mapstructure:"element_timeout_secs"`
	InterceptWaitSecs  int    `yaml:"intercept_wait_secs" mapstructure:"intercept_wait_secs"`
	Headless           bool   `yaml:"headless" mapstructure:"headless"`
	BrowserBin         string `yaml:"browser_bin" mapstructure:"browser_bin"`
	UserAgent          string `yaml:"user_agent" mapstructure:"user_agent"`
}

// OutreachConfig configures message delivery.
type OutreachConfig struct {
	DryRun        bool   `yaml:"dry_run" mapstructure:"dry_run"`
	SMSBridgeURL  string `yaml:"sms_bridge_url" mapstructure:"sms_bridge_url"`
	EmailBridge   string `yaml:"email_bridge_url" mapstructure:"email_bridge_url"`
	EmailUserID   string `yaml:"email_user_id" mapstructure:"email_user_id"`
	EmailProvider string `yaml:"email_provider" mapstructure:"email_provider"`
	CallbackPhone string `yaml:"callback_phone" mapstructure:"callback_phone"`
	Website       string `yaml:"website" mapstructure:"website"`
	SenderName    string `yaml:"sender_name" mapstructure:"sender_name"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SMTPConfig configures the SMTP email sender.
type SMTPConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	From     string `yaml:"from" mapstructure:"from"`
}

// PipelineConfig configures enrichment behavior.
type PipelineConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	Touch2Days    int `yaml:"touch2_days" mapstructure:"touch2_days"`
	Touch3Days    int `yaml:"touch3_days" mapstructure:"touch3_days"`
}

// CampaignConfig configures campaign definitions and the send window.
type CampaignConfig struct {
	// DefinitionsFile optionally adds campaigns from YAML.
	DefinitionsFile string `yaml:"definitions_file" mapstructure:"definitions_file"`
	Timezone        string `yaml:"timezone" mapstructure:"timezone"`
	StartHour       int    `yaml:"start_hour" mapstructure:"start_hour"`
	EndHour         int    `yaml:"end_hour" mapstructure:"end_hour"`
}

// ScheduleConfig configures the daily in-process scheduler.
type ScheduleConfig struct {
	Enabled      bool   `yaml:"enabled" mapstructure:"enabled"`
	Pairs        string `yaml:"pairs" mapstructure:"pairs"`
	Hour         int    `yaml:"hour" mapstructure:"hour"`
	Minute       int    `yaml:"minute" mapstructure:"minute"`
	PollSecs     int    `yaml:"poll_secs" mapstructure:"poll_secs"`
	MaxToProcess int    `yaml:"max_to_process" mapstructure:"max_to_process"`
}

// ServerConfig configures the trigger server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	// File enables a rotating JSON log file alongside stderr.
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("sheets.backend", "sheets")
	v.SetDefault("sheets.sqlite_path", "leads.db")
	v.SetDefault("sheets.default_tab", "Leads")
	v.SetDefault("sheets.dedup_tabs", []string{
		"Leads",
		"Leads - Plumber Feb26",
		"Leads - Electrician Feb26",
		"Leads - HVAC Feb26",
	})
	v.SetDefault("sheets.retry_max_attempts", 6)
	v.SetDefault("sheets.retry_base_ms", 5000)
	v.SetDefault("sheets.retry_max_ms", 300000)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("leadapi.base_url", "https://lead-generation2.p.rapidapi.com")
	v.SetDefault("leadapi.host", "lead-generation2.p.rapidapi.com")
	v.SetDefault("leadapi.timeout_secs", 30)
	v.SetDefault("leadapi.requests_per_sec", 1.0)
	v.SetDefault("people.base_url", "https://usa-people-search-public-records.p.rapidapi.com")
	v.SetDefault("people.host", "usa-people-search-public-records.p.rapidapi.com")
	v.SetDefault("people.timeout_secs", 20)
	v.SetDefault("people.requests_per_sec", 2.0)
	v.SetDefault("people.cache_ttl_mins", 60)
	v.SetDefault("people.circuit_failure_threshold", 5)
	v.SetDefault("people.circuit_reset_secs", 60)
	v.SetDefault("bizfile.session_dir", "/tmp/bizfile_session")
	v.SetDefault("bizfile.session_ttl_mins", 50)
	v.SetDefault("bizfile.page_timeout_secs", 35)
	v.SetDefault("bizfile.element_timeout_secs", 20)
	v.SetDefault("bizfile.intercept_wait_secs", 15)
	v.SetDefault("bizfile.headless", true)
	v.SetDefault("bizfile.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	v.SetDefault("outreach.dry_run", false)
	v.SetDefault("outreach.email_provider", "bridge")
	v.SetDefault("outreach.callback_phone", "+14087896543")
	v.SetDefault("outreach.website", "equestrolabs.com")
	v.SetDefault("outreach.sender_name", "Natalie")
	v.SetDefault("outreach.timeout_secs", 30)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("pipeline.max_concurrent", 1)
	v.SetDefault("pipeline.touch2_days", 3)
	v.SetDefault("pipeline.touch3_days", 4)
	v.SetDefault("campaign.timezone", "America/Los_Angeles")
	v.SetDefault("campaign.start_hour", 6)
	v.SetDefault("campaign.end_hour", 23)
	v.SetDefault("schedule.hour", 9)
	v.SetDefault("schedule.minute", 0)
	v.SetDefault("schedule.poll_secs", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// BizfilePassword returns the configured registry password, falling back to
// the OS keyring when the config leaves it empty.
func (c *Config) BizfilePassword() string {
	if c.Bizfile.Password != "" {
		return c.Bizfile.Password
	}
	account := c.BizfileKeyringAccount()
	if account == "" {
		return ""
	}
	pw, err := keyring.Get(KeyringService, account)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(pw)
}

// BizfileKeyringAccount is the keyring account holding the registry password.
func (c *Config) BizfileKeyringAccount() string {
	if c.Bizfile.KeyringAccount != "" {
		return c.Bizfile.KeyringAccount
	}
	if c.Bizfile.Username == "" {
		return ""
	}
	return "bizfile:" + c.Bizfile.Username
}

// SetBizfilePassword stores the registry password in the OS keyring.
func (c *Config) SetBizfilePassword(password string) error {
	account := c.BizfileKeyringAccount()
	if account == "" {
		return eris.New("config: bizfile username is required to store a password")
	}
	if strings.TrimSpace(password) == "" {
		return eris.New("config: password is empty")
	}
	return eris.Wrap(keyring.Set(KeyringService, account, password), "config: keyring set")
}

// InitLogger initializes the global zap logger. When cfg.File is set, log
// entries are also written as JSON to a size-rotated file.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), zapCfg.Level)
		logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}

	zap.ReplaceGlobals(logger)
	return nil
}
