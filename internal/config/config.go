package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Bank       BankConfig       `yaml:"bank" mapstructure:"bank"`
	Engine     EngineConfig     `yaml:"engine" mapstructure:"engine"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Digest     DigestConfig     `yaml:"digest" mapstructure:"digest"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// BankConfig selects where the question bank is loaded from.
type BankConfig struct {
	Source string `yaml:"source" mapstructure:"source"`
	Path   string `yaml:"path" mapstructure:"path"`
}

// TierBand is one row of a custom risk threshold table.
type TierBand struct {
	Tier string  `yaml:"tier" mapstructure:"tier" json:"tier"`
	Min  float64 `yaml:"min" mapstructure:"min" json:"min"`
}

// EngineConfig configures scoring, classification and recommendations.
type EngineConfig struct {
	Aggregation        string     `yaml:"aggregation" mapstructure:"aggregation" json:"aggregation"`
	TierPreset         string     `yaml:"tier_preset" mapstructure:"tier_preset" json:"tier_preset"`
	Tiers              []TierBand `yaml:"tiers" mapstructure:"tiers" json:"tiers,omitempty"`
	IssueSeverityFloor string     `yaml:"issue_severity_floor" mapstructure:"issue_severity_floor" json:"issue_severity_floor,omitempty"`
	ExcludeUnanswered  bool       `yaml:"exclude_unanswered" mapstructure:"exclude_unanswered" json:"exclude_unanswered"`
	CatalogPath        string     `yaml:"catalog_path" mapstructure:"catalog_path" json:"catalog_path,omitempty"`
}

// NotionConfig holds Notion API credentials and database IDs.
type NotionConfig struct {
	Token      string `yaml:"token" mapstructure:"token"`
	QuestionDB string `yaml:"question_db" mapstructure:"question_db"`
	// RateLimit is requests per second; 0 disables client-side throttling.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// BatchConfig configures batch scoring.
type BatchConfig struct {
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// DigestConfig configures the weekly statistics digest.
type DigestConfig struct {
	WebhookURL    string `yaml:"webhook_url" mapstructure:"webhook_url"`
	LookbackDays  int    `yaml:"lookback_days" mapstructure:"lookback_days"`
	IntervalHours int    `yaml:"interval_hours" mapstructure:"interval_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COMPLIANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "compliance.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("bank.source", "file")
	v.SetDefault("bank.path", "")
	v.SetDefault("engine.aggregation", "point_weighted")
	v.SetDefault("engine.tier_preset", "three_tier")
	v.SetDefault("engine.issue_severity_floor", "")
	v.SetDefault("engine.exclude_unanswered", false)
	v.SetDefault("engine.catalog_path", "")
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.question_db", "")
	v.SetDefault("notion.rate_limit", 3.0)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("batch.max_concurrency", 8)
	v.SetDefault("digest.webhook_url", "")
	v.SetDefault("digest.lookback_days", 7)
	v.SetDefault("digest.interval_hours", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
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

// Validate checks that the settings a command depends on are present.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Batch.MaxConcurrency < 1 || c.Batch.MaxConcurrency > 64 {
		errs = append(errs, "batch.max_concurrency must be between 1 and 64")
	}

	switch mode {
	case "assess", "leads":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "serve":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Digest.IntervalHours < 0 {
			errs = append(errs, "digest.interval_hours must be >= 0")
		}
	case "notion":
		if c.Notion.Token == "" {
			errs = append(errs, "notion.token is required")
		}
		if c.Notion.QuestionDB == "" {
			errs = append(errs, "notion.question_db is required")
		}
		if c.Notion.RateLimit < 0 {
			errs = append(errs, "notion.rate_limit must be >= 0")
		}
	case "salesforce":
		if c.Salesforce.ClientID == "" {
			errs = append(errs, "salesforce.client_id is required")
		}
		if c.Salesforce.Username == "" {
			errs = append(errs, "salesforce.username is required")
		}
		if c.Salesforce.KeyPath == "" {
			errs = append(errs, "salesforce.key_path is required")
		}
	case "digest":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.Digest.LookbackDays < 1 {
			errs = append(errs, "digest.lookback_days must be >= 1")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SalesforceConfigured reports whether Salesforce credentials are present.
func (c *Config) SalesforceConfigured() bool {
	return c.Salesforce.ClientID != "" && c.Salesforce.Username != "" && c.Salesforce.KeyPath != ""
}

// InitLogger initializes the global zap logger.
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
	zap.ReplaceGlobals(logger)

	return nil
}
