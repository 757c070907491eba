package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	SerpAPI    SerpAPIConfig    `yaml:"serpapi" mapstructure:"serpapi"`
	GoogleCSE  GoogleCSEConfig  `yaml:"googlecse" mapstructure:"googlecse"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Columns    ColumnsConfig    `yaml:"columns" mapstructure:"columns"`
	Blocklist  BlocklistConfig  `yaml:"blocklist" mapstructure:"blocklist"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run journal backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SerpAPIConfig holds SerpAPI credentials and endpoint.
type SerpAPIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// GoogleCSEConfig holds Google Custom Search credentials.
type GoogleCSEConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	CX      string `yaml:"cx" mapstructure:"cx"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// JinaConfig holds Jina AI Search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// AnthropicConfig holds Anthropic API settings for the arbiter.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SearchConfig configures backend selection, pacing, and retry.
type SearchConfig struct {
	// Backends lists enabled providers in call order: serp, google, jina.
	Backends []string `yaml:"backends" mapstructure:"backends"`
	// PerQuery is the result count requested per query per backend.
	PerQuery int `yaml:"per_query" mapstructure:"per_query"`
	// RatePerSec is the shared token-bucket refill rate across all
	// gather workers. Burst 1 keeps calls evenly spaced.
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// PipelineConfig configures batching and arbitration behavior.
type PipelineConfig struct {
	BatchSize      int  `yaml:"batch_size" mapstructure:"batch_size"`
	Concurrency    int  `yaml:"concurrency" mapstructure:"concurrency"`
	TopCandidates  int  `yaml:"top_candidates" mapstructure:"top_candidates"`
	LinkedInLookup bool `yaml:"linkedin_lookup" mapstructure:"linkedin_lookup"`
	LinkedInMax    int  `yaml:"linkedin_max" mapstructure:"linkedin_max"`
}

// ColumnsConfig maps record-store column names. Values match the
// SmartScout export headers we receive.
type ColumnsConfig struct {
	Seller      string `yaml:"seller" mapstructure:"seller"`
	Business    string `yaml:"business" mapstructure:"business"`
	Category    string `yaml:"category" mapstructure:"category"`
	Subcategory string `yaml:"subcategory" mapstructure:"subcategory"`
	Region      string `yaml:"region" mapstructure:"region"`
	Output      string `yaml:"output" mapstructure:"output"`
}

// BlocklistConfig points at an optional overlay file of extra
// hosts/patterns merged onto the built-in blocklist.
type BlocklistConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures background alerting over the run
// journal. An empty webhook URL disables the checker.
type MonitoringConfig struct {
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackRuns          int     `yaml:"lookback_runs" mapstructure:"lookback_runs"`
	FailureRateThreshold  float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	NotFoundRateThreshold float64 `yaml:"not_found_rate_threshold" mapstructure:"not_found_rate_threshold"`
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
	v.AddConfigPath("$HOME/.enrich-cli")
	v.AddConfigPath("/etc/enrich-cli")

	// Environment
	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "enrich.db")
	v.SetDefault("serpapi.base_url", "https://serpapi.com")
	v.SetDefault("googlecse.base_url", "https://customsearch.googleapis.com")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1500)
	v.SetDefault("search.backends", []string{"serp", "google"})
	v.SetDefault("search.per_query", 8)
	v.SetDefault("search.rate_per_sec", 1.0)
	v.SetDefault("search.burst", 1)
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("search.max_attempts", 3)
	v.SetDefault("pipeline.batch_size", 5)
	v.SetDefault("pipeline.concurrency", 3)
	v.SetDefault("pipeline.top_candidates", 12)
	v.SetDefault("pipeline.linkedin_lookup", false)
	v.SetDefault("pipeline.linkedin_max", 3)
	v.SetDefault("columns.seller", "Seller")
	v.SetDefault("columns.business", "Business Name")
	v.SetDefault("columns.category", "Category")
	v.SetDefault("columns.subcategory", "Primary Subcategory")
	v.SetDefault("columns.region", "State")
	v.SetDefault("columns.output", "domain from custom script")
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_runs", 200)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.not_found_rate_threshold", 0.8)
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
