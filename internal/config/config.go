package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	HTTP      HTTPConfig      `yaml:"http" mapstructure:"http"`
	FTP       FTPConfig       `yaml:"ftp" mapstructure:"ftp"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Circuit   CircuitConfig   `yaml:"circuit" mapstructure:"circuit"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings for article extraction.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// HTTPConfig configures the shared HTTP fetcher.
type HTTPConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	HostRate    float64 `yaml:"host_rate" mapstructure:"host_rate"`
	HostBurst   int     `yaml:"host_burst" mapstructure:"host_burst"`
}

// FTPConfig configures FTP dump downloads.
type FTPConfig struct {
	User        string `yaml:"user" mapstructure:"user"`
	Password    string `yaml:"password" mapstructure:"password"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// IngestConfig configures ingestion runs.
type IngestConfig struct {
	SourcesFile   string `yaml:"sources_file" mapstructure:"sources_file"`
	MaxBatches    int    `yaml:"max_batches" mapstructure:"max_batches"`
	MaxConcurrent int    `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	WindowDays    int    `yaml:"window_days" mapstructure:"window_days"`
	MinConfidence int    `yaml:"min_confidence" mapstructure:"min_confidence"`
}

// CircuitConfig configures the per-source circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownSecs     int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
	SuccessThreshold int `yaml:"success_threshold" mapstructure:"success_threshold"`
}

// Cooldown returns the configured cooldown as a duration.
func (c CircuitConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSecs) * time.Second
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
	v.SetEnvPrefix("FUNDING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "funding.db")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("http.user_agent", "funding-cli/1.0")
	v.SetDefault("http.timeout_secs", 30)
	v.SetDefault("http.host_rate", 5)
	v.SetDefault("http.host_burst", 5)
	v.SetDefault("ftp.timeout_secs", 30)
	v.SetDefault("ingest.sources_file", "sources.yaml")
	v.SetDefault("ingest.max_batches", 10)
	v.SetDefault("ingest.max_concurrent", 5)
	v.SetDefault("ingest.window_days", 7)
	v.SetDefault("ingest.min_confidence", 50)
	v.SetDefault("circuit.failure_threshold", 4)
	v.SetDefault("circuit.cooldown_secs", 60)
	v.SetDefault("circuit.success_threshold", 2)
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

// Validate checks that the configuration can actually drive a run.
func (c *Config) Validate() error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}

	if c.Ingest.SourcesFile == "" {
		problems = append(problems, "ingest.sources_file is required")
	}
	if c.Ingest.MaxBatches < 1 || c.Ingest.MaxBatches > 1000 {
		problems = append(problems, "ingest.max_batches must be between 1 and 1000")
	}
	if c.Ingest.MaxConcurrent < 1 || c.Ingest.MaxConcurrent > 50 {
		problems = append(problems, "ingest.max_concurrent must be between 1 and 50")
	}
	if c.Ingest.MinConfidence < 0 || c.Ingest.MinConfidence > 100 {
		problems = append(problems, "ingest.min_confidence must be between 0 and 100")
	}
	if c.Circuit.FailureThreshold < 1 {
		problems = append(problems, "circuit.failure_threshold must be >= 1")
	}
	if c.Circuit.CooldownSecs < 1 {
		problems = append(problems, "circuit.cooldown_secs must be >= 1")
	}

	if len(problems) > 0 {
		return eris.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
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
