package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string `mapstructure:"PORT"`
	Env              string `mapstructure:"ENV"`
	DatabaseURL      string `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32  `mapstructure:"DB_MIN_CONNS"`
	BrokerURL        string `mapstructure:"BROKER_URL"`
	RawResultQueue   string `mapstructure:"RAW_RESULT_QUEUE"`
	LabQueue         string `mapstructure:"LAB_QUEUE"`
	ConsumerWorkers  int    `mapstructure:"CONSUMER_WORKERS"`
	ConsumerPrefetch int    `mapstructure:"CONSUMER_PREFETCH"`
	GeneratorSeed    int64  `mapstructure:"GENERATOR_SEED"`
	InstrumentID     string `mapstructure:"INSTRUMENT_ID"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("RAW_RESULT_QUEUE", "lab.raw-results")
	v.SetDefault("LAB_QUEUE", "lab.core")
	v.SetDefault("CONSUMER_WORKERS", 4)
	v.SetDefault("CONSUMER_PREFETCH", 8)
	v.SetDefault("INSTRUMENT_ID", "SIM-HEM-01")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("BROKER_URL")
	v.BindEnv("RAW_RESULT_QUEUE")
	v.BindEnv("LAB_QUEUE")
	v.BindEnv("CONSUMER_WORKERS")
	v.BindEnv("CONSUMER_PREFETCH")
	v.BindEnv("GENERATOR_SEED")
	v.BindEnv("INSTRUMENT_ID")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ConsumerWorkers < 1 {
		return nil, fmt.Errorf("CONSUMER_WORKERS must be at least 1")
	}
	if strings.TrimSpace(cfg.RawResultQueue) == "" || strings.TrimSpace(cfg.LabQueue) == "" {
		return nil, fmt.Errorf("queue names must not be empty")
	}
	if cfg.RawResultQueue == cfg.LabQueue {
		return nil, fmt.Errorf("RAW_RESULT_QUEUE and LAB_QUEUE must differ")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the service is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
