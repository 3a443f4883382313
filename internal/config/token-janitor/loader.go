package token_janitor_config

import (
	"github.com/NordCoder/Aegis/internal/config"
)

func Load(path string) (*Config, error) {
	v, err := config.NewViper(path, "token-janitor")
	if err != nil {
		return nil, err
	}

	v.SetDefault("janitor.interval", "5m")
	v.SetDefault("janitor.metrics_addr", ":8082")
	v.SetDefault("janitor.graceful_timeout", "10s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.DB.DSN == "" {
		return nil, config.ErrConfig("db.dsn is empty")
	}
	if cfg.Janitor.Interval <= 0 {
		return nil, config.ErrConfig("janitor.interval must be positive")
	}
	if err := cfg.Tokens.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
