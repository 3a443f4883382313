package token_janitor_config

import (
	"time"

	"github.com/NordCoder/Aegis/internal/config"
	pginfra "github.com/NordCoder/Aegis/internal/repository/postgres"
)

type JanitorCfg struct {
	Interval        time.Duration `mapstructure:"interval"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type Config struct {
	App     config.App     `mapstructure:"app"`
	DB      pginfra.Config `mapstructure:"db"`
	OTEL    config.OTEL    `mapstructure:"otel"`
	Log     config.Log     `mapstructure:"log"`
	Tokens  config.Tokens  `mapstructure:"tokens"`
	Janitor JanitorCfg     `mapstructure:"janitor"`
}
