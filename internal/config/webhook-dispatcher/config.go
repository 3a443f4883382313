package webhook_dispatcher_config

import (
	"time"

	"github.com/NordCoder/Aegis/internal/config"
	kafkax "github.com/NordCoder/Aegis/internal/repository/kafka"
	pginfra "github.com/NordCoder/Aegis/internal/repository/postgres"
	"github.com/NordCoder/Aegis/internal/services/webhook"
)

type ServerCfg struct {
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type Config struct {
	App     config.App            `mapstructure:"app"`
	DB      pginfra.Config        `mapstructure:"db"`
	OTEL    config.OTEL           `mapstructure:"otel"`
	Log     config.Log            `mapstructure:"log"`
	Kafka   kafkax.ConsumerConfig `mapstructure:"kafka"`
	Webhook webhook.Config        `mapstructure:"webhook"`
	Server  ServerCfg             `mapstructure:"server"`
}
