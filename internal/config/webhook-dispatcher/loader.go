package webhook_dispatcher_config

import (
	"github.com/NordCoder/Aegis/internal/config"
)

func Load(path string) (*Config, error) {
	v, err := config.NewViper(path, "webhook-dispatcher")
	if err != nil {
		return nil, err
	}

	v.SetDefault("kafka.brokers", []string{"localhost:9094"})
	v.SetDefault("kafka.group_id", "aegis-webhook-dispatcher")
	v.SetDefault("kafka.topic", "aegis.user-events")
	v.SetDefault("kafka.from_beginning", false)

	v.SetDefault("webhook.timeout", "5s")
	v.SetDefault("webhook.workers", 8)
	v.SetDefault("webhook.queue_size", 256)
	v.SetDefault("webhook.max_body", 1000)

	v.SetDefault("server.metrics_addr", ":8083")
	v.SetDefault("server.graceful_timeout", "15s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.DB.DSN == "" {
		return nil, config.ErrConfig("db.dsn is empty")
	}
	if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Topic == "" {
		return nil, config.ErrConfig("kafka.brokers and kafka.topic are required")
	}
	return &cfg, nil
}
