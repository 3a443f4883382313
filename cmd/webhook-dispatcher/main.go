package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	config "github.com/NordCoder/Aegis/internal/config/webhook-dispatcher"
	"github.com/NordCoder/Aegis/internal/obs"
	"github.com/NordCoder/Aegis/internal/repository/kafka"
	pg "github.com/NordCoder/Aegis/internal/repository/postgres"
	"github.com/NordCoder/Aegis/internal/services/webhook"
)

func wiring(db *pg.DB, cfg *config.Config, cons *kafka.Consumer, l *zap.Logger) (*webhook.Controller, *webhook.Dispatcher) {
	dispatcher := webhook.NewDispatcher(cfg.Webhook, webhook.NewHTTPClient(cfg.Webhook.Timeout), pg.NewWebhookEventRepo(db), l,
		webhook.WithMetrics(webhook.NewMetrics(prometheus.DefaultRegisterer)),
	)
	uc := &webhook.Handler{
		Log:    l.With(zap.String("component", "webhook.handler")),
		Sites:  pg.NewSiteRepo(db),
		Sender: dispatcher,
	}
	return &webhook.Controller{Log: l, Sub: cons, UC: uc}, dispatcher
}

func main() {
	configPath := flag.String("config", os.Getenv("AEGIS_CONFIG"), "path to yaml config")
	flag.Parse()

	// init
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting webhook-dispatcher",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.Int("workers", cfg.Webhook.Workers),
		zap.String("metrics_addr", cfg.Server.MetricsAddr),
	)

	// otel
	otelCloser, err := obs.SetupOTel(rootCtx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// db
	db, err := pg.NewDB(rootCtx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	l.Info("db connected")

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, db.Ping, l)

	// kafka
	cons := kafka.BootstrapConsumer(rootCtx, cfg.Kafka, l)
	defer func() { _ = cons.Close() }()

	// start
	ctrl, dispatcher := wiring(db, cfg, cons, l)
	errCh := make(chan error, 1)
	go func() {
		l.Info("controller starting")
		errCh <- ctrl.Run(rootCtx)
	}()

	select {
	case <-rootCtx.Done():
		l.Info("shutdown signal")
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("controller error", zap.Error(err))
		}
	}

	// drain in-flight deliveries, then stop serving metrics
	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := dispatcher.Close(shCtx); err != nil {
		l.Warn("webhook drain", zap.Error(err))
	}
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
