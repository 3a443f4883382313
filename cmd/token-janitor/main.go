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

	config "github.com/NordCoder/Aegis/internal/config/token-janitor"
	"github.com/NordCoder/Aegis/internal/obs"
	pg "github.com/NordCoder/Aegis/internal/repository/postgres"
	"github.com/NordCoder/Aegis/internal/services/token"
)

func wiring(db *pg.DB, cfg *config.Config, l *zap.Logger) *token.Runner {
	repos := token.Repos{
		Auth:          pg.NewAuthTokenRepo(db),
		Refresh:       pg.NewRefreshTokenRepo(db),
		Verifications: pg.NewEmailVerificationRepo(db),
		Resets:        pg.NewPasswordResetRepo(db),
		Changes:       pg.NewEmailChangeRepo(db),
		Tx:            pg.NewTransactor(db, l),
	}
	uc := token.NewUseCase(repos, cfg.Tokens.AsUsecaseConfig(), l,
		token.WithMetrics(token.NewMetrics(prometheus.DefaultRegisterer)),
	)
	return token.NewRunner(l, uc, cfg.Janitor.Interval)
}

func main() {
	configPath := flag.String("config", os.Getenv("AEGIS_CONFIG"), "path to yaml config")
	flag.Parse()

	// init
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
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
	l.Info("starting token-janitor",
		zap.Duration("interval", cfg.Janitor.Interval),
		zap.String("metrics_addr", cfg.Janitor.MetricsAddr),
	)

	// otel
	otelCloser, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// db
	db, err := pg.NewDB(ctx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Janitor.MetricsAddr, db.Ping, l)

	// run
	runner := wiring(db, cfg, l)
	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()
	l.Info("token-janitor started")

	select {
	case <-ctx.Done():
		l.Info("shutdown signal")
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("runner error", zap.Error(err))
		}
	}

	// graceful shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Janitor.GracefulTimeout)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
