package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/ethbet-relay/internal/bet-relay/app"
	"github.com/radieske/ethbet-relay/internal/shared/config"
	"github.com/radieske/ethbet-relay/internal/shared/logger"
	"github.com/radieske/ethbet-relay/internal/shared/metrics"
)

// bet-reconciler roda só a varredura de apostas pendentes, sem API pública
func main() {
	if os.Getenv("SERVICE_NAME") == "" {
		_ = os.Setenv("SERVICE_NAME", "bet-reconciler")
	}
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.InstanceID)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("bootstrap", zap.Error(err))
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, a.HealthChecks())

	log.Info("bet-reconciler started", zap.Duration("interval", cfg.ReconcileInterval))
	a.Reconcile(ctx, cfg.ReconcileInterval)

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	_ = metricsSrv.Shutdown(shutdownCtx)

	a.Close(shutdownCtx)
	log.Info("bet-reconciler stopped")
}
