package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/ethbet-relay/internal/bet-relay/app"
	httpapi "github.com/radieske/ethbet-relay/internal/bet-relay/http"
	"github.com/radieske/ethbet-relay/internal/bet-relay/ws"
	"github.com/radieske/ethbet-relay/internal/shared/config"
	"github.com/radieske/ethbet-relay/internal/shared/logger"
	"github.com/radieske/ethbet-relay/internal/shared/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.InstanceID)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("bootstrap", zap.Error(err))
	}

	// Hub WebSocket alimentado pelo canal Redis, que recebe os eventos de todas as instâncias
	hub := ws.NewHub(func(r *http.Request) bool { return true })
	if err := ws.StartRedisSubscriber(ctx, a.Redis, cfg.RedisBetChannel, hub, log); err != nil {
		log.Fatal("redis subscribe", zap.Error(err))
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, a.HealthChecks())

	api := &httpapi.API{Log: log, Svc: a.Orch, WS: hub.HandleWS}
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("bet-relay listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	// Execuções perdidas (relay fora do ar, evento não entregue) voltam pela reconciliação
	go a.Reconcile(ctx, cfg.ReconcileInterval)

	log.Info("bet-relay started")
	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)

	a.Close(shutdownCtx)
	log.Info("bet-relay stopped")
}
