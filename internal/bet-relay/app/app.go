// Package app monta as dependências comuns do relay e do reconciliador
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/ethbet-relay/internal/bet-relay/ledger"
	"github.com/radieske/ethbet-relay/internal/bet-relay/lock"
	"github.com/radieske/ethbet-relay/internal/bet-relay/notify"
	"github.com/radieske/ethbet-relay/internal/bet-relay/orchestrator"
	"github.com/radieske/ethbet-relay/internal/bet-relay/repo"
	"github.com/radieske/ethbet-relay/internal/bet-relay/users"
	sharedcache "github.com/radieske/ethbet-relay/internal/shared/cache"
	"github.com/radieske/ethbet-relay/internal/shared/config"
	"github.com/radieske/ethbet-relay/internal/shared/db"
	sharedkafka "github.com/radieske/ethbet-relay/internal/shared/kafka"
	"github.com/radieske/ethbet-relay/internal/shared/metrics"
)

type App struct {
	Log     *zap.Logger
	PG      *sql.DB
	Redis   *redis.Client
	Ledger  orchestrator.Ledger
	Orch    *orchestrator.Orchestrator
	Metrics *metrics.Relay

	writer  *kafka.Writer
	closers []func()
}

// Build conecta Postgres, Redis, Kafka e ledger e liga as métricas nos callbacks
func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{Log: log}

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	a.PG = pg
	a.closers = append(a.closers, func() { _ = pg.Close() })

	bets := repo.NewPostgres(pg)
	if err := bets.EnsureSchema(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}

	rdb, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Redis = rdb
	a.closers = append(a.closers, func() { _ = rdb.Close() })

	if err := a.connectLedger(ctx, cfg); err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Metrics = metrics.NewRelay(prometheus.DefaultRegisterer)

	dir := users.NewCached(users.NewPostgres(pg), rdb, cfg.UsernameCacheTTL)

	a.writer = sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetLifecycle)
	pub := notify.NewPublisher(log, dir,
		notify.NewKafkaPublisher(a.writer, cfg.TopicBetLifecycle),
		notify.NewRedisBroadcaster(rdb, cfg.RedisBetChannel),
	)
	pub.OnSent = func(sink string) { a.Metrics.Notifications.WithLabelValues(sink, "ok").Inc() }
	pub.OnError = func(sink string) { a.Metrics.Notifications.WithLabelValues(sink, "error").Inc() }

	a.Orch = orchestrator.New(log, a.Ledger, lock.NewRedis(rdb, cfg.InstanceID, cfg.LockTTL), bets, pub, dir,
		orchestrator.Config{
			StakeFee:             cfg.StakeFee,
			ReconcileConcurrency: cfg.ReconcileConcurrency,
			ContinuationTimeout:  cfg.ReceiptTimeout,
		})
	a.Orch.Hooks = orchestrator.Hooks{
		OnSubmitted:      func(action string) { a.Metrics.Submissions.WithLabelValues(action).Inc() },
		OnConfirmed:      func(action string) { a.Metrics.Confirmations.WithLabelValues(action).Inc() },
		OnLedgerError:    func(action string) { a.Metrics.LedgerErrors.WithLabelValues(action).Inc() },
		OnReconciled:     func() { a.Metrics.Reconciled.Inc() },
		OnLockContention: func() { a.Metrics.LockContention.Inc() },
	}

	return a, nil
}

func (a *App) connectLedger(ctx context.Context, cfg config.Config) error {
	if cfg.Simulated() {
		a.Log.Warn("LEDGER_RPC_URL not set, using in-memory ledger")
		a.Ledger = ledger.NewSimulated()
		return nil
	}

	eth, err := ledger.NewEthClient(ctx, ledger.EthConfig{
		RPCURL:     cfg.LedgerRPCURL,
		Contract:   cfg.LedgerContract,
		PrivateKey: cfg.LedgerPrivateKey,
		ChainID:    cfg.LedgerChainID,
		RPS:        cfg.LedgerRPS,
	}, a.Log)
	if err != nil {
		return fmt.Errorf("ledger connect: %w", err)
	}
	a.Ledger = eth
	a.closers = append(a.closers, eth.Close)
	return nil
}

// HealthChecks são os pings usados pelo /healthz
func (a *App) HealthChecks() map[string]metrics.HealthFunc {
	checks := map[string]metrics.HealthFunc{
		"postgres": a.PG.PingContext,
		"redis":    func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() },
	}
	if p, ok := a.Ledger.(interface{ Ping(context.Context) error }); ok {
		checks["ledger"] = p.Ping
	}
	return checks
}

// Reconcile roda ReconcilePending a cada intervalo até ctx terminar
func (a *App) Reconcile(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		n, err := a.Orch.ReconcilePending(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			a.Log.Warn("reconcile finished with errors", zap.Int("recovered", n), zap.Error(err))
		case n > 0:
			a.Log.Info("reconcile recovered executions", zap.Int("recovered", n))
		}

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Close espera as continuações pendentes até ctx expirar e libera as conexões
func (a *App) Close(ctx context.Context) {
	if a.Orch != nil {
		if err := a.Orch.WaitContext(ctx); err != nil {
			a.Log.Warn("shutdown with ledger continuations still running", zap.Error(err))
		}
		a.Orch.Close()
	}
	if a.writer != nil {
		if err := a.writer.Close(); err != nil {
			a.Log.Warn("kafka writer close", zap.Error(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
