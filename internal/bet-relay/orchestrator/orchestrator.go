// Package orchestrator é a máquina de estados das apostas: valida contra o
// contrato, submete as transações em segundo plano e só grava/notifica depois
// da confirmação. Quem chama recebe apenas "submetido", nunca o resultado.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/ethbet-relay/internal/bet-relay/domain"
	"github.com/radieske/ethbet-relay/internal/bet-relay/ledger"
)

// Ações usadas em logs e métricas
const (
	ActionCreate = "create"
	ActionCancel = "cancel"
	ActionCall   = "call"
)

// Ledger é tudo que o orquestrador lê e escreve no contrato
type Ledger interface {
	StakeBalanceOf(ctx context.Context, user string) (decimal.Decimal, error)
	FreeBalanceOf(ctx context.Context, user string) (decimal.Decimal, error)
	LockedBalanceOf(ctx context.Context, user string) (decimal.Decimal, error)
	IsInitialized(ctx context.Context, betID int64) (bool, error)
	GetBetOutcome(ctx context.Context, betID int64) (ledger.Outcome, error)

	CreateFee(ctx context.Context, tier domain.FeeTier) (decimal.Decimal, error)
	CallFee(ctx context.Context, tier domain.FeeTier) (decimal.Decimal, error)
	CancelFee(ctx context.Context, tier domain.FeeTier) (decimal.Decimal, error)

	LockFunds(ctx context.Context, user string, amount decimal.Decimal, tier domain.FeeTier) (ledger.TxResult, error)
	UnlockFunds(ctx context.Context, user string, amount decimal.Decimal, tier domain.FeeTier) (ledger.TxResult, error)
	InitiateRoll(ctx context.Context, betID int64, maker, caller string, amount, rollUnder decimal.Decimal, tier domain.FeeTier) (ledger.TxResult, error)

	AwaitExecution(ctx context.Context, betID int64) error
}

// Locker é o lock por aposta; Acquire falha na hora se já estiver tomado
type Locker interface {
	Acquire(ctx context.Context, id string) error
	Release(ctx context.Context, id string) error
}

// Repository é o único caminho de escrita das apostas
type Repository interface {
	Create(ctx context.Context, b domain.Bet) (domain.Bet, error)
	Get(ctx context.Context, id int64) (domain.Bet, error)
	MarkCancelled(ctx context.Context, id int64, at time.Time) error
	MarkCalled(ctx context.Context, id int64, caller, queryID string, at time.Time) error
	MarkExecuted(ctx context.Context, id int64, e domain.Execution) error

	ListActive(ctx context.Context, opts domain.ListOptions) ([]domain.Bet, int, error)
	CountUserActive(ctx context.Context, user string) (int, error)
	ListExecuted(ctx context.Context, limit int) ([]domain.Bet, error)
	ListPending(ctx context.Context, limit int) ([]domain.Bet, error)
}

// Publisher é fire-and-forget
type Publisher interface {
	Publish(ctx context.Context, name string, bet domain.Bet)
}

// UserDirectory resolve endereços em lote
type UserDirectory interface {
	Usernames(ctx context.Context, addresses []string) (map[string]string, error)
}

// Config parâmetros do orquestrador
type Config struct {
	StakeFee             decimal.Decimal // saldo mínimo do token de stake
	ReconcileConcurrency int             // leituras simultâneas no contrato durante a reconciliação
	ContinuationTimeout  time.Duration   // prazo de cada continuação até o receipt; 0 = 5m
	Now                  func() time.Time
}

// Hooks são callbacks de métricas; qualquer um pode ser nil
type Hooks struct {
	OnSubmitted      func(action string)
	OnConfirmed      func(action string)
	OnLedgerError    func(action string)
	OnReconciled     func()
	OnLockContention func()
}

type Orchestrator struct {
	log    *zap.Logger
	ledger Ledger
	locks  Locker
	repo   Repository
	pub    Publisher
	users  UserDirectory
	cfg    Config

	Hooks Hooks

	// base vive até Close; é o contexto dos watchers de execução
	base context.Context
	stop context.CancelFunc

	pending  sync.WaitGroup
	watchers sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func New(log *zap.Logger, l Ledger, locks Locker, r Repository, pub Publisher, dir UserDirectory, cfg Config) *Orchestrator {
	if cfg.ReconcileConcurrency <= 0 {
		cfg.ReconcileConcurrency = 5
	}
	if cfg.ContinuationTimeout <= 0 {
		cfg.ContinuationTimeout = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	base, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		log: log, ledger: l, locks: locks, repo: r, pub: pub, users: dir, cfg: cfg,
		base: base, stop: stop,
	}
}

// Wait espera as continuações já submetidas terminarem (não inclui watchers)
func (o *Orchestrator) Wait() { o.pending.Wait() }

// WaitContext é o Wait com prazo, usado no shutdown
func (o *Orchestrator) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancela os watchers de execução e espera eles saírem.
// Apostas pendentes continuam cobertas pela reconciliação.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.stop()
	o.watchers.Wait()
}

// spawn roda a continuação pós-submissão desacoplada do request:
// mantém os valores de ctx, não herda o cancelamento e expira em ContinuationTimeout
func (o *Orchestrator) spawn(ctx context.Context, action string, fn func(ctx context.Context)) {
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.ContinuationTimeout)
	o.pending.Add(1)
	go func() {
		defer o.pending.Done()
		defer cancel()
		if o.Hooks.OnSubmitted != nil {
			o.Hooks.OnSubmitted(action)
		}
		fn(bg)
	}()
}

func (o *Orchestrator) confirmed(action string) {
	if o.Hooks.OnConfirmed != nil {
		o.Hooks.OnConfirmed(action)
	}
}

// ledgerFailed registra a falha da transação; nada é desfeito
func (o *Orchestrator) ledgerFailed(action string, err error, fields ...zap.Field) {
	if o.Hooks.OnLedgerError != nil {
		o.Hooks.OnLedgerError(action)
	}
	o.log.Error("ledger transaction failed",
		append(fields, zap.String("action", action), zap.Error(err))...)
}
