package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/ethbet-relay/internal/bet-relay/domain"
	"github.com/radieske/ethbet-relay/internal/bet-relay/repo"
	"github.com/radieske/ethbet-relay/pkg/contracts/events"
)

// CheckExecution traz o resultado do contrato para a aposta chamada.
// É idempotente e pode rodar em paralelo para a mesma aposta: só quem
// grava o resultado publica BetExecuted. Devolve true nesse caso.
func (o *Orchestrator) CheckExecution(ctx context.Context, betID int64) (bool, error) {
	bet, err := o.repo.Get(ctx, betID)
	if err != nil {
		return false, err
	}
	if bet.CancelledAt != nil {
		return false, domain.Invalid(domain.CodeAlreadyCancelled, "bet %d is cancelled", betID)
	}
	if bet.InitializedAt == nil {
		return false, domain.Invalid(domain.CodeNotInitialized, "bet %d is not called yet", betID)
	}
	if bet.ExecutedAt != nil {
		return false, nil
	}

	onChain, err := o.ledger.IsInitialized(ctx, betID)
	if err != nil {
		return false, fmt.Errorf("is initialized: %w", err)
	}
	if !onChain {
		return false, domain.Invalid(domain.CodeNotInitializedOnChain, "bet %d is not initialized on chain", betID)
	}

	out, err := o.ledger.GetBetOutcome(ctx, betID)
	if err != nil {
		return false, fmt.Errorf("bet outcome: %w", err)
	}
	if out.ExecutedAt == nil {
		return false, nil
	}

	// o bloco tem resolução de segundos e o initializedAt é o relógio local
	executedAt := *out.ExecutedAt
	if executedAt.Before(*bet.InitializedAt) {
		executedAt = *bet.InitializedAt
	}

	err = o.repo.MarkExecuted(ctx, betID, domain.Execution{
		ExecutedAt:  executedAt,
		RandomBytes: out.OutcomeBytes,
		Roll:        out.Roll,
		MakerWon:    out.Won,
	})
	if errors.Is(err, repo.ErrStateConflict) {
		cur, getErr := o.repo.Get(ctx, betID)
		if getErr != nil {
			return false, fmt.Errorf("reload after conflict: %w", getErr)
		}
		if cur.ExecutedAt != nil {
			// outra checagem gravou primeiro
			return false, nil
		}
		return false, fmt.Errorf("persist execution: %w", err)
	}
	if err != nil {
		return false, fmt.Errorf("persist execution: %w", err)
	}

	o.log.Info("bet executed",
		zap.Int64("bet_id", betID), zap.String("roll", out.Roll.String()), zap.Bool("maker_won", out.Won))
	o.publishCurrent(ctx, events.BetExecuted, betID)
	return true, nil
}

// ReconcilePending varre as apostas chamadas e não executadas, com no máximo
// ReconcileConcurrency checagens simultâneas. Falhas individuais não param a varredura.
func (o *Orchestrator) ReconcilePending(ctx context.Context) (int, error) {
	pending, err := o.repo.ListPending(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}

	var (
		mu       sync.Mutex
		executed int
		errs     []error
	)
	var g errgroup.Group
	g.SetLimit(o.cfg.ReconcileConcurrency)
	for _, b := range pending {
		id := b.ID
		g.Go(func() error {
			done, err := o.CheckExecution(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("bet %d: %w", id, err))
				return nil
			}
			if done {
				executed++
				if o.Hooks.OnReconciled != nil {
					o.Hooks.OnReconciled()
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(pending) > 0 {
		o.log.Info("reconcile sweep finished",
			zap.Int("pending", len(pending)), zap.Int("executed", executed), zap.Int("failed", len(errs)))
	}
	return executed, errors.Join(errs...)
}

// watch espera o evento de execução e chama CheckExecution.
// Se o evento nunca chegar, a reconciliação cobre.
func (o *Orchestrator) watch(betID int64) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.watchers.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.watchers.Done()
		if err := o.ledger.AwaitExecution(o.base, betID); err != nil {
			if o.base.Err() == nil {
				o.log.Warn("execution watch failed", zap.Int64("bet_id", betID), zap.Error(err))
			}
			return
		}
		if _, err := o.CheckExecution(o.base, betID); err != nil {
			o.log.Warn("check execution failed", zap.Int64("bet_id", betID), zap.Error(err))
		}
	}()
}
