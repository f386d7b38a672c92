package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/ethbet-relay/internal/bet-relay/domain"
	"github.com/radieske/ethbet-relay/internal/bet-relay/lock"
	"github.com/radieske/ethbet-relay/pkg/contracts/events"
)

var maxEdge = decimal.NewFromInt(100)

// CreateBet valida saldo e stake do maker e submete lockFunds.
// A aposta só passa a existir localmente depois da confirmação.
func (o *Orchestrator) CreateBet(ctx context.Context, maker string, amount, edge decimal.Decimal, tier domain.FeeTier) error {
	if !amount.IsPositive() {
		return domain.Invalid(domain.CodeInvalidAmount, "amount must be positive")
	}
	if edge.IsNegative() || !edge.LessThan(maxEdge) {
		return domain.Invalid(domain.CodeInvalidEdge, "edge must be in [0, 100)")
	}
	tier, err := domain.ParseFeeTier(string(tier))
	if err != nil {
		return err
	}

	if err := o.requireStake(ctx, maker); err != nil {
		return err
	}

	fee, err := o.ledger.CreateFee(ctx, tier)
	if err != nil {
		return fmt.Errorf("create fee: %w", err)
	}
	free, err := o.ledger.FreeBalanceOf(ctx, maker)
	if err != nil {
		return fmt.Errorf("free balance: %w", err)
	}
	if need := amount.Add(fee); free.LessThan(need) {
		return domain.Invalid(domain.CodeInsufficientFunds, "free balance %s is below amount plus fee %s", free, need)
	}

	fields := []zap.Field{zap.String("user", maker), zap.String("amount", amount.String())}
	o.spawn(ctx, ActionCreate, func(ctx context.Context) {
		tx, err := o.ledger.LockFunds(ctx, maker, amount, tier)
		if err != nil {
			o.ledgerFailed(ActionCreate, err, fields...)
			return
		}
		o.confirmed(ActionCreate)

		bet, err := o.repo.Create(ctx, domain.Bet{
			Maker:        maker,
			Amount:       amount,
			Edge:         edge,
			GasPriceType: tier,
			CreatedAt:    o.cfg.Now(),
		})
		if err != nil {
			o.log.Error("persist created bet failed", append(fields, zap.String("tx", tx.TxHash), zap.Error(err))...)
			return
		}
		o.log.Info("bet created", append(fields, zap.Int64("bet_id", bet.ID), zap.String("tx", tx.TxHash))...)
		o.pub.Publish(ctx, events.BetCreated, bet)
	})
	return nil
}

// CancelBet devolve os fundos travados do maker
func (o *Orchestrator) CancelBet(ctx context.Context, betID int64, requester string, tier domain.FeeTier) error {
	tier, err := domain.ParseFeeTier(string(tier))
	if err != nil {
		return err
	}
	bet, err := o.repo.Get(ctx, betID)
	if err != nil {
		return err
	}
	if err := mutable(bet); err != nil {
		return err
	}
	if !sameAddress(requester, bet.Maker) {
		return domain.Invalid(domain.CodeNotOwner, "only the maker can cancel bet %d", betID)
	}

	locked, err := o.ledger.LockedBalanceOf(ctx, bet.Maker)
	if err != nil {
		return fmt.Errorf("locked balance: %w", err)
	}
	if locked.LessThan(bet.Amount) {
		return domain.Invalid(domain.CodeInsufficientLocked, "locked balance %s is below bet amount %s", locked, bet.Amount)
	}

	fee, err := o.ledger.CancelFee(ctx, tier)
	if err != nil {
		return fmt.Errorf("cancel fee: %w", err)
	}
	free, err := o.ledger.FreeBalanceOf(ctx, bet.Maker)
	if err != nil {
		return fmt.Errorf("free balance: %w", err)
	}
	if free.LessThan(fee) {
		return domain.Invalid(domain.CodeInsufficientFunds, "free balance %s does not cover cancel fee %s", free, fee)
	}

	if err := o.acquire(ctx, betID); err != nil {
		return err
	}

	fields := []zap.Field{zap.Int64("bet_id", betID), zap.String("user", bet.Maker), zap.String("amount", bet.Amount.String())}
	o.spawn(ctx, ActionCancel, func(ctx context.Context) {
		tx, err := o.ledger.UnlockFunds(ctx, bet.Maker, bet.Amount, tier)
		if err != nil {
			// lock fica retido até o TTL: a transação pode ainda entrar num bloco
			o.ledgerFailed(ActionCancel, err, fields...)
			return
		}
		o.confirmed(ActionCancel)
		fields = append(fields, zap.String("tx", tx.TxHash))

		err = o.repo.MarkCancelled(ctx, betID, o.cfg.Now())
		o.release(ctx, betID)
		if err != nil {
			o.log.Error("persist cancellation failed", append(fields, zap.Error(err))...)
			return
		}
		o.log.Info("bet cancelled", fields...)
		o.publishCurrent(ctx, events.BetCancelled, betID)
	})
	return nil
}

// CallBet aceita a aposta e pede o sorteio ao oráculo
func (o *Orchestrator) CallBet(ctx context.Context, betID int64, caller string, tier domain.FeeTier) error {
	tier, err := domain.ParseFeeTier(string(tier))
	if err != nil {
		return err
	}
	bet, err := o.repo.Get(ctx, betID)
	if err != nil {
		return err
	}
	if err := mutable(bet); err != nil {
		return err
	}
	if sameAddress(caller, bet.Maker) {
		return domain.Invalid(domain.CodeSelfCall, "the maker cannot call their own bet")
	}

	onChain, err := o.ledger.IsInitialized(ctx, betID)
	if err != nil {
		return fmt.Errorf("is initialized: %w", err)
	}
	if onChain {
		return domain.Invalid(domain.CodeAlreadyCalledOnChain, "bet %d is already initialized on chain", betID)
	}

	fee, err := o.ledger.CallFee(ctx, tier)
	if err != nil {
		return fmt.Errorf("call fee: %w", err)
	}
	free, err := o.ledger.FreeBalanceOf(ctx, caller)
	if err != nil {
		return fmt.Errorf("free balance: %w", err)
	}
	if need := bet.Amount.Add(fee); free.LessThan(need) {
		return domain.Invalid(domain.CodeInsufficientFunds, "free balance %s is below amount plus fee %s", free, need)
	}

	if err := o.requireStake(ctx, caller); err != nil {
		return err
	}

	makerLocked, err := o.ledger.LockedBalanceOf(ctx, bet.Maker)
	if err != nil {
		return fmt.Errorf("maker locked balance: %w", err)
	}
	if makerLocked.LessThan(bet.Amount) {
		return domain.Invalid(domain.CodeMakerUnderfunded, "maker locked balance %s is below bet amount %s", makerLocked, bet.Amount)
	}

	if err := o.acquire(ctx, betID); err != nil {
		return err
	}

	rollUnder := domain.RollUnder(bet.Edge)
	fields := []zap.Field{
		zap.Int64("bet_id", betID), zap.String("user", bet.Maker), zap.String("caller", caller),
		zap.String("amount", bet.Amount.String()), zap.String("roll_under", rollUnder.String()),
	}
	o.spawn(ctx, ActionCall, func(ctx context.Context) {
		tx, err := o.ledger.InitiateRoll(ctx, betID, bet.Maker, caller, bet.Amount, rollUnder, tier)
		if err != nil {
			o.ledgerFailed(ActionCall, err, fields...)
			return
		}
		o.confirmed(ActionCall)
		fields = append(fields, zap.String("tx", tx.TxHash), zap.String("query_id", tx.QueryID))

		err = o.repo.MarkCalled(ctx, betID, caller, tx.QueryID, o.cfg.Now())
		o.release(ctx, betID)
		if err != nil {
			o.log.Error("persist call failed", append(fields, zap.Error(err))...)
			return
		}
		o.log.Info("bet called", fields...)
		o.publishCurrent(ctx, events.BetCalled, betID)
		o.watch(betID)
	})
	return nil
}

func (o *Orchestrator) requireStake(ctx context.Context, user string) error {
	stake, err := o.ledger.StakeBalanceOf(ctx, user)
	if err != nil {
		return fmt.Errorf("stake balance: %w", err)
	}
	if stake.LessThan(o.cfg.StakeFee) {
		return domain.Invalid(domain.CodeInsufficientStake, "stake balance %s is below the required %s", stake, o.cfg.StakeFee)
	}
	return nil
}

func (o *Orchestrator) acquire(ctx context.Context, betID int64) error {
	err := o.locks.Acquire(ctx, strconv.FormatInt(betID, 10))
	if errors.Is(err, lock.ErrHeld) {
		if o.Hooks.OnLockContention != nil {
			o.Hooks.OnLockContention()
		}
		return domain.ErrLockContention
	}
	if err != nil {
		return fmt.Errorf("acquire bet lock: %w", err)
	}
	return nil
}

func (o *Orchestrator) release(ctx context.Context, betID int64) {
	if err := o.locks.Release(ctx, strconv.FormatInt(betID, 10)); err != nil {
		o.log.Warn("release bet lock failed", zap.Int64("bet_id", betID), zap.Error(err))
	}
}

// publishCurrent relê a linha para o evento levar o registro completo
func (o *Orchestrator) publishCurrent(ctx context.Context, name string, betID int64) {
	bet, err := o.repo.Get(ctx, betID)
	if err != nil {
		o.log.Warn("reload bet for notification failed", zap.Int64("bet_id", betID), zap.Error(err))
		return
	}
	o.pub.Publish(ctx, name, bet)
}

// mutable aceita só apostas em NEW
func mutable(b domain.Bet) error {
	switch b.State() {
	case domain.StateCancelled:
		return domain.Invalid(domain.CodeAlreadyCancelled, "bet %d is already cancelled", b.ID)
	case domain.StateExecuted:
		return domain.Invalid(domain.CodeAlreadyExecuted, "bet %d is already executed", b.ID)
	case domain.StateCalled:
		return domain.Invalid(domain.CodeAlreadyCalled, "bet %d is already called", b.ID)
	}
	return nil
}

func sameAddress(a, b string) bool { return strings.EqualFold(a, b) }
