package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/ethbet-relay/internal/bet-relay/domain"
	"github.com/radieske/ethbet-relay/internal/bet-relay/ledger"
)

var d = decimal.RequireFromString

func TestSimulated_LockAndUnlock(t *testing.T) {
	s := ledger.NewSimulated()
	s.SetAccount("0xA", d("500"), d("2.5"), d("0"))
	ctx := context.Background()

	_, err := s.LockFunds(ctx, "0xA", d("1"), domain.FeeTierLow)
	require.NoError(t, err)

	free, _ := s.FreeBalanceOf(ctx, "0xA")
	locked, _ := s.LockedBalanceOf(ctx, "0xA")
	assert.True(t, free.Equal(d("1.49")), free.String())
	assert.True(t, locked.Equal(d("1")))

	_, err = s.UnlockFunds(ctx, "0xA", d("1"), domain.FeeTierLow)
	require.NoError(t, err)
	locked, _ = s.LockedBalanceOf(ctx, "0xA")
	assert.True(t, locked.IsZero())
	assert.Equal(t, 1, s.Calls(ledger.OpLockFunds))
	assert.Equal(t, 1, s.Calls(ledger.OpUnlockFunds))
}

func TestSimulated_FailNextReturnsLedgerError(t *testing.T) {
	s := ledger.NewSimulated()
	s.FailNext(ledger.OpLockFunds, errors.New("boom"))

	_, err := s.LockFunds(context.Background(), "0xA", d("1"), domain.FeeTierLow)
	var lerr *ledger.Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, ledger.OpLockFunds, lerr.Op)
}

func TestSimulated_AwaitExecution(t *testing.T) {
	s := ledger.NewSimulated()
	ctx := context.Background()
	_, err := s.InitiateRoll(ctx, 1, "0xA", "0xB", d("1"), d("50.75"), domain.FeeTierLow)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.AwaitExecution(ctx, 1) }()

	require.Eventually(t, func() bool {
		return s.Execute(1, d("12.34"), true, "0x01", time.Now()) == nil
	}, time.Second, 10*time.Millisecond)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("AwaitExecution did not resolve")
	}

	out, err := s.GetBetOutcome(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, out.ExecutedAt)
	assert.True(t, out.Won)
}

func TestSimulated_AwaitExecutionCancelled(t *testing.T) {
	s := ledger.NewSimulated()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.AwaitExecution(ctx, 9), context.Canceled)
}
