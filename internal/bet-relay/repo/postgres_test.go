package repo_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/ethbet-relay/internal/bet-relay/domain"
	"github.com/radieske/ethbet-relay/internal/bet-relay/repo"
)

var cols = []string{
	"id", "maker", "caller_user", "amount", "edge", "gas_price_type", "query_id",
	"random_bytes", "roll", "maker_won", "created_at", "cancelled_at", "initialized_at", "executed_at",
}

func newMock(t *testing.T) (*repo.Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return repo.NewPostgres(db), mock
}

func TestPostgres_Create(t *testing.T) {
	p, mock := newMock(t)
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO ether_bets \(maker, amount, edge, gas_price_type, created_at\)`).
		WithArgs("0xMaker", "1.03", "1.55", "low", now).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			int64(11), "0xMaker", nil, "1.03", "1.55", "low", nil, nil, nil, nil, now, nil, nil, nil,
		))

	b, err := p.Create(context.Background(), domain.Bet{
		Maker: "0xMaker", Amount: decimal.RequireFromString("1.03"), Edge: decimal.RequireFromString("1.55"),
		GasPriceType: domain.FeeTierLow, CreatedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), b.ID)
	assert.Equal(t, domain.StateNew, b.State())
	assert.True(t, b.Amount.Equal(decimal.RequireFromString("1.03")))
	assert.False(t, b.Roll.Valid)
	assert.Nil(t, b.MakerWon)
}

func TestPostgres_GetNotFound(t *testing.T) {
	p, mock := newMock(t)
	mock.ExpectQuery(`FROM ether_bets WHERE id=\$1`).WithArgs(int64(5)).WillReturnError(sql.ErrNoRows)

	_, err := p.Get(context.Background(), 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgres_GetExecuted(t *testing.T) {
	p, mock := newMock(t)
	c, i, e := time.Unix(100, 0).UTC(), time.Unix(200, 0).UTC(), time.Unix(300, 0).UTC()
	mock.ExpectQuery(`FROM ether_bets WHERE id=\$1`).WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			int64(3), "0xA", "0xB", "2", "1.5", "medium", "0xq", "0xrand", "42.10", true, c, nil, i, e,
		))

	b, err := p.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, domain.StateExecuted, b.State())
	assert.Equal(t, "0xB", b.CallerUser)
	assert.Equal(t, "0xq", b.QueryID)
	require.NotNil(t, b.MakerWon)
	assert.True(t, *b.MakerWon)
	assert.True(t, b.Roll.Decimal.Equal(decimal.RequireFromString("42.1")))
}

func TestPostgres_GuardedUpdates(t *testing.T) {
	p, mock := newMock(t)
	ctx := context.Background()
	at := time.Now()

	mock.ExpectExec(`UPDATE ether_bets SET cancelled_at=\$2\s+WHERE id=\$1 AND cancelled_at IS NULL AND initialized_at IS NULL`).
		WithArgs(int64(1), at).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, p.MarkCancelled(ctx, 1, at))

	mock.ExpectExec(`UPDATE ether_bets SET initialized_at=\$2, caller_user=\$3, query_id=\$4`).
		WithArgs(int64(1), at, "0xB", "0xq").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, p.MarkCalled(ctx, 1, "0xB", "0xq", at), repo.ErrStateConflict)

	mock.ExpectExec(`UPDATE ether_bets SET executed_at=\$2, random_bytes=\$3, roll=\$4, maker_won=\$5\s+WHERE id=\$1 AND initialized_at IS NOT NULL AND cancelled_at IS NULL AND executed_at IS NULL`).
		WithArgs(int64(2), at, "0xr", "12.5", false).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, p.MarkExecuted(ctx, 2, domain.Execution{
		ExecutedAt: at, RandomBytes: "0xr", Roll: decimal.RequireFromString("12.5"), MakerWon: false,
	}))
}

func TestPostgres_ListActiveUsesWhitelistedOrder(t *testing.T) {
	p, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ether_bets WHERE cancelled_at IS NULL AND initialized_at IS NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(51))
	mock.ExpectQuery(`ORDER BY amount ASC, id ASC LIMIT \$1 OFFSET \$2`).
		WithArgs(domain.ActivePageSize, 50).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			int64(9), "0xA", nil, "3", "1", "high", nil, nil, nil, nil, now, nil, nil, nil,
		))

	bets, total, err := p.ListActive(context.Background(), domain.ListOptions{
		OrderField: domain.OrderByAmount, OrderDirection: domain.OrderAsc, Offset: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, 51, total)
	require.Len(t, bets, 1)
	assert.Equal(t, int64(9), bets[0].ID)
}

func TestPostgres_ListActiveRejectsUnknownField(t *testing.T) {
	p, _ := newMock(t)
	_, _, err := p.ListActive(context.Background(), domain.ListOptions{OrderField: "maker; --"})
	assert.ErrorIs(t, err, domain.ErrInvalidListOptions)
}

func TestPostgres_CountUserActive(t *testing.T) {
	p, mock := newMock(t)
	mock.ExpectQuery(`WHERE maker=\$1 AND cancelled_at IS NULL AND executed_at IS NULL`).
		WithArgs("0xA").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := p.CountUserActive(context.Background(), "0xA")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestPostgres_ListPendingUnbounded(t *testing.T) {
	p, mock := newMock(t)
	mock.ExpectQuery(`WHERE initialized_at IS NOT NULL AND cancelled_at IS NULL AND executed_at IS NULL`).
		WithArgs(nil).WillReturnRows(sqlmock.NewRows(cols))

	bets, err := p.ListPending(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, bets)
}

func TestPostgres_ListExecuted(t *testing.T) {
	p, mock := newMock(t)
	mock.ExpectQuery(`WHERE executed_at IS NOT NULL\s+ORDER BY executed_at DESC`).
		WithArgs(domain.RecentLimit).WillReturnRows(sqlmock.NewRows(cols))

	_, err := p.ListExecuted(context.Background(), domain.RecentLimit)
	require.NoError(t, err)
}

func TestPostgres_EnsureSchema(t *testing.T) {
	p, mock := newMock(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS ether_bets`).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, p.EnsureSchema(context.Background()))
}
