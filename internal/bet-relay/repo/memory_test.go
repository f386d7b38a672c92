package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/ethbet-relay/internal/bet-relay/domain"
	"github.com/radieske/ethbet-relay/internal/bet-relay/repo"
)

func seed(t *testing.T, m *repo.Memory, maker, amount string, at time.Time) domain.Bet {
	t.Helper()
	b, err := m.Create(context.Background(), domain.Bet{
		Maker: maker, Amount: decimal.RequireFromString(amount), Edge: decimal.NewFromInt(1), CreatedAt: at,
	})
	require.NoError(t, err)
	return b
}

func TestMemory_TransitionsAreGuarded(t *testing.T) {
	m := repo.NewMemory()
	ctx := context.Background()
	t0 := time.Now()
	b := seed(t, m, "0xA", "1", t0)

	require.NoError(t, m.MarkCancelled(ctx, b.ID, t0.Add(time.Second)))
	assert.ErrorIs(t, m.MarkCalled(ctx, b.ID, "0xB", "q", t0.Add(2*time.Second)), repo.ErrStateConflict)

	c := seed(t, m, "0xA", "1", t0)
	assert.ErrorIs(t, m.MarkExecuted(ctx, c.ID, domain.Execution{ExecutedAt: t0}), repo.ErrStateConflict, "not called yet")
	require.NoError(t, m.MarkCalled(ctx, c.ID, "0xB", "q", t0.Add(time.Second)))
	assert.ErrorIs(t, m.MarkCancelled(ctx, c.ID, t0.Add(2*time.Second)), repo.ErrStateConflict)

	exec := domain.Execution{ExecutedAt: t0.Add(3 * time.Second), RandomBytes: "0x1", Roll: decimal.NewFromInt(30), MakerWon: true}
	require.NoError(t, m.MarkExecuted(ctx, c.ID, exec))
	assert.ErrorIs(t, m.MarkExecuted(ctx, c.ID, exec), repo.ErrStateConflict)

	got, err := m.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateExecuted, got.State())
	assert.Equal(t, "0xB", got.CallerUser)
	assert.True(t, got.Roll.Decimal.Equal(decimal.NewFromInt(30)))

	_, err = m.Get(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemory_Queries(t *testing.T) {
	m := repo.NewMemory()
	ctx := context.Background()
	t0 := time.Now()

	a := seed(t, m, "0xA", "5", t0)
	b := seed(t, m, "0xA", "1", t0.Add(time.Second))
	c := seed(t, m, "0xB", "3", t0.Add(2*time.Second))
	d := seed(t, m, "0xA", "2", t0.Add(3*time.Second))

	require.NoError(t, m.MarkCancelled(ctx, b.ID, t0.Add(time.Minute)))
	require.NoError(t, m.MarkCalled(ctx, c.ID, "0xA", "q1", t0.Add(time.Minute)))
	require.NoError(t, m.MarkCalled(ctx, d.ID, "0xB", "q2", t0.Add(2*time.Minute)))
	require.NoError(t, m.MarkExecuted(ctx, d.ID, domain.Execution{ExecutedAt: t0.Add(3 * time.Minute), Roll: decimal.NewFromInt(1)}))

	active, total, err := m.ListActive(ctx, domain.ListOptions{OrderField: domain.OrderByAmount, OrderDirection: domain.OrderAsc})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)

	n, err := m.CountUserActive(ctx, "0xA")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "0xA keeps only bet a active")

	pending, err := m.ListPending(ctx, domain.RecentLimit)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, c.ID, pending[0].ID)

	executed, err := m.ListExecuted(ctx, domain.RecentLimit)
	require.NoError(t, err)
	require.Len(t, executed, 1)
	assert.Equal(t, d.ID, executed[0].ID)
}

func TestMemory_ListActivePaginates(t *testing.T) {
	m := repo.NewMemory()
	t0 := time.Now()
	for i := 0; i < domain.ActivePageSize+5; i++ {
		seed(t, m, "0xA", "1", t0.Add(time.Duration(i)*time.Second))
	}

	page, total, err := m.ListActive(context.Background(), domain.DefaultListOptions())
	require.NoError(t, err)
	assert.Equal(t, domain.ActivePageSize+5, total)
	assert.Len(t, page, domain.ActivePageSize)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt), "newest first")

	opts := domain.DefaultListOptions()
	opts.Offset = domain.ActivePageSize
	page, _, err = m.ListActive(context.Background(), opts)
	require.NoError(t, err)
	assert.Len(t, page, 5)
}
