package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/ethbet-relay/internal/bet-relay/domain"
)

// Memory aplica as mesmas guardas do Postgres, para ENV=local e testes
type Memory struct {
	mu     sync.RWMutex
	nextID int64
	bets   map[int64]domain.Bet
}

func NewMemory() *Memory {
	return &Memory{bets: map[int64]domain.Bet{}}
}

func (m *Memory) Create(_ context.Context, b domain.Bet) (domain.Bet, error) {
	if !b.Amount.IsPositive() {
		return domain.Bet{}, domain.Invalid(domain.CodeInvalidAmount, "amount must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	if b.GasPriceType == "" {
		b.GasPriceType = domain.FeeTierMedium
	}
	created := domain.Bet{
		ID:           m.nextID,
		Maker:        b.Maker,
		Amount:       b.Amount,
		Edge:         b.Edge,
		GasPriceType: b.GasPriceType,
		CreatedAt:    b.CreatedAt,
	}
	m.bets[created.ID] = created
	return created, nil
}

func (m *Memory) Get(_ context.Context, id int64) (domain.Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bets[id]
	if !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	return b, nil
}

func (m *Memory) MarkCancelled(_ context.Context, id int64, at time.Time) error {
	return m.update(id, func(b *domain.Bet) bool {
		if b.CancelledAt != nil || b.InitializedAt != nil || at.Before(b.CreatedAt) {
			return false
		}
		b.CancelledAt = &at
		return true
	})
}

func (m *Memory) MarkCalled(_ context.Context, id int64, caller, queryID string, at time.Time) error {
	return m.update(id, func(b *domain.Bet) bool {
		if b.CancelledAt != nil || b.InitializedAt != nil || at.Before(b.CreatedAt) {
			return false
		}
		b.InitializedAt = &at
		b.CallerUser = caller
		b.QueryID = queryID
		return true
	})
}

func (m *Memory) MarkExecuted(_ context.Context, id int64, e domain.Execution) error {
	return m.update(id, func(b *domain.Bet) bool {
		if b.InitializedAt == nil || b.CancelledAt != nil || b.ExecutedAt != nil || e.ExecutedAt.Before(*b.InitializedAt) {
			return false
		}
		at, won := e.ExecutedAt, e.MakerWon
		b.ExecutedAt = &at
		b.RandomBytes = e.RandomBytes
		b.Roll = decimal.NewNullDecimal(e.Roll)
		b.MakerWon = &won
		return true
	})
}

// update aplica fn sob o lock; fn devolve false quando a guarda não passa
func (m *Memory) update(id int64, fn func(*domain.Bet) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bets[id]
	if !ok || !fn(&b) {
		return ErrStateConflict
	}
	m.bets[id] = b
	return nil
}

func (m *Memory) ListActive(_ context.Context, opts domain.ListOptions) ([]domain.Bet, int, error) {
	if _, ok := orderColumn[opts.OrderField]; !ok {
		return nil, 0, domain.Invalid(domain.CodeInvalidListOptions, "invalid order field %q", opts.OrderField)
	}

	active := m.filter(func(b domain.Bet) bool { return b.CancelledAt == nil && b.InitializedAt == nil })
	asc := opts.OrderDirection == domain.OrderAsc
	sort.Slice(active, func(i, j int) bool {
		c := compareBy(opts.OrderField, active[i], active[j])
		if c == 0 {
			c = cmpInt(active[i].ID, active[j].ID)
		}
		if asc {
			return c < 0
		}
		return c > 0
	})

	total := len(active)
	if opts.Offset >= total {
		return nil, total, nil
	}
	end := opts.Offset + domain.ActivePageSize
	if end > total {
		end = total
	}
	return active[opts.Offset:end], total, nil
}

func (m *Memory) CountUserActive(_ context.Context, user string) (int, error) {
	return len(m.filter(func(b domain.Bet) bool {
		return b.Maker == user && b.CancelledAt == nil && b.ExecutedAt == nil
	})), nil
}

func (m *Memory) ListExecuted(_ context.Context, limit int) ([]domain.Bet, error) {
	out := m.filter(func(b domain.Bet) bool { return b.ExecutedAt != nil })
	sortNewest(out, func(b domain.Bet) time.Time { return *b.ExecutedAt })
	return capped(out, limit), nil
}

func (m *Memory) ListPending(_ context.Context, limit int) ([]domain.Bet, error) {
	out := m.filter(func(b domain.Bet) bool {
		return b.InitializedAt != nil && b.CancelledAt == nil && b.ExecutedAt == nil
	})
	sortNewest(out, func(b domain.Bet) time.Time { return *b.InitializedAt })
	return capped(out, limit), nil
}

func (m *Memory) filter(keep func(domain.Bet) bool) []domain.Bet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Bet
	for _, b := range m.bets {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}

func compareBy(f domain.OrderField, a, b domain.Bet) int {
	switch f {
	case domain.OrderByAmount:
		return a.Amount.Cmp(b.Amount)
	case domain.OrderByEdge:
		return a.Edge.Cmp(b.Edge)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func sortNewest(bets []domain.Bet, key func(domain.Bet) time.Time) {
	sort.Slice(bets, func(i, j int) bool {
		if c := key(bets[i]).Compare(key(bets[j])); c != 0 {
			return c > 0
		}
		return bets[i].ID > bets[j].ID
	})
}

func capped(bets []domain.Bet, limit int) []domain.Bet {
	if limit > 0 && len(bets) > limit {
		return bets[:limit]
	}
	return bets
}
