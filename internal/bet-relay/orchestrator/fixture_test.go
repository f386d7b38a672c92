package orchestrator_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/ethbet-relay/internal/bet-relay/domain"
	"github.com/radieske/ethbet-relay/internal/bet-relay/ledger"
	"github.com/radieske/ethbet-relay/internal/bet-relay/lock"
	"github.com/radieske/ethbet-relay/internal/bet-relay/orchestrator"
	"github.com/radieske/ethbet-relay/internal/bet-relay/repo"
	"github.com/radieske/ethbet-relay/internal/bet-relay/users"
)

const (
	maker  = "0xMaker"
	caller = "0xCaller"
)

var (
	d  = decimal.RequireFromString
	t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

type published struct {
	name string
	bet  domain.Bet
}

type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) Publish(_ context.Context, name string, bet domain.Bet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{name, bet})
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.name == name {
			n++
		}
	}
	return n
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) last() published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixture struct {
	o     *orchestrator.Orchestrator
	led   *ledger.Simulated
	locks *lock.Memory
	repo  *repo.Memory
	pub   *recorder

	mu          sync.Mutex
	ledgerFails map[string]int
	contention  int
}

func newFixture(t *testing.T, opts ...func(*orchestrator.Config)) *fixture {
	t.Helper()
	f := &fixture{
		led:         ledger.NewSimulated(),
		locks:       lock.NewMemory(),
		repo:        repo.NewMemory(),
		pub:         &recorder{},
		ledgerFails: map[string]int{},
	}
	dir := users.Static{"0xmaker": "alice", "0xcaller": "bob"}
	cfg := orchestrator.Config{
		StakeFee:             decimal.NewFromInt(200),
		ReconcileConcurrency: 5,
		Now:                  func() time.Time { return t0 },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	f.o = orchestrator.New(zap.NewNop(), f.led, f.locks, f.repo, f.pub, dir, cfg)
	f.o.Hooks.OnLedgerError = func(action string) {
		f.mu.Lock()
		f.ledgerFails[action]++
		f.mu.Unlock()
	}
	f.o.Hooks.OnLockContention = func() {
		f.mu.Lock()
		f.contention++
		f.mu.Unlock()
	}
	t.Cleanup(f.o.Close)
	return f
}

// seed grava uma aposta NEW como se lockFunds já tivesse confirmado
func (f *fixture) seed(t *testing.T, amount, edge string) domain.Bet {
	t.Helper()
	b, err := f.repo.Create(context.Background(), domain.Bet{
		Maker: maker, Amount: d(amount), Edge: d(edge), CreatedAt: t0.Add(-time.Hour),
	})
	require.NoError(t, err)
	return b
}

// seedCalled grava uma aposta CALLED e registra o call no ledger simulado
func (f *fixture) seedCalled(t *testing.T) domain.Bet {
	t.Helper()
	b := f.seed(t, "1", "1.5")
	require.NoError(t, f.repo.MarkCalled(context.Background(), b.ID, caller, "0xq", t0.Add(-30*time.Minute)))
	f.led.MarkInitialized(b.ID, maker, caller, b.Amount)
	return b
}

func (f *fixture) get(t *testing.T, id int64) domain.Bet {
	t.Helper()
	b, err := f.repo.Get(context.Background(), id)
	require.NoError(t, err)
	return b
}

func (f *fixture) fundCall(makerLocked string) {
	f.led.SetAccount(maker, d("500"), d("1"), d(makerLocked))
	f.led.SetAccount(caller, d("500"), d("2"), d("0"))
}

func (f *fixture) contentions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contention
}

func (f *fixture) ledgerFailures(action string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ledgerFails[action]
}
