package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/ethbet-relay/internal/bet-relay/domain"
)

type simBet struct {
	maker, caller string
	amount        decimal.Decimal
	rollUnder     decimal.Decimal
	outcome       *Outcome
}

// Simulated é um ledger em memória para ENV=local sem nó e para testes.
// Escritas podem ser bloqueadas (Block) ou falhar (FailNext) por operação.
type Simulated struct {
	mu sync.Mutex

	stake  map[string]decimal.Decimal
	free   map[string]decimal.Decimal
	locked map[string]decimal.Decimal
	bets   map[int64]*simBet

	createFee, callFee, cancelFee decimal.Decimal

	failNext map[string]error
	gates    map[string]chan struct{}
	calls    map[string]int
	watchers map[int64][]chan struct{}
	queries  int

	// MissEvents faz AwaitExecution nunca resolver, simulando eventos perdidos
	MissEvents bool
	// ReadDelay atrasa leituras de estado da aposta para medir concorrência
	ReadDelay time.Duration

	inflight, maxInflight int
}

func NewSimulated() *Simulated {
	return &Simulated{
		stake:     map[string]decimal.Decimal{},
		free:      map[string]decimal.Decimal{},
		locked:    map[string]decimal.Decimal{},
		bets:      map[int64]*simBet{},
		createFee: decimal.RequireFromString("0.01"),
		callFee:   decimal.RequireFromString("0.02"),
		cancelFee: decimal.RequireFromString("0.005"),
		failNext:  map[string]error{},
		gates:     map[string]chan struct{}{},
		calls:     map[string]int{},
		watchers:  map[int64][]chan struct{}{},
	}
}

// SetAccount define os três saldos de um usuário
func (s *Simulated) SetAccount(user string, stake, free, locked decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stake[user], s.free[user], s.locked[user] = stake, free, locked
}

// SetFees fixa as fees devolvidas para qualquer tier
func (s *Simulated) SetFees(create, call, cancel decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createFee, s.callFee, s.cancelFee = create, call, cancel
}

// FailNext faz a próxima escrita op falhar com err
func (s *Simulated) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[op] = err
}

// Block segura as escritas op até a função devolvida ser chamada
func (s *Simulated) Block(op string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.gates[op] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, op)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Calls conta quantas escritas op foram submetidas
func (s *Simulated) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// MaxConcurrentReads é o pico de leituras simultâneas de estado de aposta
func (s *Simulated) MaxConcurrentReads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInflight
}

// MarkInitialized registra um call feito por fora do relay
func (s *Simulated) MarkInitialized(betID int64, maker, caller string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bets[betID] = &simBet{maker: maker, caller: caller, amount: amount}
}

// Execute grava o resultado do oráculo para uma aposta inicializada
func (s *Simulated) Execute(betID int64, roll decimal.Decimal, makerWon bool, raw string, at time.Time) error {
	s.mu.Lock()
	b, ok := s.bets[betID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("bet %d not initialized", betID)
	}
	at = at.UTC().Truncate(time.Second)
	b.outcome = &Outcome{
		Maker: b.maker, Caller: b.caller, Amount: b.amount, RollUnder: b.rollUnder,
		Roll: roll, OutcomeBytes: raw, Won: makerWon, ExecutedAt: &at,
	}
	var ws []chan struct{}
	if !s.MissEvents {
		ws = s.watchers[betID]
		delete(s.watchers, betID)
	}
	s.mu.Unlock()

	for _, w := range ws {
		close(w)
	}
	return nil
}

func (s *Simulated) StakeBalanceOf(_ context.Context, user string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stake[user], nil
}

func (s *Simulated) FreeBalanceOf(_ context.Context, user string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.free[user], nil
}

func (s *Simulated) LockedBalanceOf(_ context.Context, user string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked[user], nil
}

func (s *Simulated) IsInitialized(ctx context.Context, betID int64) (bool, error) {
	done := s.enterRead()
	defer done()
	if err := s.readPause(ctx); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.bets[betID]
	return ok, nil
}

func (s *Simulated) GetBetOutcome(ctx context.Context, betID int64) (Outcome, error) {
	done := s.enterRead()
	defer done()
	if err := s.readPause(ctx); err != nil {
		return Outcome{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bets[betID]
	if !ok {
		return Outcome{}, nil
	}
	if b.outcome != nil {
		return *b.outcome, nil
	}
	return Outcome{Maker: b.maker, Caller: b.caller, Amount: b.amount, RollUnder: b.rollUnder}, nil
}

func (s *Simulated) CreateFee(_ context.Context, tier domain.FeeTier) (decimal.Decimal, error) {
	if _, err := domain.ParseFeeTier(string(tier)); err != nil {
		return decimal.Zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createFee, nil
}

func (s *Simulated) CallFee(_ context.Context, tier domain.FeeTier) (decimal.Decimal, error) {
	if _, err := domain.ParseFeeTier(string(tier)); err != nil {
		return decimal.Zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callFee, nil
}

func (s *Simulated) CancelFee(_ context.Context, tier domain.FeeTier) (decimal.Decimal, error) {
	if _, err := domain.ParseFeeTier(string(tier)); err != nil {
		return decimal.Zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelFee, nil
}

func (s *Simulated) LockFunds(ctx context.Context, user string, amount decimal.Decimal, _ domain.FeeTier) (TxResult, error) {
	if err := s.submit(ctx, OpLockFunds); err != nil {
		return TxResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	total := amount.Add(s.createFee)
	if s.free[user].LessThan(total) {
		return TxResult{}, &Error{Op: OpLockFunds, TxHash: s.txHash(), Err: ErrReverted}
	}
	s.free[user] = s.free[user].Sub(total)
	s.locked[user] = s.locked[user].Add(amount)
	return TxResult{TxHash: s.txHash()}, nil
}

func (s *Simulated) UnlockFunds(ctx context.Context, user string, amount decimal.Decimal, _ domain.FeeTier) (TxResult, error) {
	if err := s.submit(ctx, OpUnlockFunds); err != nil {
		return TxResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked[user].LessThan(amount) {
		return TxResult{}, &Error{Op: OpUnlockFunds, TxHash: s.txHash(), Err: ErrReverted}
	}
	s.locked[user] = s.locked[user].Sub(amount)
	s.free[user] = s.free[user].Add(amount).Sub(s.cancelFee)
	return TxResult{TxHash: s.txHash()}, nil
}

func (s *Simulated) InitiateRoll(ctx context.Context, betID int64, maker, caller string, amount, rollUnder decimal.Decimal, _ domain.FeeTier) (TxResult, error) {
	if err := s.submit(ctx, OpInitiateRoll); err != nil {
		return TxResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bets[betID]; exists {
		return TxResult{}, &Error{Op: OpInitiateRoll, TxHash: s.txHash(), Err: ErrReverted}
	}
	s.bets[betID] = &simBet{maker: maker, caller: caller, amount: amount, rollUnder: rollUnder}
	s.free[caller] = s.free[caller].Sub(amount).Sub(s.callFee)
	s.queries++
	return TxResult{TxHash: s.txHash(), QueryID: fmt.Sprintf("0x%064x", s.queries)}, nil
}

func (s *Simulated) AwaitExecution(ctx context.Context, betID int64) error {
	s.mu.Lock()
	if s.MissEvents {
		s.mu.Unlock()
		<-ctx.Done()
		return ctx.Err()
	}
	if b, ok := s.bets[betID]; ok && b.outcome != nil {
		s.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	s.watchers[betID] = append(s.watchers[betID], ch)
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// submit conta a escrita, respeita Block e consome FailNext
func (s *Simulated) submit(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls[op]++
	gate := s.gates[op]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return &Error{Op: op, Err: ctx.Err()}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failNext[op]; ok {
		delete(s.failNext, op)
		return &Error{Op: op, Err: err}
	}
	return nil
}

func (s *Simulated) enterRead() func() {
	s.mu.Lock()
	s.inflight++
	if s.inflight > s.maxInflight {
		s.maxInflight = s.inflight
	}
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}
}

func (s *Simulated) readPause(ctx context.Context) error {
	if s.ReadDelay <= 0 {
		return nil
	}
	t := time.NewTimer(s.ReadDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// txHash gera um hash fake crescente; chamar com mu travado
func (s *Simulated) txHash() string {
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return fmt.Sprintf("0x%064x", n)
}
