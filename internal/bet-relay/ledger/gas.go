package ledger

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/radieske/ethbet-relay/internal/bet-relay/domain"
)

// GasOracle resolve um tier de fee para o gas price corrente em wei
type GasOracle interface {
	GasPrice(ctx context.Context, tier domain.FeeTier) (*big.Int, error)
}

// StaticGasOracle devolve preços fixos por tier
type StaticGasOracle map[domain.FeeTier]*big.Int

func (s StaticGasOracle) GasPrice(_ context.Context, tier domain.FeeTier) (*big.Int, error) {
	p, ok := s[tier]
	if !ok {
		return nil, domain.Invalid(domain.CodeInvalidFeeTier, "unknown gas price type %q", tier)
	}
	return new(big.Int).Set(p), nil
}

type gasPriceSuggester interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

type ratio struct{ num, den int64 }

// multiplicador aplicado ao preço sugerido pelo nó
var tierMultiplier = map[domain.FeeTier]ratio{
	domain.FeeTierLow:    {9, 10},
	domain.FeeTierMedium: {1, 1},
	domain.FeeTierHigh:   {5, 4},
}

const nodeGasPriceTTL = 30 * time.Second

// fallback quando o nó não responde e ainda não há cache (20 gwei)
var fallbackGasPrice = big.NewInt(20_000_000_000)

// NodeGasOracle deriva os tiers do SuggestGasPrice do nó, com cache curto
type NodeGasOracle struct {
	node gasPriceSuggester

	mu        sync.RWMutex
	cached    *big.Int
	updatedAt time.Time
}

func NewNodeGasOracle(node gasPriceSuggester) *NodeGasOracle {
	return &NodeGasOracle{node: node}
}

func (o *NodeGasOracle) GasPrice(ctx context.Context, tier domain.FeeTier) (*big.Int, error) {
	m, ok := tierMultiplier[tier]
	if !ok {
		return nil, domain.Invalid(domain.CodeInvalidFeeTier, "unknown gas price type %q", tier)
	}

	price := new(big.Int).Mul(o.base(ctx), big.NewInt(m.num))
	return price.Div(price, big.NewInt(m.den)), nil
}

func (o *NodeGasOracle) base(ctx context.Context) *big.Int {
	o.mu.RLock()
	cached, updatedAt := o.cached, o.updatedAt
	o.mu.RUnlock()

	if cached != nil && time.Since(updatedAt) < nodeGasPriceTTL {
		return cached
	}

	price, err := o.node.SuggestGasPrice(ctx)
	if err != nil {
		if cached != nil {
			return cached
		}
		return fallbackGasPrice
	}

	o.mu.Lock()
	o.cached = price
	o.updatedAt = time.Now()
	o.mu.Unlock()
	return price
}
