package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// State é o estado derivado dos timestamps do ciclo de vida da aposta
type State string

const (
	StateNew       State = "NEW"
	StateCancelled State = "CANCELLED"
	StateCalled    State = "CALLED"
	StateExecuted  State = "EXECUTED"
)

// Bet é o espelho local de uma aposta registrada no contrato.
// Maker é imutável; CallerUser e QueryID só existem depois do call;
// RandomBytes, Roll e MakerWon só existem depois da execução.
type Bet struct {
	ID           int64           `json:"id"`
	Maker        string          `json:"user"`
	CallerUser   string          `json:"callerUser,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Edge         decimal.Decimal `json:"edge"`
	GasPriceType FeeTier         `json:"gasPriceType,omitempty"`
	QueryID      string          `json:"queryId,omitempty"`

	RandomBytes string              `json:"randomBytes,omitempty"`
	Roll        decimal.NullDecimal `json:"roll"`
	MakerWon    *bool               `json:"makerWon,omitempty"`

	CreatedAt     time.Time  `json:"createdAt"`
	CancelledAt   *time.Time `json:"cancelledAt"`
	InitializedAt *time.Time `json:"initializedAt"`
	ExecutedAt    *time.Time `json:"executedAt"`
}

// State deriva o estado atual a partir dos timestamps
func (b Bet) State() State {
	switch {
	case b.ExecutedAt != nil:
		return StateExecuted
	case b.CancelledAt != nil:
		return StateCancelled
	case b.InitializedAt != nil:
		return StateCalled
	default:
		return StateNew
	}
}

// Execution carrega o resultado lido do contrato para persistir na transição CALLED -> EXECUTED
type Execution struct {
	ExecutedAt  time.Time
	RandomBytes string
	Roll        decimal.Decimal
	MakerWon    bool
}

// BetView é a aposta com os endereços resolvidos para nomes de exibição
type BetView struct {
	Bet
	Username       string `json:"username,omitempty"`
	CallerUsername string `json:"callerUsername,omitempty"`
}

// RollUnder calcula o limite de vitória ajustado pelo edge da casa: 50 + edge/2
func RollUnder(edge decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(50).Add(edge.Div(decimal.NewFromInt(2)))
}
