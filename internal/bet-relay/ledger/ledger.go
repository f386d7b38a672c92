// Package ledger concentra todas as leituras e escritas no contrato de apostas:
// saldos, bloqueio de fundos, pedido de roll ao oráculo, estimativa de fees e
// assinatura do evento de execução.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Nomes das operações de escrita, usados em logs, métricas e no ledger simulado
const (
	OpLockFunds    = "lockFunds"
	OpUnlockFunds  = "unlockFunds"
	OpInitiateRoll = "initiateRoll"
)

// ErrReverted indica receipt com status diferente de sucesso
var ErrReverted = errors.New("contract execution failed")

// TxResult é o resultado de uma transação minerada com sucesso
type TxResult struct {
	TxHash  string
	QueryID string // só preenchido por initiateRoll
}

// Outcome é a aposta como o contrato a enxerga
type Outcome struct {
	Maker        string
	Caller       string
	Amount       decimal.Decimal
	RollUnder    decimal.Decimal
	Roll         decimal.Decimal
	OutcomeBytes string
	Won          bool
	ExecutedAt   *time.Time // nil enquanto o oráculo não respondeu
}

// Error é a falha de uma transação submetida (LedgerError)
type Error struct {
	Op     string
	TxHash string
	Err    error
}

func (e *Error) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("ledger %s (tx %s): %v", e.Op, e.TxHash, e.Err)
	}
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
