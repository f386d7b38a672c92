package repo

import (
	"database/sql"
	"errors"
	"time"

	"github.com/radieske/ethbet-relay/internal/bet-relay/domain"
)

// ErrStateConflict indica que o UPDATE protegido não tocou nenhuma linha:
// a aposta já saiu do estado esperado (outra transição chegou antes)
var ErrStateConflict = errors.New("bet is no longer in the expected state")

const betColumns = `id, maker, caller_user, amount, edge, gas_price_type, query_id,
	random_bytes, roll, maker_won, created_at, cancelled_at, initialized_at, executed_at`

type scanner interface {
	Scan(dest ...any) error
}

// scanBet lê uma linha na ordem de betColumns
func scanBet(s scanner) (domain.Bet, error) {
	var (
		b                                  domain.Bet
		caller, tier, queryID, randomBytes sql.NullString
		makerWon                           sql.NullBool
		cancelledAt, initAt, execAt        sql.NullTime
	)
	err := s.Scan(
		&b.ID, &b.Maker, &caller, &b.Amount, &b.Edge, &tier, &queryID,
		&randomBytes, &b.Roll, &makerWon, &b.CreatedAt, &cancelledAt, &initAt, &execAt,
	)
	if err != nil {
		return domain.Bet{}, err
	}

	b.CallerUser = caller.String
	b.GasPriceType = domain.FeeTier(tier.String)
	b.QueryID = queryID.String
	b.RandomBytes = randomBytes.String
	if makerWon.Valid {
		b.MakerWon = &makerWon.Bool
	}
	b.CancelledAt = timePtr(cancelledAt)
	b.InitializedAt = timePtr(initAt)
	b.ExecutedAt = timePtr(execAt)
	return b, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// orderColumn mapeia os campos permitidos para colunas; nada vindo do cliente chega cru ao SQL
var orderColumn = map[domain.OrderField]string{
	domain.OrderByCreatedAt: "created_at",
	domain.OrderByAmount:    "amount",
	domain.OrderByEdge:      "edge",
}
