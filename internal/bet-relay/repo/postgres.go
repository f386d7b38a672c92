package repo

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/radieske/ethbet-relay/internal/bet-relay/domain"
)

//go:embed schema.sql
var schemaSQL string

// Postgres implementa a persistência das apostas espelhadas
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório de apostas
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// EnsureSchema cria tabelas e índices se ainda não existirem
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Create insere a aposta confirmada no contrato e devolve a linha gravada
func (p *Postgres) Create(ctx context.Context, b domain.Bet) (domain.Bet, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO ether_bets (maker, amount, edge, gas_price_type, created_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING `+betColumns,
		b.Maker, b.Amount, b.Edge, string(b.GasPriceType), b.CreatedAt,
	)
	created, err := scanBet(row)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("insert bet: %w", err)
	}
	return created, nil
}

// Get busca uma aposta pelo id
func (p *Postgres) Get(ctx context.Context, id int64) (domain.Bet, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+betColumns+` FROM ether_bets WHERE id=$1`, id)
	b, err := scanBet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Bet{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Bet{}, fmt.Errorf("get bet %d: %w", id, err)
	}
	return b, nil
}

// MarkCancelled: NEW -> CANCELLED
func (p *Postgres) MarkCancelled(ctx context.Context, id int64, at time.Time) error {
	return p.guarded(ctx, `
		UPDATE ether_bets SET cancelled_at=$2
		WHERE id=$1 AND cancelled_at IS NULL AND initialized_at IS NULL`,
		id, at,
	)
}

// MarkCalled: NEW -> CALLED
func (p *Postgres) MarkCalled(ctx context.Context, id int64, caller, queryID string, at time.Time) error {
	return p.guarded(ctx, `
		UPDATE ether_bets SET initialized_at=$2, caller_user=$3, query_id=$4
		WHERE id=$1 AND cancelled_at IS NULL AND initialized_at IS NULL`,
		id, at, caller, queryID,
	)
}

// MarkExecuted: CALLED -> EXECUTED; só uma chamada concorrente vence
func (p *Postgres) MarkExecuted(ctx context.Context, id int64, e domain.Execution) error {
	return p.guarded(ctx, `
		UPDATE ether_bets SET executed_at=$2, random_bytes=$3, roll=$4, maker_won=$5
		WHERE id=$1 AND initialized_at IS NOT NULL AND cancelled_at IS NULL AND executed_at IS NULL`,
		id, e.ExecutedAt, e.RandomBytes, e.Roll, e.MakerWon,
	)
}

func (p *Postgres) guarded(ctx context.Context, q string, args ...any) error {
	res, err := p.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update bet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update bet: %w", err)
	}
	if n == 0 {
		return ErrStateConflict
	}
	return nil
}

// ListActive lista apostas nem canceladas nem chamadas, paginadas, com o total
func (p *Postgres) ListActive(ctx context.Context, opts domain.ListOptions) ([]domain.Bet, int, error) {
	col, ok := orderColumn[opts.OrderField]
	if !ok {
		return nil, 0, domain.Invalid(domain.CodeInvalidListOptions, "invalid order field %q", opts.OrderField)
	}
	dir := "DESC"
	if opts.OrderDirection == domain.OrderAsc {
		dir = "ASC"
	}

	const where = `WHERE cancelled_at IS NULL AND initialized_at IS NULL`

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ether_bets `+where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count active bets: %w", err)
	}

	bets, err := p.list(ctx, fmt.Sprintf(
		`SELECT %s FROM ether_bets %s ORDER BY %s %s, id %s LIMIT $1 OFFSET $2`,
		betColumns, where, col, dir, dir,
	), domain.ActivePageSize, opts.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list active bets: %w", err)
	}
	return bets, total, nil
}

// CountUserActive conta as apostas do maker ainda não canceladas nem executadas
func (p *Postgres) CountUserActive(ctx context.Context, user string) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM ether_bets
		WHERE maker=$1 AND cancelled_at IS NULL AND executed_at IS NULL`, user).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count user active bets: %w", err)
	}
	return n, nil
}

// ListExecuted devolve as executadas mais recentes
func (p *Postgres) ListExecuted(ctx context.Context, limit int) ([]domain.Bet, error) {
	bets, err := p.list(ctx, `SELECT `+betColumns+` FROM ether_bets
		WHERE executed_at IS NOT NULL
		ORDER BY executed_at DESC, id DESC LIMIT $1`, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list executed bets: %w", err)
	}
	return bets, nil
}

// ListPending devolve as chamadas ainda sem execução; limit 0 = sem limite
func (p *Postgres) ListPending(ctx context.Context, limit int) ([]domain.Bet, error) {
	bets, err := p.list(ctx, `SELECT `+betColumns+` FROM ether_bets
		WHERE initialized_at IS NOT NULL AND cancelled_at IS NULL AND executed_at IS NULL
		ORDER BY initialized_at DESC, id DESC LIMIT $1`, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list pending bets: %w", err)
	}
	return bets, nil
}

// limitArg traduz 0 para NULL, que no Postgres é LIMIT ALL
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func (p *Postgres) list(ctx context.Context, q string, args ...any) ([]domain.Bet, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
