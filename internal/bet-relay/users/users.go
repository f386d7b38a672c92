// Package users resolve endereços para nomes de exibição.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Directory é a consulta de nomes, unitária e em lote
type Directory interface {
	Username(ctx context.Context, address string) (string, error)
	Usernames(ctx context.Context, addresses []string) (map[string]string, error)
}

// Postgres lê a tabela users; endereços são comparados em minúsculas
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Username devolve vazio quando o endereço não tem nome cadastrado
func (p *Postgres) Username(ctx context.Context, address string) (string, error) {
	var name string
	err := p.db.QueryRowContext(ctx,
		`SELECT username FROM users WHERE lower(address)=$1`, strings.ToLower(address),
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("username %s: %w", address, err)
	}
	return name, nil
}

// Usernames devolve só os endereços encontrados, chaveados como vieram
func (p *Postgres) Usernames(ctx context.Context, addresses []string) (map[string]string, error) {
	out := make(map[string]string, len(addresses))
	if len(addresses) == 0 {
		return out, nil
	}

	byLower := make(map[string][]string, len(addresses))
	lowered := make([]string, 0, len(addresses))
	for _, a := range addresses {
		l := strings.ToLower(a)
		if _, seen := byLower[l]; !seen {
			lowered = append(lowered, l)
		}
		byLower[l] = append(byLower[l], a)
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT lower(address), username FROM users WHERE lower(address) = ANY($1)`, pq.Array(lowered),
	)
	if err != nil {
		return nil, fmt.Errorf("usernames: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var addr, name string
		if err := rows.Scan(&addr, &name); err != nil {
			return nil, fmt.Errorf("usernames scan: %w", err)
		}
		for _, orig := range byLower[addr] {
			out[orig] = name
		}
	}
	return out, rows.Err()
}

// Static é um diretório fixo para ENV=local e testes
type Static map[string]string

func (s Static) Username(_ context.Context, address string) (string, error) {
	return s[strings.ToLower(address)], nil
}

func (s Static) Usernames(_ context.Context, addresses []string) (map[string]string, error) {
	out := make(map[string]string, len(addresses))
	for _, a := range addresses {
		if n, ok := s[strings.ToLower(a)]; ok {
			out[a] = n
		}
	}
	return out, nil
}
