// Package lock implementa exclusão mútua por aposta, sem espera: se a chave já
// existe a aquisição falha na hora.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrHeld indica que outro ator já segura o lock
var ErrHeld = errors.New("lock already held")

const keyPrefix = "bet-lock:"

// Key é a chave usada no Redis para um lock
func Key(id string) string { return keyPrefix + id }

// Redis usa SET NX PX; funciona entre várias instâncias do relay
type Redis struct {
	rdb    *redis.Client
	holder string
	ttl    time.Duration
}

// NewRedis cria o lock distribuído. ttl <= 0 deixa a chave sem expiração.
func NewRedis(rdb *redis.Client, holder string, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, holder: holder, ttl: ttl}
}

func (l *Redis) Acquire(ctx context.Context, id string) error {
	ok, err := l.rdb.SetNX(ctx, Key(id), l.holder, l.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrHeld
	}
	return nil
}

// Release é idempotente: apagar uma chave inexistente não é erro
func (l *Redis) Release(ctx context.Context, id string) error {
	return l.rdb.Del(ctx, Key(id)).Err()
}

// Holder devolve quem segura o lock, vazio se ninguém
func (l *Redis) Holder(ctx context.Context, id string) (string, error) {
	v, err := l.rdb.Get(ctx, Key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

// Memory é o lock de processo único, para ENV=local e testes
type Memory struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{held: map[string]struct{}{}}
}

func (m *Memory) Acquire(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[id]; ok {
		return ErrHeld
	}
	m.held[id] = struct{}{}
	return nil
}

func (m *Memory) Release(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, id)
	return nil
}

// Held informa se o lock está tomado
func (m *Memory) Held(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[id]
	return ok
}
