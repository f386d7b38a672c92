package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "username:"

// Cached guarda nomes no Redis por ttl; nomes vazios também são guardados
type Cached struct {
	next Directory
	rdb  *redis.Client
	ttl  time.Duration
}

func NewCached(next Directory, rdb *redis.Client, ttl time.Duration) *Cached {
	return &Cached{next: next, rdb: rdb, ttl: ttl}
}

func cacheKey(address string) string { return cacheKeyPrefix + strings.ToLower(address) }

func (c *Cached) Username(ctx context.Context, address string) (string, error) {
	v, err := c.rdb.Get(ctx, cacheKey(address)).Result()
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, redis.Nil) {
		// cache fora: segue direto para o diretório
		return c.next.Username(ctx, address)
	}

	name, err := c.next.Username(ctx, address)
	if err != nil {
		return "", err
	}
	_ = c.rdb.Set(ctx, cacheKey(address), name, c.ttl).Err()
	return name, nil
}

func (c *Cached) Usernames(ctx context.Context, addresses []string) (map[string]string, error) {
	out := make(map[string]string, len(addresses))
	if len(addresses) == 0 {
		return out, nil
	}

	keys := make([]string, len(addresses))
	for i, a := range addresses {
		keys[i] = cacheKey(a)
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return c.next.Usernames(ctx, addresses)
	}

	var misses []string
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			misses = append(misses, addresses[i])
			continue
		}
		if s != "" {
			out[addresses[i]] = s
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	found, err := c.next.Usernames(ctx, misses)
	if err != nil {
		return nil, err
	}

	pipe := c.rdb.Pipeline()
	for _, a := range misses {
		name := found[a]
		if name != "" {
			out[a] = name
		}
		pipe.Set(ctx, cacheKey(a), name, c.ttl)
	}
	_, _ = pipe.Exec(ctx)
	return out, nil
}
