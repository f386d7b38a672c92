package users_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/ethbet-relay/internal/bet-relay/users"
)

func TestPostgres_UsernamesBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`WHERE lower\(address\) = ANY\(\$1\)`).
		WithArgs(pq.Array([]string{"0xabc", "0xdef"})).
		WillReturnRows(sqlmock.NewRows([]string{"address", "username"}).AddRow("0xabc", "alice"))

	got, err := users.NewPostgres(db).Usernames(context.Background(), []string{"0xABC", "0xdef", "0xabc"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"0xABC": "alice", "0xabc": "alice"}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UsernameMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT username FROM users WHERE lower\(address\)=\$1`).
		WithArgs("0xabc").
		WillReturnRows(sqlmock.NewRows([]string{"username"}))

	name, err := users.NewPostgres(db).Username(context.Background(), "0xABC")
	require.NoError(t, err)
	assert.Empty(t, name)
}

type countingDirectory struct {
	users.Static
	batches int
	singles int
}

func (c *countingDirectory) Username(ctx context.Context, a string) (string, error) {
	c.singles++
	return c.Static.Username(ctx, a)
}

func (c *countingDirectory) Usernames(ctx context.Context, as []string) (map[string]string, error) {
	c.batches++
	return c.Static.Usernames(ctx, as)
}

func newCached(t *testing.T) (*users.Cached, *countingDirectory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	inner := &countingDirectory{Static: users.Static{"0xaa": "alice", "0xbb": "bob"}}
	return users.NewCached(inner, rdb, 5*time.Minute), inner, mr
}

func TestCached_UsernamesHitsDirectoryOnce(t *testing.T) {
	c, inner, _ := newCached(t)
	ctx := context.Background()

	got, err := c.Usernames(ctx, []string{"0xAA", "0xcc"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"0xAA": "alice"}, got)

	got, err = c.Usernames(ctx, []string{"0xaa", "0xcc"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"0xaa": "alice"}, got)
	assert.Equal(t, 1, inner.batches, "second lookup served from cache, including the miss")
}

func TestCached_UsernameExpires(t *testing.T) {
	c, inner, mr := newCached(t)
	ctx := context.Background()

	name, err := c.Username(ctx, "0xbb")
	require.NoError(t, err)
	assert.Equal(t, "bob", name)
	_, _ = c.Username(ctx, "0xbb")
	assert.Equal(t, 1, inner.singles)

	mr.FastForward(6 * time.Minute)
	_, _ = c.Username(ctx, "0xbb")
	assert.Equal(t, 2, inner.singles)
}
