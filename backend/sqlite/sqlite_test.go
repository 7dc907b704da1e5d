package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/stalecache/backend"
	"github.com/unkn0wn-root/stalecache/codec"
)

func newTestSQLite(t *testing.T, cfg Config) *SQLite {
	t.Helper()
	s, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func countRows(t *testing.T, s *SQLite) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM stalecache`).Scan(&n))
	return n
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t, Config{})

	env, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, env)

	require.NoError(t, s.Set(ctx, "k", backend.Envelope{FreshUntil: 7, Data: map[string]any{"a": "b"}}, backend.SetOptions{}))
	env, err = s.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, int64(7), env.FreshUntil)
	assert.Equal(t, map[string]any{"a": "b"}, env.Data)

	// overwrite keeps one row
	require.NoError(t, s.Set(ctx, "k", backend.Envelope{Data: "new"}, backend.SetOptions{}))
	assert.Equal(t, 1, countRows(t, s))
}

func TestSQLiteExpiryOnRead(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t, Config{SweepInterval: -1, Codec: codec.MustCBOR[backend.Envelope](false)})

	require.NoError(t, s.Set(ctx, "short", backend.Envelope{Data: "x"}, backend.SetOptions{Expire: 30 * time.Millisecond}))
	require.NoError(t, s.Set(ctx, "forever", backend.Envelope{Data: "y"}, backend.SetOptions{}))

	time.Sleep(60 * time.Millisecond)

	env, err := s.Get(ctx, "short")
	require.NoError(t, err)
	assert.Nil(t, env)
	assert.Equal(t, 1, countRows(t, s), "expired row should be deleted on read")

	env, err = s.Get(ctx, "forever")
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, "y", env.Data)
}

func TestSQLiteSweep(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t, Config{SweepInterval: 10 * time.Millisecond})

	require.NoError(t, s.Set(ctx, "a", backend.Envelope{Data: 1.0}, backend.SetOptions{Expire: 5 * time.Millisecond}))
	assert.Eventually(t, func() bool {
		var n int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM stalecache`).Scan(&n)
		return err == nil && n == 0
	}, time.Second, 10*time.Millisecond)
}

func TestSQLiteUnsetFlush(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t, Config{Path: filepath.Join(t.TempDir(), "cache.db")})

	require.NoError(t, s.Unset(ctx, "missing"))
	require.NoError(t, s.Set(ctx, "a", backend.Envelope{Data: 1.0}, backend.SetOptions{}))
	require.NoError(t, s.Set(ctx, "b", backend.Envelope{Data: 2.0}, backend.SetOptions{}))
	require.NoError(t, s.Unset(ctx, "a"))
	assert.Equal(t, 1, countRows(t, s))
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 0, countRows(t, s))
}

func TestSQLiteBorrowedHandleStaysOpen(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "shared.db"))
	require.NoError(t, err)
	defer db.Close()

	s, err := New(ctx, Config{DB: db})
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))
	assert.NoError(t, db.PingContext(ctx))
}
