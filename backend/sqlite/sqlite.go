// Package sqlite stores serialized envelopes in a SQLite table. Expiry is an
// expires_at column checked on read and pruned by a background sweep.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/unkn0wn-root/stalecache/backend"
	"github.com/unkn0wn-root/stalecache/codec"
	"github.com/unkn0wn-root/stalecache/internal/wire"
)

const defaultSweep = time.Minute

type SQLite struct {
	db      *sql.DB
	codec   codec.Envelope
	closeDB bool

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

var (
	_ backend.Backend = (*SQLite)(nil)
	_ backend.Flusher = (*SQLite)(nil)
	_ backend.Closer  = (*SQLite)(nil)
)

type Config struct {
	// Path of the database file. Empty or ":memory:" selects an in-memory
	// database. Ignored when DB is set.
	Path string
	// DB reuses an open handle (driver "sqlite"); the backend will not close it.
	DB            *sql.DB
	Codec         codec.Envelope
	SweepInterval time.Duration // 0 => 1m; < 0 disables the sweep
}

func New(ctx context.Context, cfg Config) (*SQLite, error) {
	db, owned := cfg.DB, false
	if db == nil {
		path := cfg.Path
		if path == "" {
			path = ":memory:"
		}
		var err error
		db, err = sql.Open("sqlite", path)
		if err != nil {
			return nil, err
		}
		owned = true
		if path == ":memory:" {
			// every connection would otherwise get its own empty database
			db.SetMaxOpenConns(1)
		}
	}

	if err := migrate(ctx, db); err != nil {
		if owned {
			db.Close()
		}
		return nil, err
	}

	// ctx bounds setup only; the sweep lives until Close
	childCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &SQLite{
		db:      db,
		codec:   codec.OrDefault(cfg.Codec),
		closeDB: owned,
		ctx:     childCtx,
		cancel:  cancel,
	}

	sweep := cfg.SweepInterval
	if sweep == 0 {
		sweep = defaultSweep
	}
	if sweep > 0 {
		s.wg.Add(1)
		go s.run(sweep)
	}
	return s, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS stalecache (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL
	)`); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_stalecache_expires_at ON stalecache(expires_at)`)
	return err
}

func (s *SQLite) Get(ctx context.Context, key string) (*backend.Envelope, error) {
	var data []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM stalecache WHERE key = ?`, key,
	).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if wire.Expired(expiresAt, time.Now()) {
		// lazily delete expired entry
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stalecache WHERE key = ? AND expires_at = ?`, key, expiresAt)
		return nil, nil
	}
	env, err := s.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	return &env, nil
}

func (s *SQLite) Set(ctx context.Context, key string, env backend.Envelope, opts backend.SetOptions) error {
	data, err := s.codec.Encode(env)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO stalecache (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, data, wire.ExpireAt(time.Now(), opts.Expire),
	)
	return err
}

func (s *SQLite) Unset(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM stalecache WHERE key = ?`, key)
	return err
}

func (s *SQLite) Flush(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM stalecache`)
	return err
}

// Close stops the sweep and closes the database if this backend opened it.
func (s *SQLite) Close(context.Context) error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		if s.closeDB {
			s.closeErr = s.db.Close()
		}
	})
	return s.closeErr
}

func (s *SQLite) run(every time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			_, _ = s.db.ExecContext(s.ctx,
				`DELETE FROM stalecache WHERE expires_at > 0 AND expires_at <= ?`, now.UnixMilli())
		}
	}
}
