package stalecache

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	goredis "github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/stalecache/backend"
	"github.com/unkn0wn-root/stalecache/backend/bigcache"
	"github.com/unkn0wn-root/stalecache/backend/memcached"
	"github.com/unkn0wn-root/stalecache/backend/memory"
	"github.com/unkn0wn-root/stalecache/backend/redis"
	"github.com/unkn0wn-root/stalecache/backend/ristretto"
	"github.com/unkn0wn-root/stalecache/backend/sqlite"
	"github.com/unkn0wn-root/stalecache/codec"
)

// Built-in backend types.
const (
	BackendMemory    = "memory"
	BackendRedis     = "redis"
	BackendMemcached = "memcached"
	BackendRistretto = "ristretto"
	BackendBigCache  = "bigcache"
	BackendSQLite    = "sqlite"
)

const defaultRistrettoMaxCost = 100_000

// BackendConfig selects and configures a backend. Type picks the
// implementation; each type reads only the fields it understands.
//
// In YAML a bare string is accepted as the type: `backend: redis`.
type BackendConfig struct {
	Type string `yaml:"type"` // "" => memory

	// redis, memcached
	Hosts       []string `yaml:"hosts"`
	Password    string   `yaml:"password"`
	DB          int      `yaml:"db"`
	DialTimeout Duration `yaml:"dial_timeout"`

	// redis, memcached, bigcache, sqlite: "json" (default), "msgpack", "cbor", "protobuf"
	Codec string `yaml:"codec"`

	// sqlite
	Path string `yaml:"path"`

	// ristretto
	MaxCost     int64 `yaml:"max_cost"`
	NumCounters int64 `yaml:"num_counters"`

	// bigcache. LifeWindow caps how long any entry is kept, including
	// entries written without an expire; 0 means no cap.
	LifeWindow         Duration `yaml:"life_window"`
	MaxEntrySize       int      `yaml:"max_entry_size"`
	HardMaxCacheSizeMB int      `yaml:"hard_max_cache_size_mb"`

	// memory, sqlite
	SweepInterval Duration `yaml:"sweep_interval"`

	// Pre-built handles, reused instead of dialing. The backend does not
	// close them.
	RedisClient    goredis.UniversalClient `yaml:"-"`
	MemcacheClient *memcache.Client        `yaml:"-"`
	SQLDB          *sql.DB                 `yaml:"-"`
}

func (bc *BackendConfig) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		bc.Type = n.Value
		return nil
	}
	type plain BackendConfig
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	*bc = BackendConfig(p)
	return nil
}

// BackendFactory builds a backend from its configuration.
type BackendFactory func(ctx context.Context, cfg BackendConfig) (backend.Backend, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]BackendFactory{
		BackendMemory:    newMemory,
		BackendRedis:     newRedis,
		BackendMemcached: newMemcached,
		BackendRistretto: newRistretto,
		BackendBigCache:  newBigCache,
		BackendSQLite:    newSQLite,
	}
)

// RegisterBackendType makes a backend type available to NewBackend,
// replacing any factory registered under the same name.
func RegisterBackendType(name string, f BackendFactory) {
	if f == nil {
		panic("stalecache: RegisterBackendType with nil factory")
	}
	factoriesMu.Lock()
	factories[normType(name)] = f
	factoriesMu.Unlock()
}

// BackendTypes lists the registered backend types, sorted.
func BackendTypes() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	out := make([]string, 0, len(factories))
	for t := range factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// NewBackend builds the backend cfg.Type names. An unknown type or a
// backend that fails to start yields a *ConfigError.
func NewBackend(ctx context.Context, cfg BackendConfig) (backend.Backend, error) {
	t := normType(cfg.Type)
	factoriesMu.RLock()
	f, ok := factories[t]
	factoriesMu.RUnlock()
	if !ok {
		return nil, &ConfigError{Type: t}
	}

	b, err := f(ctx, cfg)
	if err != nil {
		var ce *ConfigError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, &ConfigError{Type: t, Err: err}
	}
	return b, nil
}

func normType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "" {
		return BackendMemory
	}
	return t
}

func newMemory(_ context.Context, cfg BackendConfig) (backend.Backend, error) {
	return memory.New(memory.Config{SweepInterval: time.Duration(cfg.SweepInterval)}), nil
}

func newRedis(_ context.Context, cfg BackendConfig) (backend.Backend, error) {
	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	if cfg.RedisClient != nil {
		return redis.New(redis.Config{Client: cfg.RedisClient, Codec: c})
	}
	return redis.Dial(cfg.Hosts, cfg.Password, cfg.DB, c)
}

func newMemcached(_ context.Context, cfg BackendConfig) (backend.Backend, error) {
	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	if cfg.MemcacheClient != nil {
		return memcached.New(memcached.Config{Client: cfg.MemcacheClient, Codec: c})
	}
	return memcached.Dial(cfg.Hosts, time.Duration(cfg.DialTimeout), c)
}

func newRistretto(_ context.Context, cfg BackendConfig) (backend.Backend, error) {
	return ristretto.New(ristretto.Config{
		MaxCost:     coalesce(cfg.MaxCost, defaultRistrettoMaxCost),
		NumCounters: cfg.NumCounters,
	})
}

func newBigCache(_ context.Context, cfg BackendConfig) (backend.Backend, error) {
	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	return bigcache.New(bigcache.Config{
		LifeWindow:         time.Duration(cfg.LifeWindow),
		MaxEntrySize:       cfg.MaxEntrySize,
		HardMaxCacheSizeMB: cfg.HardMaxCacheSizeMB,
		Codec:              c,
	})
}

func newSQLite(ctx context.Context, cfg BackendConfig) (backend.Backend, error) {
	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	return sqlite.New(ctx, sqlite.Config{
		Path:          cfg.Path,
		DB:            cfg.SQLDB,
		Codec:         c,
		SweepInterval: time.Duration(cfg.SweepInterval),
	})
}
