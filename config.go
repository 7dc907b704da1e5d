package stalecache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration read from YAML either as a bare number of
// seconds (`expire: 300`) or a duration string (`expire: 5m`, `expire: 1d12h`).
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", n.Line)
	}
	switch n.ShortTag() {
	case "!!int":
		secs, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	case "!!float":
		secs, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	case "!!null":
		*d = 0
		return nil
	}
	v, err := str2duration.ParseDuration(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", n.Line, n.Value, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return str2duration.String(time.Duration(d)), nil
}

// Config describes a set of named caches.
//
//	caches:
//	  users:
//	    backend:
//	      type: redis
//	      hosts: ["127.0.0.1:6379"]
//	      codec: msgpack
//	    fresh_for: 30s
//	    expire: 1h
//	  sessions:
//	    backend: memory
//	    fresh_for: 60
type Config struct {
	Caches map[string]CacheConfig `yaml:"caches"`
}

type CacheConfig struct {
	Backend  BackendConfig `yaml:"backend"`
	FreshFor Duration      `yaml:"fresh_for"`
	Expire   Duration      `yaml:"expire"`
	Timeout  Duration      `yaml:"timeout"`
}

func (cc CacheConfig) Defaults() Defaults {
	return Defaults{
		FreshFor: cc.FreshFor.Std(),
		Expire:   cc.Expire.Std(),
		Timeout:  cc.Timeout.Std(),
	}
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseConfig(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes YAML config. Unknown keys are rejected.
func ParseConfig(b []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &cfg, nil
}
