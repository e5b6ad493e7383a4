// Package config loads protovis configuration from TOML files and supplies
// defaults for everything left unset.
package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tbenr/protovis/pkg/history"
	"github.com/tbenr/protovis/pkg/poller"
	"github.com/tbenr/protovis/pkg/source"
)

// Duration is a time.Duration that decodes from TOML strings like "12s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Config is the full protovis configuration.
type Config struct {
	// Endpoint is the beacon node's base URL or the full URL of its
	// fork-choice dump endpoint.
	Endpoint string `toml:"endpoint"`

	// Format names the client emitting the dump: teku, lighthouse, or prysm.
	Format string `toml:"format"`

	// Interval is the polling cadence.
	Interval Duration `toml:"interval"`

	// HistoryLimit bounds the number of retained snapshots.
	HistoryLimit int `toml:"history_limit"`

	// Placeholders enables synthetic nodes for skipped slots.
	Placeholders bool `toml:"placeholders"`

	// Listen is the HTTP API bind address.
	Listen string `toml:"listen"`

	Store StoreConfig `toml:"store"`
	Cache CacheConfig `toml:"cache"`
}

// StoreConfig selects and configures the snapshot store backend.
type StoreConfig struct {
	// Backend is one of: memory, file, redis, leveldb, mongo.
	Backend string `toml:"backend"`

	// Dir is the data directory for the file and leveldb backends.
	Dir string `toml:"dir"`

	// Addr and Key configure the redis backend.
	Addr string `toml:"addr"`
	Key  string `toml:"key"`

	// URI, Database, and Collection configure the mongo backend.
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// CacheConfig configures the derived-artifact cache.
type CacheConfig struct {
	// Dir is the cache directory; empty selects ~/.cache/protovis/.
	Dir string `toml:"dir"`

	// TTL expires cache entries; zero keeps them forever.
	TTL Duration `toml:"ttl"`
}

// Default returns the configuration used when no file is given: a Teku node
// on localhost, slot-cadence polling, in-memory history.
func Default() Config {
	return Config{
		Endpoint:     "http://localhost:5051",
		Format:       string(source.FormatTeku),
		Interval:     Duration(poller.DefaultInterval),
		HistoryLimit: history.DefaultLimit,
		Placeholders: true,
		Listen:       ":8080",
		Store:        StoreConfig{Backend: "memory"},
	}
}

// Load reads the TOML file at path over the defaults. Unknown keys are
// rejected so typos fail loudly instead of silently using defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if _, err := source.ParseFormat(c.Format); err != nil {
		return err
	}
	switch c.Store.Backend {
	case "", "memory", "file", "redis", "leveldb", "mongo":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}

// SourceFormat returns the parsed client format.
func (c Config) SourceFormat() (source.Format, error) {
	return source.ParseFormat(c.Format)
}

// EndpointURL resolves the endpoint to a full dump URL. A bare base URL
// (no path) gets the format's default debug path appended.
func (c Config) EndpointURL() (string, error) {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return "", fmt.Errorf("endpoint: %w", err)
	}
	if u.Path == "" || u.Path == "/" {
		f, err := c.SourceFormat()
		if err != nil {
			return "", err
		}
		u.Path = poller.DefaultPath(f)
	}
	return u.String(), nil
}

// OpenStore opens the configured snapshot store backend.
func (c Config) OpenStore(ctx context.Context) (history.Store, error) {
	s := c.Store
	switch s.Backend {
	case "", "memory":
		return history.NewMemoryStore(c.HistoryLimit), nil
	case "file":
		if s.Dir == "" {
			return nil, fmt.Errorf("file store: dir is required")
		}
		return history.NewFileStore(s.Dir, c.HistoryLimit)
	case "leveldb":
		if s.Dir == "" {
			return nil, fmt.Errorf("leveldb store: dir is required")
		}
		return history.NewLevelDBStore(s.Dir, c.HistoryLimit)
	case "redis":
		if s.Addr == "" {
			return nil, fmt.Errorf("redis store: addr is required")
		}
		return history.NewRedisStore(ctx, s.Addr, s.Key, c.HistoryLimit)
	case "mongo":
		if s.URI == "" {
			return nil, fmt.Errorf("mongo store: uri is required")
		}
		return history.NewMongoStore(ctx, s.URI, s.Database, s.Collection, c.HistoryLimit)
	default:
		return nil, fmt.Errorf("unknown store backend %q", s.Backend)
	}
}
