package httputil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ErrExpired is returned by [Cache.Get] when a cached entry exists but has
// exceeded its time-to-live. The data is still on disk; callers should
// recompute and refresh it with [Cache.Set]. Check with errors.Is.
var ErrExpired = errors.New("cache entry expired")

// Cache provides file-based caching of JSON-marshalable data.
//
// Each entry is one JSON file in the cache directory, named by the SHA-256
// hash of its key, so keys may contain any characters and any length.
// Entries expire based on file modification time; a TTL of 0 means entries
// never expire, which is the right setting for artifacts derived from
// immutable snapshots.
//
// A Cache is not goroutine-safe; callers synchronize access. Separate Cache
// values (even across processes) can share a directory safely.
//
// Use [Cache.Namespace] to scope keys per artifact kind:
//
//	graphs := cache.Namespace("graph:")
//	graphs.Set(snapshotID, g) // stored as "graph:<id>"
type Cache struct {
	dir    string
	ttl    time.Duration
	prefix string
}

// NewCache creates a Cache storing entries in dir with the given TTL.
// An empty dir selects the default ~/.cache/protovis/. The directory is
// created if missing; directory creation is the only failure mode.
func NewCache(dir string, ttl time.Duration) (*Cache, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".cache", "protovis")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir, ttl: ttl, prefix: ""}, nil
}

// Dir returns the absolute path to the cache directory.
func (c *Cache) Dir() string { return c.dir }

// TTL returns the time-to-live for cache entries. Zero means no expiry.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get retrieves a cached value by key and unmarshals it into v.
//
//   - (true, nil): hit; v holds the cached value.
//   - (false, nil): miss; v is unchanged.
//   - (false, ErrExpired): entry exists but exceeded its TTL.
//   - (false, other): I/O or unmarshal error.
func (c *Cache) Get(key string, v any) (bool, error) {
	path := c.keyPath(c.prefix + key)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if c.ttl > 0 && time.Since(info.ModTime()) > c.ttl {
		return false, ErrExpired
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, v)
}

// Set stores v in the cache under key, overwriting any existing entry and
// resetting its TTL.
func (c *Cache) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(c.keyPath(c.prefix+key), data, 0o644)
}

// Namespace returns a Cache view that prefixes every key with prefix.
// The view shares the parent's directory and TTL; calls can be chained.
func (c *Cache) Namespace(prefix string) *Cache {
	return &Cache{
		dir:    c.dir,
		ttl:    c.ttl,
		prefix: c.prefix + prefix,
	}
}

func (c *Cache) keyPath(key string) string {
	h := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(h[:]))
}
