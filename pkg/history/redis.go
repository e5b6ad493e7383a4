package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the history in a redis list, newest first. LPUSH plus
// LTRIM gives the bounded-FIFO contract directly, and multiple protovis
// instances can share one history.
type RedisStore struct {
	client *redis.Client
	key    string
	limit  int
}

// NewRedisStore connects to redis at addr and stores snapshots under key.
// An empty key defaults to "protovis:history".
func NewRedisStore(ctx context.Context, addr, key string, limit int) (*RedisStore, error) {
	if key == "" {
		key = "protovis:history"
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisStore{client: client, key: key, limit: limit}, nil
}

// Append pushes the snapshot and trims the list to the limit.
func (r *RedisStore) Append(ctx context.Context, s Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key, data)
	pipe.LTrim(ctx, r.key, 0, int64(r.limit-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append: %w", err)
	}
	return nil
}

// List returns the retained snapshots, oldest first.
func (r *RedisStore) List(ctx context.Context) ([]Snapshot, error) {
	items, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}

	// The list is newest-first; reverse while decoding.
	snaps := make([]Snapshot, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		var s Snapshot
		if err := json.Unmarshal([]byte(items[i]), &s); err != nil {
			continue
		}
		snaps = append(snaps, s)
	}
	return snaps, nil
}

// Close closes the redis connection.
func (r *RedisStore) Close() error { return r.client.Close() }

// Ensure RedisStore implements Store.
var _ Store = (*RedisStore)(nil)
