package replica

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Cache provides peer-scoped Redis operations for replicated state.
// All keys are namespaced with the owning peer id.
// The cache is safe for concurrent use from multiple goroutines.
type Cache struct {
	rdb    *redis.Client
	peerID string
}

// NewCache creates a cache client for the given peer.
// Returns an error if peerID is empty.
func NewCache(redisOpts *redis.Options, peerID string) (*Cache, error) {
	if peerID == "" {
		return nil, fmt.Errorf("peer id cannot be empty")
	}

	return &Cache{
		rdb:    redis.NewClient(redisOpts),
		peerID: peerID,
	}, nil
}

// PeerID returns the peer this cache namespaces keys for.
func (c *Cache) PeerID() string {
	return c.peerID
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Used by health checks.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Set mirrors a payload under the state key for id.
// Latest write for an id wins.
func (c *Cache) Set(ctx context.Context, id string, payload []byte) error {
	if id == "" {
		return fmt.Errorf("state id cannot be empty")
	}
	if err := c.rdb.Set(ctx, StateKey(c.peerID, id), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to write state to Redis: %w", err)
	}
	return nil
}

// Get returns the mirrored payload for id.
// Returns (nil, redis.Nil) if the state was never mirrored; use IsNotFound.
func (c *Cache) Get(ctx context.Context, id string) ([]byte, error) {
	payload, err := c.rdb.Get(ctx, StateKey(c.peerID, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redis.Nil
		}
		return nil, fmt.Errorf("failed to read state from Redis: %w", err)
	}
	return payload, nil
}

// PushInbox delivers rec to the inbox of every peer in a single pipeline.
// Each inbox is trimmed to InboxLimit entries, newest first.
// Returns the number of peers whose push was acknowledged. A pipeline error
// is returned alongside the partial count.
func (c *Cache) PushInbox(ctx context.Context, peers []string, rec StateRecord) (int, error) {
	if len(peers) == 0 {
		return 0, nil
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal state record: %w", err)
	}

	pipe := c.rdb.Pipeline()
	pushes := make([]*redis.IntCmd, 0, len(peers))
	for _, peer := range peers {
		key := InboxKey(peer)
		pushes = append(pushes, pipe.LPush(ctx, key, data))
		pipe.LTrim(ctx, key, 0, InboxLimit-1)
	}

	_, execErr := pipe.Exec(ctx)

	delivered := 0
	for _, cmd := range pushes {
		if cmd.Err() == nil {
			delivered++
		}
	}

	if execErr != nil {
		return delivered, fmt.Errorf("inbox pipeline failed: %w", execErr)
	}
	return delivered, nil
}

// Inbox returns the records gossiped to peer, newest first.
// Entries that fail to decode are skipped.
func (c *Cache) Inbox(ctx context.Context, peer string) ([]StateRecord, error) {
	raw, err := c.rdb.LRange(ctx, InboxKey(peer), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}

	records := make([]StateRecord, 0, len(raw))
	for _, entry := range raw {
		var rec StateRecord
		if err := json.Unmarshal([]byte(entry), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// IsNotFound reports whether err means the requested key does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
