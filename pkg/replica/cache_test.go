package replica

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestCache creates a cache connected to a miniredis instance
func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	cache, err := NewCache(&redis.Options{Addr: mr.Addr()}, "node-1")
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	return cache, mr
}

func TestNewCache(t *testing.T) {
	t.Run("creates cache successfully", func(t *testing.T) {
		cache, _ := setupTestCache(t)
		assert.Equal(t, "node-1", cache.PeerID())
	})

	t.Run("rejects empty peer id", func(t *testing.T) {
		_, err := NewCache(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "peer id cannot be empty")
	})
}

func TestCachePing(t *testing.T) {
	cache, _ := setupTestCache(t)
	assert.NoError(t, cache.Ping(context.Background()))
}

func TestCacheSetAndGet(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	t.Run("writes under namespaced key", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "abc", []byte("sealed")))

		raw, err := mr.Get("swarm:node-1:state:abc")
		require.NoError(t, err)
		assert.Equal(t, "sealed", raw)

		got, err := cache.Get(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, []byte("sealed"), got)
	})

	t.Run("latest write wins", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "dup", []byte("first")))
		require.NoError(t, cache.Set(ctx, "dup", []byte("second")))

		got, err := cache.Get(ctx, "dup")
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), got)
	})

	t.Run("missing key is not found", func(t *testing.T) {
		_, err := cache.Get(ctx, "missing")
		assert.True(t, IsNotFound(err))
	})

	t.Run("rejects empty id", func(t *testing.T) {
		assert.Error(t, cache.Set(ctx, "", []byte("x")))
	})
}

func TestCacheSetFailsWhenRedisDown(t *testing.T) {
	cache, mr := setupTestCache(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := cache.Set(ctx, "abc", []byte("sealed"))
	assert.Error(t, err)
}

func TestPushInbox(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	rec := NewStateRecord([]byte("payload"), time.Now())
	peers := []string{"peer-a", "peer-b", "peer-c"}

	delivered, err := cache.PushInbox(ctx, peers, rec)
	require.NoError(t, err)
	assert.Equal(t, 3, delivered)

	inbox, err := cache.Inbox(ctx, "peer-b")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, rec.ID, inbox[0].ID)
	assert.Equal(t, rec.Payload, inbox[0].Payload)
}

func TestPushInboxTrimsToLimit(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	for i := 0; i < InboxLimit+10; i++ {
		rec := NewStateRecord([]byte(fmt.Sprintf("payload-%d", i)), time.Now())
		_, err := cache.PushInbox(ctx, []string{"peer-a"}, rec)
		require.NoError(t, err)
	}

	inbox, err := cache.Inbox(ctx, "peer-a")
	require.NoError(t, err)
	assert.Len(t, inbox, InboxLimit)
	assert.Equal(t, ContentID([]byte(fmt.Sprintf("payload-%d", InboxLimit+9))), inbox[0].ID)
}

func TestPushInboxNoPeers(t *testing.T) {
	cache, _ := setupTestCache(t)

	delivered, err := cache.PushInbox(context.Background(), nil, NewStateRecord([]byte("x"), time.Now()))
	assert.NoError(t, err)
	assert.Zero(t, delivered)
}
