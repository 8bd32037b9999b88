package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/swarm/pkg/replica"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingMirror struct {
	calls int
}

func (f *failingMirror) Set(ctx context.Context, id string, payload []byte) error {
	f.calls++
	return errors.New("mirror unavailable")
}

func newTestStore(t *testing.T, mirror Mirror) *Store {
	t.Helper()
	local := openTestLocal(t)
	return New(NewShards(DefaultBuckets), local, mirror, time.Second)
}

func TestStorePersistMirrorsToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cache, err := replica.NewCache(&redis.Options{Addr: mr.Addr()}, "node-1")
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	s := newTestStore(t, cache)
	rec := replica.NewStateRecord([]byte("sealed-bytes"), time.Now())

	require.NoError(t, s.Persist(context.Background(), rec))
	s.Wait()

	val, err := mr.Get(replica.StateKey("node-1", rec.ID))
	require.NoError(t, err)
	assert.Equal(t, "sealed-bytes", val)

	got, err := s.Load(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Payload, got.Payload)

	assert.Equal(t, uint64(2*len(rec.Payload)), s.BandwidthUsed(), "local and mirror both counted")
}

func TestStoreMirrorFailureIsNonFatal(t *testing.T) {
	mirror := &failingMirror{}
	s := newTestStore(t, mirror)
	rec := replica.NewStateRecord([]byte("payload"), time.Now())

	require.NoError(t, s.Persist(context.Background(), rec))
	s.Wait()

	assert.Equal(t, 1, mirror.calls)
	_, err := s.Load(context.Background(), rec.ID)
	assert.NoError(t, err, "local copy survives a mirror failure")
	assert.Equal(t, uint64(len(rec.Payload)), s.BandwidthUsed())
}

func TestStoreMirrorDetachedFromCallerCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	cache, err := replica.NewCache(&redis.Options{Addr: mr.Addr()}, "node-1")
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	s := newTestStore(t, cache)
	rec := replica.NewStateRecord([]byte("detached"), time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Persist(ctx, rec))
	cancel()
	s.Wait()

	assert.True(t, mr.Exists(replica.StateKey("node-1", rec.ID)))
}

func TestStorePersistCancelledWritesNothing(t *testing.T) {
	mirror := &failingMirror{}
	s := newTestStore(t, mirror)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Persist(ctx, replica.NewStateRecord([]byte("x"), time.Now()))
	assert.ErrorIs(t, err, context.Canceled)
	s.Wait()

	assert.Zero(t, mirror.calls)
	n, err := s.Local().Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, s.BandwidthUsed())
}

func TestStoreShardCountsBandwidth(t *testing.T) {
	s := newTestStore(t, nil)

	assert.True(t, s.Shard("a", []byte("1234")))
	assert.Equal(t, uint64(4), s.BandwidthUsed())
	assert.Equal(t, 1, s.Shards().Len())
}

type slowMirror struct {
	mu    sync.Mutex
	calls int
}

func (m *slowMirror) Set(ctx context.Context, id string, payload []byte) error {
	time.Sleep(5 * time.Millisecond)
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return nil
}

func TestStorePersistAfterClose(t *testing.T) {
	s := newTestStore(t, nil)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second close is a no-op")

	err := s.Persist(context.Background(), replica.NewStateRecord([]byte("late"), time.Now()))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStoreCloseDuringPersist(t *testing.T) {
	mirror := &slowMirror{}
	s := newTestStore(t, mirror)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		persisted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := replica.NewStateRecord([]byte{byte(i), 'x'}, time.Now())
			err := s.Persist(context.Background(), rec)
			if err == nil {
				mu.Lock()
				persisted++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrClosed)
		}(i)
	}
	require.NoError(t, s.Close())
	wg.Wait()

	mirror.mu.Lock()
	defer mirror.mu.Unlock()
	assert.Equal(t, persisted, mirror.calls, "every accepted write was mirrored before close returned")
}
