package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dyluth/swarm/pkg/replica"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLocal(t *testing.T) *LocalStore {
	t.Helper()
	local, err := OpenLocal(t.TempDir(), "node-1")
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })
	return local
}

func TestOpenLocal(t *testing.T) {
	t.Run("creates per-peer database file", func(t *testing.T) {
		dir := t.TempDir()
		local, err := OpenLocal(dir, "node-7")
		require.NoError(t, err)
		defer local.Close()

		assert.Equal(t, LocalPath(dir, "node-7"), local.Path())
		_, err = os.Stat(local.Path())
		assert.NoError(t, err)
		assert.NoError(t, local.Ping(context.Background()))
	})

	t.Run("reopening reapplies nothing", func(t *testing.T) {
		dir := t.TempDir()
		first, err := OpenLocal(dir, "node-1")
		require.NoError(t, err)
		require.NoError(t, first.Put(context.Background(), replica.NewStateRecord([]byte("x"), time.Now())))
		require.NoError(t, first.Close())

		second, err := OpenLocal(dir, "node-1")
		require.NoError(t, err)
		defer second.Close()

		n, err := second.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("rejects missing arguments", func(t *testing.T) {
		_, err := OpenLocal("", "node-1")
		assert.Error(t, err)
		_, err = OpenLocal(t.TempDir(), " ")
		assert.Error(t, err)
	})
}

func TestLocalPutGet(t *testing.T) {
	local := openTestLocal(t)
	ctx := context.Background()

	rec := replica.NewStateRecord([]byte("payload-1"), time.Now())
	require.NoError(t, local.Put(ctx, rec))

	got, err := local.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Payload, got.Payload)
	assert.Equal(t, rec.CreatedAt.UnixMilli(), got.CreatedAt.UnixMilli())

	t.Run("missing id", func(t *testing.T) {
		_, err := local.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("invalid record is rejected", func(t *testing.T) {
		err := local.Put(ctx, replica.StateRecord{ID: "x"})
		assert.Error(t, err)
	})
}

func TestLocalUpsertLatestWins(t *testing.T) {
	local := openTestLocal(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, local.Put(ctx, replica.StateRecord{ID: "same", Payload: []byte("v1"), CreatedAt: now}))
	require.NoError(t, local.Put(ctx, replica.StateRecord{ID: "same", Payload: []byte("v2"), CreatedAt: now.Add(time.Second)}))

	got, err := local.Get(ctx, "same")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got.Payload))

	n, err := local.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLocalListAndPrune(t *testing.T) {
	local := openTestLocal(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		payload := []byte{byte('a' + i)}
		require.NoError(t, local.Put(ctx, replica.NewStateRecord(payload, base.Add(time.Duration(i)*time.Minute))))
	}

	records, err := local.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "e", string(records[0].Payload), "newest first")
	assert.Equal(t, "d", string(records[1].Payload))

	deleted, err := local.Prune(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	all, err := local.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", string(all[2].Payload), "oldest entries pruned")

	deleted, err = local.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestLocalPutCancelled(t *testing.T) {
	local := openTestLocal(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := local.Put(ctx, replica.NewStateRecord([]byte("x"), time.Now()))
	assert.ErrorIs(t, err, context.Canceled)

	n, err := local.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpSection(t *testing.T) {
	sql := "-- +migrate Up\nCREATE TABLE a (x INT);\n-- +migrate Down\nDROP TABLE a;\n"
	assert.Equal(t, "\nCREATE TABLE a (x INT);\n", upSection(sql))
	assert.Equal(t, "SELECT 1;", upSection("SELECT 1;"))
}
