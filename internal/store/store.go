package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dyluth/swarm/pkg/replica"
)

// ErrClosed is returned by Persist once Close has begun.
var ErrClosed = errors.New("store closed")

// DefaultMirrorTimeout bounds a single remote mirror write.
const DefaultMirrorTimeout = 2 * time.Second

// Mirror is a remote copy of the local store. *replica.Cache satisfies it.
type Mirror interface {
	Set(ctx context.Context, id string, payload []byte) error
}

// Store is a node's replica store: in-memory shards, the durable local
// SQLite table, and an optional remote mirror.
type Store struct {
	shards        *Shards
	local         *LocalStore
	mirror        Mirror
	mirrorTimeout time.Duration

	bandwidth atomic.Uint64

	// closeMu is held for reading across a Persist so Close never waits on
	// inflight while a mirror write is still being scheduled.
	closeMu  sync.RWMutex
	closed   bool
	inflight sync.WaitGroup
}

// New composes a Store. mirror may be nil.
func New(shards *Shards, local *LocalStore, mirror Mirror, mirrorTimeout time.Duration) *Store {
	if mirrorTimeout <= 0 {
		mirrorTimeout = DefaultMirrorTimeout
	}
	return &Store{
		shards:        shards,
		local:         local,
		mirror:        mirror,
		mirrorTimeout: mirrorTimeout,
	}
}

// Shards returns the in-memory shard array.
func (s *Store) Shards() *Shards {
	return s.shards
}

// Local returns the durable local store.
func (s *Store) Local() *LocalStore {
	return s.local
}

// Shard places payload in the bucket id routes to.
// Returns false when the bucket is full and the payload was dropped.
func (s *Store) Shard(id string, payload []byte) bool {
	if !s.shards.Insert(id, payload) {
		return false
	}
	s.bandwidth.Add(uint64(len(payload)))
	return true
}

// Persist writes rec to the local table and, when a mirror is configured,
// schedules an asynchronous remote copy.
//
// A local failure is returned, and ErrClosed once Close has begun. The
// mirror write is detached from ctx's cancellation and only logged on failure.
func (s *Store) Persist(ctx context.Context, rec replica.StateRecord) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.local.Put(ctx, rec); err != nil {
		return fmt.Errorf("failed to persist state locally: %w", err)
	}
	s.bandwidth.Add(uint64(len(rec.Payload)))

	if s.mirror == nil {
		return nil
	}

	mirrorCtx := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		c, cancel := context.WithTimeout(mirrorCtx, s.mirrorTimeout)
		defer cancel()

		if err := s.mirror.Set(c, rec.ID, rec.Payload); err != nil {
			log.Printf("[Store] Remote mirror failed for state %s: %v", shortID(rec.ID), err)
			return
		}
		s.bandwidth.Add(uint64(len(rec.Payload)))
	}()
	return nil
}

// Load returns the local copy of id, or ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (replica.StateRecord, error) {
	return s.local.Get(ctx, id)
}

// Prune enforces the retention bound on the local table.
func (s *Store) Prune(ctx context.Context, max int) (int64, error) {
	return s.local.Prune(ctx, max)
}

// BandwidthUsed returns the bytes written across shards, local and mirror.
func (s *Store) BandwidthUsed() uint64 {
	return s.bandwidth.Load()
}

// Wait blocks until in-flight mirror writes finish.
func (s *Store) Wait() {
	s.inflight.Wait()
}

// Close stops accepting writes, waits for in-flight mirror writes and closes
// the local store. Calls after the first are no-ops.
func (s *Store) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	s.closeMu.Unlock()

	s.inflight.Wait()
	return s.local.Close()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
