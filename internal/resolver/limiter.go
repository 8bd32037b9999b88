package resolver

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

const (
	// NodesPerSlot is how many active nodes earn one extra admission slot above the floor.
	NodesPerSlot = 1000

	// MaxSlots caps the limiter size.
	MaxSlots = 1 << 20
)

// Limiter bounds concurrently admitted queries.
//
// Its size is max(floor, activeNodes/NodesPerSlot). All admissions go through
// one semaphore of MaxSlots capacity; the limiter itself holds the slots it
// is not currently offering. Growing releases part of that reserve. Shrinking
// takes it back, waiting in the background for in-flight queries to release
// when needed, and no new query is admitted while that wait is pending.
type Limiter struct {
	floor int64
	sem   *semaphore.Weighted

	mu        sync.Mutex
	size      int64
	reserved  int64
	shrinking bool
	cancel    context.CancelFunc
}

// NewLimiter creates a limiter with floor slots. A non-positive floor means 1.
func NewLimiter(floor int) *Limiter {
	f := min(max(int64(floor), 1), MaxSlots)
	l := &Limiter{
		floor:    f,
		sem:      semaphore.NewWeighted(MaxSlots),
		size:     f,
		reserved: MaxSlots - f,
	}
	// Nothing is held yet, so the reserve is free to take.
	l.sem.TryAcquire(l.reserved)
	return l
}

// Acquire blocks until a slot is free or ctx is done.
// On success the returned func must be called exactly once to free the slot.
// A cancelled wait acquires nothing.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { l.sem.Release(1) }) }, nil
}

// Resize recomputes the size from the active node count.
func (l *Limiter) Resize(activeNodes uint64) {
	size := l.floor
	if n := activeNodes / NodesPerSlot; n > uint64(size) {
		size = int64(min(n, MaxSlots))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if size == l.size {
		return
	}
	l.size = size
	if l.shrinking && l.reserved >= MaxSlots-size {
		// Grown back before the pending shrink landed.
		l.cancel()
	}
	l.rebalance()
}

// rebalance moves the reserve toward MaxSlots-size. l.mu must be held.
func (l *Limiter) rebalance() {
	want := MaxSlots - l.size
	if l.reserved > want {
		l.sem.Release(l.reserved - want)
		l.reserved = want
		return
	}
	if l.reserved == want || l.shrinking {
		return
	}

	diff := want - l.reserved
	if l.sem.TryAcquire(diff) {
		l.reserved = want
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.shrinking = true
	l.cancel = cancel
	go func() {
		err := l.sem.Acquire(ctx, diff)
		cancel()

		l.mu.Lock()
		defer l.mu.Unlock()
		l.shrinking = false
		l.cancel = nil
		if err == nil {
			l.reserved += diff
		}
		l.rebalance()
	}()
}

// Size returns the current slot count.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int(l.size)
}
