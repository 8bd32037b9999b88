package entropy

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of samples a node keeps.
const DefaultCapacity = 1000

// Sample is one per-cycle snapshot of the node's state vector.
type Sample struct {
	Primary     float64   `json:"primary"`
	Secondary   float64   `json:"secondary"`
	Tertiary    float64   `json:"tertiary"`
	ActiveNodes float64   `json:"active_nodes"`
	Seq         uint64    `json:"seq"`         // monotonic append sequence, starts at 1
	RecordedAt  time.Time `json:"recorded_at"` // when the sample was appended
}

// History is a fixed-capacity FIFO ring of samples.
// One writer appends; any number of readers take snapshots. Readers copy
// under a read lock and never hold it while they work on the copy.
type History struct {
	mu    sync.RWMutex
	buf   []Sample
	start int // index of the oldest sample
	size  int
	seq   uint64
}

// NewHistory creates a ring holding at most capacity samples.
// A non-positive capacity falls back to DefaultCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{buf: make([]Sample, capacity)}
}

// Append adds s as the newest sample, evicting the oldest when full.
// Seq is assigned by the ring; RecordedAt defaults to now.
func (h *History) Append(s Sample) Sample {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	s.Seq = h.seq
	if s.RecordedAt.IsZero() {
		s.RecordedAt = time.Now()
	}

	capacity := len(h.buf)
	if h.size < capacity {
		h.buf[(h.start+h.size)%capacity] = s
		h.size++
		return s
	}

	h.buf[h.start] = s
	h.start = (h.start + 1) % capacity
	return s
}

// Len returns the number of samples held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Cap returns the ring capacity.
func (h *History) Cap() int {
	return len(h.buf)
}

// Last returns the newest sample, or false when empty.
func (h *History) Last() (Sample, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.size == 0 {
		return Sample{}, false
	}
	return h.buf[(h.start+h.size-1)%len(h.buf)], true
}

// Snapshot returns a copy of the samples, oldest first.
func (h *History) Snapshot() []Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Sample, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}
