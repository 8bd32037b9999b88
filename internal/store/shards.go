package store

import (
	"crypto/sha256"
	"encoding/binary"
	"sync"
)

const (
	// DefaultBuckets is the number of shard buckets a node routes across
	DefaultBuckets = 160

	// BucketCapacity bounds every bucket
	BucketCapacity = 50
)

// Shards is a fixed array of bounded buckets addressed by content hash.
//
// A full bucket keeps what it already holds and drops the incoming entry.
// This is the intended policy: the oldest replicas stay put, the newest are
// shed. It is not LRU.
type Shards struct {
	mu       sync.RWMutex
	buckets  [][][]byte
	capacity int
}

// NewShards creates n buckets of BucketCapacity entries each.
func NewShards(n int) *Shards {
	if n <= 0 {
		n = DefaultBuckets
	}
	return &Shards{
		buckets:  make([][][]byte, n),
		capacity: BucketCapacity,
	}
}

// BucketFor returns the bucket index id routes to:
// big-endian uint64 of the first 8 bytes of sha256(id), mod bucket count.
func (s *Shards) BucketFor(id string) int {
	sum := sha256.Sum256([]byte(id))
	return int(binary.BigEndian.Uint64(sum[:8]) % uint64(len(s.buckets)))
}

// Insert appends payload to the bucket id routes to.
// Returns false, without modifying the bucket, when it is already full.
func (s *Shards) Insert(id string, payload []byte) bool {
	idx := s.BucketFor(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buckets[idx]) >= s.capacity {
		return false
	}
	s.buckets[idx] = append(s.buckets[idx], payload)
	return true
}

// Bucket returns a copy of bucket i's entries, oldest first.
func (s *Shards) Bucket(i int) [][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i < 0 || i >= len(s.buckets) {
		return nil
	}
	out := make([][]byte, len(s.buckets[i]))
	copy(out, s.buckets[i])
	return out
}

// Count returns the number of buckets.
func (s *Shards) Count() int {
	return len(s.buckets)
}

// Len returns the total number of entries across all buckets.
func (s *Shards) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, b := range s.buckets {
		total += len(b)
	}
	return total
}
