// Package peers maintains the pools of peer identifiers a node gossips to.
//
// A Registry holds two disjoint pools: local peers (nodes registered in this
// process) and a synthetic global pool standing in for the wider swarm. A
// single Registry is created at startup and injected into every node that
// should see the same peers.
package peers

import (
	"fmt"
	"sync"
)

const (
	// LocalCap bounds how many local peers a single sample may contain
	LocalCap = 500

	// GlobalCap bounds how many global peers a single sample may contain
	GlobalCap = 500
)

// Registry is the process-wide peer registry.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	local  []string
	index  map[string]int // local id -> position in local
	global []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// RegisterLocal adds id to the local pool. Registering an id twice is a no-op.
func (r *Registry) RegisterLocal(id string) error {
	if id == "" {
		return fmt.Errorf("peer id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[id]; exists {
		return nil
	}
	r.index[id] = len(r.local)
	r.local = append(r.local, id)
	return nil
}

// UnregisterLocal removes id from the local pool, preserving registration order
// of the remaining peers.
func (r *Registry) UnregisterLocal(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, exists := r.index[id]
	if !exists {
		return
	}

	r.local = append(r.local[:pos], r.local[pos+1:]...)
	delete(r.index, id)
	for i := pos; i < len(r.local); i++ {
		r.index[r.local[i]] = i
	}
}

// ConnectGlobal populates the global pool with n synthetic peers named
// global_<i>. It only acts when the pool is empty.
func (r *Registry) ConnectGlobal(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.global) > 0 || n <= 0 {
		return
	}
	r.global = make([]string, n)
	for i := range r.global {
		r.global[i] = fmt.Sprintf("global_%d", i)
	}
}

// Sample returns up to min(activeNodes/2, LocalCap) local peers, never
// including selfID, followed by up to min(activeNodes/2, GlobalCap) global
// peers. The result is deterministic for the same pools and counts.
func (r *Registry) Sample(selfID string, activeNodes uint64) []string {
	half := activeNodes / 2
	localCount := int(min(half, LocalCap))
	globalCount := int(min(half, GlobalCap))

	r.mu.RLock()
	defer r.mu.RUnlock()

	sample := make([]string, 0, min(localCount, len(r.local))+min(globalCount, len(r.global)))
	for _, id := range r.local {
		if len(sample) >= localCount {
			break
		}
		if id == selfID {
			continue
		}
		sample = append(sample, id)
	}

	sample = append(sample, r.global[:min(globalCount, len(r.global))]...)
	return sample
}

// Size reports the number of local and global peers known.
func (r *Registry) Size() (local, global int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.local), len(r.global)
}

// Known reports how many peers other than selfID are in either pool.
func (r *Registry) Known(selfID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.local) + len(r.global)
	if _, ok := r.index[selfID]; ok {
		n--
	}
	return n
}

// Close tears the registry down, emptying both pools.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.local = nil
	r.global = nil
	r.index = make(map[string]int)
	return nil
}
