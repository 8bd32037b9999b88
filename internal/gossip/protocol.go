// Package gossip decides whether a state record reached enough peers.
//
// The Protocol owns the replication arithmetic; a Transport performs the
// per-peer delivery attempts. SimulatedTransport models peer unavailability
// in-process, RedisTransport pushes the record onto each peer's inbox.
package gossip

import (
	"context"
	"log"
	"math"
	"sync/atomic"

	"github.com/dyluth/swarm/pkg/replica"
)

const (
	// BaseReplicationFactor is the replication factor at zero churn
	BaseReplicationFactor = 16

	// SuccessThreshold is the fraction of the factor that must be reached
	SuccessThreshold = 0.8
)

// Transport delivers a record to peers and reports how many acknowledged it.
// A returned error does not invalidate the count.
type Transport interface {
	Deliver(ctx context.Context, rec replica.StateRecord, peers []string, churn float64) (int, error)
}

// Stats is a point-in-time copy of a protocol's counters.
type Stats struct {
	Attempts  uint64 `json:"attempts"`
	Succeeded uint64 `json:"succeeded"`
	Failed    uint64 `json:"failed"`
	Delivered uint64 `json:"delivered"` // per-peer acknowledgements
}

// Protocol evaluates propagation outcomes. Safe for concurrent use.
type Protocol struct {
	transport Transport
	floor     int

	attempts  atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	delivered atomic.Uint64
}

// New creates a protocol over transport. floor is the smallest replication
// factor ever required.
func New(transport Transport, floor int) *Protocol {
	return &Protocol{transport: transport, floor: floor}
}

// RequiredFactor returns max(floor, 16 + floor(churn * 100 * 0.09)).
func RequiredFactor(churn float64, floor int) int {
	factor := BaseReplicationFactor + int(math.Floor(churn*100*0.09))
	return max(factor, floor)
}

// Propagate delivers rec to peers and reports whether at least
// SuccessThreshold of the required factor acknowledged it.
// Under-replication is an expected outcome, never an error.
func (p *Protocol) Propagate(ctx context.Context, rec replica.StateRecord, peers []string, churn float64) bool {
	p.attempts.Add(1)

	required := RequiredFactor(churn, p.floor)
	successes, err := p.transport.Deliver(ctx, rec, peers, churn)
	if err != nil {
		log.Printf("[Gossip] Delivery of %s partially failed: %v", shortID(rec.ID), err)
	}
	p.delivered.Add(uint64(max(successes, 0)))

	ok := float64(successes) >= SuccessThreshold*float64(required)
	if ok {
		p.succeeded.Add(1)
	} else {
		p.failed.Add(1)
	}
	return ok
}

// Stats returns a copy of the protocol counters.
func (p *Protocol) Stats() Stats {
	return Stats{
		Attempts:  p.attempts.Load(),
		Succeeded: p.succeeded.Load(),
		Failed:    p.failed.Load(),
		Delivered: p.delivered.Load(),
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
