package gossip

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dyluth/swarm/pkg/replica"
)

// Source supplies uniform draws in [0, 1).
type Source interface {
	Float64() float64
}

// SimulatedTransport models each peer as reachable with probability 1-churn.
// Every peer gets an independent draw d in (0, 1] and is reached iff d > churn,
// so churn 0 reaches everyone and churn 1 reaches no one.
type SimulatedTransport struct {
	mu  sync.Mutex
	src Source
}

// NewSimulatedTransport creates a simulated transport. A nil src uses a
// randomly seeded generator.
func NewSimulatedTransport(src Source) *SimulatedTransport {
	if src == nil {
		src = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &SimulatedTransport{src: src}
}

// Deliver implements Transport.
func (s *SimulatedTransport) Deliver(ctx context.Context, _ replica.StateRecord, peers []string, churn float64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reached := 0
	for range peers {
		if 1-s.src.Float64() > churn {
			reached++
		}
	}
	return reached, nil
}

// InboxPusher is the part of replica.Cache the Redis transport needs.
type InboxPusher interface {
	PushInbox(ctx context.Context, peers []string, rec replica.StateRecord) (int, error)
}

// RedisTransport delivers records for real by pushing them onto each peer's
// inbox list. An acknowledgement is a push that completed within Timeout.
// Churn is ignored: unreachable peers show up as failed pushes.
type RedisTransport struct {
	pusher  InboxPusher
	timeout time.Duration
}

// NewRedisTransport creates a transport bounded by timeout per attempt.
func NewRedisTransport(pusher InboxPusher, timeout time.Duration) *RedisTransport {
	return &RedisTransport{pusher: pusher, timeout: timeout}
}

// Deliver implements Transport.
func (r *RedisTransport) Deliver(ctx context.Context, rec replica.StateRecord, peers []string, _ float64) (int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.pusher.PushInbox(attemptCtx, peers, rec)
}
