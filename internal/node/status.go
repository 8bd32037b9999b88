package node

import (
	"time"

	"github.com/dyluth/swarm/internal/gossip"
)

// ResilienceScale is the active node count that maps to a 100% resilience score.
const ResilienceScale = 5_000_000.0

// MaxResilience caps the resilience score.
const MaxResilience = 99.99

// Status is a point-in-time snapshot of a node.
type Status struct {
	PeerID        string       `json:"peer_id"`
	Entropy       float64      `json:"entropy"`
	FractalDim    float64      `json:"fractal_dim"`
	ActiveNodes   uint64       `json:"active_nodes"`
	BandwidthUsed uint64       `json:"bandwidth_used"`
	Nonce         uint64       `json:"nonce"`
	HistoryLen    int          `json:"history_len"`
	ShardedStates int          `json:"sharded_states"`
	QuerySlots    int          `json:"query_slots"`
	Vector        ChaosVector  `json:"chaos_vector"`
	Gossip        gossip.Stats `json:"gossip"`
	Resilience    float64      `json:"resilience"`
	Throughput    float64      `json:"throughput"` // queries per second since start
	Uptime        string       `json:"uptime"`
}

// Status returns the node's current snapshot.
func (n *Node) Status() Status {
	active := n.activeNodes.Load()
	uptime := time.Since(n.startedAt)

	return Status{
		PeerID:        n.peerID,
		Entropy:       n.engine.Level(),
		FractalDim:    n.engine.Dimension(),
		ActiveNodes:   active,
		BandwidthUsed: n.store.BandwidthUsed(),
		Nonce:         n.nonce.Load(),
		HistoryLen:    n.engine.History().Len(),
		ShardedStates: n.store.Shards().Len(),
		QuerySlots:    n.limiter.Size(),
		Vector:        n.Vector(),
		Gossip:        n.protocol.Stats(),
		Resilience:    Resilience(active),
		Throughput:    Throughput(n.queries.Load(), uptime),
		Uptime:        uptime.Truncate(time.Millisecond).String(),
	}
}

// Resilience scores a swarm of active nodes: min(active/ResilienceScale*100, MaxResilience).
func Resilience(active uint64) float64 {
	return min(float64(active)/ResilienceScale*100, MaxResilience)
}

// Throughput returns queries per second over elapsed. Zero elapsed yields 0.
func Throughput(queries uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(queries) / elapsed.Seconds()
}
