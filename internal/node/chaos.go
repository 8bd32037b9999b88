package node

import (
	"context"
	"fmt"
	"math"

	"github.com/dyluth/swarm/pkg/replica"
)

// MaxPrimary caps the primary chaos component.
const MaxPrimary = 50_000.0

// ChaosVector is the node's three-component load vector.
type ChaosVector struct {
	Primary   float64 `json:"primary"`   // drifts on every chaos event
	Secondary float64 `json:"secondary"` // accumulates sin(primary*0.01)*0.05
	Tertiary  float64 `json:"tertiary"`  // per-cycle recovery rate in [0.8, 1.0)
}

// Vector returns a copy of the chaos vector.
func (n *Node) Vector() ChaosVector {
	n.vecMu.Lock()
	defer n.vecMu.Unlock()
	return n.vector
}

// drift applies one chaos event carrying payloadBytes to the vector.
// Callers hold vecMu.
func (n *Node) drift(payloadBytes int) ChaosVector {
	factor := 0.9 + n.rnd.Float64()*0.2
	n.vector.Primary = math.Min((n.vector.Primary+float64(payloadBytes))*factor, MaxPrimary)
	n.vector.Secondary += math.Sin(n.vector.Primary*0.01) * 0.05
	return n.vector
}

// ChaosEvent seals a chaos state, persists and shards it, then drifts the
// chaos vector by the sealed size. A cancelled ctx writes nothing.
func (n *Node) ChaosEvent(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	level := n.engine.Level()
	rec, err := n.sealState(replica.StateKindChaos, level, func(nonce uint64) string {
		return fmt.Sprintf("chaos_%d", nonce)
	})
	if err != nil {
		return err
	}

	if err := n.store.Persist(ctx, rec); err != nil {
		return fmt.Errorf("failed to persist chaos state: %w", err)
	}
	sharded := n.store.Shard(rec.ID, rec.Payload)

	n.vecMu.Lock()
	v := n.drift(len(rec.Payload))
	n.vecMu.Unlock()

	n.logEvent("chaos_event", map[string]interface{}{
		"state_id": rec.ID,
		"bytes":    len(rec.Payload),
		"sharded":  sharded,
		"primary":  v.Primary,
	})
	return nil
}
