package node

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dyluth/swarm/internal/entropy"
	"github.com/dyluth/swarm/pkg/replica"
)

// CycleResult describes one synchronization cycle.
type CycleResult struct {
	Reading    entropy.Reading
	Peers      int
	Churn      float64
	Propagated bool
	Sharded    bool
	Active     uint64
	Pruned     int64
}

// syncLoop runs SyncOnce every SyncInterval until ctx is cancelled.
// Each cycle runs on a context detached from ctx so shutdown never splits
// a propagate from its persist.
func (n *Node) syncLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(n.cfg.SyncInterval)
	defer ticker.Stop()

	cycleCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := n.SyncOnce(cycleCtx); err != nil {
				log.Printf("[Node] Sync cycle failed for %s: %v", n.peerID, err)
			}
		}
	}
}

// SyncOnce runs a single synchronization cycle: sample peers, record the
// cycle's entropy, seal a fresh state and propagate it. Only a successful
// propagation is persisted, sharded and allowed to update the active node
// count, which is reset to the peers the registry knows rather than the
// sample size so repeated successes cannot shrink the sample below the
// replication factor. A local write failure is returned and leaves node
// state unchanged.
func (n *Node) SyncOnce(ctx context.Context) (CycleResult, error) {
	n.cycleMu.Lock()
	defer n.cycleMu.Unlock()

	peers := n.registry.Sample(n.peerID, n.activeNodes.Load())

	n.vecMu.Lock()
	n.vector.Tertiary = 0.8 + n.rnd.Float64()*0.2
	v := n.vector
	churn := 1 - n.rnd.Float64()
	n.vecMu.Unlock()

	reading := n.engine.RecordCycle(entropy.Counters{
		Primary:     v.Primary,
		Secondary:   v.Secondary,
		Tertiary:    v.Tertiary,
		ActiveNodes: n.activeNodes.Load(),
	})
	result := CycleResult{Reading: reading, Peers: len(peers), Churn: churn}

	rec, err := n.sealState(replica.StateKindSync, reading.Level, func(nonce uint64) string {
		return fmt.Sprintf("sync_%d", nonce)
	})
	if err != nil {
		return result, err
	}

	if !n.protocol.Propagate(ctx, rec, peers, churn) {
		return result, nil
	}
	result.Propagated = true

	if err := n.store.Persist(ctx, rec); err != nil {
		return result, fmt.Errorf("failed to persist state: %w", err)
	}
	result.Sharded = n.store.Shard(rec.ID, rec.Payload)

	active := uint64(max(n.registry.Known(n.peerID), len(peers)))
	n.activeNodes.Store(active)
	n.limiter.Resize(active)
	result.Active = active

	pruned, err := n.store.Prune(ctx, n.cfg.MaxTotalStates)
	if err != nil {
		log.Printf("[Node] Retention prune failed for %s: %v", n.peerID, err)
	}
	result.Pruned = pruned

	n.logEvent("state_synchronized", map[string]interface{}{
		"state_id":     rec.ID,
		"peers":        len(peers),
		"churn":        churn,
		"entropy":      reading.Level,
		"fractal_dim":  reading.Dimension,
		"sharded":      result.Sharded,
		"active_nodes": active,
	})
	return result, nil
}
