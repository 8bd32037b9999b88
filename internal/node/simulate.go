package node

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dyluth/swarm/internal/config"
	"github.com/dyluth/swarm/internal/entropy"
	"github.com/dyluth/swarm/internal/peers"
	"github.com/dyluth/swarm/internal/store"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SimulationResult summarises an in-process swarm run.
type SimulationResult struct {
	Nodes         int     `json:"nodes"`
	Queries       int     `json:"queries_per_node"`
	AvgFractalDim float64 `json:"avg_fractal_dim"`
	Stability     float64 `json:"stability"`
	SuccessRate   float64 `json:"success_rate"`
}

// Simulate spins up nodeCount in-process nodes sharing one registry, runs one
// sync cycle on each, then issues queries "chaos_<i>" to every node
// concurrently through a fresh resolver per node.
//
// Each node gets its own SQLite file under base.LocalStoreLocation and no
// remote mirror.
func Simulate(ctx context.Context, base *config.SwarmConfig, nodeCount, queries int) (SimulationResult, error) {
	if base == nil {
		return SimulationResult{}, fmt.Errorf("config is required")
	}
	if nodeCount < 1 {
		return SimulationResult{}, fmt.Errorf("node count must be >= 1, got %d", nodeCount)
	}
	if queries < 0 {
		return SimulationResult{}, fmt.Errorf("query count must be >= 0, got %d", queries)
	}

	registry := peers.NewRegistry()
	defer registry.Close()

	nodes := make([]*Node, 0, nodeCount)
	stores := make([]*store.Store, 0, nodeCount)
	defer func() {
		for _, n := range nodes {
			n.Close()
		}
		for _, s := range stores {
			s.Close()
		}
	}()

	for i := 0; i < nodeCount; i++ {
		cfg := *base
		cfg.PeerID = fmt.Sprintf("sim_%d_%s", i, uuid.NewString()[:8])

		local, err := store.OpenLocal(cfg.LocalStoreLocation, cfg.PeerID)
		if err != nil {
			return SimulationResult{}, fmt.Errorf("failed to open store for %s: %w", cfg.PeerID, err)
		}
		st := store.New(store.NewShards(cfg.ShardBuckets), local, nil, cfg.CacheTimeout)
		stores = append(stores, st)

		n, err := New(&cfg, Deps{Registry: registry, Store: st})
		if err != nil {
			return SimulationResult{}, err
		}
		nodes = append(nodes, n)
	}

	for _, n := range nodes {
		if _, err := n.SyncOnce(ctx); err != nil {
			return SimulationResult{}, fmt.Errorf("initial sync failed for %s: %w", n.PeerID(), err)
		}
	}

	var succeeded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range nodes {
		r := n.NewResolver()
		for i := 0; i < queries; i++ {
			query := fmt.Sprintf("chaos_%d", i)
			g.Go(func() error {
				n.CountQuery()
				if _, err := r.Resolve(gctx, query); err == nil {
					succeeded.Add(1)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return SimulationResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return SimulationResult{}, err
	}

	dims := make([]float64, len(nodes))
	var sum float64
	for i, n := range nodes {
		dims[i] = entropy.Dimension(n.History(), n.Level())
		sum += dims[i]
	}

	result := SimulationResult{
		Nodes:         nodeCount,
		Queries:       queries,
		AvgFractalDim: sum / float64(nodeCount),
		Stability:     entropy.Stability(dims),
	}
	if total := nodeCount * queries; total > 0 {
		result.SuccessRate = float64(succeeded.Load()) / float64(total)
	}
	return result, nil
}
