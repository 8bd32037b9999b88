// Package node runs a single swarm member: the periodic synchronization loop,
// chaos events and the query entry point.
//
// A Node owns its entropy engine, gossip protocol, admission limiter and
// default resolver. Peers and storage are injected so several nodes can share
// one registry in a single process.
package node

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dyluth/swarm/internal/config"
	"github.com/dyluth/swarm/internal/entropy"
	"github.com/dyluth/swarm/internal/gossip"
	"github.com/dyluth/swarm/internal/peers"
	"github.com/dyluth/swarm/internal/resolver"
	"github.com/dyluth/swarm/internal/seal"
	"github.com/dyluth/swarm/internal/store"
	"github.com/dyluth/swarm/pkg/replica"
)

// Source supplies uniform draws in [0, 1).
type Source interface {
	Float64() float64
}

// Deps are the collaborators a node does not own.
type Deps struct {
	Registry  *peers.Registry  // required
	Store     *store.Store     // required
	Transport gossip.Transport // nil uses a SimulatedTransport
	Random    Source           // churn, recovery and drift draws; nil is randomly seeded
	Resolver  resolver.Config  // tuning for resolvers created by the node
}

// Node is one swarm member. All exported methods are safe for concurrent use.
type Node struct {
	cfg      *config.SwarmConfig
	peerID   string
	registry *peers.Registry
	engine   *entropy.Engine
	protocol *gossip.Protocol
	store    *store.Store
	limiter  *resolver.Limiter
	resolver *resolver.Resolver
	resCfg   resolver.Config

	activeNodes atomic.Uint64
	nonce       atomic.Uint64
	queries     atomic.Uint64
	startedAt   time.Time

	// vecMu guards vector and rnd.
	vecMu  sync.Mutex
	vector ChaosVector
	rnd    Source

	// cycleMu keeps the sync loop the single writer of the entropy history.
	cycleMu sync.Mutex

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New wires a node and registers its peer id with the registry.
func New(cfg *config.SwarmConfig, deps Deps) (*Node, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("peer registry is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}

	rnd := deps.Random
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	transport := deps.Transport
	if transport == nil {
		transport = gossip.NewSimulatedTransport(nil)
	}

	if err := deps.Registry.RegisterLocal(cfg.PeerID); err != nil {
		return nil, fmt.Errorf("failed to register peer: %w", err)
	}
	deps.Registry.ConnectGlobal(cfg.GlobalPeers)

	resCfg := deps.Resolver
	if resCfg.BaseDepth == 0 {
		resCfg.BaseDepth = cfg.MaxDepth
	}

	n := &Node{
		cfg:       cfg,
		peerID:    cfg.PeerID,
		registry:  deps.Registry,
		engine:    entropy.NewEngine(cfg.HistoryCapacity),
		protocol:  gossip.New(transport, cfg.ReplicationFactorFloor),
		store:     deps.Store,
		limiter:   resolver.NewLimiter(cfg.QuerySemaphoreLimit),
		resCfg:    resCfg,
		startedAt: time.Now(),
		rnd:       rnd,
	}
	n.activeNodes.Store(uint64(max(cfg.InitialActiveNodes, 0)))
	n.limiter.Resize(n.activeNodes.Load())
	n.resolver = n.NewResolver()

	return n, nil
}

// PeerID returns the node's peer id.
func (n *Node) PeerID() string {
	return n.peerID
}

// Start launches the sync loop. It returns an error if the loop is already running.
func (n *Node) Start(ctx context.Context) error {
	n.runMu.Lock()
	defer n.runMu.Unlock()

	if n.cancel != nil {
		return fmt.Errorf("node %s already started", n.peerID)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.done = make(chan struct{})

	go n.syncLoop(loopCtx, n.done)

	n.logEvent("node_started", map[string]interface{}{
		"sync_interval": n.cfg.SyncInterval.String(),
	})
	return nil
}

// Stop cancels the sync loop and waits for it to exit.
// A cycle already in progress runs to completion first.
func (n *Node) Stop() {
	n.runMu.Lock()
	cancel, done := n.cancel, n.done
	n.cancel, n.done = nil, nil
	n.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	n.logEvent("node_stopped", map[string]interface{}{})
}

// Close stops the loop and removes the node from the registry.
// The store is owned by the caller and left open.
func (n *Node) Close() {
	n.Stop()
	n.registry.UnregisterLocal(n.peerID)
}

// ProcessQuery answers query through the node's default resolver.
// The only error is ctx's.
func (n *Node) ProcessQuery(ctx context.Context, query string) (string, error) {
	n.queries.Add(1)
	return n.resolver.Resolve(ctx, query)
}

// NewResolver returns a resolver bound to this node with its own breaker.
func (n *Node) NewResolver() *resolver.Resolver {
	return resolver.New(n, n.limiter, n.resCfg)
}

// CountQuery records a query answered outside ProcessQuery, for throughput.
func (n *Node) CountQuery() {
	n.queries.Add(1)
}

// Level returns the current entropy level.
func (n *Node) Level() float64 {
	return n.engine.Level()
}

// Dimension returns the current fractal dimension.
func (n *Node) Dimension() float64 {
	return n.engine.Dimension()
}

// ActiveNodes returns the node's view of the swarm size.
func (n *Node) ActiveNodes() uint64 {
	return n.activeNodes.Load()
}

// History returns a snapshot of the entropy history, oldest first.
func (n *Node) History() []entropy.Sample {
	return n.engine.History().Snapshot()
}

// Engine exposes the entropy engine.
func (n *Node) Engine() *entropy.Engine {
	return n.engine
}

// draw returns one value from the node's random source.
func (n *Node) draw() float64 {
	n.vecMu.Lock()
	defer n.vecMu.Unlock()
	return n.rnd.Float64()
}

// sealState encrypts a fresh plaintext state into a record.
// Every record consumes one nonce.
func (n *Node) sealState(kind replica.StateKind, level float64, data func(nonce uint64) string) (replica.StateRecord, error) {
	nonce := n.nonce.Add(1) - 1
	now := time.Now()

	plain, err := json.Marshal(replica.NewState(kind, level, data(nonce), now))
	if err != nil {
		return replica.StateRecord{}, fmt.Errorf("failed to marshal state: %w", err)
	}

	sealed, err := seal.Seal(seal.DeriveKey(n.peerID, level, nonce), plain)
	if err != nil {
		return replica.StateRecord{}, fmt.Errorf("failed to seal state: %w", err)
	}
	return replica.NewStateRecord(sealed, now), nil
}

// logEvent emits a structured JSON log line for a node event.
func (n *Node) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "node"
	data["event_type"] = eventType
	data["peer_id"] = n.peerID

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Node] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
