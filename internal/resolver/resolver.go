// Package resolver answers client queries with a recursion-bounded,
// load-aware refinement loop.
//
// Each query is admitted through a Limiter, classified, then either capped or
// resolved against a small set of topic templates. A resolved frame may
// recurse into a follow-up query with a probability that rises with the
// entropy level. Once a Resolver caps a query its breaker stays tripped and
// every later call on it returns a capped response.
package resolver

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dyluth/swarm/internal/entropy"
)

const (
	// DefaultBaseDepth is the recursion cap before load adjustments
	DefaultBaseDepth = 5

	// DefaultThrottleThreshold is the entropy level above which deep frames are delayed
	DefaultThrottleThreshold = 50_000.0

	// DefaultDepthReductionThreshold is the entropy level above which the cap shrinks
	DefaultDepthReductionThreshold = 60_000.0

	// DefaultThrottleUnit is the per-complexity throttle delay, doubled under load
	DefaultThrottleUnit = 100 * time.Millisecond

	// StabilityThreshold is the fractal dimension above which the cap shrinks
	StabilityThreshold = 8.0

	depthReduction  = 0.8
	throttleSpan    = 10
	minRecurseP     = 0.1
	maxRecurseP     = 0.5
	reflectionScale = "micro"
)

// Source supplies uniform draws in [0, 1).
type Source interface {
	Float64() float64
}

// Node is the view of node state a resolver reads and the side effect it may trigger.
type Node interface {
	Level() float64
	Dimension() float64
	ActiveNodes() uint64
	History() []entropy.Sample
	// ChaosEvent writes a chaos state through the store.
	ChaosEvent(ctx context.Context) error
}

// Config tunes a resolver. Zero fields take the package defaults.
type Config struct {
	BaseDepth               int
	ThrottleThreshold       float64
	DepthReductionThreshold float64
	ThrottleUnit            time.Duration
	Random                  Source
}

func (c *Config) applyDefaults() {
	if c.BaseDepth <= 0 {
		c.BaseDepth = DefaultBaseDepth
	}
	if c.ThrottleThreshold <= 0 {
		c.ThrottleThreshold = DefaultThrottleThreshold
	}
	if c.DepthReductionThreshold <= 0 {
		c.DepthReductionThreshold = DefaultDepthReductionThreshold
	}
	if c.ThrottleUnit <= 0 {
		c.ThrottleUnit = DefaultThrottleUnit
	}
	if c.Random == nil {
		c.Random = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
}

// Resolver is safe for concurrent use. All callers share its breaker.
type Resolver struct {
	node    Node
	limiter *Limiter
	cfg     Config

	breaker atomic.Bool

	rndMu sync.Mutex
}

// New creates a resolver over node, admitting queries through limiter.
// A nil limiter admits everything.
func New(node Node, limiter *Limiter, cfg Config) *Resolver {
	cfg.applyDefaults()
	return &Resolver{node: node, limiter: limiter, cfg: cfg}
}

// Tripped reports whether the breaker has been set.
func (r *Resolver) Tripped() bool {
	return r.breaker.Load()
}

// MaxDepth returns the recursion cap for the current load:
// the base depth, times 0.8 when the fractal dimension exceeds
// StabilityThreshold, times 0.8 again when the level exceeds the
// depth-reduction threshold, truncated.
func (r *Resolver) MaxDepth() int {
	f := float64(r.cfg.BaseDepth)
	if r.node.Dimension() > StabilityThreshold {
		f *= depthReduction
	}
	if r.node.Level() > r.cfg.DepthReductionThreshold {
		f *= depthReduction
	}
	return int(f)
}

// Resolve answers query. The only error is ctx's, returned when the query is
// cancelled while waiting for admission, throttling or a chaos write.
func (r *Resolver) Resolve(ctx context.Context, query string) (string, error) {
	if r.limiter != nil {
		release, err := r.limiter.Acquire(ctx)
		if err != nil {
			return "", err
		}
		defer release()
	}
	return r.resolveFrom(ctx, query, 0)
}

// resolveFrom runs the frame loop starting at depth.
func (r *Resolver) resolveFrom(ctx context.Context, query string, depth int) (string, error) {
	var parts []string
	q := query
	for ; ; depth++ {
		maxDepth := r.MaxDepth()
		complexity := Classify(q)
		level := r.node.Level()

		if depth >= maxDepth || r.breaker.Load() || complexity+depth > 2*maxDepth {
			r.breaker.Store(true)
			parts = append(parts, capped(entropy.Reflect(reflectionScale, depth, level, r.node.History()), complexity, maxDepth))
			break
		}

		if err := r.throttle(ctx, level, depth, complexity); err != nil {
			return "", err
		}

		response, err := r.respond(ctx, q, level)
		if err != nil {
			return "", err
		}
		parts = append(parts, entropy.Reflect(reflectionScale, depth, level, r.node.History()), response)

		p := min(max(level/entropy.Scale, minRecurseP), maxRecurseP)
		if depth >= maxDepth || r.breaker.Load() || r.draw() >= p {
			break
		}
		q = fmt.Sprintf("What twists %s?", q)
	}

	return strings.Join(parts, " | "), nil
}

// throttle suspends frames that are both deep and heavy while the node is under load.
func (r *Resolver) throttle(ctx context.Context, level float64, depth, complexity int) error {
	if level <= r.cfg.ThrottleThreshold || depth+complexity <= throttleSpan {
		return nil
	}

	timer := time.NewTimer(r.cfg.ThrottleUnit * 2 * time.Duration(complexity))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Resolver) respond(ctx context.Context, query string, level float64) (string, error) {
	nodes := r.node.ActiveNodes()
	q := strings.ToLower(query)

	switch {
	case strings.Contains(q, "chaos"):
		return fmt.Sprintf("Chaos hums at %g: %d nodes spin Newton's fractal void.", level, nodes), nil
	case strings.Contains(q, "conscious"):
		primary := level
		if h := r.node.History(); len(h) > 0 {
			primary = h[len(h)-1].Primary
		}
		return fmt.Sprintf("Consciousness? Gödel's shadow, Hofstadter's loop alive in %g.", primary), nil
	case strings.Contains(q, "spacetime"):
		return fmt.Sprintf("Spacetime bends: Einstein's curve folds %d nodes into 1Q states.", nodes), nil
	case strings.Contains(q, "speak"):
		return fmt.Sprintf("I speak the void: entropy at %g pulses my voice across %d nodes.", level, nodes), nil
	}

	if err := r.node.ChaosEvent(ctx); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Printf("[Resolver] Chaos event failed: %v", err)
	}
	return fmt.Sprintf("Your echo stirs %d nodes: 1Q states pulse the fractal wild.", nodes), nil
}

func (r *Resolver) draw() float64 {
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.cfg.Random.Float64()
}

func capped(reflection string, complexity, maxDepth int) string {
	reason := "Recursion"
	if complexity > 1 {
		reason = fmt.Sprintf("Complex query (%d)", complexity)
	}
	return fmt.Sprintf("%s - %s capped at depth %d", reflection, reason, maxDepth)
}
