// Package entropy turns per-cycle node counters into the load scalars the
// rest of the node steers by.
//
// Two values are published every cycle. The entropy level is the raw load
// scalar: the sum of the chaos vector weighted by log2 of the active node
// count. The fractal dimension is the smoothed control signal derived from
// the level and the recent history, always clamped to [MinDimension,
// MaxDimension].
package entropy

import (
	"fmt"
	"math"
	"sync/atomic"
)

const (
	// Scale divides the entropy level in the fractal transform
	Scale = 100_000.0

	// Window is the number of recent samples averaged into the dimension
	Window = 10

	MinDimension = 1.0
	MaxDimension = 10.0
)

// Counters are the raw per-cycle inputs to the engine.
type Counters struct {
	Primary     float64
	Secondary   float64
	Tertiary    float64
	ActiveNodes uint64
}

// Reading is the result of one recorded cycle.
type Reading struct {
	Level     float64 `json:"level"`
	Dimension float64 `json:"dimension"`
	Sample    Sample  `json:"sample"`
}

// Engine owns the history and the published scalars.
// RecordCycle must be called by a single writer, once per sync cycle.
// Level, Dimension and History are safe to call concurrently with it.
type Engine struct {
	history   *History
	level     atomic.Uint64 // math.Float64bits
	dimension atomic.Uint64 // math.Float64bits
}

// NewEngine creates an engine with a history of the given capacity.
func NewEngine(capacity int) *Engine {
	e := &Engine{history: NewHistory(capacity)}
	e.dimension.Store(math.Float64bits(MinDimension))
	return e
}

// RecordCycle appends the cycle's sample, recomputes level and dimension
// from the current history and publishes both.
func (e *Engine) RecordCycle(c Counters) Reading {
	level := Level(c)

	sample := e.history.Append(Sample{
		Primary:     c.Primary,
		Secondary:   c.Secondary,
		Tertiary:    c.Tertiary,
		ActiveNodes: float64(c.ActiveNodes),
	})

	dim := Dimension(e.history.Snapshot(), level)

	e.level.Store(math.Float64bits(level))
	e.dimension.Store(math.Float64bits(dim))

	return Reading{Level: level, Dimension: dim, Sample: sample}
}

// Level returns the last published entropy level.
func (e *Engine) Level() float64 {
	return math.Float64frombits(e.level.Load())
}

// Dimension returns the last published fractal dimension.
func (e *Engine) Dimension() float64 {
	return math.Float64frombits(e.dimension.Load())
}

// History returns the engine's sample ring.
func (e *Engine) History() *History {
	return e.history
}

// Level computes the entropy level for one set of counters:
// (primary + secondary + tertiary) * log2(activeNodes + 1).
func Level(c Counters) float64 {
	return (c.Primary + c.Secondary + c.Tertiary) * math.Log2(float64(c.ActiveNodes)+1)
}

// Dimension computes the smoothed fractal dimension of level over history.
// The raw value log2(max(len,1)) * level / Scale is averaged with the same
// transform applied to the primary component of the last Window samples,
// then clamped to [MinDimension, MaxDimension].
func Dimension(history []Sample, level float64) float64 {
	logLen := math.Log2(float64(max(len(history), 1)))
	raw := logLen * level / Scale

	from := max(len(history)-Window, 0)
	sum := raw
	for _, s := range history[from:] {
		sum += logLen * s.Primary / Scale
	}
	smoothed := sum / float64(len(history)-from+1)

	if math.IsNaN(smoothed) {
		return MinDimension
	}
	return min(max(smoothed, MinDimension), MaxDimension)
}

// Reflect renders the one-line reflection the resolver prefixes responses with.
func Reflect(scale string, depth int, level float64, history []Sample) string {
	return fmt.Sprintf("Recursion at scale %s: depth %d, entropy %g, fractalDim %g",
		scale, depth, level, Dimension(history, level))
}

// Stability reports how closely a set of dimensions agree: 1 - variance/10.
// An empty set is perfectly stable.
func Stability(dims []float64) float64 {
	if len(dims) == 0 {
		return 1
	}

	var mean float64
	for _, d := range dims {
		mean += d
	}
	mean /= float64(len(dims))

	var variance float64
	for _, d := range dims {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(dims))

	return 1 - variance/10
}
