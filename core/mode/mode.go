// Package mode classifies each session as "search" or "insight" from the
// shape of the energy landscape, classifies each dimension's well
// position and tunneling probability, and derives the adaptive double-
// well barrier parameter from a dimension's expertise (§4.11).
package mode

import (
	"math"

	"github.com/emirpasic/gods/v2/queues/arrayqueue"

	"github.com/echocog/aril/core/energy"
	"github.com/echocog/aril/core/numerics"
)

// DefaultThreshold is the modeScore cutoff: at or above it, the session
// is in "search" mode; below it, "insight" mode.
const DefaultThreshold = 1.0

// eps guards the modeScore denominator against division by zero when the
// current energy equals the historical minimum.
const eps = 1e-9

// barrierBand is how close a weight must sit to the barrier parameter a
// to be classified "barrier" rather than a well; a tuning choice, not a
// theorem.
const barrierBand = 0.05

// Mode is the session-level classification.
type Mode string

const (
	ModeSearch  Mode = "search"
	ModeInsight Mode = "insight"
)

// Well is a per-dimension classification relative to the barrier a.
type Well string

const (
	WellLow     Well = "low"
	WellHigh    Well = "high"
	WellBarrier Well = "barrier"
)

// Observer tracks the historical minimum energy and a rolling window of
// the outcome-gradient term per dimension, needed for the tunneling
// variance estimate.
type Observer struct {
	threshold   float64
	minEnergy   float64
	seeded      bool
	window      int
	gradHistory []*arrayqueue.Queue[float64] // per-dim outcome-gradient history
}

// NewObserver constructs an Observer. seedEnergy, if non-nil, pre-seeds
// the historical minimum so the first real session isn't trivially
// classified "search" by an unseeded E_min=E degeneracy.
func NewObserver(threshold float64, window int, seedEnergy *float64) *Observer {
	o := &Observer{threshold: threshold, window: window}
	if seedEnergy != nil {
		o.minEnergy = *seedEnergy
		o.seeded = true
	}
	return o
}

// SessionResult is one session's mode-observer output.
type SessionResult struct {
	ModeScore float64
	Mode      Mode
}

// Observe folds in this session's gradient norm and energy, updating the
// historical minimum, and classifies the mode.
func (o *Observer) Observe(gradNorm2, e float64) SessionResult {
	if !o.seeded {
		o.minEnergy = e
		o.seeded = true
	} else if e < o.minEnergy {
		o.minEnergy = e
	}
	score := numerics.SafeDivide(gradNorm2, e-o.minEnergy+eps, math.Inf(1))
	m := ModeInsight
	if score >= o.threshold {
		m = ModeSearch
	}
	return SessionResult{ModeScore: score, Mode: m}
}

// RecordOutcomeGradient pushes this session's per-dim outcome-gradient
// term into the rolling window used for the tunneling variance estimate.
func (o *Observer) RecordOutcomeGradient(values []float64) {
	if o.gradHistory == nil {
		o.gradHistory = make([]*arrayqueue.Queue[float64], len(values))
		for i := range o.gradHistory {
			o.gradHistory[i] = arrayqueue.New[float64]()
		}
	}
	for i, v := range values {
		if i >= len(o.gradHistory) {
			continue
		}
		q := o.gradHistory[i]
		q.Enqueue(v)
		for q.Size() > o.window {
			q.Dequeue()
		}
	}
}

// HistoryLen reports how many outcome-gradient observations dimension i
// has accumulated.
func (o *Observer) HistoryLen(i int) int {
	if i < 0 || i >= len(o.gradHistory) {
		return 0
	}
	return o.gradHistory[i].Size()
}

func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := numerics.Mean(xs, 0)
	sum := 0.0
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return sum / float64(len(xs))
}

// ClassifyWell reports which well a weight sits in relative to barrier a.
func ClassifyWell(w, a float64) Well {
	if math.Abs(w-a) < barrierBand {
		return WellBarrier
	}
	if w < a {
		return WellLow
	}
	return WellHigh
}

// Curvature returns V''(w, a), the per-dimension curvature classification
// signal.
func Curvature(w, a float64) float64 {
	return energy.Curvature(w, a)
}

// TunnelingProbability computes P = 1 - exp(-sigma^2_eff / (2B)) for
// dimension i, where B is the barrier height V(a) - V(w) and sigma^2_eff
// is the variance of dimension i's outcome-gradient history. Returns 0
// with fewer than 3 historical entries.
func (o *Observer) TunnelingProbability(i int, w, a float64) float64 {
	if o.HistoryLen(i) < 3 {
		return 0
	}
	b := energy.Potential(a, a) - energy.Potential(w, a)
	if b <= 0 {
		return 0
	}
	sigma2 := variance(o.gradHistory[i].Values())
	exponent := -numerics.SafeDivide(sigma2, 2*b, 0)
	return 1 - math.Exp(exponent)
}

// ConsolidationDelta computes E(current w) - E(w=0.5 midpoint); negative
// means the evolved profile beats the uninformed midpoint baseline.
func ConsolidationDelta(currentEnergy, midpointEnergy float64) float64 {
	return currentEnergy - midpointEnergy
}

// AdaptiveBarrier derives the double-well barrier parameter a from
// expertise e in [0,1]: a novice (e=0) gets a tall, stable barrier
// (aMax=0.75); an expert (e=1) gets a shallow one for fast re-learning
// (aMin=0.25).
func AdaptiveBarrier(expertise float64) float64 {
	e := numerics.SafeClamp(expertise, 0, 1, 0)
	return energy.AMax - (energy.AMax-energy.AMin)*e
}

// MinEnergy exposes the historical minimum energy the mode observer has
// seen, for persistence.
func (o *Observer) MinEnergy() (value float64, seeded bool) { return o.minEnergy, o.seeded }

// GradHistory returns the per-dim outcome-gradient rolling window as plain
// slices, for persistence.
func (o *Observer) GradHistory() [][]float64 {
	out := make([][]float64, len(o.gradHistory))
	for i, q := range o.gradHistory {
		out[i] = q.Values()
	}
	return out
}

// Restore rebuilds an Observer from previously persisted minimum energy
// and outcome-gradient history, e.g. after loading sidecar state.
func Restore(threshold float64, window int, minEnergy float64, seeded bool, gradHistory [][]float64) *Observer {
	o := &Observer{threshold: threshold, window: window, minEnergy: minEnergy, seeded: seeded}
	if gradHistory != nil {
		o.gradHistory = make([]*arrayqueue.Queue[float64], len(gradHistory))
		for i, w := range gradHistory {
			o.gradHistory[i] = arrayqueue.New[float64]()
			for _, v := range w {
				o.gradHistory[i].Enqueue(v)
			}
		}
	}
	return o
}
