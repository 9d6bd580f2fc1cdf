// Package replicator computes each session's weight update deltaW from
// three additive components — an energy-gradient term, an outcome/Shapley
// term, and a replicator-dynamics fitness term — and tracks the fitness
// EMA and neuroplastic meta-learning rates that feed the next session's
// update (§4.9).
package replicator

import (
	"math"

	"github.com/emirpasic/gods/v2/queues/arrayqueue"

	"github.com/echocog/aril/core/numerics"
)

// Params bundles the optimizer's tunable constants.
type Params struct {
	Eta           float64 // energy-gradient step size
	ClipGradient  float64 // per-element deltaW clip
	MinWeight     float64
	MaxWeight     float64
	BetaF         float64 // fitness EMA rate
	AlphaMin      float64 // meta-learning-rate floor
	AlphaMax      float64 // meta-learning-rate ceiling
	RollingWindow int     // attribution variance window, in sessions
	VarianceScale float64 // saturation scale for variance -> rate mapping
}

// DefaultParams returns the optimizer's default constants.
func DefaultParams() Params {
	return Params{
		Eta:           0.01,
		ClipGradient:  0.1,
		MinWeight:     0.01,
		MaxWeight:     0.99,
		BetaF:         0.1,
		AlphaMin:      0.5,
		AlphaMax:      2.0,
		RollingWindow: 10,
		VarianceScale: 0.05,
	}
}

// Components is the per-dimension breakdown of deltaW's three additive
// terms, surfaced for the audit snapshot (§4.10).
type Components struct {
	Energy     []float64
	Outcome    []float64
	Replicator []float64
}

// Result is one session's weight update.
type Result struct {
	DeltaW     []float64
	Components Components
	WNew       []float64
}

// Update computes deltaW and the clamped new weight vector. gradients and
// hessianDiag come from the energy subsystem; shapley and metaRates are
// length-N vectors; rAdj is the session's adjusted outcome; w and fitness
// are the current state.
func Update(p Params, w, gradients, hessianDiag, shapley, metaRates, fitness []float64, rAdj float64) Result {
	n := len(w)
	energy := make([]float64, n)
	outcome := make([]float64, n)
	repl := make([]float64, n)
	deltaW := make([]float64, n)
	wNew := make([]float64, n)

	meanFitness := numerics.Mean(fitness, 0)

	for i := 0; i < n; i++ {
		step := p.Eta
		if i < len(hessianDiag) && hessianDiag[i] > 0 {
			step = numerics.SafeDivide(p.Eta, hessianDiag[i], p.Eta)
		}
		g := 0.0
		if i < len(gradients) {
			g = gradients[i]
		}
		energy[i] = -step * g

		sh := 0.0
		if i < len(shapley) {
			sh = shapley[i]
		}
		mr := 1.0
		if i < len(metaRates) {
			mr = metaRates[i]
		}
		outcome[i] = rAdj * sh * mr

		fi := 0.0
		if i < len(fitness) {
			fi = fitness[i]
		}
		repl[i] = w[i] * (fi - meanFitness)

		sum := energy[i] + outcome[i] + repl[i]
		if !isFinite(sum) {
			deltaW[i] = 0
			wNew[i] = w[i]
			continue
		}
		sum = numerics.SafeClamp(sum, -p.ClipGradient, p.ClipGradient, 0)
		deltaW[i] = sum
		wNew[i] = numerics.SafeClamp(w[i]+sum, p.MinWeight, p.MaxWeight, w[i])
	}

	return Result{
		DeltaW:     deltaW,
		Components: Components{Energy: energy, Outcome: outcome, Replicator: repl},
		WNew:       wNew,
	}
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Tracker holds the cross-session fitness EMA and neuroplastic
// meta-learning rates.
type Tracker struct {
	params    Params
	n         int
	fitness   []float64
	metaRates []float64
	windows   []*arrayqueue.Queue[float64] // per-dim rolling attribution history
}

// NewTracker allocates a Tracker for n dimensions with meta-rates seeded
// at the midpoint of [AlphaMin, AlphaMax].
func NewTracker(n int, params Params) *Tracker {
	rates := make([]float64, n)
	mid := (params.AlphaMin + params.AlphaMax) / 2
	for i := range rates {
		rates[i] = mid
	}
	windows := make([]*arrayqueue.Queue[float64], n)
	for i := range windows {
		windows[i] = arrayqueue.New[float64]()
	}
	return &Tracker{
		params:    params,
		n:         n,
		fitness:   make([]float64, n),
		metaRates: rates,
		windows:   windows,
	}
}

// Fitness returns the current per-dim fitness EMA.
func (t *Tracker) Fitness() []float64 { return append([]float64(nil), t.fitness...) }

// MetaRates returns the current per-dim meta-learning rates.
func (t *Tracker) MetaRates() []float64 { return append([]float64(nil), t.metaRates...) }

// UpdateFitness advances the fitness EMA using the session's raw outcome
// R (not R_adj — Theorem H3: using R_adj would zero out fitness during a
// winning streak once the baseline caught up) and the per-dim Shapley
// attribution.
func (t *Tracker) UpdateFitness(r float64, shapley []float64) {
	for i := 0; i < t.n; i++ {
		sh := 0.0
		if i < len(shapley) {
			sh = shapley[i]
		}
		if sh < 0 {
			sh = -sh
		}
		t.fitness[i] = numerics.SafeFinite((1-t.params.BetaF)*t.fitness[i]+t.params.BetaF*r*sh, t.fitness[i])
	}
}

// RecordAttribution pushes this session's attribution vector into the
// rolling window and recomputes meta-learning rates from its variance:
// higher recent variance in a dimension's attribution drives a higher
// rate, bounded to [AlphaMin, AlphaMax].
func (t *Tracker) RecordAttribution(attribution []float64) {
	for i := 0; i < t.n; i++ {
		v := 0.0
		if i < len(attribution) {
			v = attribution[i]
		}
		q := t.windows[i]
		q.Enqueue(v)
		for q.Size() > t.params.RollingWindow {
			q.Dequeue()
		}
		t.metaRates[i] = rateFromVariance(variance(q.Values()), t.params)
	}
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

func rateFromVariance(v float64, p Params) float64 {
	norm := math.Tanh(numerics.SafeDivide(v, p.VarianceScale, 0))
	return p.AlphaMin + (p.AlphaMax-p.AlphaMin)*norm
}

// AssignMetaRatesFromConsolidation directly assigns meta-learning rates
// from a consolidated-init blend. It must be an assignment, never a
// multiplication into the existing rates: composing multiplicatively
// across repeated reloads would monotonically drift every rate to
// AlphaMax.
func (t *Tracker) AssignMetaRatesFromConsolidation(rates []float64) {
	for i := 0; i < t.n && i < len(rates); i++ {
		t.metaRates[i] = numerics.SafeClamp(rates[i], t.params.AlphaMin, t.params.AlphaMax, t.metaRates[i])
	}
}

// Windows returns the per-dim rolling attribution history as plain
// slices, for persistence (§4.10's "bounded rolling buffer of recent
// attributions" is this state).
func (t *Tracker) Windows() [][]float64 {
	out := make([][]float64, len(t.windows))
	for i, q := range t.windows {
		out[i] = q.Values()
	}
	return out
}

// Restore rebuilds a Tracker from previously persisted fitness,
// meta-rates, and attribution windows, e.g. after loading sidecar state.
func Restore(n int, params Params, fitness, metaRates []float64, windows [][]float64) *Tracker {
	t := NewTracker(n, params)
	for i := 0; i < n && i < len(fitness); i++ {
		t.fitness[i] = fitness[i]
	}
	for i := 0; i < n && i < len(metaRates); i++ {
		t.metaRates[i] = numerics.SafeClamp(metaRates[i], params.AlphaMin, params.AlphaMax, t.metaRates[i])
	}
	for i := 0; i < n && i < len(windows); i++ {
		for _, v := range windows[i] {
			t.windows[i].Enqueue(v)
		}
	}
	return t
}
