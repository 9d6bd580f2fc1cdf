// Package mobius maintains a learned set-function v_learned: 2^N → R over
// a session's vocabulary dimensions, fit online from (activation mask,
// outcome) observations via LASSO-regularized least squares, and derives
// a Möbius-based Shapley vector that is blended with the additive
// exact-Shapley result as observations accumulate (§4.8).
package mobius

import (
	"math"
	"math/bits"

	"github.com/echocog/aril/core/numerics"
	"github.com/emirpasic/gods/v2/queues/arrayqueue"
	"gonum.org/v1/gonum/mat"
)

// ActivationEpsilon is ε_activation: a dimension is "active" in an
// observation's mask when its weight has moved at least this much from
// baseline.
const ActivationEpsilon = 0.05

// Observation is one session's (activation mask, outcome, session index).
type Observation struct {
	Mask         uint32
	R            float64
	SessionIndex int
}

// observationWindow bounds how many observations the fit keeps in memory.
// It must comfortably exceed 2*OMin so the blend ramp (§4.8) can reach
// full weight without the fitting window itself discarding the evidence
// that got it there; this specific value is a sizing choice, not a
// theorem (recorded as an Open Question resolution).
const observationWindow = 1000

// OMin is the observation count below which the Möbius blend contributes
// nothing.
const OMin = 20

// PromotionThreshold is the minimum all-time observation count required
// before the fit is allowed to promote to a higher interaction order.
// Chosen, not derived: half again past OMin so promotion never competes
// with the early blend ramp for the same handful of sessions.
const PromotionThreshold = 30

// minOrder and maxOrderCap bound the current maximum interaction order k.
const minOrder = 2
const maxOrderCap = 4

// residualPromotionThreshold: a fit residual at or above this value is
// judged "still underfitting" and is eligible for order promotion.
const residualPromotionThreshold = 0.05

// lassoLambda and lassoIterations parameterize the coordinate-descent
// LASSO solver.
const lassoLambda = 0.01
const lassoIterations = 200

// coefficientEpsilon: fitted coefficients smaller than this in magnitude
// are dropped from the sparse map rather than stored as near-zero noise.
const coefficientEpsilon = 1e-6

// State is the persisted Möbius tracker.
type State struct {
	N                int
	buffer           *arrayqueue.Queue[Observation]
	ObservationCount int // all-time count; never shrinks, unlike the buffer
	Coefficients     map[uint32]float64
	K                int
	Residual         float64
}

// NewState allocates a fresh tracker for n dimensions.
func NewState(n int) *State {
	return &State{
		N:            n,
		buffer:       arrayqueue.New[Observation](),
		Coefficients: make(map[uint32]float64),
		K:            minOrder,
	}
}

// Mask computes the activation bitmask for a weight vector against its
// session-start baseline.
func Mask(w, baseline []float64) uint32 {
	var mask uint32
	for i := range w {
		if i >= len(baseline) {
			break
		}
		delta := numerics.SafeFinite(w[i]-baseline[i], 0)
		if math.Abs(delta) >= ActivationEpsilon {
			mask |= 1 << uint(i)
		}
	}
	return mask
}

// Observations returns the current fitting window's contents.
func (s *State) Observations() []Observation {
	return s.buffer.Values()
}

// Observe records a new session observation, refits, and promotes the
// order when justified.
func (s *State) Observe(mask uint32, r float64, sessionIndex int) {
	s.buffer.Enqueue(Observation{Mask: mask, R: r, SessionIndex: sessionIndex})
	if s.buffer.Size() > observationWindow {
		s.buffer.Dequeue()
	}
	s.ObservationCount++

	s.refit()

	if s.Residual >= residualPromotionThreshold &&
		s.ObservationCount >= PromotionThreshold &&
		s.K < maxOrderCap && s.K < s.N {
		s.K++
		s.refit()
	}
}

func (s *State) refit() {
	obs := s.buffer.Values()
	if len(obs) == 0 || s.N == 0 {
		s.Coefficients = make(map[uint32]float64)
		s.Residual = 0
		return
	}
	subsets := enumerateSubsets(s.N, s.K)
	X := make([][]float64, len(obs))
	y := make([]float64, len(obs))
	for i, o := range obs {
		X[i] = featureRow(o.Mask, subsets)
		y[i] = o.R
	}
	beta := lassoFit(X, y, lassoLambda, lassoIterations)

	coeffs := make(map[uint32]float64, len(subsets))
	for j, t := range subsets {
		if v := beta[j]; v > coefficientEpsilon || v < -coefficientEpsilon {
			coeffs[t] = v
		}
	}
	s.Coefficients = coeffs
	s.Residual = residual(X, y, beta)
}

// enumerateSubsets lists every subset of {0,...,n-1} with popcount <= k,
// including the empty set, as bitmasks.
func enumerateSubsets(n, k int) []uint32 {
	var out []uint32
	total := uint32(1) << uint(n)
	for mask := uint32(0); mask < total; mask++ {
		if bits.OnesCount32(mask) <= k {
			out = append(out, mask)
		}
	}
	return out
}

func featureRow(mask uint32, subsets []uint32) []float64 {
	row := make([]float64, len(subsets))
	for j, t := range subsets {
		if mask&t == t {
			row[j] = 1
		}
	}
	return row
}

func softThreshold(rho, lambda float64) float64 {
	switch {
	case rho > lambda:
		return rho - lambda
	case rho < -lambda:
		return rho + lambda
	default:
		return 0
	}
}

// lassoFit fits y ≈ X·beta with an L1 penalty via coordinate descent: no
// closed-form QR/normal-equations solve exists for the L1 term, so each
// coordinate is updated by soft-thresholding its partial residual, with
// the per-coordinate dot products and residual bookkeeping done as
// gonum vector operations rather than hand-rolled double loops.
func lassoFit(X [][]float64, y []float64, lambda float64, iterations int) []float64 {
	n := len(X)
	if n == 0 {
		return nil
	}
	p := len(X[0])

	flat := make([]float64, 0, n*p)
	for _, row := range X {
		flat = append(flat, row...)
	}
	xm := mat.NewDense(n, p, flat)
	yv := mat.NewVecDense(n, y)

	cols := make([]*mat.VecDense, p)
	zj := make([]float64, p)
	for j := 0; j < p; j++ {
		cols[j] = mat.NewVecDense(n, mat.Col(nil, j, xm))
		zj[j] = mat.Dot(cols[j], cols[j])
	}

	beta := mat.NewVecDense(p, nil)
	pred := mat.NewVecDense(n, nil) // X * beta, kept current across coordinate updates
	resid := mat.NewVecDense(n, nil)
	for iter := 0; iter < iterations; iter++ {
		for j := 0; j < p; j++ {
			old := beta.AtVec(j)
			// partial residual with dimension j's own contribution added back in
			resid.SubVec(yv, pred)
			resid.AddScaledVec(resid, old, cols[j])
			rho := mat.Dot(cols[j], resid)

			newVal := 0.0
			if zj[j] != 0 {
				newVal = numerics.SafeDivide(softThreshold(rho, lambda*float64(n)), zj[j], 0)
			}
			beta.SetVec(j, newVal)
			pred.AddScaledVec(pred, newVal-old, cols[j])
		}
	}

	out := make([]float64, p)
	for j := range out {
		out[j] = beta.AtVec(j)
	}
	return out
}

func residual(X [][]float64, y []float64, beta []float64) float64 {
	n := len(X)
	if n == 0 {
		return 0
	}
	sumSq := 0.0
	for i := range X {
		pred := 0.0
		for j, x := range X[i] {
			pred += x * beta[j]
		}
		d := y[i] - pred
		sumSq += d * d
	}
	return numerics.SafeFinite(sumSq/float64(n), 0)
}

// V evaluates the learned set function at coalition S: Σ_{T⊆S} m(T).
func (s *State) V(mask uint32) float64 {
	sum := 0.0
	for t, coeff := range s.Coefficients {
		if mask&t == t {
			sum += coeff
		}
	}
	return sum
}

// Shapley derives φ[i] = Σ_{T∋i} m(T)/|T| for each of the N dimensions.
func (s *State) Shapley() []float64 {
	phi := make([]float64, s.N)
	for t, coeff := range s.Coefficients {
		size := bits.OnesCount32(t)
		if size == 0 {
			continue
		}
		share := coeff / float64(size)
		for i := 0; i < s.N; i++ {
			if t&(1<<uint(i)) != 0 {
				phi[i] += share
			}
		}
	}
	return phi
}

// BlendAlpha returns the blend ramp weight: 0 below OMin observations,
// ramping linearly to 1 at 2*OMin.
func BlendAlpha(observationCount int) float64 {
	return numerics.SafeClamp(float64(observationCount-OMin)/float64(OMin), 0, 1, 0)
}

// Blend combines the additive exact-Shapley vector with the Möbius-based
// one using alpha.
func Blend(additive, mobiusPhi []float64, alpha float64) []float64 {
	out := make([]float64, len(additive))
	for i := range additive {
		m := 0.0
		if i < len(mobiusPhi) {
			m = mobiusPhi[i]
		}
		out[i] = (1-alpha)*additive[i] + alpha*m
	}
	return out
}

// StrongestInteraction reports the highest-order-weighted synergy term
// currently in the coefficient map: the subset of size >= 2 with the
// largest |coefficient|, and that magnitude. Returns (nil, 0) if no such
// term exists.
func (s *State) StrongestInteraction() ([]int, float64) {
	var bestMask uint32
	best := 0.0
	found := false
	for t, coeff := range s.Coefficients {
		if bits.OnesCount32(t) < 2 {
			continue
		}
		mag := coeff
		if mag < 0 {
			mag = -mag
		}
		if !found || mag > best {
			best = mag
			bestMask = t
			found = true
		}
	}
	if !found {
		return nil, 0
	}
	var dims []int
	for i := 0; i < s.N; i++ {
		if bestMask&(1<<uint(i)) != 0 {
			dims = append(dims, i)
		}
	}
	return dims, best
}

// DataAdequate reports whether enough observations have accumulated for
// the blend to be meaningful (O >= OMin).
func (s *State) DataAdequate() bool {
	return s.ObservationCount >= OMin
}

// Restore rebuilds a State from previously persisted fields: the fitting
// window's observations, the all-time observation count (which may
// exceed len(observations) once the ring buffer has evicted entries),
// the learned coefficients, current order K, and last fit residual.
func Restore(n int, observations []Observation, observationCount int, coefficients map[uint32]float64, k int, residual float64) *State {
	s := NewState(n)
	for _, o := range observations {
		s.buffer.Enqueue(o)
	}
	s.ObservationCount = observationCount
	if coefficients != nil {
		s.Coefficients = coefficients
	}
	if k >= minOrder {
		s.K = k
	}
	s.Residual = residual
	return s
}
