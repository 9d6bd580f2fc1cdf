// Package correlation tracks, online, the Pearson correlation between each
// vocabulary dimension's signed weight change and the session outcome R
// (§4.6), using Welford's algorithm so the full session history never
// needs to be retained.
package correlation

import (
	"math"

	"github.com/echocog/aril/core/numerics"
)

// History is the persisted Welford accumulator state for N dimensions.
type History struct {
	N            int
	SessionCount int
	MeanX        []float64 // per-dim running mean of the metric
	MeanY        float64   // running mean of R
	M2X          []float64 // per-dim running sum of squared deviations
	M2Y          float64
	C            []float64 // per-dim running co-moment (Welford covariance accumulator)
}

// NewHistory allocates a zeroed History for n dimensions.
func NewHistory(n int) *History {
	return &History{
		N:     n,
		MeanX: make([]float64, n),
		M2X:   make([]float64, n),
		C:     make([]float64, n),
	}
}

// Clone returns a deep copy, so callers can snapshot without aliasing the
// tracker's backing slices.
func (h *History) Clone() *History {
	cp := &History{N: h.N, SessionCount: h.SessionCount, MeanY: h.MeanY, M2Y: h.M2Y}
	cp.MeanX = append([]float64(nil), h.MeanX...)
	cp.M2X = append([]float64(nil), h.M2X...)
	cp.C = append([]float64(nil), h.C...)
	return cp
}

// Update folds one session's signed per-dim metric vector (e.g. ΔW) and
// outcome R into the running statistics. metrics must have length N.
func (h *History) Update(metrics []float64, r float64) {
	h.SessionCount++
	n := float64(h.SessionCount)

	dy := r - h.MeanY
	h.MeanY += dy / n
	dy2 := r - h.MeanY
	h.M2Y += dy * dy2

	for i := 0; i < h.N && i < len(metrics); i++ {
		x := numerics.SafeFinite(metrics[i], 0)
		dx := x - h.MeanX[i]
		h.MeanX[i] += dx / n
		dx2 := x - h.MeanX[i]
		h.M2X[i] += dx * dx2
		// Welford's bivariate extension: co-moment updated with the
		// pre-update dx and the post-update dy2 (order matters).
		h.C[i] += dx * dy2
	}
	if h.M2Y < 0 {
		h.M2Y = 0
	}
	for i := range h.M2X {
		if h.M2X[i] < 0 {
			h.M2X[i] = 0
		}
	}
}

// VarianceX returns the per-dim sample variance (population form, divided
// by sessionCount) of the tracked metric.
func (h *History) VarianceX(i int) float64 {
	if h.SessionCount == 0 {
		return 0
	}
	v := h.M2X[i] / float64(h.SessionCount)
	if v < 0 {
		return 0
	}
	return v
}

// VarianceY returns the population variance of R.
func (h *History) VarianceY() float64 {
	if h.SessionCount == 0 {
		return 0
	}
	v := h.M2Y / float64(h.SessionCount)
	if v < 0 {
		return 0
	}
	return v
}

// CovarianceXY returns the per-dim population covariance between the
// metric and R.
func (h *History) CovarianceXY(i int) float64 {
	if h.SessionCount == 0 {
		return 0
	}
	return h.C[i] / float64(h.SessionCount)
}

// Correlation returns the per-dim Pearson correlation vector. A dimension
// with zero variance in either series (e.g. K identical updates) falls
// back to 0, never NaN.
func (h *History) Correlation() []float64 {
	out := make([]float64, h.N)
	varY := h.VarianceY()
	for i := 0; i < h.N; i++ {
		varX := h.VarianceX(i)
		denom := math.Sqrt(varX * varY)
		out[i] = numerics.SafeDivide(h.CovarianceXY(i), denom, 0)
	}
	return out
}
