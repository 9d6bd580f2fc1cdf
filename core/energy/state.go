// Package energy implements the double-well-plus-graph-Laplacian energy
// landscape (§4.2) that the continuous self-state evolves under, along with
// its gradient, Hessian diagonal, Gershgorin stability check, and
// fixed-point solver.
package energy

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/echocog/aril/core/numerics"
	"github.com/echocog/aril/core/vocab"
)

const (
	minWeight = 0.01
	maxWeight = 0.99
)

// State is the evolving continuous self-state: behavioral weights w and
// self-model m, each in [0.01, 0.99]^N, plus elapsed time.
type State struct {
	W    []float64
	M    []float64
	Time float64
}

// NewState builds a State of dimension n with both vectors initialized to
// init, clamped into range.
func NewState(n int, init float64) *State {
	init = numerics.SafeClamp(init, minWeight, maxWeight, 0.5)
	w := make([]float64, n)
	m := make([]float64, n)
	for i := range w {
		w[i] = init
		m[i] = init
	}
	return &State{W: w, M: m}
}

// Clone returns a value-level copy. This is the mandatory defensive
// snapshot described in spec §9: callers must snapshot state with Clone
// before a forward pass, never hold a reference into the live State, or
// Shapley attribution silently degrades to uniform R/N.
func (s *State) Clone() *State {
	w := make([]float64, len(s.W))
	copy(w, s.W)
	m := make([]float64, len(s.M))
	copy(m, s.M)
	return &State{W: w, M: m, Time: s.Time}
}

// Params holds the dynamics parameters (D, λ, μ, κ, a) plus the
// homeostatic target w*.
type Params struct {
	D     float64
	Lambda float64
	Mu    float64
	Kappa float64
	A     float64
	WStar []float64
}

const (
	AMin = 0.25
	AMax = 0.75
)

// WellPosed reports whether the parameters satisfy the well-posedness
// theorems: μ > κ/2 (Theorem 5.1, energy decrease) and λ > a(1-a)
// (Theorem 7.3, stability at the homeostatic target).
func (p Params) WellPosed() bool {
	return p.Mu > p.Kappa/2 && p.Lambda > p.A*(1-p.A)
}

// potential evaluates the double-well V(u) = u^4/4 - (1+a)u^3/3 + a*u^2/2.
func potential(u, a float64) float64 {
	return u*u*u*u/4 - (1+a)*u*u*u/3 + a*u*u/2
}

// potentialPrime evaluates V'(u) = u^3 - (1+a)u^2 + a*u.
func potentialPrime(u, a float64) float64 {
	return u*u*u - (1+a)*u*u + a*u
}

// potentialDoublePrime evaluates V''(u) = 3u^2 - 2(1+a)u + a.
func potentialDoublePrime(u, a float64) float64 {
	return 3*u*u - 2*(1+a)*u + a
}

// Potential exposes the double-well potential V(u, a) for callers outside
// the package (the mode observer's well classification, §4.11).
func Potential(u, a float64) float64 { return potential(clampIntermediate(u), a) }

// Curvature exposes V''(u, a), the per-dimension curvature the mode
// observer uses to classify a weight as sitting in a well or on the
// barrier (§4.11).
func Curvature(u, a float64) float64 { return potentialDoublePrime(clampIntermediate(u), a) }

// clampIntermediate bounds a value entering a polynomial evaluation so that
// extreme inputs (|w| >> 1) still produce finite outputs.
func clampIntermediate(u float64) float64 {
	return numerics.SafeClamp(u, -1e3, 1e3, 0)
}

// EnergyComponents reports the energy gradient's four additive terms for a
// single dimension's trace (used by computeEnergyGradient's diagnostics).
type EnergyComponents struct {
	Diffusion   []float64
	Potential   []float64
	Homeostatic []float64
	Coherence   []float64
}

// GradientResult is the full output of computeEnergyGradient.
type GradientResult struct {
	Gradients   []float64
	Energy      float64
	Components  EnergyComponents
	HessianDiag []float64
	Stable      bool
	RowCenters  []float64
}

// Energy computes E(w, m) for the given state, params, and vocabulary.
func Energy(s *State, p Params, v *vocab.Vocabulary) float64 {
	n := v.N()
	if n == 0 {
		return 0
	}
	l := v.Laplacian()

	wClamped := make([]float64, n)
	for i := range wClamped {
		wClamped[i] = clampIntermediate(s.W[i])
	}
	wVec := mat.NewVecDense(n, wClamped)
	diffusion := p.D / 2 * mat.Inner(wVec, l, wVec)

	pot := 0.0
	for i := 0; i < n; i++ {
		pot += potential(clampIntermediate(s.W[i]), p.A)
	}

	homeo := 0.0
	for i := 0; i < n; i++ {
		wStar := 0.5
		if i < len(p.WStar) {
			wStar = p.WStar[i]
		}
		d := clampIntermediate(s.W[i]) - wStar
		homeo += d * d
	}
	homeo *= p.Lambda / 2

	coh := 0.0
	for i := 0; i < n; i++ {
		d := clampIntermediate(s.W[i]) - clampIntermediate(s.M[i])
		coh += d * d
	}
	coh *= p.Kappa / 2

	total := diffusion + pot + homeo + coh
	return numerics.SafeFinite(total, 0)
}

// ComputeEnergyGradient returns the gradient of E with respect to w, its
// four additive components (which must sum to the gradient to machine
// epsilon), the Hessian diagonal, and a Gershgorin stability check on the
// resulting Jacobian.
func ComputeEnergyGradient(s *State, p Params, v *vocab.Vocabulary) (*GradientResult, error) {
	n := v.N()
	if n == 0 {
		return &GradientResult{Stable: true}, nil
	}
	if len(s.W) != n || len(s.M) != n {
		return nil, fmt.Errorf("energy: state dimension mismatch: len(W)=%d len(M)=%d want %d", len(s.W), len(s.M), n)
	}

	l := v.Laplacian()
	diffusion := make([]float64, n)
	potentialG := make([]float64, n)
	homeostatic := make([]float64, n)
	coherence := make([]float64, n)
	gradients := make([]float64, n)
	hessianDiag := make([]float64, n)

	for i := 0; i < n; i++ {
		lw := 0.0
		for j := 0; j < n; j++ {
			lw += l.At(i, j) * clampIntermediate(s.W[j])
		}
		diffusion[i] = numerics.SafeFinite(p.D*lw, 0)

		w := clampIntermediate(s.W[i])
		potentialG[i] = numerics.SafeFinite(potentialPrime(w, p.A), 0)

		wStar := 0.5
		if i < len(p.WStar) {
			wStar = p.WStar[i]
		}
		homeostatic[i] = numerics.SafeFinite(p.Lambda*(w-wStar), 0)

		m := clampIntermediate(s.M[i])
		coherence[i] = numerics.SafeFinite(p.Kappa*(w-m), 0)

		gradients[i] = diffusion[i] + potentialG[i] + homeostatic[i] + coherence[i]
		hessianDiag[i] = p.D*l.At(i, i) + potentialDoublePrime(w, p.A) + p.Lambda + p.Kappa
	}

	jac := jacobian(l, s, p, n)
	stable, centers := CheckStability(jac, n)

	e := Energy(s, p, v)

	return &GradientResult{
		Gradients: gradients,
		Energy:    e,
		Components: EnergyComponents{
			Diffusion:   diffusion,
			Potential:   potentialG,
			Homeostatic: homeostatic,
			Coherence:   coherence,
		},
		HessianDiag: hessianDiag,
		Stable:      stable,
		RowCenters:  centers,
	}, nil
}

// jacobian builds the Jacobian of the deterministic w-dynamics (d/dw of
// -gradient) on the coherent manifold w = m, where the coherence term
// vanishes, used for the Gershgorin stability check. At w = a the diagonal
// is -(λ - a(1-a)) - D·L[i][i], so the check passes once λ > a(1-a).
func jacobian(l interface {
	At(i, j int) float64
}, s *State, p Params, n int) *mat.Dense {
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			off := -p.D * l.At(i, k)
			if i == k {
				w := clampIntermediate(s.W[i])
				off -= potentialDoublePrime(w, p.A) + p.Lambda
			}
			data[i*n+k] = numerics.SafeFinite(off, 0)
		}
	}
	return mat.NewDense(n, n, data)
}

// CheckStability evaluates Gershgorin disks of J and reports whether every
// disk lies in the closed left half-plane (center + radius <= 0), along
// with each row's center. The radius is each row's L1 norm (via
// gonum/floats) minus the diagonal's own magnitude.
func CheckStability(j *mat.Dense, n int) (bool, []float64) {
	centers := make([]float64, n)
	stable := true
	row := make([]float64, n)
	for i := 0; i < n; i++ {
		mat.Row(row, i, j)
		center := row[i]
		radius := floats.Norm(row, 1) - math.Abs(center)
		centers[i] = center
		if center+radius > 1e-9 {
			stable = false
		}
	}
	return stable, centers
}
