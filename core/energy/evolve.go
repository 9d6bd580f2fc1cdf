package energy

import (
	"fmt"
	"math"

	"github.com/echocog/aril/core/numerics"
	"github.com/echocog/aril/core/vocab"
)

// EvolveResult carries the energy before and after one explicit step, so
// callers can verify Theorem 5.1 (energy does not increase beyond numeric
// tolerance when μ > κ/2).
type EvolveResult struct {
	State        *State
	EnergyBefore float64
	EnergyAfter  float64
}

// EnergyTolerance is the numeric slack Theorem 5.1 allows for a single
// explicit Euler step.
const EnergyTolerance = 1e-6

// Evolve performs one explicit step of:
//
//	dw/dt = -∂E/∂w + σ·experience
//	dm/dt = (κ + μ)·(w − m)
//
// experience is a length-N perturbation vector (may be nil for zero
// experience); sigma scales it. The returned state is a new value — the
// input state is never mutated, satisfying the aliasing requirement in
// spec §9.
func Evolve(s *State, experience []float64, sigma float64, p Params, v *vocab.Vocabulary, dt float64) (*EvolveResult, error) {
	n := v.N()
	if n == 0 {
		return &EvolveResult{State: s.Clone()}, nil
	}
	if len(s.W) != n || len(s.M) != n {
		return nil, fmt.Errorf("energy: evolve state dimension mismatch: len(W)=%d len(M)=%d want %d", len(s.W), len(s.M), n)
	}

	before := Energy(s, p, v)

	grad, err := ComputeEnergyGradient(s, p, v)
	if err != nil {
		return nil, err
	}

	next := s.Clone()
	for i := 0; i < n; i++ {
		exp := 0.0
		if i < len(experience) {
			exp = experience[i]
		}
		dw := -grad.Gradients[i] + sigma*exp
		w := s.W[i] + dt*dw
		next.W[i] = numerics.SafeClamp(w, minWeight, maxWeight, s.W[i])

		dm := (p.Kappa + p.Mu) * (s.W[i] - s.M[i])
		m := s.M[i] + dt*dm
		next.M[i] = numerics.SafeClamp(m, minWeight, maxWeight, s.M[i])
	}
	next.Time = s.Time + dt

	after := Energy(next, p, v)

	return &EvolveResult{State: next, EnergyBefore: before, EnergyAfter: after}, nil
}

// Coherence returns ||w - m|| (L2 norm), the self/model-gap metric spec §3
// calls out as small at fixed points.
func Coherence(s *State) float64 {
	sum := 0.0
	for i := range s.W {
		d := s.W[i] - s.M[i]
		sum += d * d
	}
	return numerics.SafeFinite(math.Sqrt(sum), 0)
}
