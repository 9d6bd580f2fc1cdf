package energy

import (
	"math"

	"github.com/echocog/aril/core/vocab"
)

// FixedPointResult is the outcome of Picard iteration toward a fixed point
// of the dynamics.
type FixedPointResult struct {
	State     *State
	Converged bool
	Stable    bool
	Iterations int
}

// FindFixedPoint repeatedly applies an explicit step (dt chosen small and
// fixed) until ||Δw|| + ||Δm|| < tol or maxIter is reached. Whether this
// Picard form converges for all λ > 0.25 is an open question (spec §9);
// this implementation reports convergence empirically via the returned
// flag rather than asserting it.
func FindFixedPoint(s0 *State, p Params, v *vocab.Vocabulary, maxIter int, tol float64) (*FixedPointResult, error) {
	const dt = 0.01
	current := s0.Clone()
	converged := false
	iter := 0

	for ; iter < maxIter; iter++ {
		result, err := Evolve(current, nil, 0, p, v, dt)
		if err != nil {
			return nil, err
		}
		delta := 0.0
		for i := range current.W {
			delta += math.Abs(result.State.W[i] - current.W[i])
			delta += math.Abs(result.State.M[i] - current.M[i])
		}
		current = result.State
		if delta < tol {
			converged = true
			iter++
			break
		}
	}

	grad, err := ComputeEnergyGradient(current, p, v)
	if err != nil {
		return nil, err
	}

	return &FixedPointResult{
		State:      current,
		Converged:  converged,
		Stable:     grad.Stable,
		Iterations: iter,
	}, nil
}
