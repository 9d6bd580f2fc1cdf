// Package shapley computes exact Shapley values over the full coalition
// lattice of at most 16 vocabulary dimensions (§4.7), attributing a
// session's outcome to each dimension's weight change.
package shapley

import (
	"fmt"
	"math/bits"

	"github.com/bits-and-blooms/bitset"
)

// MaxN is the hard cap on dimensions the exact enumeration supports: 2^16
// coalitions is the largest the algorithm is permitted to materialize.
const MaxN = 16

// factorial is precomputed through 17! so every |S|!·(N−|S|−1)!/N! term
// with N ≤ 16 can be looked up directly.
var factorial [18]float64

func init() {
	factorial[0] = 1
	for i := 1; i < len(factorial); i++ {
		factorial[i] = factorial[i-1] * float64(i)
	}
}

// ValueFunc scores a coalition S (given as both a bitset and its
// cardinality, to avoid recomputing popcount).
type ValueFunc func(s *bitset.BitSet, size int) float64

// Result is one session's exact Shapley attribution.
type Result struct {
	Phi        []float64
	Confidence float64 // always 1.0: the enumeration is exact, never sampled
}

// maskToBitset materializes the bitset for a coalition bitmask over n
// players.
func maskToBitset(mask uint32, n int) *bitset.BitSet {
	s := bitset.New(uint(n))
	for i := 0; i < n; i++ {
		if mask&(1<<uint(i)) != 0 {
			s.Set(uint(i))
		}
	}
	return s
}

// Compute enumerates all 2^n coalitions and returns the exact Shapley
// value for each of the n players under v. n must be in [0, MaxN].
func Compute(n int, v ValueFunc) (Result, error) {
	if n < 0 || n > MaxN {
		return Result{}, fmt.Errorf("shapley: n=%d exceeds hard cap %d", n, MaxN)
	}
	if n == 0 {
		return Result{Phi: []float64{}, Confidence: 1.0}, nil
	}

	total := 1 << uint(n)
	values := make([]float64, total)
	for mask := 0; mask < total; mask++ {
		size := bits.OnesCount(uint(mask))
		values[mask] = v(maskToBitset(uint32(mask), n), size)
	}

	phi := make([]float64, n)
	for mask := 0; mask < total; mask++ {
		size := bits.OnesCount(uint(mask))
		weight := factorial[size] * factorial[n-size-1] / factorial[n]
		for i := 0; i < n; i++ {
			bit := 1 << uint(i)
			if mask&bit != 0 {
				continue // i already in S; marginal contribution only counted for S not containing i
			}
			withI := mask | bit
			phi[i] += weight * (values[withI] - values[mask])
		}
	}
	return Result{Phi: phi, Confidence: 1.0}, nil
}

func sumAbs(weights []float64, s *bitset.BitSet) float64 {
	sum := 0.0
	for i, w := range weights {
		if s.Test(uint(i)) {
			if w < 0 {
				w = -w
			}
			sum += w
		}
	}
	return sum
}

func totalAbs(weights []float64) float64 {
	sum := 0.0
	for _, w := range weights {
		if w < 0 {
			w = -w
		}
		sum += w
	}
	return sum
}

// CorrelationValueFunc implements the sessionCount ≥ 5 branch:
// v(S) = R · Σ_{i∈S}|corr[i]| / Σ_j|corr[j]|, falling back to the uniform
// split if every correlation is exactly zero (no dimension has moved yet).
func CorrelationValueFunc(corr []float64, r float64) ValueFunc {
	n := len(corr)
	total := totalAbs(corr)
	return func(s *bitset.BitSet, size int) float64 {
		if total == 0 {
			return r * float64(size) / float64(n)
		}
		return r * sumAbs(corr, s) / total
	}
}

// deltaWZeroThreshold is the spec's cutoff below which Σ|Δw| is treated as
// no real movement, triggering the uniform fallback.
const deltaWZeroThreshold = 1e-10

// DeltaWValueFunc implements the sessionCount < 5 fallback branch:
// v(S) = R · Σ_{i∈S}|Δw[i]| / Σ_j|Δw[j]|, uniform if the total change is
// below threshold.
func DeltaWValueFunc(deltaW []float64, r float64) ValueFunc {
	n := len(deltaW)
	total := totalAbs(deltaW)
	return func(s *bitset.BitSet, size int) float64 {
		if total < deltaWZeroThreshold {
			return r * float64(size) / float64(n)
		}
		return r * sumAbs(deltaW, s) / total
	}
}

// SelectValueFunc picks the correlation-based value function once enough
// sessions have accumulated, else the weight-change fallback (§4.7).
func SelectValueFunc(sessionCount int, corr, deltaW []float64, r float64) ValueFunc {
	const minSessionsForCorrelation = 5
	if sessionCount >= minSessionsForCorrelation {
		return CorrelationValueFunc(corr, r)
	}
	return DeltaWValueFunc(deltaW, r)
}
