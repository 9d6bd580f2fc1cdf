// consolidate.go implements §4.16's consolidated initialization: blending
// up to five prior snapshots into the starting weights, fitness, and
// meta-learning rates for a freshly reloaded session.
package persistence

import (
	"math"

	"github.com/echocog/aril/core/numerics"
)

// Snapshot is one prior session's recorded end-of-session state, kept in
// the orchestrator's own snapshot ring, used as consolidated-init input.
type Snapshot struct {
	W       []float64 // weights at snapshot time
	Fitness []float64
	R       float64
	DeltaW  []float64
}

const consolidationTemperature = 1.0
const fitnessWeightedShare = 0.8
const fitnessUniformFloorShare = 0.2
const metaRateBase = 1.0
const metaRateSpread = 0.5

// ConsolidatedInit blends up to five snapshots into initial weights,
// fitness, and meta-learning rates for dimension count n.
func ConsolidatedInit(snapshots []Snapshot, n int, minWeight, maxWeight, alphaMin, alphaMax float64) (w, fitness, metaRates []float64) {
	w = make([]float64, n)
	fitness = make([]float64, n)
	metaRates = make([]float64, n)
	for i := range metaRates {
		metaRates[i] = (alphaMin + alphaMax) / 2
	}
	if len(snapshots) == 0 {
		for i := range w {
			w[i] = 0.5
			fitness[i] = 1.0 / float64(n)
		}
		return w, fitness, metaRates
	}

	weights := softmaxOutcomes(snapshots, consolidationTemperature)

	for i := 0; i < n; i++ {
		wSum := 0.0
		fWeighted := 0.0
		for k, snap := range snapshots {
			if i < len(snap.W) {
				wSum += weights[k] * snap.W[i]
			}
			if i < len(snap.Fitness) {
				fWeighted += weights[k] * snap.Fitness[i]
			}
		}
		w[i] = numerics.SafeClamp(wSum, minWeight, maxWeight, 0.5)
		fitness[i] = fitnessWeightedShare*fWeighted + fitnessUniformFloorShare*(1.0/float64(n))
	}

	// Meta-learning rates: assigned directly from cross-snapshot
	// consistency, never multiplied into an existing rate (§4.9's
	// monotonic-drift warning applies here too).
	for i := 0; i < n; i++ {
		deltas := make([]float64, 0, len(snapshots))
		for _, snap := range snapshots {
			if i < len(snap.DeltaW) {
				deltas = append(deltas, snap.DeltaW[i])
			}
		}
		v := sampleVariance(deltas)
		consistency := 1.0 / (v + 1e-9)
		metaRates[i] = consistency // normalized below
	}
	metaRates = normalizeAndAssignRates(metaRates, alphaMin, alphaMax)

	return w, fitness, metaRates
}

func softmaxOutcomes(snapshots []Snapshot, temperature float64) []float64 {
	rs := make([]float64, len(snapshots))
	maxR := math.Inf(-1)
	for i, s := range snapshots {
		rs[i] = s.R / temperature
		if rs[i] > maxR {
			maxR = rs[i]
		}
	}
	sum := 0.0
	exps := make([]float64, len(rs))
	for i, r := range rs {
		e := math.Exp(r - maxR)
		exps[i] = e
		sum += e
	}
	out := make([]float64, len(rs))
	for i, e := range exps {
		out[i] = numerics.SafeDivide(e, sum, 1.0/float64(len(rs)))
	}
	return out
}

func sampleVariance(xs []float64) float64 {
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

// normalizeAndAssignRates min-max normalizes raw consistency scores over
// i, then assigns metaLearningRates[i] = 1.0 + 0.5*(1-normalized), clamped.
func normalizeAndAssignRates(consistency []float64, alphaMin, alphaMax float64) []float64 {
	if len(consistency) == 0 {
		return consistency
	}
	minV, maxV := consistency[0], consistency[0]
	for _, c := range consistency {
		if c < minV {
			minV = c
		}
		if c > maxV {
			maxV = c
		}
	}
	out := make([]float64, len(consistency))
	span := maxV - minV
	for i, c := range consistency {
		normalized := 0.5
		if span > 0 {
			normalized = (c - minV) / span
		}
		out[i] = numerics.SafeClamp(metaRateBase+metaRateSpread*(1-normalized), alphaMin, alphaMax, metaRateBase)
	}
	return out
}
