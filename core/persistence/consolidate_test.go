package persistence

import (
	"math"
	"testing"
)

func TestConsolidatedInitEmptySnapshotsGivesMidpoint(t *testing.T) {
	w, fitness, metaRates := ConsolidatedInit(nil, 3, 0.01, 0.99, 0.5, 2.0)
	for i, v := range w {
		if v != 0.5 {
			t.Errorf("w[%d] = %v, want 0.5 with no snapshots", i, v)
		}
	}
	for i, f := range fitness {
		want := 1.0 / 3
		if math.Abs(f-want) > 1e-9 {
			t.Errorf("fitness[%d] = %v, want %v", i, f, want)
		}
	}
	for _, r := range metaRates {
		if r < 0.5 || r > 2.0 {
			t.Errorf("meta rate %v out of bounds", r)
		}
	}
}

func TestConsolidatedInitWeightsSoftmaxFavorsHigherOutcome(t *testing.T) {
	snapshots := []Snapshot{
		{W: []float64{0.2}, Fitness: []float64{0.1}, R: -1.0, DeltaW: []float64{0.01}},
		{W: []float64{0.8}, Fitness: []float64{0.9}, R: 1.0, DeltaW: []float64{0.01}},
	}
	w, _, _ := ConsolidatedInit(snapshots, 1, 0.01, 0.99, 0.5, 2.0)
	if w[0] <= 0.5 {
		t.Errorf("w[0] = %v, want > 0.5 (softmax should favor the higher-R snapshot's weight)", w[0])
	}
}

func TestConsolidatedInitFitnessHasUniformFloor(t *testing.T) {
	snapshots := []Snapshot{
		{W: []float64{0.5}, Fitness: []float64{0.0}, R: 0.0, DeltaW: []float64{0}},
	}
	_, fitness, _ := ConsolidatedInit(snapshots, 1, 0.01, 0.99, 0.5, 2.0)
	if fitness[0] <= 0 {
		t.Errorf("fitness[0] = %v, want > 0 (uniform floor survives zero-fitness history)", fitness[0])
	}
}

func TestConsolidatedInitMetaRatesLowVarianceLowRate(t *testing.T) {
	snapshots := []Snapshot{
		{W: []float64{0.5, 0.5}, Fitness: []float64{0.5, 0.5}, R: 0.5, DeltaW: []float64{0.01, 0.5}},
		{W: []float64{0.5, 0.5}, Fitness: []float64{0.5, 0.5}, R: 0.5, DeltaW: []float64{0.01, -0.5}},
		{W: []float64{0.5, 0.5}, Fitness: []float64{0.5, 0.5}, R: 0.5, DeltaW: []float64{0.01, 0.5}},
	}
	_, _, metaRates := ConsolidatedInit(snapshots, 2, 0.01, 0.99, 0.5, 2.0)
	// dim 0 has ~zero variance (low) -> high consistency -> low meta rate
	// dim 1 has high variance -> low consistency -> high meta rate
	if metaRates[0] >= metaRates[1] {
		t.Errorf("expected dim0 (low variance) rate < dim1 (high variance) rate, got %v vs %v", metaRates[0], metaRates[1])
	}
}
