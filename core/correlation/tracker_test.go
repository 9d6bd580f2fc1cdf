package correlation

import (
	"math"
	"testing"
)

func TestIdenticalVectorsYieldZeroVarianceAndZeroCorrelation(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 10; i++ {
		h.Update([]float64{0.5, -0.2, 0.1}, 0.7)
	}
	for i := 0; i < h.N; i++ {
		if v := h.VarianceX(i); v != 0 {
			t.Errorf("dim %d variance = %v, want 0", i, v)
		}
	}
	corr := h.Correlation()
	for i, c := range corr {
		if c != 0 {
			t.Errorf("dim %d correlation = %v, want 0 (not NaN)", i, c)
		}
		if math.IsNaN(c) {
			t.Errorf("dim %d correlation is NaN", i)
		}
	}
}

func TestPerfectPositiveCorrelation(t *testing.T) {
	h := NewHistory(1)
	xs := []float64{1, 2, 3, 4, 5}
	rs := []float64{1, 2, 3, 4, 5}
	for i := range xs {
		h.Update([]float64{xs[i]}, rs[i])
	}
	corr := h.Correlation()
	if math.Abs(corr[0]-1.0) > 1e-9 {
		t.Errorf("correlation = %v, want ~1.0", corr[0])
	}
}

func TestPerfectNegativeCorrelation(t *testing.T) {
	h := NewHistory(1)
	xs := []float64{1, 2, 3, 4, 5}
	rs := []float64{5, 4, 3, 2, 1}
	for i := range xs {
		h.Update([]float64{xs[i]}, rs[i])
	}
	corr := h.Correlation()
	if math.Abs(corr[0]+1.0) > 1e-9 {
		t.Errorf("correlation = %v, want ~-1.0", corr[0])
	}
}

func TestNoUpdatesYieldsZeroEverything(t *testing.T) {
	h := NewHistory(2)
	corr := h.Correlation()
	for _, c := range corr {
		if c != 0 {
			t.Errorf("got %v, want 0 with no updates", c)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	h := NewHistory(2)
	h.Update([]float64{1, 2}, 0.5)
	cp := h.Clone()
	h.Update([]float64{3, 4}, 0.9)
	if cp.SessionCount != 1 {
		t.Errorf("clone should be frozen at session count 1, got %d", cp.SessionCount)
	}
	if h.SessionCount != 2 {
		t.Errorf("original should advance to 2, got %d", h.SessionCount)
	}
}
