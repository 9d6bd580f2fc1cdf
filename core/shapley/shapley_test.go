package shapley

import (
	"math"
	"testing"

	"github.com/bits-and-blooms/bitset"
)

const eps = 1e-9

func TestEfficiency(t *testing.T) {
	n := 4
	deltaW := []float64{0.1, -0.2, 0.05, 0.3}
	r := 0.6
	v := DeltaWValueFunc(deltaW, r)
	res, err := Compute(n, v)
	if err != nil {
		t.Fatal(err)
	}
	sum := 0.0
	for _, p := range res.Phi {
		sum += p
	}
	full := bitset.New(uint(n))
	for i := 0; i < n; i++ {
		full.Set(uint(i))
	}
	vFull := v(full, n)
	vEmpty := v(bitset.New(uint(n)), 0)
	want := vFull - vEmpty
	if math.Abs(sum-want) > eps {
		t.Errorf("sum(phi) = %v, want %v (v(N)-v(empty))", sum, want)
	}
}

func TestSymmetry(t *testing.T) {
	// Two players with identical |deltaW| produce identical marginal
	// contributions to every coalition excluding both, hence equal phi.
	n := 3
	deltaW := []float64{0.2, 0.2, -0.5}
	v := DeltaWValueFunc(deltaW, 0.4)
	res, err := Compute(n, v)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.Phi[0]-res.Phi[1]) > eps {
		t.Errorf("phi[0]=%v phi[1]=%v, want equal (symmetric players)", res.Phi[0], res.Phi[1])
	}
}

func TestNullPlayer(t *testing.T) {
	// A player whose marginal contribution to every coalition is zero.
	n := 3
	v := func(s *bitset.BitSet, size int) float64 {
		// value depends only on whether player 0 is present
		if s.Test(0) {
			return 1.0
		}
		return 0.0
	}
	res, err := Compute(n, v)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.Phi[1]) > eps {
		t.Errorf("phi[1] (null player) = %v, want 0", res.Phi[1])
	}
	if math.Abs(res.Phi[2]) > eps {
		t.Errorf("phi[2] (null player) = %v, want 0", res.Phi[2])
	}
	if math.Abs(res.Phi[0]-1.0) > eps {
		t.Errorf("phi[0] = %v, want 1.0 (sole contributor)", res.Phi[0])
	}
}

func TestConfidenceAlwaysOneForExactPath(t *testing.T) {
	res, err := Compute(2, DeltaWValueFunc([]float64{0.1, 0.2}, 0.5))
	if err != nil {
		t.Fatal(err)
	}
	if res.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", res.Confidence)
	}
}

func TestZeroDimensions(t *testing.T) {
	res, err := Compute(0, func(s *bitset.BitSet, size int) float64 { return 0 })
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Phi) != 0 {
		t.Errorf("expected empty phi for n=0, got %v", res.Phi)
	}
}

func TestRejectsOverCap(t *testing.T) {
	_, err := Compute(MaxN+1, func(s *bitset.BitSet, size int) float64 { return 0 })
	if err == nil {
		t.Error("expected error for n > MaxN")
	}
}

func TestDeltaWUniformFallbackBelowThreshold(t *testing.T) {
	n := 3
	tiny := []float64{1e-12, -1e-12, 1e-13}
	v := DeltaWValueFunc(tiny, 0.9)
	full := bitset.New(uint(n))
	for i := 0; i < n; i++ {
		full.Set(uint(i))
	}
	if got := v(full, n); math.Abs(got-0.9) > eps {
		t.Errorf("v(full) = %v, want 0.9 (uniform: R * n/n)", got)
	}
	half := bitset.New(uint(n))
	half.Set(0)
	if got := v(half, 1); math.Abs(got-0.3) > eps {
		t.Errorf("v(half) = %v, want 0.3 (uniform: R * 1/3)", got)
	}
}

func TestSelectValueFuncThreshold(t *testing.T) {
	corr := []float64{0.9, 0.1}
	deltaW := []float64{0.1, 0.1}
	vBelow := SelectValueFunc(4, corr, deltaW, 1.0)
	vAt := SelectValueFunc(5, corr, deltaW, 1.0)

	full := bitset.New(2)
	full.Set(0)
	full.Set(1)

	// Below threshold: deltaW based, equal weights -> v(full)=1.0 either way,
	// but single-player coalitions should differ between the two functions
	// since corr is skewed and deltaW is not.
	s0 := bitset.New(2)
	s0.Set(0)
	belowV := vBelow(s0, 1)
	atV := vAt(s0, 1)
	if math.Abs(belowV-0.5) > eps {
		t.Errorf("below-threshold v({0}) = %v, want 0.5 (equal deltaW split)", belowV)
	}
	if math.Abs(atV-0.9) > eps {
		t.Errorf("at-threshold v({0}) = %v, want 0.9 (corr-weighted split)", atV)
	}
	_ = vBelow(full, 2)
	_ = vAt(full, 2)
}
