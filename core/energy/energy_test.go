package energy

import (
	"math"
	"testing"

	"github.com/echocog/aril/core/vocab"
)

func fullyConnected(t *testing.T, names []string, coupling float64) *vocab.Vocabulary {
	t.Helper()
	n := len(names)
	flat := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				flat[i*n+j] = coupling
			}
		}
	}
	v, err := vocab.New(names, flat)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestEnergyMonotoneNonIncreasing(t *testing.T) {
	v := fullyConnected(t, []string{"a", "b", "c", "d"}, 0.2)
	s := &State{W: []float64{0.1, 0.9, 0.3, 0.7}, M: []float64{0.2, 0.8, 0.4, 0.6}}
	p := Params{D: 0.1, Lambda: 0.4, Mu: 0.3, Kappa: 0.1, A: 0.5, WStar: []float64{0.5, 0.5, 0.5, 0.5}}

	if !p.WellPosed() {
		t.Fatal("params should be well-posed (mu > kappa/2)")
	}

	prevEnergy := Energy(s, p, v)
	for i := 0; i < 200; i++ {
		res, err := Evolve(s, nil, 0, p, v, 0.05)
		if err != nil {
			t.Fatal(err)
		}
		if res.EnergyAfter > res.EnergyBefore+EnergyTolerance {
			t.Fatalf("step %d: energy increased: before=%v after=%v", i, res.EnergyBefore, res.EnergyAfter)
		}
		if res.EnergyAfter > prevEnergy+EnergyTolerance {
			t.Fatalf("step %d: energy not monotone: prev=%v after=%v", i, prevEnergy, res.EnergyAfter)
		}
		prevEnergy = res.EnergyAfter
		s = res.State
	}
}

func TestFixedPointConvergence(t *testing.T) {
	v := fullyConnected(t, []string{"a", "b", "c", "d"}, 0.2)
	s0 := &State{W: []float64{0.1, 0.9, 0.2, 0.8}, M: []float64{0.15, 0.85, 0.25, 0.75}}
	p := Params{D: 0.1, Lambda: 0.4, Mu: 0.3, Kappa: 0.1, A: 0.5, WStar: []float64{0.5, 0.5, 0.5, 0.5}}

	result, err := FindFixedPoint(s0, p, v, 5000, 1e-8)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Converged {
		t.Fatal("expected Picard iteration to converge")
	}
	if c := Coherence(result.State); c > 1e-4 {
		t.Errorf("coherence at fixed point too large: %v", c)
	}
	if !result.Stable {
		t.Error("expected fixed point to be stable")
	}
}

func TestStabilityBoundary(t *testing.T) {
	v := fullyConnected(t, []string{"a", "b"}, 0.0)
	s := &State{W: []float64{0.5, 0.5}, M: []float64{0.5, 0.5}}

	pStable := Params{D: 0.1, Lambda: 0.4, Mu: 0.3, Kappa: 0.1, A: 0.5, WStar: []float64{0.5, 0.5}}
	grad, err := ComputeEnergyGradient(s, pStable, v)
	if err != nil {
		t.Fatal(err)
	}
	if !grad.Stable {
		t.Error("lambda=0.4 at w=0.5 should be stable")
	}

	pUnstable := Params{D: 0.1, Lambda: 0.1, Mu: 0.3, Kappa: 0.1, A: 0.5, WStar: []float64{0.5, 0.5}}
	grad2, err := ComputeEnergyGradient(s, pUnstable, v)
	if err != nil {
		t.Fatal(err)
	}
	if grad2.Stable {
		t.Error("lambda=0.1 at w=0.5 should be unstable")
	}

	lo, hi := 0.0, 1.0
	for i := 0; i < 60; i++ {
		mid := (lo + hi) / 2
		p := Params{D: 0.1, Lambda: mid, Mu: 0.3, Kappa: 0.1, A: 0.5, WStar: []float64{0.5, 0.5}}
		g, err := ComputeEnergyGradient(s, p, v)
		if err != nil {
			t.Fatal(err)
		}
		if g.Stable {
			hi = mid
		} else {
			lo = mid
		}
	}
	if math.Abs(hi-0.25) > 0.01 {
		t.Errorf("critical lambda ~= %v, want ~0.25", hi)
	}
}

func TestGradientComponentsSumToTotal(t *testing.T) {
	v := fullyConnected(t, []string{"a", "b", "c"}, 0.3)
	s := &State{W: []float64{0.2, 0.6, 0.4}, M: []float64{0.3, 0.5, 0.45}}
	p := Params{D: 0.2, Lambda: 0.3, Mu: 0.4, Kappa: 0.1, A: 0.4, WStar: []float64{0.5, 0.5, 0.5}}

	grad, err := ComputeEnergyGradient(s, p, v)
	if err != nil {
		t.Fatal(err)
	}
	for i := range grad.Gradients {
		sum := grad.Components.Diffusion[i] + grad.Components.Potential[i] + grad.Components.Homeostatic[i] + grad.Components.Coherence[i]
		if math.Abs(sum-grad.Gradients[i]) > 1e-12 {
			t.Errorf("dim %d: components sum %v != gradient %v", i, sum, grad.Gradients[i])
		}
	}
}

func TestZeroDimensionEdgeCase(t *testing.T) {
	v, err := vocab.New(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	s := &State{}
	p := Params{D: 0.1, Lambda: 0.4, Mu: 0.3, Kappa: 0.1, A: 0.5}
	if e := Energy(s, p, v); e != 0 {
		t.Errorf("N=0 energy should be 0, got %v", e)
	}
	grad, err := ComputeEnergyGradient(s, p, v)
	if err != nil {
		t.Fatal(err)
	}
	if !grad.Stable {
		t.Error("N=0 should report stable")
	}
	if len(grad.Gradients) != 0 {
		t.Error("N=0 should produce length-0 gradients")
	}
}

func TestExtremeWeightsStayFinite(t *testing.T) {
	v := fullyConnected(t, []string{"a", "b"}, 0.5)
	s := &State{W: []float64{1e6, -1e6}, M: []float64{0.5, 0.5}}
	p := Params{D: 0.1, Lambda: 0.4, Mu: 0.3, Kappa: 0.1, A: 0.5, WStar: []float64{0.5, 0.5}}

	grad, err := ComputeEnergyGradient(s, p, v)
	if err != nil {
		t.Fatal(err)
	}
	for i, g := range grad.Gradients {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			t.Errorf("gradient[%d] non-finite: %v", i, g)
		}
	}
	if math.IsNaN(grad.Energy) || math.IsInf(grad.Energy, 0) {
		t.Errorf("energy non-finite: %v", grad.Energy)
	}
}
