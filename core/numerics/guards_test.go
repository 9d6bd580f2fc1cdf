package numerics

import (
	"math"
	"testing"
)

func TestSafeFinite(t *testing.T) {
	if got := SafeFinite(math.NaN(), 1.5); got != 1.5 {
		t.Errorf("NaN: got %v, want 1.5", got)
	}
	if got := SafeFinite(math.Inf(1), 1.5); got != 1.5 {
		t.Errorf("+Inf: got %v, want 1.5", got)
	}
	if got := SafeFinite(3.0, 1.5); got != 3.0 {
		t.Errorf("finite: got %v, want 3.0", got)
	}
}

func TestSafeDivide(t *testing.T) {
	if got := SafeDivide(1, 0, -1); got != -1 {
		t.Errorf("div by zero: got %v, want -1", got)
	}
	if got := SafeDivide(6, 2, -1); got != 3 {
		t.Errorf("6/2: got %v, want 3", got)
	}
	if got := SafeDivide(1, math.NaN(), -1); got != -1 {
		t.Errorf("NaN denom: got %v, want -1", got)
	}
}

func TestSafeClamp(t *testing.T) {
	if got := SafeClamp(5, 0, 1, 0.5); got != 1 {
		t.Errorf("clamp high: got %v, want 1", got)
	}
	if got := SafeClamp(-5, 0, 1, 0.5); got != 0 {
		t.Errorf("clamp low: got %v, want 0", got)
	}
	if got := SafeClamp(math.NaN(), 0, 1, 0.5); got != 0.5 {
		t.Errorf("NaN: got %v, want 0.5", got)
	}
}

func TestSanitizeDoesNotMutateInput(t *testing.T) {
	in := []float64{1, math.NaN(), 3}
	out := Sanitize(in, 0)
	if !math.IsNaN(in[1]) {
		t.Fatal("Sanitize mutated its input")
	}
	if out[1] != 0 {
		t.Errorf("got %v, want 0", out[1])
	}
}

func TestValidateArray(t *testing.T) {
	if _, ok := ValidateArray([]float64{1, 2}, 3); ok {
		t.Error("wrong length should fail")
	}
	if _, ok := ValidateArray([]float64{1, math.NaN(), 3}, 3); ok {
		t.Error("non-finite element should fail")
	}
	out, ok := ValidateArray([]float64{1, 2, 3}, 3)
	if !ok || len(out) != 3 {
		t.Errorf("valid array should pass, got %v, %v", out, ok)
	}
}
