package calibrator

import (
	"math"
	"testing"
)

func TestUnseenDimensionFactorIsOne(t *testing.T) {
	c := New()
	if f := c.Factor("rust"); f != 1.0 {
		t.Errorf("got %v, want 1.0", f)
	}
}

func TestFactorClampedToRange(t *testing.T) {
	c := New()
	// actual consistently far above predicted -> factor should clamp at 3.0
	for i := 0; i < 50; i++ {
		c.Observe("rust", 0.01, 1.0)
	}
	if f := c.Factor("rust"); f > maxFactor+1e-9 {
		t.Errorf("factor = %v, want <= %v", f, maxFactor)
	}
}

func TestAdjustConfidenceOverconfidentDownweights(t *testing.T) {
	c := New()
	for i := 0; i < 50; i++ {
		c.Observe("rust", 0.9, 0.1) // model overconfident: predicted high, actual low
	}
	adjusted := c.AdjustConfidence("rust", 0.9)
	if adjusted >= 0.9 {
		t.Errorf("adjusted = %v, want < raw 0.9 (overconfidence corrected down)", adjusted)
	}
}

func TestAdjustConfidenceClampedToUnitRange(t *testing.T) {
	c := New()
	for i := 0; i < 50; i++ {
		c.Observe("rust", 0.1, 0.9) // underconfident: factor > 1
	}
	adjusted := c.AdjustConfidence("rust", 0.9)
	if adjusted > 1.0 || adjusted < 0 {
		t.Errorf("adjusted = %v, out of [0,1]", adjusted)
	}
}

func TestEMAConverges(t *testing.T) {
	c := New()
	for i := 0; i < 200; i++ {
		c.Observe("go", 0.5, 0.8)
	}
	f := c.Factor("go")
	want := 0.8 / 0.5
	if math.Abs(f-want) > 0.01 {
		t.Errorf("factor = %v, want ~%v after convergence", f, want)
	}
}
