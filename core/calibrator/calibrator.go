// Package calibrator tracks, per dimension, an EMA of predicted
// confidence against actual outcome and derives a multiplicative
// correction factor applied to future raw confidence values (§4.12).
package calibrator

import "github.com/echocog/aril/core/numerics"

const emaRate = 0.1
const minFactor = 0.1
const maxFactor = 3.0

// Calibrator holds the per-dimension EMA state.
type Calibrator struct {
	predicted map[string]float64
	actual    map[string]float64
}

// New constructs an empty Calibrator.
func New() *Calibrator {
	return &Calibrator{
		predicted: make(map[string]float64),
		actual:    make(map[string]float64),
	}
}

// Observe folds in a dimension's predicted confidence and the actual
// outcome it turned out to correspond to (both expected in [0,1]).
func (c *Calibrator) Observe(dim string, predicted, actual float64) {
	predicted = numerics.SafeClamp(predicted, 0, 1, 0.5)
	actual = numerics.SafeClamp(actual, 0, 1, 0.5)
	if p, ok := c.predicted[dim]; ok {
		c.predicted[dim] = (1-emaRate)*p + emaRate*predicted
	} else {
		c.predicted[dim] = predicted
	}
	if a, ok := c.actual[dim]; ok {
		c.actual[dim] = (1-emaRate)*a + emaRate*actual
	} else {
		c.actual[dim] = actual
	}
}

// Factor returns the dimension's current correction factor, clamped to
// [0.1, 3.0]; unseen dimensions default to 1.0 (no correction).
func (c *Calibrator) Factor(dim string) float64 {
	predicted, ok := c.predicted[dim]
	if !ok {
		return 1.0
	}
	actual := c.actual[dim]
	f := numerics.SafeDivide(actual, predicted, 1.0)
	return numerics.SafeClamp(f, minFactor, maxFactor, 1.0)
}

// AdjustConfidence applies dim's correction factor to a raw confidence
// value, clamping the result to [0,1].
func (c *Calibrator) AdjustConfidence(dim string, raw float64) float64 {
	return numerics.SafeClamp(raw*c.Factor(dim), 0, 1, 0)
}

// Snapshot returns copies of the predicted/actual EMA maps, for
// persistence.
func (c *Calibrator) Snapshot() (predicted, actual map[string]float64) {
	p := make(map[string]float64, len(c.predicted))
	for k, v := range c.predicted {
		p[k] = v
	}
	a := make(map[string]float64, len(c.actual))
	for k, v := range c.actual {
		a[k] = v
	}
	return p, a
}

// Restore rebuilds a Calibrator from previously persisted EMA maps.
func Restore(predicted, actual map[string]float64) *Calibrator {
	c := New()
	for k, v := range predicted {
		c.predicted[k] = v
	}
	for k, v := range actual {
		c.actual[k] = v
	}
	return c
}
