// Package outcome implements the weighted-signal-fusion session scorer
// (§4.5): it fuses energy/coherence deltas, declarations made, error
// density, the session's explore/implement/verify arc, insight quality,
// and any caller-supplied external signals into R, then tracks an EMA
// baseline to produce R_adj.
package outcome

import (
	"math"

	"github.com/echocog/aril/core/numerics"
	"github.com/echocog/aril/core/observer"
	"github.com/echocog/aril/core/strategy"
)

// Signal is one weighted component of R.
type Signal struct {
	Name   string
	Value  float64 // in [-1,1] after mapping
	Weight float64
}

// Result is the per-session outcome.
type Result struct {
	R          float64
	RAdj       float64
	EnergyDelta float64
	Signals    []Signal
}

// Tau scales the tanh saturation of the energy/coherence deltas. Defaults
// of 1.0 are a tuning choice, not a theorem (mirrors the Möbius order
// threshold's status in spec §9).
type Config struct {
	TauEnergy    float64
	TauCoherence float64
}

// DefaultConfig returns the evaluator's default tau scales.
func DefaultConfig() Config {
	return Config{TauEnergy: 1.0, TauCoherence: 1.0}
}

// Insight is the minimal shape the outcome evaluator needs from a
// reflection insight to compute signal quality; it mirrors C14's richer
// Insight type without importing it (outcome must not depend on insight).
type Insight struct {
	Confidence float64
	IsPivotal  bool
}

// Inputs bundles everything Evaluate needs for one session.
type Inputs struct {
	EnergyBefore     float64
	EnergyAfter      float64
	CoherenceBefore  float64
	CoherenceAfter   float64
	DeclarationCount int
	ToolCalls        []observer.ToolCall
	Failures         int
	Insights         []Insight
	External         []Signal // caller-provided, e.g. {"git_survived", v, w}
}

// Evaluator holds the running EMA baseline across sessions.
type Evaluator struct {
	cfg       Config
	baseline  float64
	seeded    bool
	sessions  int
}

// NewEvaluator constructs an Evaluator with the given tau configuration.
func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Baseline returns the current EMA baseline.
func (e *Evaluator) Baseline() float64 { return e.baseline }

// SessionCount returns how many sessions have been scored.
func (e *Evaluator) SessionCount() int { return e.sessions }

// Snapshot returns the evaluator's persisted state, for sidecar
// serialization.
func (e *Evaluator) Snapshot() (baseline float64, seeded bool, sessions int) {
	return e.baseline, e.seeded, e.sessions
}

// Restore rebuilds an Evaluator from previously persisted state.
func Restore(cfg Config, baseline float64, seeded bool, sessions int) *Evaluator {
	return &Evaluator{cfg: cfg, baseline: baseline, seeded: seeded, sessions: sessions}
}

const baselineRate = 0.1

// Evaluate scores one session and advances the EMA baseline.
func (e *Evaluator) Evaluate(in Inputs) Result {
	energyDelta := in.EnergyBefore - in.EnergyAfter // positive = improvement
	coherenceDelta := in.CoherenceBefore - in.CoherenceAfter

	signals := []Signal{
		{Name: "energy", Value: math.Tanh(numerics.SafeDivide(energyDelta, e.cfg.TauEnergy, 0)), Weight: 0.25},
		{Name: "coherence", Value: math.Tanh(numerics.SafeDivide(coherenceDelta, e.cfg.TauCoherence, 0)), Weight: 0.15},
		{Name: "declarations", Value: declarationSignal(in.DeclarationCount), Weight: 0.10},
		{Name: "error_density", Value: errorDensitySignal(in.Failures, len(in.ToolCalls)), Weight: 0.15},
	}

	arcValue, arcWeight := sessionArcSignal(in.ToolCalls)
	signals = append(signals, Signal{Name: "session_arc", Value: arcValue, Weight: arcWeight})
	signals = append(signals, Signal{Name: "insight_quality", Value: insightQualitySignal(in.Insights), Weight: 0.10})
	signals = append(signals, in.External...)

	r := fuse(signals)

	if !e.seeded {
		e.baseline = r
		e.seeded = true
	}
	adj := r - e.baseline
	if e.sessions > 0 {
		e.baseline = 0.9*e.baseline + baselineRate*r
	}
	e.sessions++

	return Result{R: r, RAdj: adj, EnergyDelta: energyDelta, Signals: signals}
}

func fuse(signals []Signal) float64 {
	totalWeight := 0.0
	weightedSum := 0.0
	for _, s := range signals {
		if s.Weight == 0 || math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			continue
		}
		totalWeight += s.Weight
		weightedSum += s.Weight * s.Value
	}
	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}

func declarationSignal(count int) float64 {
	v := float64(count) / 3.0
	if v > 1 {
		v = 1
	}
	return v
}

func errorDensitySignal(failures, toolCalls int) float64 {
	if toolCalls == 0 {
		return 1
	}
	ratio := float64(failures) / float64(toolCalls)
	if ratio > 1 {
		ratio = 1
	}
	return 1 - 2*ratio
}

func insightQualitySignal(insights []Insight) float64 {
	if len(insights) == 0 {
		return 0
	}
	sum := 0.0
	count := 0
	for _, ins := range insights {
		if !ins.IsPivotal {
			continue
		}
		sum += numerics.SafeClamp(ins.Confidence, 0, 1, 0)
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// sessionArcSignal classifies the session into one of the explore/
// implement/verify arc states and returns its value and weight. Weight is
// zero and value zero when there were no tool calls at all.
func sessionArcSignal(calls []observer.ToolCall) (float64, float64) {
	if len(calls) == 0 {
		return 0, 0
	}
	var explore, implement, verify bool
	for _, c := range calls {
		switch c.Kind {
		case observer.KindRead, observer.KindGrep, observer.KindGlob:
			explore = true
		case observer.KindEdit, observer.KindWrite:
			implement = true
		case observer.KindBash:
			if strategy.IsVerifyCommand(c.Command) {
				verify = true
			}
		}
	}

	switch {
	case explore && implement && verify:
		return 1.0, 0.15
	case implement && verify:
		return 0.8, 0.15
	case explore && verify:
		return 0.7, 0.15
	case verify:
		return 0.6, 0.15
	case explore && implement:
		return 0.5, 0.15
	case explore:
		return 0.1, 0.15
	default:
		// implement-only or an untracked call shape: weak positive signal,
		// not one of the spec's named states.
		return 0.3, 0.15
	}
}
