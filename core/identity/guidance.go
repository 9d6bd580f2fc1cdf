package identity

import (
	"github.com/echocog/aril/core/energy"
	"github.com/echocog/aril/core/guidance"
	"github.com/echocog/aril/core/insight"
	"github.com/echocog/aril/core/mode"
)

// Guidance ranks directives from the current state for display to the
// host (§4.15). This is a read-only query, not part of the session
// boundary: it may be called at any time, active session or not.
func (id *UnifiedIdentity) Guidance() []guidance.Directive {
	names := id.vocab.Names()
	n := id.vocab.N()

	var gradients []float64
	if grad, err := energy.ComputeEnergyGradient(id.state, id.params, id.vocab); err == nil {
		gradients = grad.Gradients
	}

	tunneling := make(map[string]float64, n)
	for i, name := range names {
		tunneling[name] = id.modeObserver.TunnelingProbability(i, id.state.W[i], id.params.A)
	}

	midpoint := energy.NewState(n, 0.5)
	consolidationDelta := mode.ConsolidationDelta(energy.Energy(id.state, id.params, id.vocab), energy.Energy(midpoint, id.params, id.vocab))

	dims, absCoeff := id.mobiusState.StrongestInteraction()

	patterns := id.insightCompiler.Patterns()
	patternList := make([]*insight.Pattern, 0, len(patterns))
	for _, p := range patterns {
		patternList = append(patternList, p)
	}

	modeState := id.lastMode
	if modeState == "" {
		modeState = mode.ModeInsight
	}

	return guidance.Generate(guidance.Inputs{
		DimNames:            names,
		Fitness:             id.replTracker.Fitness(),
		Gradients:           gradients,
		Patterns:            patternList,
		Mode:                modeState,
		TunnelingByDim:      tunneling,
		ConsolidationDelta:  consolidationDelta,
		MobiusStrongestDims: dims,
		MobiusStrongestAbs:  absCoeff,
		MobiusDataAdequate:  id.mobiusState.DataAdequate(),
	})
}

// GuidanceMarkdown renders the current directive list as markdown.
func (id *UnifiedIdentity) GuidanceMarkdown() string {
	return guidance.RenderMarkdown(id.Guidance())
}
