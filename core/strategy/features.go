// Package strategy maps an observed tool-call sequence onto five objective
// behavioral features in [0,1] (§4.4): readBeforeEdit, testAfterChange,
// contextGathering, outputVerification, and errorRecoverySpeed.
package strategy

import (
	"math"

	"github.com/echocog/aril/core/observer"
)

// Features holds the five extracted scalars, all in [0,1].
type Features struct {
	ReadBeforeEdit     float64
	TestAfterChange    float64
	ContextGathering   float64
	OutputVerification float64
	ErrorRecoverySpeed float64
}

const testAfterChangeLookahead = 5
const errorRecoveryCap = 20

// Extract computes the five features from a session's tool-call sequence.
func Extract(calls []observer.ToolCall) Features {
	return Features{
		ReadBeforeEdit:     readBeforeEdit(calls),
		TestAfterChange:    testAfterChange(calls),
		ContextGathering:   contextGathering(calls),
		OutputVerification: outputVerification(calls),
		ErrorRecoverySpeed: errorRecoverySpeed(calls),
	}
}

func readBeforeEdit(calls []observer.ToolCall) float64 {
	edits := 0
	satisfied := 0
	for i, c := range calls {
		if c.Kind != observer.KindEdit {
			continue
		}
		edits++
		path := NormalizePath(c.Path)
		for j := 0; j < i; j++ {
			prior := calls[j]
			if prior.Kind == observer.KindRead && NormalizePath(prior.Path) == path {
				satisfied++
				break
			}
		}
	}
	if edits == 0 {
		return 0
	}
	return float64(satisfied) / float64(edits)
}

func testAfterChange(calls []observer.ToolCall) float64 {
	edits := 0
	satisfied := 0
	for i, c := range calls {
		if c.Kind != observer.KindEdit {
			continue
		}
		edits++
		limit := i + 1 + testAfterChangeLookahead
		if limit > len(calls) {
			limit = len(calls)
		}
		for j := i + 1; j < limit; j++ {
			if calls[j].Kind == observer.KindBash && IsTestCommand(calls[j].Command) {
				satisfied++
				break
			}
		}
	}
	if edits == 0 {
		return 0
	}
	return float64(satisfied) / float64(edits)
}

func contextGathering(calls []observer.ToolCall) float64 {
	if len(calls) == 0 {
		return 0
	}
	firstThird := int(math.Ceil(float64(len(calls)) / 3))
	if firstThird == 0 {
		return 0
	}
	if firstThird > len(calls) {
		firstThird = len(calls)
	}
	gathering := 0
	for _, c := range calls[:firstThird] {
		if c.Kind == observer.KindRead || c.Kind == observer.KindGrep || c.Kind == observer.KindGlob {
			gathering++
		}
	}
	return float64(gathering) / float64(firstThird)
}

func outputVerification(calls []observer.ToolCall) float64 {
	writes := 0
	satisfied := 0
	for i, c := range calls {
		if c.Kind != observer.KindWrite {
			continue
		}
		writes++
		path := NormalizePath(c.Path)
		for j := i + 1; j < len(calls); j++ {
			later := calls[j]
			if later.Kind == observer.KindRead && NormalizePath(later.Path) == path {
				satisfied++
				break
			}
		}
	}
	if writes == 0 {
		return 0
	}
	return float64(satisfied) / float64(writes)
}

func errorRecoverySpeed(calls []observer.ToolCall) float64 {
	var recoveryCounts []int
	for i, c := range calls {
		if c.Kind != observer.KindBash || c.Succeeded {
			continue
		}
		count := errorRecoveryCap
		for j := i + 1; j < len(calls); j++ {
			if calls[j].Kind == observer.KindBash && calls[j].Succeeded {
				count = j - i
				break
			}
		}
		if count > errorRecoveryCap {
			count = errorRecoveryCap
		}
		recoveryCounts = append(recoveryCounts, count)
	}
	if len(recoveryCounts) == 0 {
		return 1.0
	}
	sum := 0
	for _, c := range recoveryCounts {
		sum += c
	}
	mean := float64(sum) / float64(len(recoveryCounts))
	if mean <= 0 {
		return 1.0
	}
	r := 1.0 / mean
	if r > 1 {
		r = 1
	}
	return r
}
