package outcome

import (
	"math"
	"testing"

	"github.com/echocog/aril/core/observer"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestEvaluateFirstSessionBaselineSeeded(t *testing.T) {
	e := NewEvaluator(DefaultConfig())
	res := e.Evaluate(Inputs{
		EnergyBefore:    2.0,
		EnergyAfter:     1.0,
		CoherenceBefore: 1.0,
		CoherenceAfter:  0.5,
	})
	if e.SessionCount() != 1 {
		t.Fatalf("expected session count 1, got %d", e.SessionCount())
	}
	if res.RAdj != 0 {
		t.Errorf("first session R_adj should be 0 (baseline seeded to R), got %v", res.RAdj)
	}
	if e.Baseline() != res.R {
		t.Errorf("baseline should equal first R, got baseline=%v R=%v", e.Baseline(), res.R)
	}
}

func TestEvaluateBaselineEMAUpdatesAfterFirstSession(t *testing.T) {
	e := NewEvaluator(DefaultConfig())
	first := e.Evaluate(Inputs{EnergyBefore: 1, EnergyAfter: 1})
	baselineAfterFirst := e.Baseline()
	second := e.Evaluate(Inputs{EnergyBefore: 5, EnergyAfter: 0})
	wantBaseline := 0.9*baselineAfterFirst + 0.1*second.R
	if !approxEqual(e.Baseline(), wantBaseline, 1e-9) {
		t.Errorf("baseline = %v, want %v", e.Baseline(), wantBaseline)
	}
	if !approxEqual(second.RAdj, second.R-baselineAfterFirst, 1e-9) {
		t.Errorf("R_adj = %v, want %v", second.RAdj, second.R-baselineAfterFirst)
	}
	_ = first
}

func TestEnergyImprovementIncreasesR(t *testing.T) {
	e := NewEvaluator(DefaultConfig())
	worse := e.Evaluate(Inputs{EnergyBefore: 1, EnergyAfter: 2})
	e2 := NewEvaluator(DefaultConfig())
	better := e2.Evaluate(Inputs{EnergyBefore: 2, EnergyAfter: 1})
	if better.R <= worse.R {
		t.Errorf("energy decrease should score higher: better.R=%v worse.R=%v", better.R, worse.R)
	}
}

func TestSessionArcFullArcScoresHighest(t *testing.T) {
	full := []observer.ToolCall{
		{Kind: observer.KindRead, Path: "a.go"},
		{Kind: observer.KindEdit, Path: "a.go"},
		{Kind: observer.KindBash, Command: "go test ./...", Succeeded: true},
	}
	v, w := sessionArcSignal(full)
	if v != 1.0 || w != 0.15 {
		t.Errorf("full arc = (%v,%v), want (1.0,0.15)", v, w)
	}

	exploreOnly := []observer.ToolCall{{Kind: observer.KindRead, Path: "a.go"}}
	v2, _ := sessionArcSignal(exploreOnly)
	if v2 != 0.1 {
		t.Errorf("explore-only = %v, want 0.1", v2)
	}

	noCalls := []observer.ToolCall{}
	v3, w3 := sessionArcSignal(noCalls)
	if v3 != 0 || w3 != 0 {
		t.Errorf("no calls = (%v,%v), want (0,0)", v3, w3)
	}
}

func TestInsightQualityIgnoresNonPivotal(t *testing.T) {
	insights := []Insight{
		{Confidence: 0.9, IsPivotal: true},
		{Confidence: 0.1, IsPivotal: false},
	}
	got := insightQualitySignal(insights)
	if got != 0.9 {
		t.Errorf("got %v, want 0.9 (non-pivotal excluded)", got)
	}
}

func TestErrorDensitySignalNoToolCalls(t *testing.T) {
	if got := errorDensitySignal(0, 0); got != 1 {
		t.Errorf("got %v, want 1", got)
	}
}

func TestDeclarationSignalSaturatesAtThree(t *testing.T) {
	if got := declarationSignal(5); got != 1 {
		t.Errorf("got %v, want 1", got)
	}
	if got := declarationSignal(0); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

func TestFuseIgnoresZeroWeightSignals(t *testing.T) {
	r := fuse([]Signal{
		{Value: 1.0, Weight: 1.0},
		{Value: -1.0, Weight: 0}, // should be ignored
	})
	if r != 1.0 {
		t.Errorf("got %v, want 1.0", r)
	}
}

func TestFuseAllZeroWeightReturnsZero(t *testing.T) {
	r := fuse([]Signal{{Value: 1.0, Weight: 0}})
	if r != 0 {
		t.Errorf("got %v, want 0", r)
	}
}
