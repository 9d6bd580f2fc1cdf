package guidance

import (
	"strings"
	"testing"

	"github.com/echocog/aril/core/insight"
	"github.com/echocog/aril/core/mode"
)

func TestGenerateSortsByStrengthThenScore(t *testing.T) {
	in := Inputs{
		DimNames:  []string{"rust", "python"},
		Fitness:   []float64{0.9, 0.1},
		Gradients: []float64{0.8, 0.01},
		Mode:      mode.ModeSearch,
	}
	directives := Generate(in)
	if len(directives) == 0 {
		t.Fatal("expected at least one directive")
	}
	for i := 1; i < len(directives); i++ {
		if strengthRank[directives[i-1].Strength] > strengthRank[directives[i].Strength] {
			t.Errorf("directives not sorted by strength at index %d: %v before %v", i, directives[i-1].Strength, directives[i].Strength)
		}
		if directives[i-1].Strength == directives[i].Strength && directives[i-1].score < directives[i].score {
			t.Errorf("directives not sorted by score within %v at index %d: %v before %v", directives[i].Strength, i, directives[i-1].score, directives[i].score)
		}
	}
}

func TestGradientDirectiveStrengthThreshold(t *testing.T) {
	in := Inputs{
		DimNames:  []string{"rust"},
		Fitness:   []float64{0},
		Gradients: []float64{0.9}, // above gradientMustThreshold
	}
	directives := Generate(in)
	found := false
	for _, d := range directives {
		if d.Source == "gradient" {
			found = true
			if d.Strength != Must {
				t.Errorf("expected Must for large gradient, got %v", d.Strength)
			}
		}
	}
	if !found {
		t.Error("expected a gradient directive")
	}
}

func TestPatternDirectiveConfidenceStrength(t *testing.T) {
	patterns := []*insight.Pattern{{Dim: "rust", Confidence: 0.8}}
	directives := Generate(Inputs{Patterns: patterns})
	if len(directives) != 1 || directives[0].Strength != Must {
		t.Errorf("expected single Must directive, got %v", directives)
	}
}

func TestObserverSearchModeDirective(t *testing.T) {
	directives := Generate(Inputs{Mode: mode.ModeSearch})
	found := false
	for _, d := range directives {
		if d.Source == "observer" && d.Strength == Consider {
			found = true
		}
	}
	if !found {
		t.Error("expected a Consider-strength observer directive in search mode")
	}
}

func TestMobiusDirectiveRequiresDataAdequate(t *testing.T) {
	in := Inputs{
		DimNames:            []string{"a", "b"},
		MobiusStrongestDims: []int{0, 1},
		MobiusStrongestAbs:  0.5,
		MobiusDataAdequate:  false,
	}
	directives := Generate(in)
	for _, d := range directives {
		if d.Source == "mobius" {
			t.Error("expected no mobius directive when data is not adequate")
		}
	}
}

func TestRenderMarkdownGroupsByStrength(t *testing.T) {
	directives := []Directive{
		{Message: "do this now", Strength: Must},
		{Message: "consider this", Strength: Consider},
		{Message: "should do this", Strength: Should},
	}
	md := RenderMarkdown(directives)
	mustIdx := strings.Index(md, "## Must")
	shouldIdx := strings.Index(md, "## Should")
	considerIdx := strings.Index(md, "## Consider")
	if mustIdx == -1 || shouldIdx == -1 || considerIdx == -1 {
		t.Fatalf("expected all three headings present: %s", md)
	}
	if !(mustIdx < shouldIdx && shouldIdx < considerIdx) {
		t.Errorf("expected heading order Must < Should < Consider, got offsets %d %d %d", mustIdx, shouldIdx, considerIdx)
	}
}

func TestRenderMarkdownEmptyDirectives(t *testing.T) {
	md := RenderMarkdown(nil)
	if md != "\n" {
		t.Errorf("expected a single trailing newline for empty input, got %q", md)
	}
}
