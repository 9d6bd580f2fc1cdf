// Package guidance ranks actionable directives from fitness, the energy
// gradient, compiled insight patterns, the mode observer, and the Möbius
// diagnostics into a single sorted list, and projects that list to
// markdown deterministically (§4.15).
package guidance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/echocog/aril/core/insight"
	"github.com/echocog/aril/core/mode"
)

// Strength is a directive's urgency tier.
type Strength string

const (
	Must     Strength = "must"
	Should   Strength = "should"
	Consider Strength = "consider"
)

var strengthRank = map[Strength]int{Must: 0, Should: 1, Consider: 2}

// Directive is one ranked piece of guidance.
type Directive struct {
	Source   string
	Dim      string
	Message  string
	Strength Strength
	score    float64 // tie-break within a strength tier, descending
}

// topFitnessCount bounds how many top-fitness dimensions generate a
// directive, so the list doesn't grow unbounded with N.
const topFitnessCount = 3

// gradientMustThreshold: a gradient whose magnitude reaches this is urgent
// enough to rank "must" rather than "should".
const gradientMustThreshold = 0.5

// patternMustConfidence: a compiled pattern at or above this confidence is
// ranked "must"; below it, "should".
const patternMustConfidence = 0.7

// tunnelingConsiderThreshold: dims at or above this tunneling probability
// surface a directive.
const tunnelingConsiderThreshold = 0.3

// Inputs bundles everything Generate needs for one session.
type Inputs struct {
	DimNames            []string
	Fitness             []float64
	Gradients           []float64
	Patterns            []*insight.Pattern
	Mode                mode.Mode
	TunnelingByDim      map[string]float64 // dim name -> tunneling probability
	ConsolidationDelta  float64
	MobiusStrongestDims []int
	MobiusStrongestAbs  float64
	MobiusDataAdequate  bool
}

// Generate produces the ranked directive list for one session.
func Generate(in Inputs) []Directive {
	var out []Directive
	out = append(out, fitnessDirectives(in.DimNames, in.Fitness)...)
	out = append(out, gradientDirectives(in.DimNames, in.Gradients)...)
	out = append(out, patternDirectives(in.Patterns)...)
	out = append(out, observerDirectives(in.Mode, in.TunnelingByDim, in.ConsolidationDelta)...)
	out = append(out, mobiusDirectives(in.DimNames, in.MobiusStrongestDims, in.MobiusStrongestAbs, in.MobiusDataAdequate)...)

	sort.SliceStable(out, func(i, j int) bool {
		if strengthRank[out[i].Strength] != strengthRank[out[j].Strength] {
			return strengthRank[out[i].Strength] < strengthRank[out[j].Strength]
		}
		return out[i].score > out[j].score
	})
	return out
}

func fitnessDirectives(names []string, fitness []float64) []Directive {
	type ranked struct {
		idx int
		f   float64
	}
	rs := make([]ranked, 0, len(fitness))
	for i, f := range fitness {
		rs = append(rs, ranked{idx: i, f: f})
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].f > rs[j].f })

	var out []Directive
	for k := 0; k < topFitnessCount && k < len(rs); k++ {
		r := rs[k]
		if r.f <= 0 {
			continue
		}
		dim := dimName(names, r.idx)
		out = append(out, Directive{
			Source:   "fitness",
			Dim:      dim,
			Message:  fmt.Sprintf("Reinforce %s: it has the highest contribution to recent outcomes.", dim),
			Strength: Should,
			score:    r.f,
		})
	}
	return out
}

func gradientDirectives(names []string, gradients []float64) []Directive {
	var out []Directive
	for i, g := range gradients {
		dim := dimName(names, i)
		mag := g
		if mag < 0 {
			mag = -mag
		}
		if mag < 1e-9 {
			continue
		}
		strength := Should
		if mag >= gradientMustThreshold {
			strength = Must
		}
		direction := "increase"
		if g > 0 {
			direction = "decrease"
		}
		out = append(out, Directive{
			Source:   "gradient",
			Dim:      dim,
			Message:  fmt.Sprintf("Energy gradient favors %s for %s.", direction, dim),
			Strength: strength,
			score:    mag,
		})
	}
	return out
}

func patternDirectives(patterns []*insight.Pattern) []Directive {
	var out []Directive
	for _, p := range patterns {
		strength := Should
		if p.Confidence >= patternMustConfidence {
			strength = Must
		}
		out = append(out, Directive{
			Source:   "pattern",
			Dim:      p.Dim,
			Message:  fmt.Sprintf("Apply the compiled pattern for %s (confidence %.2f).", p.Dim, p.Confidence),
			Strength: strength,
			score:    p.Confidence,
		})
	}
	return out
}

func observerDirectives(m mode.Mode, tunneling map[string]float64, consolidationDelta float64) []Directive {
	var out []Directive
	switch m {
	case mode.ModeSearch:
		out = append(out, Directive{
			Source:   "observer",
			Message:  "Session is in search mode: keep exploring before committing to a strategy.",
			Strength: Consider,
			score:    0,
		})
	case mode.ModeInsight:
		out = append(out, Directive{
			Source:   "observer",
			Message:  "Session is in insight mode: consolidate the current approach.",
			Strength: Should,
			score:    0,
		})
	}
	for dim, p := range tunneling {
		if p >= tunnelingConsiderThreshold {
			out = append(out, Directive{
				Source:   "observer",
				Dim:      dim,
				Message:  fmt.Sprintf("%s shows elevated tunneling probability (%.2f): a strategy shift there may be imminent.", dim, p),
				Strength: Consider,
				score:    p,
			})
		}
	}
	if consolidationDelta < 0 {
		out = append(out, Directive{
			Source:   "observer",
			Message:  "Current profile outperforms the uninformed midpoint baseline.",
			Strength: Consider,
			score:    -consolidationDelta,
		})
	}
	return out
}

func mobiusDirectives(names []string, dims []int, absCoeff float64, dataAdequate bool) []Directive {
	if !dataAdequate || len(dims) == 0 {
		return nil
	}
	dimNames := make([]string, len(dims))
	for i, d := range dims {
		dimNames[i] = dimName(names, d)
	}
	return []Directive{{
		Source:   "mobius",
		Message:  fmt.Sprintf("Dimensions %s show a learned synergy (|coeff|=%.3f): consider them jointly.", strings.Join(dimNames, "+"), absCoeff),
		Strength: Consider,
		score:    absCoeff,
	}}
}

func dimName(names []string, i int) string {
	if i >= 0 && i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("dim%d", i)
}

// RenderMarkdown is a deterministic projection of a ranked directive list
// to markdown: one bullet per directive, grouped under its strength
// heading, in the list's given order (callers must pass an already-sorted
// list from Generate).
func RenderMarkdown(directives []Directive) string {
	var b strings.Builder
	order := []Strength{Must, Should, Consider}
	headings := map[Strength]string{Must: "## Must", Should: "## Should", Consider: "## Consider"}
	for _, s := range order {
		var lines []string
		for _, d := range directives {
			if d.Strength == s {
				lines = append(lines, "- "+d.Message)
			}
		}
		if len(lines) == 0 {
			continue
		}
		b.WriteString(headings[s])
		b.WriteString("\n")
		for _, l := range lines {
			b.WriteString(l)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
