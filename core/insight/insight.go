// Package insight clusters incoming reflection insights by vocabulary
// dimension and compiles them into named patterns once a dimension has
// enough corroborating insights and above-average fitness (§4.14).
package insight

import (
	"math"

	"github.com/echocog/aril/core/numerics"
)

// Insight is one parsed reflection record (mirrors the LLM grammar's
// INSIGHT|dim|observation|interpretation|suggestedValue|confidence|isPivotal
// line, §6).
type Insight struct {
	Dim            string
	Observation    string
	Interpretation string
	SuggestedValue float64
	Confidence     float64
	IsPivotal      bool
	SessionIndex   int
}

// minInsightsToCompile is the cardinality gate (a) in §4.14.
const minInsightsToCompile = 3

// decayBase scales how fast a compiled pattern's confidence decays per
// session since it was last reinforced; low-fitness patterns decay
// faster because the rate itself is inversely weighted by fitness.
const decayBase = 0.2

// Pattern is a compiled cluster of insights for one dimension.
type Pattern struct {
	Dim                   string
	Insights              []Insight
	Confidence            float64
	LastReinforcedSession int
}

// Compiler accumulates insights per dimension and compiles patterns.
type Compiler struct {
	byDim    map[string][]Insight
	patterns map[string]*Pattern
}

// New constructs an empty Compiler.
func New() *Compiler {
	return &Compiler{
		byDim:    make(map[string][]Insight),
		patterns: make(map[string]*Pattern),
	}
}

// Ingest records a new insight under its dimension's cluster.
func (c *Compiler) Ingest(ins Insight) {
	c.byDim[ins.Dim] = append(c.byDim[ins.Dim], ins)
}

// Patterns returns every currently compiled pattern.
func (c *Compiler) Patterns() map[string]*Pattern {
	return c.patterns
}

// Compile re-evaluates every dimension's cluster against the gates and
// (re)compiles or reinforces its pattern. dimFitness maps a dimension
// name to its current fitness value (via the caller's vocab name→index
// lookup). When dimFitness is nil or empty the above-mean-fitness gate is
// skipped for every dimension; when it is non-empty, a dimension missing
// from it is not compiled.
func (c *Compiler) Compile(dimFitness map[string]float64, currentSession int) []*Pattern {
	meanFitness := 0.0
	if len(dimFitness) > 0 {
		sum := 0.0
		for _, f := range dimFitness {
			sum += f
		}
		meanFitness = sum / float64(len(dimFitness))
	}

	var compiled []*Pattern
	for dim, insights := range c.byDim {
		if len(insights) < minInsightsToCompile {
			continue
		}
		if len(dimFitness) > 0 {
			f, ok := dimFitness[dim]
			if !ok || f <= meanFitness {
				continue
			}
		}

		fitness := dimFitness[dim]
		p, exists := c.patterns[dim]
		if !exists {
			p = &Pattern{Dim: dim}
			c.patterns[dim] = p
		}
		p.Insights = insights
		p.LastReinforcedSession = currentSession
		p.Confidence = confidenceFor(fitness, 0)
		compiled = append(compiled, p)
	}
	return compiled
}

// DecayAll advances every compiled pattern's confidence by the number of
// sessions elapsed since it was last reinforced, without adding new
// insights. Call once per session that doesn't reinforce every pattern.
func (c *Compiler) DecayAll(currentSession int, dimFitness map[string]float64) {
	for dim, p := range c.patterns {
		elapsed := currentSession - p.LastReinforcedSession
		if elapsed <= 0 {
			continue
		}
		fitness := dimFitness[dim]
		p.Confidence = confidenceFor(fitness, elapsed)
	}
}

// Snapshot returns copies of the compiler's per-dim insight clusters and
// compiled patterns, for persistence.
func (c *Compiler) Snapshot() (byDim map[string][]Insight, patterns map[string]Pattern) {
	byDim = make(map[string][]Insight, len(c.byDim))
	for dim, ins := range c.byDim {
		byDim[dim] = append([]Insight(nil), ins...)
	}
	patterns = make(map[string]Pattern, len(c.patterns))
	for dim, p := range c.patterns {
		patterns[dim] = *p
	}
	return byDim, patterns
}

// Restore rebuilds a Compiler from a previously persisted snapshot.
func Restore(byDim map[string][]Insight, patterns map[string]Pattern) *Compiler {
	c := New()
	for dim, ins := range byDim {
		c.byDim[dim] = append([]Insight(nil), ins...)
	}
	for dim, p := range patterns {
		cp := p
		c.patterns[dim] = &cp
	}
	return c
}

func confidenceFor(fitness float64, sessionsSinceReinforced int) float64 {
	base := numerics.SafeClamp(fitness, 0, 1, 0)
	// Low fitness -> faster decay: the rate scales inversely with base.
	rate := decayBase * (1.5 - base)
	decay := math.Exp(-rate * float64(sessionsSinceReinforced))
	return numerics.SafeClamp(base*decay, 0, 1, 0)
}
