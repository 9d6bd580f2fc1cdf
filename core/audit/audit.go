// Package audit implements the bounded ring buffer of per-session signal
// snapshots (§4.10): the two-phase record connecting a session's signals
// to its energy gradient to its final weight delta, and the only defense
// against the aliased-reference bug described in spec §9.
package audit

import "time"

// Capacity is the audit log's ring buffer size.
const Capacity = 20

// GradientComponents breaks deltaW's three additive terms out for
// diagnostics, mirroring replicator.Components without importing it (the
// audit package only needs three named slices, not the full package).
type GradientComponents struct {
	Energy     []float64
	Outcome    []float64
	Replicator []float64
}

// Snapshot is one session's two-phase audit record. Phase 1 fields are
// populated at computeEnergyGradient time (before the backward pass);
// phase 2 fields are populated once deltaW has been computed and applied.
//
// weightsSessionStart must be captured before the forward pass mutates
// bridge state; weightsBefore is captured after the forward pass but
// before the backward pass; weightsAfter is the final new state. Collapsing
// any of these three into an alias of the live state silently degrades
// Shapley attribution to uniform R/N (§9).
type Snapshot struct {
	// Phase 1 (pre-gradient)
	SessionIndex        int
	Timestamp           time.Time
	R                    float64
	RAdj                 float64
	Signals              []string // signal names contributing to R, for display
	WeightsSessionStart  []float64
	WeightsBefore        []float64
	MetaLearningRates    []float64

	// Phase 2 (post-gradient)
	WeightsAfter []float64
	DeltaW       []float64
	Gradients    GradientComponents
	Attributions []float64
	Fitness      []float64
	BlendAlpha   *float64 // nil when Möbius blend did not apply this session
	MobiusV      *float64 // v_learned(N) - v_learned(∅), nil when not computed
}

// Log is a fixed-capacity ring buffer of Snapshots, oldest entries
// evicted first once Capacity is exceeded.
type Log struct {
	entries []Snapshot
	start   int // index of the oldest entry within entries, once full
}

// NewLog returns an empty audit log.
func NewLog() *Log {
	return &Log{entries: make([]Snapshot, 0, Capacity)}
}

// BeginSession starts phase 1 of a new snapshot and appends it
// immediately, evicting the oldest entry if the log is already at
// Capacity. The caller fills in phase 2 via CompleteSession once the
// backward pass has run.
func (l *Log) BeginSession(s Snapshot) {
	if len(l.entries) < Capacity {
		l.entries = append(l.entries, s)
		return
	}
	l.entries[l.start] = s
	l.start = (l.start + 1) % Capacity
}

// CompleteSession fills in the phase-2 fields of the most recently begun
// snapshot (the one BeginSession most recently wrote).
func (l *Log) CompleteSession(weightsAfter, deltaW []float64, gradients GradientComponents, attributions, fitness []float64, blendAlpha, mobiusV *float64) {
	if len(l.entries) == 0 {
		return
	}
	idx := l.lastIndex()
	l.entries[idx].WeightsAfter = weightsAfter
	l.entries[idx].DeltaW = deltaW
	l.entries[idx].Gradients = gradients
	l.entries[idx].Attributions = attributions
	l.entries[idx].Fitness = fitness
	l.entries[idx].BlendAlpha = blendAlpha
	l.entries[idx].MobiusV = mobiusV
}

// lastIndex returns the slice index of the most recently appended entry,
// accounting for ring-buffer wraparound once the log is at capacity.
func (l *Log) lastIndex() int {
	if len(l.entries) < Capacity {
		return len(l.entries) - 1
	}
	return (l.start - 1 + Capacity) % Capacity
}

// Entries returns the log's snapshots in chronological order (oldest
// first), a fresh slice the caller may retain without aliasing the log.
func (l *Log) Entries() []Snapshot {
	if len(l.entries) < Capacity {
		out := make([]Snapshot, len(l.entries))
		copy(out, l.entries)
		return out
	}
	out := make([]Snapshot, Capacity)
	for i := 0; i < Capacity; i++ {
		out[i] = l.entries[(l.start+i)%Capacity]
	}
	return out
}

// Len returns the number of snapshots currently retained.
func (l *Log) Len() int { return len(l.entries) }

// Latest returns the most recently begun snapshot and true (its phase-2
// fields stay empty until CompleteSession runs), or a zero Snapshot and
// false if the log is empty.
func (l *Log) Latest() (Snapshot, bool) {
	if len(l.entries) == 0 {
		return Snapshot{}, false
	}
	return l.entries[l.lastIndex()], true
}

// Restore rebuilds a Log from a previously persisted chronological
// (oldest-first) snapshot slice.
func Restore(entries []Snapshot) *Log {
	l := NewLog()
	for _, e := range entries {
		l.BeginSession(e)
	}
	return l
}
