// Package observer captures a single session's raw tool-call sequence: the
// reads, edits, writes, bash invocations, decisions, failures, and
// information-seeking calls an agent made, plus session timing. It exists
// only for the duration of one session (§3 lifecycle).
package observer

import "time"

// CallKind identifies the tool a single ToolCall represents.
type CallKind string

const (
	KindRead  CallKind = "read"
	KindEdit  CallKind = "edit"
	KindWrite CallKind = "write"
	KindBash  CallKind = "bash"
	KindGrep  CallKind = "grep"
	KindGlob  CallKind = "glob"
	KindOther CallKind = "other"
)

// ToolCall is one observed tool invocation.
type ToolCall struct {
	Kind      CallKind
	Path      string // file path the call touched, stored as supplied (not normalized); empty if none
	Command   string // shell command for bash calls
	Succeeded bool   // meaningful for bash calls
	Timestamp time.Time
}

// Decision records a branching choice the agent made mid-session.
type Decision struct {
	Description string
	Timestamp   time.Time
}

// Failure records an observed failure independent of a specific ToolCall
// (e.g. a verification failure surfaced by the host).
type Failure struct {
	Description string
	Timestamp   time.Time
}

// Verification records an explicit verification action (test run, build,
// lint) distinct from the tool-call stream used to infer arcs in C6.
type Verification struct {
	Description string
	Timestamp   time.Time
}

// InformationSeek records an explicit information-gathering action beyond
// plain Read/Grep/Glob calls (e.g. asking a question, consulting docs).
type InformationSeek struct {
	Description string
	Timestamp   time.Time
}

// ResourceUsage is a coarse accounting of session cost, surfaced for
// diagnostics only; the core never gates behavior on it.
type ResourceUsage struct {
	ToolCallCount int
	TokensUsed    int
}

// InteractionRecord is the full per-session capture.
type InteractionRecord struct {
	ToolCalls        []ToolCall
	Decisions        []Decision
	Failures         []Failure
	Verifications    []Verification
	InformationSeeks []InformationSeek
	StartTime        time.Time
	EndTime          time.Time
	ResourceUsage    ResourceUsage
}

// Recorder accumulates a single session's InteractionRecord. It is not
// safe for concurrent use — sessions are single-writer per agent (§5).
type Recorder struct {
	record InteractionRecord
	active bool
}

// NewRecorder starts capture for a new session.
func NewRecorder() *Recorder {
	return &Recorder{
		record: InteractionRecord{StartTime: time.Now()},
		active: true,
	}
}

// Active reports whether a session capture is in progress.
func (r *Recorder) Active() bool {
	return r != nil && r.active
}

func (r *Recorder) RecordToolCall(call ToolCall) {
	if call.Timestamp.IsZero() {
		call.Timestamp = time.Now()
	}
	r.record.ToolCalls = append(r.record.ToolCalls, call)
	r.record.ResourceUsage.ToolCallCount++
}

func (r *Recorder) RecordDecision(description string) {
	r.record.Decisions = append(r.record.Decisions, Decision{Description: description, Timestamp: time.Now()})
}

func (r *Recorder) RecordFailure(description string) {
	r.record.Failures = append(r.record.Failures, Failure{Description: description, Timestamp: time.Now()})
}

func (r *Recorder) RecordVerification(description string) {
	r.record.Verifications = append(r.record.Verifications, Verification{Description: description, Timestamp: time.Now()})
}

func (r *Recorder) RecordInformationSeek(description string) {
	r.record.InformationSeeks = append(r.record.InformationSeeks, InformationSeek{Description: description, Timestamp: time.Now()})
}

// Harvest closes out the session and returns the accumulated record. The
// Recorder is left inactive; callers must create a new one for the next
// session.
func (r *Recorder) Harvest() InteractionRecord {
	r.record.EndTime = time.Now()
	r.active = false
	return r.record
}
