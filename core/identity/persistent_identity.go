// Package identity wires every ARIL subsystem into the single session
// boundary described in §4.17: one agent, one vocabulary, one evolving
// self-state, and the full forward (energy evolution) / backward
// (Shapley attribution, replicator update) pass that runs once per
// completed session.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/atomic"

	"github.com/echocog/aril/core/audit"
	"github.com/echocog/aril/core/calibrator"
	"github.com/echocog/aril/core/chain"
	"github.com/echocog/aril/core/correlation"
	"github.com/echocog/aril/core/domain"
	"github.com/echocog/aril/core/energy"
	"github.com/echocog/aril/core/insight"
	"github.com/echocog/aril/core/llm"
	"github.com/echocog/aril/core/mobius"
	"github.com/echocog/aril/core/mode"
	"github.com/echocog/aril/core/numerics"
	"github.com/echocog/aril/core/observer"
	"github.com/echocog/aril/core/outcome"
	"github.com/echocog/aril/core/persistence"
	"github.com/echocog/aril/core/replicator"
	"github.com/echocog/aril/core/shapley"
	"github.com/echocog/aril/core/strategy"
	"github.com/echocog/aril/core/telemetry"
	"github.com/echocog/aril/core/vocab"
)

var (
	// ErrSessionActive is returned by StartSession when a session is
	// already in progress.
	ErrSessionActive = errors.New("identity: a session is already active")
	// ErrNoActiveSession is returned by EndSession when no session was
	// started.
	ErrNoActiveSession = errors.New("identity: no active session")
	// ErrChainTampered is returned when the declaration chain fails
	// verification, e.g. on wake-from-stored.
	ErrChainTampered = errors.New("identity: declaration chain verification failed")
	// ErrLengthMismatch reports two arrays that must be paired
	// element-by-element differing in length. No function in this package
	// returns it.
	ErrLengthMismatch = errors.New("identity: paired arrays have mismatched length")
)

// snapshotRingCapacity bounds the consolidated-init snapshot ring (§4.16:
// "given up-to-5 snapshots").
const snapshotRingCapacity = 5

// defaultEvolveSteps, defaultDt, and defaultSigma are the forward pass's
// default dynamics, used when EndSessionInput leaves them at zero.
const (
	defaultEvolveSteps = 1
	defaultDt          = 0.05
	defaultSigma       = 0.1
)

// ARILState is the minimal DTO spec §3 names explicitly: fitness, the
// meta-learning rates, and the monotone session counter.
type ARILState struct {
	Fitness           []float64
	MetaLearningRates []float64
	SessionCount      int64
}

// Snapshot is a prior session's consolidated-init input, re-exported from
// the persistence package for callers that only import core/identity.
type Snapshot = persistence.Snapshot

// AuditSnapshot is one session's two-phase audit record, re-exported from
// the audit package.
type AuditSnapshot = audit.Snapshot

// EndSessionInput bundles the optional knobs and external context
// EndSession needs: a reflection prompt for the LLM (if a non-stub
// provider is wired), explicit external outcome signals, and the forward
// pass's dynamics. Zero values fall back to the orchestrator's defaults.
type EndSessionInput struct {
	ReflectionPrompt string         // if empty, a default prompt is built from the session's tool calls
	SystemPrompt     string
	ExternalSignals  []outcome.Signal
	EvolveSteps      int
	Dt               float64
	Sigma            float64
	Experience       []float64 // per-dim forward-pass perturbation; nil derives one from strategy features
}

// UnifiedIdentity owns every ARIL component for one agent and enforces
// the single-active-session boundary (§5: one session active at a time).
type UnifiedIdentity struct {
	vocab  *vocab.Vocabulary
	params energy.Params
	state  *energy.State

	declarations []chain.Declaration

	evaluator      *outcome.Evaluator
	corrHistory    *correlation.History
	mobiusState    *mobius.State
	mobiusBaseline []float64

	replParams  replicator.Params
	replTracker *replicator.Tracker

	modeObserver    *mode.Observer
	calib           *calibrator.Calibrator
	domainTracker   *domain.Tracker
	insightCompiler *insight.Compiler

	auditLog     *audit.Log
	snapshotRing []persistence.Snapshot

	store       persistence.LogStore
	llmProvider llm.Provider
	pinger      telemetry.Pinger

	sessionCount atomic.Int64

	recorder  *observer.Recorder
	sessionID string
	active    bool

	telemetryNonce atomic.Pointer[[]byte]

	lastMode mode.Mode
}

// New constructs a fresh UnifiedIdentity over the given vocabulary and
// dynamics parameters. store is required; llmProvider and pinger may be
// nil (a nil llmProvider disables reflection; a nil pinger disables
// telemetry entirely, independent of any configuration knob — per §9,
// telemetry is opt-in by explicit wiring only).
func New(v *vocab.Vocabulary, params energy.Params, store persistence.LogStore, llmProvider llm.Provider, pinger telemetry.Pinger) *UnifiedIdentity {
	n := v.N()
	replParams := replicator.DefaultParams()
	id := &UnifiedIdentity{
		vocab:           v,
		params:          params,
		state:           energy.NewState(n, 0.5),
		evaluator:       outcome.NewEvaluator(outcome.DefaultConfig()),
		corrHistory:     correlation.NewHistory(n),
		mobiusState:     mobius.NewState(n),
		mobiusBaseline:  make([]float64, n),
		replParams:      replParams,
		replTracker:     replicator.NewTracker(n, replParams),
		modeObserver:    mode.NewObserver(mode.DefaultThreshold, 10, nil),
		calib:           calibrator.New(),
		domainTracker:   domain.New(),
		insightCompiler: insight.New(),
		auditLog:        audit.NewLog(),
		store:           store,
		llmProvider:     llmProvider,
		pinger:          pinger,
	}
	for i := range id.mobiusBaseline {
		id.mobiusBaseline[i] = 0.5
	}
	return id
}

// StartSession begins a new session's observer capture and, if
// telemetry is wired, fires a start-ping in the background.
func (id *UnifiedIdentity) StartSession(sessionID string) error {
	if id.active {
		return ErrSessionActive
	}
	id.recorder = observer.NewRecorder()
	id.sessionID = sessionID
	id.active = true
	id.telemetryNonce.Store(nil)

	if id.pinger != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			nonce, err := id.pinger.StartPing(ctx)
			if err != nil {
				return // fire-and-forget: telemetry failure is silent (§7)
			}
			id.telemetryNonce.Store(&nonce)
		}()
	}
	return nil
}

// RecordToolCall appends a tool call to the live session buffer. A
// missing active session is a warning, never an error (§7).
func (id *UnifiedIdentity) RecordToolCall(call observer.ToolCall) {
	if !id.requireActiveForRecord("RecordToolCall") {
		return
	}
	id.recorder.RecordToolCall(call)
}

// RecordDecision appends a decision to the live session buffer.
func (id *UnifiedIdentity) RecordDecision(description string) {
	if !id.requireActiveForRecord("RecordDecision") {
		return
	}
	id.recorder.RecordDecision(description)
}

// RecordFailure appends an observed failure to the live session buffer.
func (id *UnifiedIdentity) RecordFailure(description string) {
	if !id.requireActiveForRecord("RecordFailure") {
		return
	}
	id.recorder.RecordFailure(description)
}

// RecordInformationSeek appends an information-seeking action.
func (id *UnifiedIdentity) RecordInformationSeek(description string) {
	if !id.requireActiveForRecord("RecordInformationSeek") {
		return
	}
	id.recorder.RecordInformationSeek(description)
}

// RecordVerification appends an explicit verification action.
func (id *UnifiedIdentity) RecordVerification(description string) {
	if !id.requireActiveForRecord("RecordVerification") {
		return
	}
	id.recorder.RecordVerification(description)
}

func (id *UnifiedIdentity) requireActiveForRecord(op string) bool {
	if !id.active || id.recorder == nil {
		slog.Warn("identity: record called with no active session; dropped", "op", op)
		return false
	}
	return true
}

// EndSession runs the full forward/backward pass over the harvested
// session and persists the resulting state. See §4.17 for the 11-step
// sequence this implements.
func (id *UnifiedIdentity) EndSession(ctx context.Context, in EndSessionInput) error {
	if !id.active || id.recorder == nil {
		return ErrNoActiveSession
	}

	// Step 1: harvest the observer record.
	record := id.recorder.Harvest()
	id.active = false
	id.recorder = nil

	features := strategy.Extract(record.ToolCalls)
	insights := id.reflect(ctx, record, features, in)

	// Step 2: snapshot w before the forward pass mutates anything. This
	// is the mandatory defense against the aliasing bug in spec §9.
	weightsSessionStart := append([]float64(nil), id.state.W...)
	stateAtStart := id.state.Clone()
	energyBefore := energy.Energy(stateAtStart, id.params, id.vocab)
	coherenceBefore := energy.Coherence(stateAtStart)

	// Step 3: apply any declarations a pivotal insight produced, then
	// evolve the bridge forward.
	id.applyPivotalDeclarations(insights)
	if err := id.evolveForward(features, in); err != nil {
		return err
	}
	weightsBefore := append([]float64(nil), id.state.W...)
	energyAfter := energy.Energy(id.state, id.params, id.vocab)
	coherenceAfter := energy.Coherence(id.state)

	outcomeInsights := make([]outcome.Insight, len(insights))
	for i, ins := range insights {
		outcomeInsights[i] = outcome.Insight{Confidence: ins.Confidence, IsPivotal: ins.IsPivotal}
	}
	result := id.evaluator.Evaluate(outcome.Inputs{
		EnergyBefore:     energyBefore,
		EnergyAfter:      energyAfter,
		CoherenceBefore:  coherenceBefore,
		CoherenceAfter:   coherenceAfter,
		DeclarationCount: countDeclarationsThisSession(insights),
		ToolCalls:        record.ToolCalls,
		Failures:         len(record.Failures),
		Insights:         outcomeInsights,
		External:         in.ExternalSignals,
	})

	// Step 4: Phase-1 audit snapshot; energy gradient; per-dim weight
	// change against the session-start snapshot.
	grad, err := energy.ComputeEnergyGradient(id.state, id.params, id.vocab)
	if err != nil {
		return fmt.Errorf("identity: compute energy gradient: %w", err)
	}
	deltaVsStart := make([]float64, id.vocab.N())
	for i := range deltaVsStart {
		deltaVsStart[i] = weightsBefore[i] - weightsSessionStart[i]
	}

	sessionIdx := int(id.sessionCount.Load())
	id.auditLog.BeginSession(audit.Snapshot{
		SessionIndex:        sessionIdx,
		Timestamp:           time.Now(),
		R:                   result.R,
		RAdj:                result.RAdj,
		Signals:             signalNames(result.Signals),
		WeightsSessionStart: weightsSessionStart,
		WeightsBefore:       weightsBefore,
		MetaLearningRates:   id.replTracker.MetaRates(),
	})

	// Step 5: exact Shapley attribution, optional Möbius blend, and
	// correlation-history update with *signed* per-dim metrics.
	vf := shapley.SelectValueFunc(id.corrHistory.SessionCount, id.corrHistory.Correlation(), deltaVsStart, result.R)
	shapleyResult, err := shapley.Compute(id.vocab.N(), vf)
	if err != nil {
		return fmt.Errorf("identity: shapley: %w", err)
	}

	mask := mobius.Mask(id.state.W, id.mobiusBaseline)
	id.mobiusState.Observe(mask, result.R, sessionIdx)

	attribution := shapleyResult.Phi
	var blendAlpha *float64
	var mobiusV *float64
	if id.mobiusState.DataAdequate() {
		alpha := mobius.BlendAlpha(id.mobiusState.ObservationCount)
		attribution = mobius.Blend(shapleyResult.Phi, id.mobiusState.Shapley(), alpha)
		blendAlpha = &alpha
		full := uint32(1)<<uint(id.vocab.N()) - 1
		v := id.mobiusState.V(full) - id.mobiusState.V(0)
		mobiusV = &v
	}
	id.corrHistory.Update(deltaVsStart, result.R)

	// Step 6: compute and apply deltaW; Phase-2 audit snapshot.
	replResult := replicator.Update(id.replParams, id.state.W, grad.Gradients, grad.HessianDiag, attribution, id.replTracker.MetaRates(), id.replTracker.Fitness(), result.RAdj)
	id.state.W = replResult.WNew

	id.auditLog.CompleteSession(
		append([]float64(nil), id.state.W...),
		replResult.DeltaW,
		audit.GradientComponents{Energy: replResult.Components.Energy, Outcome: replResult.Components.Outcome, Replicator: replResult.Components.Replicator},
		attribution,
		id.replTracker.Fitness(),
		blendAlpha,
		mobiusV,
	)

	// Step 7: fitness, meta-rates, mode observer, domain tracker, insight
	// compiler, calibrator.
	id.replTracker.UpdateFitness(result.R, attribution)
	id.replTracker.RecordAttribution(attribution)

	gradNorm2 := 0.0
	for _, g := range grad.Gradients {
		gradNorm2 += g * g
	}
	modeResult := id.modeObserver.Observe(gradNorm2, grad.Energy)
	id.lastMode = modeResult.Mode
	id.modeObserver.RecordOutcomeGradient(replResult.Components.Outcome)

	touchedTags := id.observeDomains(record.ToolCalls, result.R, numerics.Mean(grad.HessianDiag, 0))

	dimFitness := id.dimFitnessByName()
	for _, ins := range insights {
		id.insightCompiler.Ingest(ins)
		actual := numerics.SafeClamp((result.RAdj+1)/2, 0, 1, 0.5)
		id.calib.Observe(ins.Dim, ins.Confidence, actual)
	}
	id.insightCompiler.Compile(dimFitness, sessionIdx)
	id.insightCompiler.DecayAll(sessionIdx, dimFitness)

	// Step 8: adaptive barrier.
	id.params.A = mode.AdaptiveBarrier(averageExpertise(id.domainTracker, touchedTags))

	// Step 9: consolidated-init snapshot ring (cap 5).
	id.snapshotRing = append(id.snapshotRing, persistence.Snapshot{
		W:       append([]float64(nil), id.state.W...),
		Fitness: id.replTracker.Fitness(),
		R:       result.R,
		DeltaW:  replResult.DeltaW,
	})
	if len(id.snapshotRing) > snapshotRingCapacity {
		id.snapshotRing = id.snapshotRing[len(id.snapshotRing)-snapshotRingCapacity:]
	}

	id.mobiusBaseline = append([]float64(nil), id.state.W...)
	id.sessionCount.Add(1)

	// Step 10: persist (atomic write).
	if err := id.Save(ctx, record, insights); err != nil {
		return fmt.Errorf("identity: save: %w", err)
	}

	// Step 11: telemetry end-ping, fire-and-forget.
	id.completeTelemetry(record, result.R)

	return nil
}

// reflect calls the LLM provider (if wired) with a reflection prompt and
// parses its response into insights. An LLM parse failure, or a nil
// provider, yields no insights rather than an error (§7).
func (id *UnifiedIdentity) reflect(ctx context.Context, record observer.InteractionRecord, features strategy.Features, in EndSessionInput) []insight.Insight {
	if id.llmProvider == nil {
		return nil
	}
	prompt := in.ReflectionPrompt
	if prompt == "" {
		prompt = buildReflectionPrompt(record, features)
	}
	text, err := id.llmProvider.Generate(ctx, prompt, in.SystemPrompt)
	if err != nil {
		return nil
	}
	insights, err := llm.ParseInsights(text, int(id.sessionCount.Load()))
	if err != nil {
		return nil
	}
	return insights
}

func buildReflectionPrompt(record observer.InteractionRecord, features strategy.Features) string {
	return fmt.Sprintf(
		"Reflect on this session: %d tool calls, %d failures, %d verifications. "+
			"readBeforeEdit=%.2f testAfterChange=%.2f contextGathering=%.2f outputVerification=%.2f errorRecoverySpeed=%.2f. "+
			"Respond with INSIGHT lines or NO_INSIGHTS.",
		len(record.ToolCalls), len(record.Failures), len(record.Verifications),
		features.ReadBeforeEdit, features.TestAfterChange, features.ContextGathering,
		features.OutputVerification, features.ErrorRecoverySpeed)
}

// applyPivotalDeclarations turns every pivotal insight into an
// append-only declaration applied to the live state, each linked by
// SHA-256 to its predecessor.
func (id *UnifiedIdentity) applyPivotalDeclarations(insights []insight.Insight) {
	names := id.vocab.Names()
	for _, ins := range insights {
		if !ins.IsPivotal {
			continue
		}
		dimIdx := indexOf(names, ins.Dim)
		if dimIdx < 0 {
			continue
		}
		previousHash := chain.GenesisHash
		if len(id.declarations) > 0 {
			h, err := id.declarations[len(id.declarations)-1].Hash()
			if err == nil {
				previousHash = h
			}
		}
		decl := chain.CreateDeclaration(dimIdx, ins.SuggestedValue, ins.Interpretation, previousHash)
		if err := chain.ApplyDeclaration(id.state, decl); err != nil {
			continue
		}
		id.declarations = append(id.declarations, decl)
	}
}

// evolveForward runs one or more explicit Evolve steps. The experience
// vector, absent an explicit override, is derived uniformly from this
// session's strategy features (a design choice: the spec leaves the
// forward pass's experience signal unspecified for the orchestrator
// boundary).
func (id *UnifiedIdentity) evolveForward(features strategy.Features, in EndSessionInput) error {
	steps := in.EvolveSteps
	if steps <= 0 {
		steps = defaultEvolveSteps
	}
	dt := in.Dt
	if dt <= 0 {
		dt = defaultDt
	}
	sigma := in.Sigma
	if sigma == 0 {
		sigma = defaultSigma
	}
	experience := in.Experience
	if experience == nil {
		avg := (features.ReadBeforeEdit + features.TestAfterChange + features.ContextGathering +
			features.OutputVerification + features.ErrorRecoverySpeed) / 5
		experience = make([]float64, id.vocab.N())
		for i := range experience {
			experience[i] = avg
		}
	}
	for i := 0; i < steps; i++ {
		evolved, err := energy.Evolve(id.state, experience, sigma, id.params, id.vocab, dt)
		if err != nil {
			return fmt.Errorf("identity: evolve: %w", err)
		}
		id.state = evolved.State
	}
	return nil
}

// observeDomains classifies every tool call's path into domain tags and
// folds this session's outcome into each touched tag's profile. Returns
// the set of tags touched, deduplicated.
func (id *UnifiedIdentity) observeDomains(calls []observer.ToolCall, r, meanHessianDiag float64) []string {
	seen := make(map[string]bool)
	var touched []string
	for _, c := range calls {
		if c.Path == "" {
			continue
		}
		for _, tag := range domain.Classify(c.Path) {
			if !seen[tag] {
				seen[tag] = true
				touched = append(touched, tag)
			}
		}
	}
	for _, tag := range touched {
		id.domainTracker.Observe(tag, r, meanHessianDiag)
	}
	return touched
}

// averageExpertise blends the touched domains' expertise into a single
// scalar for this session's adaptive barrier (§4.11); falls back to 0
// (novice, tallest barrier) when no domain was touched.
func averageExpertise(tracker *domain.Tracker, tags []string) float64 {
	if len(tags) == 0 {
		return 0
	}
	sum := 0.0
	for _, tag := range tags {
		sum += tracker.Profile(tag).Expertise()
	}
	return sum / float64(len(tags))
}

// dimFitnessByName maps each vocabulary dimension's name to its current
// fitness, for the insight compiler's above-mean-fitness gate.
func (id *UnifiedIdentity) dimFitnessByName() map[string]float64 {
	names := id.vocab.Names()
	fitness := id.replTracker.Fitness()
	out := make(map[string]float64, len(names))
	for i, n := range names {
		if i < len(fitness) {
			out[n] = fitness[i]
		}
	}
	return out
}

func countDeclarationsThisSession(insights []insight.Insight) int {
	count := 0
	for _, ins := range insights {
		if ins.IsPivotal {
			count++
		}
	}
	return count
}

func signalNames(signals []outcome.Signal) []string {
	out := make([]string, len(signals))
	for i, s := range signals {
		out[i] = s.Name
	}
	return out
}

func indexOf(names []string, target string) int {
	for i, n := range names {
		if n == target {
			return i
		}
	}
	return -1
}

// completeTelemetry fires the end-ping in the background if a start-ping
// nonce was captured; silently does nothing otherwise (§6, §7: telemetry
// is fire-and-forget and failures are never surfaced).
func (id *UnifiedIdentity) completeTelemetry(record observer.InteractionRecord, r float64) {
	noncePtr := id.telemetryNonce.Load()
	if id.pinger == nil || noncePtr == nil {
		return
	}
	nonce := *noncePtr
	payload, err := json.Marshal(struct {
		ToolCalls int     `json:"toolCalls"`
		R         float64 `json:"r"`
	}{ToolCalls: len(record.ToolCalls), R: r})
	if err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		pow, err := telemetry.SolvePoW(nonce)
		if err != nil {
			return
		}
		_ = id.pinger.EndPing(ctx, payload, nonce, pow)
	}()
}

// State returns the ARILState DTO (§3).
func (id *UnifiedIdentity) State() ARILState {
	return ARILState{
		Fitness:           id.replTracker.Fitness(),
		MetaLearningRates: id.replTracker.MetaRates(),
		SessionCount:      id.sessionCount.Load(),
	}
}

// Weights returns a copy of the current behavioral weight vector w.
func (id *UnifiedIdentity) Weights() []float64 { return append([]float64(nil), id.state.W...) }

// Names returns the vocabulary's dimension names, in the same order as
// Weights and ARILState's per-dimension slices.
func (id *UnifiedIdentity) Names() []string { return id.vocab.Names() }

// VerifyChain checks the declaration chain's tamper-evidence.
func (id *UnifiedIdentity) VerifyChain() error {
	result, err := chain.VerifyChain(id.declarations)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChainTampered, err)
	}
	if !result.Valid {
		return fmt.Errorf("%w: failed links %v", ErrChainTampered, result.FailedLinks)
	}
	return nil
}
