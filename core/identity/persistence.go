package identity

import (
	"context"
	"encoding/json"
	"fmt"

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
	"github.com/echocog/aril/core/telemetry"
	"github.com/echocog/aril/core/vocab"
)

// persistedState is the sidecar's on-disk shape (§6: "ARIL state,
// correlation history, calibrator, compiler, domain profile, observer
// history, snapshot ring, Möbius state and baseline, strategy-side
// pipeline state").
type persistedState struct {
	VocabNames    []string
	VocabAdjacency []float64
	Params        energy.Params

	StateW    []float64
	StateM    []float64
	StateTime float64

	Declarations []chain.Declaration

	EvaluatorBaseline float64
	EvaluatorSeeded   bool
	EvaluatorSessions int

	CorrHistory *correlation.History

	MobiusObservations     []mobius.Observation
	MobiusObservationCount int
	MobiusCoefficients     map[uint32]float64
	MobiusK                int
	MobiusResidual         float64
	MobiusBaseline         []float64

	ReplFitness   []float64
	ReplMetaRates []float64
	ReplWindows   [][]float64

	ModeMinEnergy   float64
	ModeSeeded      bool
	ModeGradHistory [][]float64

	CalibPredicted map[string]float64
	CalibActual    map[string]float64

	DomainProfiles map[string]domain.Profile

	InsightByDim    map[string][]insight.Insight
	InsightPatterns map[string]insight.Pattern

	AuditEntries []audit.Snapshot
	SnapshotRing []persistence.Snapshot

	SessionCount int64
}

// interactionEntry is the non-reserved, per-session append-only payload
// (§6: "the session's interaction record, optional insights array, and
// an arbitrary metadata blob").
type interactionEntry struct {
	InteractionRecord observer.InteractionRecord
	Insights          []insight.Insight
	Metadata          map[string]any
}

// Save serializes the full sidecar state to the reserved slot and
// appends this session's interaction record, atomically with respect to
// each individual write (§5: "either the new state is fully visible or
// the old state is").
func (id *UnifiedIdentity) Save(ctx context.Context, record observer.InteractionRecord, insights []insight.Insight) error {
	predicted, actual := id.calib.Snapshot()
	byDim, patterns := id.insightCompiler.Snapshot()
	evalBaseline, evalSeeded, evalSessions := id.evaluator.Snapshot()
	modeMinEnergy, modeSeeded := id.modeObserver.MinEnergy()

	ps := persistedState{
		VocabNames:     id.vocab.Names(),
		VocabAdjacency: flattenAdjacency(id.vocab),
		Params:         id.params,

		StateW:    id.state.W,
		StateM:    id.state.M,
		StateTime: id.state.Time,

		Declarations: id.declarations,

		EvaluatorBaseline: evalBaseline,
		EvaluatorSeeded:   evalSeeded,
		EvaluatorSessions: evalSessions,

		CorrHistory: id.corrHistory,

		MobiusObservations:     id.mobiusState.Observations(),
		MobiusObservationCount: id.mobiusState.ObservationCount,
		MobiusCoefficients:     id.mobiusState.Coefficients,
		MobiusK:                id.mobiusState.K,
		MobiusResidual:         id.mobiusState.Residual,
		MobiusBaseline:         id.mobiusBaseline,

		ReplFitness:   id.replTracker.Fitness(),
		ReplMetaRates: id.replTracker.MetaRates(),
		ReplWindows:   id.replTracker.Windows(),

		ModeMinEnergy:   modeMinEnergy,
		ModeSeeded:      modeSeeded,
		ModeGradHistory: id.modeObserver.GradHistory(),

		CalibPredicted: predicted,
		CalibActual:    actual,

		DomainProfiles: id.domainTracker.Snapshot(),

		InsightByDim:    byDim,
		InsightPatterns: patterns,

		AuditEntries: id.auditLog.Entries(),
		SnapshotRing: id.snapshotRing,

		SessionCount: id.sessionCount.Load(),
	}

	payload, err := json.Marshal(ps)
	if err != nil {
		return fmt.Errorf("identity: marshal sidecar state: %w", err)
	}
	if err := persistence.SaveWithRetry(func() error {
		_, err := id.store.PutReserved(ctx, persistence.ReservedStateID, payload)
		return err
	}); err != nil {
		return fmt.Errorf("identity: persist sidecar state: %w", err)
	}

	entryPayload, err := json.Marshal(interactionEntry{InteractionRecord: record, Insights: insights})
	if err != nil {
		return fmt.Errorf("identity: marshal interaction entry: %w", err)
	}
	if err := persistence.SaveWithRetry(func() error {
		_, err := id.store.Append(ctx, id.sessionID, entryPayload)
		return err
	}); err != nil {
		return fmt.Errorf("identity: append interaction entry: %w", err)
	}
	return nil
}

// Load reconstructs a UnifiedIdentity by wake-from-stored, reconstructing
// the vocabulary from the persisted state itself so the caller need not
// already hold one (§6). Weights, fitness, and meta-learning rates are
// re-derived via consolidated initialization (§4.16) from the persisted
// snapshot ring rather than resumed literally, per spec's round-trip law
// ("modulo consolidated-init softmax"). Declaration-chain tampering is
// reported via ErrChainTampered rather than silently accepted.
func Load(ctx context.Context, store persistence.LogStore, llmProvider llm.Provider, pinger telemetry.Pinger) (*UnifiedIdentity, error) {
	entry, ok, err := store.GetReserved(ctx, persistence.ReservedStateID)
	if err != nil {
		return nil, fmt.Errorf("identity: load reserved state: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("identity: no stored state found; call New and Save first")
	}

	var ps persistedState
	if err := json.Unmarshal(entry.Payload, &ps); err != nil {
		return nil, fmt.Errorf("identity: unmarshal sidecar state: %w", err)
	}

	v, err := vocab.New(ps.VocabNames, ps.VocabAdjacency)
	if err != nil {
		return nil, fmt.Errorf("identity: reconstruct vocabulary: %w", err)
	}
	n := v.N()

	if verification, vErr := chain.VerifyChain(ps.Declarations); vErr != nil || !verification.Valid {
		return nil, fmt.Errorf("%w: %v", ErrChainTampered, vErr)
	}

	replParams := replicator.DefaultParams()
	wInit, fitnessInit, metaRatesInit := persistence.ConsolidatedInit(ps.SnapshotRing, n, replParams.MinWeight, replParams.MaxWeight, replParams.AlphaMin, replParams.AlphaMax)
	if validated, ok := numerics.ValidateArray(wInit, n); ok {
		wInit = validated
	} else {
		wInit = make([]float64, n)
		for i := range wInit {
			wInit[i] = 0.5
		}
	}

	m := ps.StateM
	if validated, ok := numerics.ValidateArray(m, n); ok {
		m = validated
	} else {
		m = append([]float64(nil), wInit...)
	}

	id := New(v, ps.Params, store, llmProvider, pinger)
	id.state = &energy.State{W: wInit, M: m, Time: ps.StateTime}
	id.declarations = ps.Declarations

	id.evaluator = outcome.Restore(outcome.DefaultConfig(), ps.EvaluatorBaseline, ps.EvaluatorSeeded, ps.EvaluatorSessions)

	if ps.CorrHistory != nil && ps.CorrHistory.N == n {
		id.corrHistory = ps.CorrHistory
	}

	id.mobiusState = mobius.Restore(n, ps.MobiusObservations, ps.MobiusObservationCount, ps.MobiusCoefficients, ps.MobiusK, ps.MobiusResidual)
	if baseline, ok := numerics.ValidateArray(ps.MobiusBaseline, n); ok {
		id.mobiusBaseline = baseline
	}

	id.replTracker = replicator.Restore(n, replParams, fitnessInit, metaRatesInit, ps.ReplWindows)

	id.modeObserver = mode.Restore(mode.DefaultThreshold, 10, ps.ModeMinEnergy, ps.ModeSeeded, ps.ModeGradHistory)
	id.calib = calibrator.Restore(ps.CalibPredicted, ps.CalibActual)
	id.domainTracker = domain.Restore(ps.DomainProfiles)
	id.insightCompiler = insight.Restore(ps.InsightByDim, ps.InsightPatterns)
	id.auditLog = audit.Restore(ps.AuditEntries)
	id.snapshotRing = ps.SnapshotRing
	id.sessionCount.Store(ps.SessionCount)

	return id, nil
}

// flattenAdjacency reads v's coupling matrix back into the flat
// row-major form vocab.New expects, for round-tripping through JSON.
func flattenAdjacency(v *vocab.Vocabulary) []float64 {
	n := v.N()
	out := make([]float64, n*n)
	adj := v.Adjacency()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out[i*n+j] = adj.At(i, j)
		}
	}
	return out
}
