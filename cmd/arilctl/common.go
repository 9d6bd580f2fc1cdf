package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/echocog/aril/core/energy"
	"github.com/echocog/aril/core/identity"
	"github.com/echocog/aril/core/llm"
	"github.com/echocog/aril/core/persistence"
	"github.com/echocog/aril/core/vocab"
)

// defaultParams picks dynamics satisfying both well-posedness theorems
// (μ > κ/2 and λ > a(1-a)) for a freshly initialized vocabulary, with every
// dimension's homeostatic target at the coupling midpoint.
func defaultParams(n int) energy.Params {
	wStar := make([]float64, n)
	for i := range wStar {
		wStar[i] = 0.5
	}
	return energy.Params{D: 0.1, Lambda: 1.0, Mu: 0.6, Kappa: 0.1, A: 0.5, WStar: wStar}
}

// buildVocabulary constructs a vocabulary over the given dimension names
// with a uniform, modest cross-dimension coupling — every dimension
// influences every other equally absent any observed structure to the
// contrary.
func buildVocabulary(names []string) (*vocab.Vocabulary, error) {
	n := len(names)
	adj := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				adj[i*n+j] = 0.1
			}
		}
	}
	return vocab.New(names, adj)
}

func openStore(dbPath string) (*persistence.SQLiteLogStore, error) {
	store, err := persistence.OpenSQLiteLogStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sidecar database %s: %w", dbPath, err)
	}
	return store, nil
}

// loadIdentity wakes an identity from a previously initialized database.
// The CLI has no configured LLM backend or telemetry transport — wiring
// those is a host integration concern (core/llm, core/telemetry document
// the boundary) — so reflection always reports no insights and telemetry
// is disabled.
func loadIdentity(ctx context.Context, store *persistence.SQLiteLogStore) (*identity.UnifiedIdentity, error) {
	id, err := identity.Load(ctx, store, llm.StubProvider{}, nil)
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	return id, nil
}

func splitNames(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
