// Package llm defines the abstract boundary between the core and any
// language model used to generate reflection prose and extract insights
// from it (§6). The core depends only on this interface and the grammar
// parser in grammar.go; concrete vendor backends (HTTP APIs, local
// inference) are a host concern outside this module's scope.
package llm

import "context"

// Provider is the single method the core requires of an LLM backend:
// given a prompt and an optional system prompt, return generated text.
type Provider interface {
	Generate(ctx context.Context, prompt string, systemPrompt string) (string, error)
}

// StubProvider is a deterministic Provider used by tests and for
// autonomous operation when no real backend is configured: it always
// short-circuits to the grammar's NO_INSIGHTS sentinel.
type StubProvider struct{}

// Generate always returns the NO_INSIGHTS sentinel.
func (StubProvider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	return NoInsightsSentinel, nil
}
