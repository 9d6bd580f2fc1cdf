package strategy

import (
	"testing"

	"github.com/echocog/aril/core/observer"
)

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		`foo\bar.go`:   "foo/bar.go",
		`./a/b/`:       "a/b",
		`a//b///c`:     "a/b/c",
		`plain/path.go`: "plain/path.go",
	}
	for in, want := range cases {
		if got := NormalizePath(in); got != want {
			t.Errorf("NormalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReadBeforeEditNoEdits(t *testing.T) {
	f := Extract(nil)
	if f.ReadBeforeEdit != 0 {
		t.Errorf("expected 0 with no edits, got %v", f.ReadBeforeEdit)
	}
}

func TestReadBeforeEditAllSatisfied(t *testing.T) {
	calls := []observer.ToolCall{
		{Kind: observer.KindRead, Path: "a.go"},
		{Kind: observer.KindEdit, Path: "a.go"},
	}
	f := Extract(calls)
	if f.ReadBeforeEdit != 1.0 {
		t.Errorf("got %v, want 1.0", f.ReadBeforeEdit)
	}
}

func TestTestAfterChangeWithinLookahead(t *testing.T) {
	calls := []observer.ToolCall{
		{Kind: observer.KindEdit, Path: "a.go"},
		{Kind: observer.KindBash, Command: "go test ./..."},
	}
	f := Extract(calls)
	if f.TestAfterChange != 1.0 {
		t.Errorf("got %v, want 1.0", f.TestAfterChange)
	}
}

func TestContextGatheringFirstThird(t *testing.T) {
	calls := []observer.ToolCall{
		{Kind: observer.KindRead},
		{Kind: observer.KindGrep},
		{Kind: observer.KindEdit},
		{Kind: observer.KindEdit},
		{Kind: observer.KindEdit},
		{Kind: observer.KindEdit},
	}
	f := Extract(calls)
	if f.ContextGathering != 1.0 {
		t.Errorf("got %v, want 1.0 (first ceil(6/3)=2 calls are Read+Grep)", f.ContextGathering)
	}
}

func TestOutputVerification(t *testing.T) {
	calls := []observer.ToolCall{
		{Kind: observer.KindWrite, Path: "out.txt"},
		{Kind: observer.KindRead, Path: "out.txt"},
	}
	f := Extract(calls)
	if f.OutputVerification != 1.0 {
		t.Errorf("got %v, want 1.0", f.OutputVerification)
	}
}

func TestErrorRecoverySpeedNoFailures(t *testing.T) {
	f := Extract([]observer.ToolCall{{Kind: observer.KindBash, Succeeded: true}})
	if f.ErrorRecoverySpeed != 1.0 {
		t.Errorf("got %v, want 1.0", f.ErrorRecoverySpeed)
	}
}

func TestErrorRecoverySpeedWithFailure(t *testing.T) {
	calls := []observer.ToolCall{
		{Kind: observer.KindBash, Succeeded: false},
		{Kind: observer.KindEdit, Path: "a.go"},
		{Kind: observer.KindBash, Succeeded: true},
	}
	f := Extract(calls)
	// recovery count = 2 calls -> 1/2 = 0.5
	if f.ErrorRecoverySpeed != 0.5 {
		t.Errorf("got %v, want 0.5", f.ErrorRecoverySpeed)
	}
}

func TestIsTestCommand(t *testing.T) {
	if !IsTestCommand("npm test") {
		t.Error("expected npm test to match")
	}
	if !IsTestCommand("pytest -v tests/") {
		t.Error("expected pytest to match")
	}
	if IsTestCommand("ls -la") {
		t.Error("expected ls to not match")
	}
}
