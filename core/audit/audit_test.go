package audit

import "testing"

func TestBeginSessionAppendsUntilCapacity(t *testing.T) {
	l := NewLog()
	for i := 0; i < 5; i++ {
		l.BeginSession(Snapshot{SessionIndex: i})
	}
	if l.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", l.Len())
	}
	entries := l.Entries()
	for i, e := range entries {
		if e.SessionIndex != i {
			t.Errorf("entries[%d].SessionIndex = %d, want %d", i, e.SessionIndex, i)
		}
	}
}

func TestBeginSessionEvictsOldestPastCapacity(t *testing.T) {
	l := NewLog()
	for i := 0; i < Capacity+3; i++ {
		l.BeginSession(Snapshot{SessionIndex: i})
	}
	if l.Len() != Capacity {
		t.Fatalf("Len() = %d, want %d", l.Len(), Capacity)
	}
	entries := l.Entries()
	if entries[0].SessionIndex != 3 {
		t.Errorf("oldest retained SessionIndex = %d, want 3", entries[0].SessionIndex)
	}
	if entries[len(entries)-1].SessionIndex != Capacity+2 {
		t.Errorf("newest retained SessionIndex = %d, want %d", entries[len(entries)-1].SessionIndex, Capacity+2)
	}
}

func TestCompleteSessionFillsPhaseTwoOnMostRecent(t *testing.T) {
	l := NewLog()
	l.BeginSession(Snapshot{SessionIndex: 0, WeightsSessionStart: []float64{0.5}})
	l.BeginSession(Snapshot{SessionIndex: 1, WeightsSessionStart: []float64{0.6}})

	alpha := 0.4
	l.CompleteSession([]float64{0.61}, []float64{0.01}, GradientComponents{Energy: []float64{-0.01}}, []float64{0.3}, []float64{0.2}, &alpha, nil)

	latest, ok := l.Latest()
	if !ok {
		t.Fatal("expected a latest entry")
	}
	if latest.SessionIndex != 1 {
		t.Fatalf("CompleteSession updated wrong entry: SessionIndex = %d, want 1", latest.SessionIndex)
	}
	if len(latest.WeightsAfter) != 1 || latest.WeightsAfter[0] != 0.61 {
		t.Errorf("WeightsAfter = %v, want [0.61]", latest.WeightsAfter)
	}
	if latest.BlendAlpha == nil || *latest.BlendAlpha != 0.4 {
		t.Errorf("BlendAlpha not set correctly: %v", latest.BlendAlpha)
	}

	// the earlier entry must be untouched
	entries := l.Entries()
	if entries[0].WeightsAfter != nil {
		t.Errorf("CompleteSession must not touch earlier entries, got WeightsAfter=%v", entries[0].WeightsAfter)
	}
}

func TestCompleteSessionOnEmptyLogIsNoop(t *testing.T) {
	l := NewLog()
	l.CompleteSession([]float64{1}, []float64{1}, GradientComponents{}, nil, nil, nil, nil)
	if l.Len() != 0 {
		t.Errorf("expected empty log to remain empty, got Len()=%d", l.Len())
	}
}

func TestLatestOnEmptyLogReturnsFalse(t *testing.T) {
	l := NewLog()
	_, ok := l.Latest()
	if ok {
		t.Error("expected Latest() to return false on empty log")
	}
}

func TestEntriesOrderSurvivesWraparoundAcrossMultipleEvictions(t *testing.T) {
	l := NewLog()
	total := Capacity*2 + 7
	for i := 0; i < total; i++ {
		l.BeginSession(Snapshot{SessionIndex: i})
	}
	entries := l.Entries()
	if len(entries) != Capacity {
		t.Fatalf("Len() = %d, want %d", len(entries), Capacity)
	}
	wantStart := total - Capacity
	for i, e := range entries {
		if e.SessionIndex != wantStart+i {
			t.Errorf("entries[%d].SessionIndex = %d, want %d", i, e.SessionIndex, wantStart+i)
		}
	}
}
