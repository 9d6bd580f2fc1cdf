package llm

import "testing"

func TestParseInsightsNoInsightsSentinel(t *testing.T) {
	out, err := ParseInsights("NO_INSIGHTS", 1)
	if err != nil {
		t.Fatal(err)
	}
	if out != nil {
		t.Errorf("expected nil, got %v", out)
	}
}

func TestParseInsightsNoInsightsWithWhitespace(t *testing.T) {
	out, err := ParseInsights("  NO_INSIGHTS  \n", 1)
	if err != nil {
		t.Fatal(err)
	}
	if out != nil {
		t.Errorf("expected nil, got %v", out)
	}
}

func TestParseInsightsSingleLine(t *testing.T) {
	line := "INSIGHT|rust|wrote unsafe block without review|needs more caution|0.3|0.8|true"
	out, err := ParseInsights(line, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 insight, got %d", len(out))
	}
	ins := out[0]
	if ins.Dim != "rust" || ins.SuggestedValue != 0.3 || ins.Confidence != 0.8 || !ins.IsPivotal || ins.SessionIndex != 5 {
		t.Errorf("parsed incorrectly: %+v", ins)
	}
}

func TestParseInsightsMultipleLinesSkipsMalformed(t *testing.T) {
	text := "some preamble\n" +
		"INSIGHT|python|obs|interp|0.5|0.6|false\n" +
		"this is not a valid line\n" +
		"INSIGHT|go|obs2|interp2|0.1|0.9|true"
	out, err := ParseInsights(text, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 insights, got %d: %+v", len(out), out)
	}
	if out[0].Dim != "python" || out[1].Dim != "go" {
		t.Errorf("unexpected dims: %+v", out)
	}
}

func TestParseInsightsMalformedNumericFieldErrors(t *testing.T) {
	line := "INSIGHT|rust|obs|interp|not-a-number|0.8|true"
	_, err := ParseInsights(line, 1)
	if err == nil {
		t.Error("expected error for malformed numeric field")
	}
}
