// grammar.go parses an LLM's free-text response to a reflection prompt
// into structured insights, per the one-line record grammar in §6:
//
//	INSIGHT|dim|observation|interpretation|suggestedValue|confidence|isPivotal
//
// A response that is just NO_INSIGHTS (optionally with surrounding
// whitespace) short-circuits to an empty result; a NO_INSIGHTS line among
// other lines is skipped and the remaining lines are still parsed.
package llm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/echocog/aril/core/insight"
)

// NoInsightsSentinel is the grammar's short-circuit line.
const NoInsightsSentinel = "NO_INSIGHTS"

const insightFieldCount = 7 // "INSIGHT" + 6 data fields

// ParseInsights parses text into zero or more insight.Insight records.
// sessionIndex is stamped onto every parsed insight. A line that isn't an
// INSIGHT record with exactly seven |-separated fields is skipped. A line
// that has that shape but an unparseable suggestedValue, confidence or
// isPivotal field fails the whole parse with an error.
func ParseInsights(text string, sessionIndex int) ([]insight.Insight, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == NoInsightsSentinel {
		return nil, nil
	}

	var out []insight.Insight
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == NoInsightsSentinel {
			continue
		}
		ins, ok, err := parseInsightLine(line, sessionIndex)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, ins)
		}
	}
	return out, nil
}

func parseInsightLine(line string, sessionIndex int) (insight.Insight, bool, error) {
	fields := strings.Split(line, "|")
	if len(fields) != insightFieldCount || fields[0] != "INSIGHT" {
		return insight.Insight{}, false, nil
	}

	confidence, err := strconv.ParseFloat(strings.TrimSpace(fields[5]), 64)
	if err != nil {
		return insight.Insight{}, false, fmt.Errorf("llm: parse insight confidence %q: %w", fields[5], err)
	}
	suggestedValue, err := strconv.ParseFloat(strings.TrimSpace(fields[4]), 64)
	if err != nil {
		return insight.Insight{}, false, fmt.Errorf("llm: parse insight suggestedValue %q: %w", fields[4], err)
	}
	isPivotal, err := strconv.ParseBool(strings.TrimSpace(fields[6]))
	if err != nil {
		return insight.Insight{}, false, fmt.Errorf("llm: parse insight isPivotal %q: %w", fields[6], err)
	}

	return insight.Insight{
		Dim:            strings.TrimSpace(fields[1]),
		Observation:    strings.TrimSpace(fields[2]),
		Interpretation: strings.TrimSpace(fields[3]),
		SuggestedValue: suggestedValue,
		Confidence:     confidence,
		IsPivotal:      isPivotal,
		SessionIndex:   sessionIndex,
	}, true, nil
}
