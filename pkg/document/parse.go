package document

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// ParseError is returned by ParseInsightsJSON when a completion is not a
// JSON array of insights. ParseInsights never returns it.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing insights: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var errMissingField = errors.New("insight requires text and relevance")

type rawInsight struct {
	Text      *string  `json:"text"`
	Relevance *float64 `json:"relevance"`
}

// ParseInsightsJSON decodes raw as a JSON array of {text, relevance}
// objects. Both fields are required.
func ParseInsightsJSON(raw string) ([]Insight, error) {
	var items []rawInsight
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, &ParseError{Input: raw, Err: err}
	}

	out := make([]Insight, 0, len(items))
	for _, item := range items {
		if item.Text == nil || item.Relevance == nil {
			return nil, &ParseError{Input: raw, Err: errMissingField}
		}
		out = append(out, Insight{Text: *item.Text, Relevance: *item.Relevance})
	}
	return out, nil
}

// ParseInsights recovers insights from a completion:
//  1. raw as a JSON array;
//  2. fences, backticks and a json tag stripped, first as is and then with
//     single quotes turned into double quotes, each time also trying a bare
//     object or list wrapped in brackets;
//  3. every non-empty line as one insight with FallbackRelevance.
func ParseInsights(raw string) []Insight {
	if insights, err := ParseInsightsJSON(raw); err == nil {
		return insights
	}

	stripped := stripFences(raw)
	for _, candidate := range []string{stripped, strings.ReplaceAll(stripped, "'", `"`)} {
		if insights, ok := parseBracketed(candidate); ok {
			return insights
		}
	}

	return lineInsights(raw)
}

func parseBracketed(s string) ([]Insight, bool) {
	if insights, err := ParseInsightsJSON(s); err == nil {
		return insights, true
	}
	if !strings.HasPrefix(s, "[") {
		if insights, err := ParseInsightsJSON("[" + s + "]"); err == nil {
			return insights, true
		}
	}
	return nil, false
}

func stripFences(raw string) string {
	s := strings.Trim(strings.TrimSpace(raw), "`")
	for strings.HasPrefix(s, "json") {
		s = strings.TrimPrefix(s, "json")
	}
	for strings.HasPrefix(s, "JSON") {
		s = strings.TrimPrefix(s, "JSON")
	}
	return strings.TrimSpace(s)
}

func lineInsights(raw string) []Insight {
	out := make([]Insight, 0)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, Insight{Text: line, Relevance: FallbackRelevance})
	}
	return out
}
