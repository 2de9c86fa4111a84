package memory

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const tagPrompt = `Analyze the following message and:
1. Extract 1-3 topic tags (single words)
2. Rate its importance (0.0-1.0) for future context
Format: tag1,tag2,tag3|importance

Message: %s

Tags|Importance:`

const sessionSummaryPrompt = "Summarize the key points of this conversation in 2-3 sentences:\n\n%s"

// NoConversation is the summary of a session with no stored records.
const NoConversation = "No conversation found for this session."

// AnalyzeAndTag asks c for topic tags and an importance score for text. An
// answer not shaped "tags|importance" yields no tags and DefaultImportance;
// an unparsable importance also falls back to DefaultImportance.
func AnalyzeAndTag(ctx context.Context, c Completer, text string) ([]string, float64, error) {
	resp, err := c.Complete(ctx, fmt.Sprintf(tagPrompt, text))
	if err != nil {
		return nil, 0, err
	}
	tags, importance := ParseTags(resp)
	return tags, importance, nil
}

// ParseTags parses a "tag1,tag2|importance" answer.
func ParseTags(resp string) ([]string, float64) {
	parts := strings.Split(resp, "|")
	if len(parts) != 2 {
		return nil, DefaultImportance
	}

	tags := make([]string, 0, 3)
	for _, t := range strings.Split(parts[0], ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	importance, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || math.IsNaN(importance) {
		importance = DefaultImportance
	}
	return tags, clamp(importance)
}

// SessionSummary summarizes a session's records in 2-3 sentences.
func (s *Store) SessionSummary(ctx context.Context, c Completer, sessionID string) (string, error) {
	records, err := s.SearchBySession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return NoConversation, nil
	}

	lines := make([]string, len(records))
	for i, r := range records {
		lines[i] = r.Role + ": " + r.Text
	}
	return c.Complete(ctx, fmt.Sprintf(sessionSummaryPrompt, strings.Join(lines, "\n")))
}

// UpdateSessionSummary summarizes the current session and records the
// summary on it. Without a current session it does nothing.
func (s *Store) UpdateSessionSummary(ctx context.Context, c Completer) error {
	if s.sessions == nil {
		return nil
	}
	id := s.sessions.CurrentID()
	if id == "" {
		return nil
	}

	summary, err := s.SessionSummary(ctx, c, id)
	if err != nil {
		return err
	}
	s.sessions.SetSummary(ctx, summary)
	return nil
}
