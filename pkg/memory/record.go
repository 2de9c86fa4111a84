package memory

import (
	"time"

	json "github.com/goccy/go-json"

	"github.com/papercomputeco/mnemo/pkg/vector"
)

// Payload keys of a stored memory.
const (
	keyText       = "text"
	keyTimestamp  = "timestamp"
	keyCreatedAt  = "created_at"
	keyRole       = "role"
	keySessionID  = "session_id"
	keyImportance = "importance"
	keyTopicTags  = "topic_tags"
	keyMetadata   = "metadata"
)

// Record is one remembered conversation turn. Records are never mutated
// once stored.
type Record struct {
	ID         string         `json:"id,omitempty"`
	Text       string         `json:"text"`
	Timestamp  time.Time      `json:"timestamp"`
	Role       string         `json:"role"`
	SessionID  string         `json:"session_id"`
	Importance float64        `json:"importance"`
	TopicTags  []string       `json:"topic_tags"`
	Metadata   map[string]any `json:"metadata,omitempty"`

	// Score is the similarity to the query when the record came from a
	// search.
	Score float32 `json:"score,omitempty"`
}

// HasTag reports whether the record is tagged with topic.
func (r Record) HasTag(topic string) bool {
	for _, t := range r.TopicTags {
		if t == topic {
			return true
		}
	}
	return false
}

// toPayload encodes r for the vector index. The timestamp is stored both as
// unix seconds, for retention filters, and as RFC 3339 for exact ordering.
// Metadata is stored as a JSON string so every driver can hold it.
func (r Record) toPayload() (map[string]any, error) {
	tags := r.TopicTags
	if tags == nil {
		tags = []string{}
	}
	payload := map[string]any{
		keyText:       r.Text,
		keyTimestamp:  r.Timestamp.Unix(),
		keyCreatedAt:  r.Timestamp.UTC().Format(time.RFC3339Nano),
		keyRole:       r.Role,
		keySessionID:  r.SessionID,
		keyImportance: r.Importance,
		keyTopicTags:  tags,
	}
	if len(r.Metadata) > 0 {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return nil, err
		}
		payload[keyMetadata] = string(meta)
	}
	return payload, nil
}

// recordFromMatch decodes a search hit. Hits without text, role or a
// timestamp are reported as not ok.
func recordFromMatch(m vector.Match) (Record, bool) {
	p := m.Payload
	text, ok := vector.PayloadString(p, keyText)
	if !ok || text == "" {
		return Record{}, false
	}
	role, ok := vector.PayloadString(p, keyRole)
	if !ok {
		return Record{}, false
	}

	var ts time.Time
	if s, ok := vector.PayloadString(p, keyCreatedAt); ok {
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err == nil {
			ts = parsed
		}
	}
	if ts.IsZero() {
		secs, ok := vector.PayloadInt(p, keyTimestamp)
		if !ok {
			return Record{}, false
		}
		ts = time.Unix(secs, 0).UTC()
	}

	r := Record{
		ID:         m.ID,
		Text:       text,
		Timestamp:  ts,
		Role:       role,
		Importance: DefaultImportance,
		Score:      m.Score,
	}
	r.SessionID, _ = vector.PayloadString(p, keySessionID)
	if imp, ok := vector.PayloadFloat(p, keyImportance); ok {
		r.Importance = clamp(imp)
	}
	r.TopicTags = vector.PayloadStrings(p, keyTopicTags)
	if meta, ok := vector.PayloadString(p, keyMetadata); ok && meta != "" {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(meta), &decoded); err == nil {
			r.Metadata = decoded
		}
	} else if meta := vector.PayloadStringMap(p, keyMetadata); meta != nil {
		r.Metadata = make(map[string]any, len(meta))
		for k, v := range meta {
			r.Metadata[k] = v
		}
	}
	return r, true
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1)
}
