// Package assembler builds the conversation context that is prepended to
// each chat prompt from recent and semantically similar memories.
package assembler

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/memory"
)

const (
	DefaultBudget       = 4000
	DefaultRecentLimit  = 5
	DefaultSimilarLimit = 10

	recentHeader    = "Recent Conversation:\n"
	relevantHeader  = "\nRelevant Past Messages:\n"
	truncatedFooter = "\nRelevant Past Messages: [Truncated for length]\n"
)

// Memories is the part of memory.Store the assembler reads.
type Memories interface {
	GetRecent(ctx context.Context, limit int) ([]memory.Record, error)
	SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]memory.Record, error)
}

// Config configures an Assembler. Zero limits take the defaults.
type Config struct {
	Memory Memories

	// Budget is the maximum context length in characters.
	Budget       int
	RecentLimit  int
	SimilarLimit int

	Logger *slog.Logger
}

// Assembler renders memory context.
type Assembler struct {
	memory       Memories
	budget       int
	recentLimit  int
	similarLimit int
	logger       *slog.Logger
}

// New returns an Assembler over cfg.Memory.
func New(cfg Config) *Assembler {
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultBudget
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = DefaultRecentLimit
	}
	if cfg.SimilarLimit <= 0 {
		cfg.SimilarLimit = DefaultSimilarLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return &Assembler{
		memory:       cfg.Memory,
		budget:       cfg.Budget,
		recentLimit:  cfg.RecentLimit,
		similarLimit: cfg.SimilarLimit,
		logger:       cfg.Logger,
	}
}

// Build renders the recent turns oldest first, followed by similar past
// turns that are not already among the recent ones. When the result is over
// budget the similar section is replaced by a truncation marker; the recent
// section is always kept whole.
func (a *Assembler) Build(ctx context.Context, userMessage string, userEmbedding []float32) (string, error) {
	similar, err := a.memory.SearchSimilar(ctx, userEmbedding, a.similarLimit)
	if err != nil {
		return "", err
	}
	recent, err := a.memory.GetRecent(ctx, a.recentLimit)
	if err != nil {
		return "", err
	}

	var recentPart strings.Builder
	recentPart.WriteString(recentHeader)
	seen := make(map[string]struct{}, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		r := recent[i]
		recentPart.WriteString(r.Role + ": " + r.Text + "\n")
		seen[r.Text] = struct{}{}
	}

	var relevantPart strings.Builder
	relevantPart.WriteString(relevantHeader)
	for _, r := range similar {
		if _, dup := seen[r.Text]; dup {
			continue
		}
		relevantPart.WriteString("[Previous] " + r.Role + ": " + r.Text + "\n")
	}

	out := recentPart.String() + relevantPart.String()
	if utf8.RuneCountInString(out) > a.budget {
		a.logger.Debug("context over budget, dropping similar messages",
			"length", utf8.RuneCountInString(out), "budget", a.budget, "message_length", len(userMessage))
		out = recentPart.String() + truncatedFooter
	}
	return out, nil
}
