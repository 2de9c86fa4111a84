package topics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/personality"
)

// MaxAttempts is how many completions Next asks for before settling.
const MaxAttempts = 3

const topicTask = `
Task: Generate a COMPLETELY NEW and UNIQUE topic that:
1. Has never been discussed before in your previous posts
2. Reflects your specific expertise and interests
3. Maintains your unique personality and communication style
4. Demonstrates your depth of knowledge in your field
5. Feels authentic to your character's background
6. Aligns with your typical discussion topics
7. Must be different from any previous topics
8. Should be fresh and innovative

Generate a unique topic for timestamp %s

Topic:`

// ErrEmptyTopic is returned by Next when every answer was blank.
var ErrEmptyTopic = errors.New("backend returned no topic")

// Completer produces text completions.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Generator asks a backend for topics and checks them against a Cache.
type Generator struct {
	completer Completer
	cache     *Cache
	clock     func() time.Time
	logger    *slog.Logger
}

// NewGenerator returns a Generator. A nil cache gets a default Cache.
func NewGenerator(c Completer, cache *Cache, log *slog.Logger) *Generator {
	if cache == nil {
		cache = NewCache(0, 0)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Generator{completer: c, cache: cache, clock: time.Now, logger: log}
}

// Cache returns the generator's topic cache.
func (g *Generator) Cache() *Cache {
	return g.cache
}

// Next returns a topic for p that is not in the cache and remembers it.
// Blank answers use up an attempt. When every attempt collides, the last
// non-blank answer is suffixed with the unix time and accepted.
func (g *Generator) Next(ctx context.Context, p *personality.Profile) (string, error) {
	var topic string
	for attempt := range MaxAttempts {
		resp, err := g.completer.Complete(ctx, g.prompt(p))
		if err != nil {
			return "", fmt.Errorf("failed to generate topic: %w", err)
		}

		candidate := cleanTopic(resp)
		if candidate == "" {
			g.logger.Debug("blank topic answer", "attempt", attempt+1)
			continue
		}
		topic = candidate
		if g.cache.IsUnique(topic) {
			g.cache.Add(topic)
			return topic, nil
		}
		g.logger.Debug("topic already used", "topic", topic, "attempt", attempt+1)
	}
	if topic == "" {
		return "", ErrEmptyTopic
	}

	topic = fmt.Sprintf("%s (%d)", topic, g.clock().Unix())
	g.cache.Add(topic)
	return topic, nil
}

func (g *Generator) prompt(p *personality.Profile) string {
	now := g.clock().UTC().Format(time.RFC3339)
	parts := []string{
		"You are " + p.Name,
		"Role: " + p.Description,
		"Style: " + p.Style,
	}
	if len(p.Traits) > 0 {
		parts = append(parts, "Core personality traits: "+strings.Join(p.Traits, ", "))
	}
	parts = append(parts, "Current time: "+now)
	if len(p.Interests) > 0 {
		parts = append(parts, "Primary areas of expertise: "+strings.Join(p.Interests, ", "))
	}
	parts = append(parts, fmt.Sprintf(topicTask, now))
	return strings.Join(parts, "\n\n")
}

func cleanTopic(resp string) string {
	t := strings.TrimSpace(resp)
	t = strings.TrimPrefix(t, "Topic:")
	t = strings.TrimSpace(t)
	t = strings.TrimPrefix(t, `"`)
	t = strings.TrimSuffix(t, `"`)
	return strings.TrimSpace(t)
}
