// Package chat runs conversation turns: it stores the user's message,
// assembles memory context, asks the active backend for an answer and
// hands the answer to the memory worker pool.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/mnemo/pkg/assembler"
	"github.com/papercomputeco/mnemo/pkg/eventstream"
	"github.com/papercomputeco/mnemo/pkg/llm"
	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/memory/worker"
	"github.com/papercomputeco/mnemo/pkg/session"
	"github.com/papercomputeco/mnemo/pkg/storage"
)

const promptTemplate = "Conversation Context:\n%s\n\nCurrent Session ID: %s\n\nUser: %s\nAssistant:"

// summaryWindow is how many recent turns ConversationSummary renders.
const summaryWindow = 10

// logTag marks chat turns in the relational log.
const logTag = "chat"

// Config wires a Service.
type Config struct {
	Backend   llm.Backend
	Sessions  *session.Manager
	Memory    *memory.Store
	Assembler *assembler.Assembler

	// Pool stores assistant turns asynchronously. Without it they are
	// stored before Send returns.
	Pool *worker.Pool

	// AnalyzeResponses tags assistant turns with topics and importance.
	AnalyzeResponses bool

	Log       storage.Driver
	Publisher eventstream.Publisher
	Source    eventstream.EventSource

	Logger *slog.Logger
}

// Service runs chat turns.
type Service struct {
	cfg    Config
	logger *slog.Logger
}

// Reply is the outcome of one turn.
type Reply struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`

	// Queued is false when the assistant turn could not be queued for
	// storage and was dropped.
	Queued bool `json:"queued"`
}

// NewService validates cfg and returns a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Backend == nil || cfg.Sessions == nil || cfg.Memory == nil {
		return nil, errors.New("chat: backend, sessions and memory are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Assembler == nil {
		cfg.Assembler = assembler.New(assembler.Config{Memory: cfg.Memory, Logger: cfg.Logger})
	}
	return &Service{cfg: cfg, logger: cfg.Logger}, nil
}

// StartConversation supersedes the current session with a new one about
// topic and returns its id.
func (s *Service) StartConversation(ctx context.Context, topic string) string {
	return s.cfg.Sessions.StartNew(ctx, topic).ID
}

// Send runs one turn for userMessage.
func (s *Service) Send(ctx context.Context, userMessage string) (Reply, error) {
	embedding, err := s.cfg.Backend.Embed(ctx, userMessage)
	if err != nil {
		return Reply{}, fmt.Errorf("embedding user message: %w", err)
	}

	sess := s.cfg.Sessions.GetOrCreate(ctx, session.DefaultTopic)

	userRec := memory.Record{
		Text:       userMessage,
		Role:       "user",
		SessionID:  sess.ID,
		Importance: memory.DefaultImportance,
		Timestamp:  time.Now(),
	}
	id, err := s.cfg.Memory.StoreRecord(ctx, userRec, embedding)
	if err != nil {
		return Reply{}, fmt.Errorf("storing user message: %w", err)
	}
	s.record(ctx, id, userRec)

	contextText, err := s.cfg.Assembler.Build(ctx, userMessage, embedding)
	if err != nil {
		return Reply{}, fmt.Errorf("building context: %w", err)
	}

	response, err := s.cfg.Backend.Complete(ctx, fmt.Sprintf(promptTemplate, contextText, sess.ID, userMessage))
	if err != nil {
		return Reply{}, err
	}
	answeredAt := time.Now()

	reply := Reply{SessionID: sess.ID, Response: response, Queued: true}
	if s.cfg.Pool != nil {
		reply.Queued = s.cfg.Pool.Enqueue(worker.Job{
			Text:      response,
			Role:      "assistant",
			SessionID: sess.ID,
			Analyze:   s.cfg.AnalyzeResponses,
			LogTag:    logTag,
			Timestamp: answeredAt,
		})
		return reply, nil
	}

	if err := s.storeAssistant(ctx, sess.ID, response, answeredAt); err != nil {
		return Reply{}, err
	}
	return reply, nil
}

// ConversationSummary renders the most recent turns as timestamped lines.
func (s *Service) ConversationSummary(ctx context.Context) (string, error) {
	records, err := s.cfg.Memory.GetRecent(ctx, summaryWindow)
	if err != nil {
		return "", err
	}
	return memory.Summarize(records), nil
}

func (s *Service) storeAssistant(ctx context.Context, sessionID, response string, at time.Time) error {
	embedding, err := s.cfg.Backend.Embed(ctx, response)
	if err != nil {
		return fmt.Errorf("embedding response: %w", err)
	}

	rec := memory.Record{
		Text:       response,
		Role:       "assistant",
		SessionID:  sessionID,
		Importance: memory.DefaultImportance,
		Timestamp:  at,
	}
	if s.cfg.AnalyzeResponses {
		tags, importance, err := memory.AnalyzeAndTag(ctx, s.cfg.Backend, response)
		if err != nil {
			s.logger.Warn("failed to tag response, storing untagged", "error", err)
		} else {
			rec.TopicTags, rec.Importance = tags, importance
		}
	}

	id, err := s.cfg.Memory.StoreRecord(ctx, rec, embedding)
	if err != nil {
		return fmt.Errorf("storing response: %w", err)
	}
	s.record(ctx, id, rec)
	return nil
}

// record appends a stored turn to the log and the event stream. Failures
// are logged only.
func (s *Service) record(ctx context.Context, id string, rec memory.Record) {
	if s.cfg.Log != nil {
		tag := logTag
		if len(rec.TopicTags) > 0 {
			tag = rec.TopicTags[0]
		}
		if _, err := s.cfg.Log.Append(ctx, &storage.Conversation{
			Timestamp: rec.Timestamp,
			Actor:     rec.Role,
			Content:   rec.Text,
			Tag:       tag,
		}); err != nil {
			s.logger.Warn("failed to log conversation turn", "id", id, "error", err)
		}
	}

	if s.cfg.Publisher != nil {
		event := eventstream.NewMemoryStoredEvent(s.cfg.Source, id, rec.SessionID, rec.Role, rec.Text)
		event.Importance = rec.Importance
		event.TopicTags = rec.TopicTags
		if err := s.cfg.Publisher.PublishMemory(ctx, event); err != nil {
			s.logger.Warn("failed to publish memory event", "id", id, "error", err)
		}
	}
}
