package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/mnemo/pkg/eventstream"
	"github.com/papercomputeco/mnemo/pkg/llm"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/session"
	"github.com/papercomputeco/mnemo/pkg/storage"
	"github.com/papercomputeco/mnemo/pkg/vector"
)

const (
	defaultRecentLimit = 5
	defaultSearchLimit = 10
	maxLimit           = 100
	apiLogTag          = "api"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StoreMemoryRequest is the body of POST /v1/memories.
type StoreMemoryRequest struct {
	Text     string         `json:"text"`
	Role     string         `json:"role"`
	Metadata map[string]any `json:"metadata,omitempty"`

	// Analyze tags the turn with topics and importance before storing.
	Analyze bool `json:"analyze,omitempty"`
}

// StoreMemoryResponse is returned by POST /v1/memories.
type StoreMemoryResponse struct {
	ID        string   `json:"id"`
	SessionID string   `json:"session_id"`
	TopicTags []string `json:"topic_tags"`
}

// SearchRequest is the body of POST /v1/memories/search.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// MemoriesResponse lists memory records.
type MemoriesResponse struct {
	Memories []memory.Record `json:"memories"`
	Count    int             `json:"count"`
}

// StartSessionRequest is the body of POST /v1/sessions.
type StartSessionRequest struct {
	Topic string `json:"topic"`
}

// MessageRequest is the body of POST /v1/context and POST /v1/chat.
type MessageRequest struct {
	Message string `json:"message"`
}

// ContextResponse is returned by POST /v1/context.
type ContextResponse struct {
	Context string `json:"context"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStoreMemory embeds and stores one turn in the current session.
func (s *Server) handleStoreMemory(c *fiber.Ctx) error {
	var req StoreMemoryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Text == "" {
		return badRequest(c, "text is required")
	}
	if req.Role == "" {
		req.Role = "user"
	}
	if req.Analyze && s.config.Tagger == nil {
		return unavailable(c, "analysis is not configured")
	}

	ctx := c.UserContext()
	embedding, err := s.config.Embedder.Embed(ctx, req.Text)
	if err != nil {
		s.logger.Error("failed to embed memory", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "failed to embed text"})
	}

	rec := memory.Record{
		Text:       req.Text,
		Role:       req.Role,
		SessionID:  s.config.Memory.CurrentSessionID(),
		Importance: memory.DefaultImportance,
		Timestamp:  time.Now(),
		Metadata:   req.Metadata,
	}
	if req.Analyze {
		tags, importance, err := memory.AnalyzeAndTag(ctx, s.config.Tagger, req.Text)
		if err != nil {
			s.logger.Warn("failed to tag memory, storing untagged", "error", err)
		} else {
			rec.TopicTags, rec.Importance = tags, importance
		}
	}

	id, err := s.config.Memory.StoreRecord(ctx, rec, embedding)
	if err != nil {
		return storeError(c, err)
	}
	s.record(c, id, rec)

	tags := rec.TopicTags
	if tags == nil {
		tags = []string{}
	}
	return c.Status(fiber.StatusCreated).JSON(StoreMemoryResponse{
		ID:        id,
		SessionID: rec.SessionID,
		TopicTags: tags,
	})
}

// handleRecentMemories returns the newest memories, newest first.
func (s *Server) handleRecentMemories(c *fiber.Ctx) error {
	limit, err := queryLimit(c, defaultRecentLimit)
	if err != nil {
		return badRequest(c, err.Error())
	}

	records, err := s.config.Memory.GetRecent(c.UserContext(), limit)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(memoriesResponse(records))
}

// handleSearchMemories returns the memories most similar to the query.
func (s *Server) handleSearchMemories(c *fiber.Ctx) error {
	var req SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Query == "" {
		return badRequest(c, "query is required")
	}
	if req.Limit <= 0 {
		req.Limit = defaultSearchLimit
	}
	req.Limit = min(req.Limit, maxLimit)

	ctx := c.UserContext()
	embedding, err := s.config.Embedder.Embed(ctx, req.Query)
	if err != nil {
		s.logger.Error("failed to embed query", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "failed to embed query"})
	}

	records, err := s.config.Memory.SearchSimilar(ctx, embedding, req.Limit)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(memoriesResponse(records))
}

// handleSessionMemories returns a session's memories, oldest first.
func (s *Server) handleSessionMemories(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "session id is required")
	}

	records, err := s.config.Memory.SearchBySession(c.UserContext(), id)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(memoriesResponse(records))
}

// handleStartSession supersedes the current session.
func (s *Server) handleStartSession(c *fiber.Ctx) error {
	var req StartSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
	}
	if req.Topic == "" {
		req.Topic = session.DefaultTopic
	}

	sess := s.config.Sessions.StartNew(c.UserContext(), req.Topic)
	return c.Status(fiber.StatusCreated).JSON(sess)
}

// handleBuildContext assembles the context for a message without storing it.
func (s *Server) handleBuildContext(c *fiber.Ctx) error {
	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Message == "" {
		return badRequest(c, "message is required")
	}

	ctx := c.UserContext()
	embedding, err := s.config.Embedder.Embed(ctx, req.Message)
	if err != nil {
		s.logger.Error("failed to embed message", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "failed to embed message"})
	}

	text, err := s.config.Assembler.Build(ctx, req.Message, embedding)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(ContextResponse{Context: text})
}

// handleChat runs one chat turn.
func (s *Server) handleChat(c *fiber.Ctx) error {
	if s.config.Chat == nil {
		return unavailable(c, "chat is not configured")
	}

	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Message == "" {
		return badRequest(c, "message is required")
	}

	reply, err := s.config.Chat.Send(c.UserContext(), req.Message)
	if err != nil {
		s.logger.Error("chat turn failed", "error", err)
		return storeError(c, err)
	}
	return c.JSON(reply)
}

// handleLogs returns logged conversation turns, newest first. With q it
// returns only turns containing q.
func (s *Server) handleLogs(c *fiber.Ctx) error {
	if s.config.Log == nil {
		return unavailable(c, "conversation log is not configured")
	}
	limit, err := queryLimit(c, defaultSearchLimit)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var turns []*storage.Conversation
	if q := c.Query("q"); q != "" {
		turns, err = s.config.Log.Search(c.UserContext(), q, limit)
	} else {
		turns, err = s.config.Log.Recent(c.UserContext(), limit)
	}
	if err != nil {
		s.logger.Error("failed to read conversation log", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to read conversation log"})
	}
	if turns == nil {
		turns = []*storage.Conversation{}
	}
	return c.JSON(turns)
}

// record appends a stored turn to the log and the event stream. Failures
// are logged only.
func (s *Server) record(c *fiber.Ctx, id string, rec memory.Record) {
	ctx := c.UserContext()
	if s.config.Log != nil {
		tag := apiLogTag
		if len(rec.TopicTags) > 0 {
			tag = rec.TopicTags[0]
		}
		if _, err := s.config.Log.Append(ctx, &storage.Conversation{
			Timestamp: rec.Timestamp,
			Actor:     rec.Role,
			Content:   rec.Text,
			Tag:       tag,
		}); err != nil {
			s.logger.Warn("failed to log memory", "id", id, "error", err)
		}
	}

	if s.config.Publisher != nil {
		event := eventstream.NewMemoryStoredEvent(s.config.Source, id, rec.SessionID, rec.Role, rec.Text)
		event.Importance = rec.Importance
		event.TopicTags = rec.TopicTags
		if err := s.config.Publisher.PublishMemory(ctx, event); err != nil {
			s.logger.Warn("failed to publish memory event", "id", id, "error", err)
		}
	}
}

func memoriesResponse(records []memory.Record) MemoriesResponse {
	if records == nil {
		records = []memory.Record{}
	}
	return MemoriesResponse{Memories: records, Count: len(records)}
}

// queryLimit parses the limit query parameter, capped at maxLimit.
func queryLimit(c *fiber.Ctx, def int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(n, maxLimit), nil
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
}

func unavailable(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: msg})
}

// storeError maps memory, index and backend failures onto status codes.
func storeError(c *fiber.Ctx, err error) error {
	var (
		dimErr  *vector.DimensionError
		provErr *llm.ProviderError
	)
	switch {
	case errors.Is(err, memory.ErrEmptyText):
		return badRequest(c, err.Error())
	case errors.As(err, &dimErr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: err.Error()})
	case errors.Is(err, vector.ErrIndex), errors.As(err, &provErr):
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
}
