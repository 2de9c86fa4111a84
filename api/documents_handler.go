package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/mnemo/pkg/document"
	"github.com/papercomputeco/mnemo/pkg/eventstream"
)

// ProcessDocumentRequest is the body of POST /v1/documents.
type ProcessDocumentRequest struct {
	// Text is the extracted document text, pages separated by "\n\nPage ".
	Text string `json:"text"`

	// Path names the document in the log and in chunk payloads.
	Path string `json:"path"`
}

// ProcessDocumentResponse is returned by POST /v1/documents.
type ProcessDocumentResponse struct {
	Path     string             `json:"path"`
	Chunks   int                `json:"chunks"`
	Insights []document.Insight `json:"insights"`
}

// DocumentSearchResponse is returned by GET /v1/documents/search.
type DocumentSearchResponse struct {
	Query   string                  `json:"query"`
	Results []document.SearchResult `json:"results,omitempty"`

	// Insights is set instead of Results when kind=insights.
	Insights []document.ScoredText `json:"insights,omitempty"`
}

// handleProcessDocument runs the document pipeline over the posted text.
func (s *Server) handleProcessDocument(c *fiber.Ctx) error {
	if s.config.Documents == nil {
		return unavailable(c, "document processing is not configured")
	}

	var req ProcessDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Text == "" {
		return badRequest(c, "text is required")
	}

	ctx := c.UserContext()
	start := time.Now()
	insights, err := s.config.Documents.Process(ctx, req.Text, map[string]any{"source": req.Path})
	if err != nil {
		return storeError(c, err)
	}
	chunks := len(document.Chunk(req.Text, s.config.Documents.ChunkWords()))

	if s.config.Publisher != nil {
		event := eventstream.NewDocumentProcessedEvent(s.config.Source, req.Path, chunks, len(insights), time.Since(start))
		if err := s.config.Publisher.PublishDocument(ctx, event); err != nil {
			s.logger.Warn("failed to publish document event", "path", req.Path, "error", err)
		}
	}

	for i := range insights {
		insights[i].Embedding = nil
	}
	if insights == nil {
		insights = []document.Insight{}
	}
	return c.JSON(ProcessDocumentResponse{Path: req.Path, Chunks: chunks, Insights: insights})
}

// handleSearchDocuments searches chunks, or insights with kind=insights.
func (s *Server) handleSearchDocuments(c *fiber.Ctx) error {
	if s.config.Documents == nil {
		return unavailable(c, "document processing is not configured")
	}

	query := c.Query("query")
	if query == "" {
		return badRequest(c, "query parameter is required")
	}
	limit, err := queryLimit(c, defaultRecentLimit)
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx := c.UserContext()
	switch c.Query("kind", "chunks") {
	case "chunks":
		results, err := s.config.Documents.SearchDocument(ctx, query, limit)
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(DocumentSearchResponse{Query: query, Results: results})
	case "insights":
		insights, err := s.config.Documents.SearchInsights(ctx, query, limit)
		if err != nil {
			return storeError(c, err)
		}
		return c.JSON(DocumentSearchResponse{Query: query, Insights: insights})
	default:
		return badRequest(c, "kind must be chunks or insights")
	}
}
