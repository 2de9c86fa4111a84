package mcp

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/mnemo/pkg/document"
	"github.com/papercomputeco/mnemo/pkg/memory"
)

const defaultLimit = 5

var (
	memorySearchToolName    = "memory_search"
	memorySearchDescription = "Search mnemo's conversational memory. Returns the stored turns most similar to the query text, with role, session, importance and topic tags."

	documentSearchToolName    = "document_search"
	documentSearchDescription = "Search ingested documents. Returns the chunks most similar to the query text with their page and chunk position."

	buildContextToolName    = "build_context"
	buildContextDescription = "Assemble the conversation context mnemo would give a model for the message: recent turns followed by relevant past messages."
)

// MemorySearchInput represents the input arguments for memory_search.
type MemorySearchInput struct {
	Query string `json:"query" jsonschema:"the text to find similar memories for"`
	Limit int    `json:"limit,omitempty" jsonschema:"number of results to return (default: 5)"`
}

// MemorySearchOutput represents the output of memory_search.
type MemorySearchOutput struct {
	Query   string          `json:"query"`
	Results []memory.Record `json:"results"`
	Count   int             `json:"count"`
}

// DocumentSearchInput represents the input arguments for document_search.
type DocumentSearchInput struct {
	Query string `json:"query" jsonschema:"the text to find similar document chunks for"`
	Limit int    `json:"limit,omitempty" jsonschema:"number of results to return (default: 5)"`
}

// DocumentSearchOutput represents the output of document_search.
type DocumentSearchOutput struct {
	Query   string                  `json:"query"`
	Results []document.SearchResult `json:"results"`
	Count   int                     `json:"count"`
}

// BuildContextInput represents the input arguments for build_context.
type BuildContextInput struct {
	Message string `json:"message" jsonschema:"the user message to assemble context for"`
}

// BuildContextOutput represents the output of build_context.
type BuildContextOutput struct {
	Context string `json:"context"`
}

func (s *Server) handleMemorySearch(ctx context.Context, _ *mcp.CallToolRequest, input MemorySearchInput) (*mcp.CallToolResult, MemorySearchOutput, error) {
	if input.Query == "" {
		return toolError("query is required"), MemorySearchOutput{}, nil
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	s.config.Logger.Debug("MCP memory search", "query", input.Query, "limit", limit)

	embedding, err := s.config.Embedder.Embed(ctx, input.Query)
	if err != nil {
		s.config.Logger.Error("failed to embed query", "error", err)
		return toolError(fmt.Sprintf("Failed to embed query: %v", err)), MemorySearchOutput{}, nil
	}

	records, err := s.config.Memory.SearchSimilar(ctx, embedding, limit)
	if err != nil {
		s.config.Logger.Error("failed to search memory", "error", err)
		return toolError(fmt.Sprintf("Memory search failed: %v", err)), MemorySearchOutput{}, nil
	}
	if records == nil {
		records = []memory.Record{}
	}

	output := MemorySearchOutput{Query: input.Query, Results: records, Count: len(records)}
	return textResult(output)
}

func (s *Server) handleDocumentSearch(ctx context.Context, _ *mcp.CallToolRequest, input DocumentSearchInput) (*mcp.CallToolResult, DocumentSearchOutput, error) {
	if input.Query == "" {
		return toolError("query is required"), DocumentSearchOutput{}, nil
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	results, err := s.config.Documents.SearchDocument(ctx, input.Query, limit)
	if err != nil {
		s.config.Logger.Error("failed to search documents", "error", err)
		return toolError(fmt.Sprintf("Document search failed: %v", err)), DocumentSearchOutput{}, nil
	}
	if results == nil {
		results = []document.SearchResult{}
	}

	output := DocumentSearchOutput{Query: input.Query, Results: results, Count: len(results)}
	return textResult(output)
}

func (s *Server) handleBuildContext(ctx context.Context, _ *mcp.CallToolRequest, input BuildContextInput) (*mcp.CallToolResult, BuildContextOutput, error) {
	if input.Message == "" {
		return toolError("message is required"), BuildContextOutput{}, nil
	}

	embedding, err := s.config.Embedder.Embed(ctx, input.Message)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to embed message: %v", err)), BuildContextOutput{}, nil
	}

	text, err := s.config.Assembler.Build(ctx, input.Message, embedding)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to build context: %v", err)), BuildContextOutput{}, nil
	}

	return textResult(BuildContextOutput{Context: text})
}

// textResult serializes output into a TextContent block alongside the
// structured output, for clients that only read text.
func textResult[T any](output T) (*mcp.CallToolResult, T, error) {
	var zero T
	raw, err := json.Marshal(output)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), zero, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(raw)},
		},
	}, output, nil
}
