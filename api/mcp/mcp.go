// Package mcp exposes mnemo's recall surfaces as MCP (Model Context Protocol)
// tools over streamable HTTP.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/mnemo/pkg/assembler"
	"github.com/papercomputeco/mnemo/pkg/document"
	"github.com/papercomputeco/mnemo/pkg/llm"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/utils"
)

type Config struct {
	// Memory backs memory_search.
	Memory *memory.Store

	// Embedder turns query text into vectors for Memory and Assembler.
	Embedder llm.Embedder

	// Assembler backs build_context. Defaults to one over Memory.
	Assembler *assembler.Assembler

	// Documents is optional and enables document_search.
	Documents *document.Extractor

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the recall tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "mnemo",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)
	s.mcpServer = mcpServer

	if !c.Noop {
		if c.Memory == nil {
			return nil, errors.New("memory store is required")
		}
		if c.Embedder == nil {
			return nil, errors.New("embedder is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}
		if s.config.Assembler == nil {
			s.config.Assembler = assembler.New(assembler.Config{Memory: c.Memory, Logger: c.Logger})
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        memorySearchToolName,
			Description: memorySearchDescription,
		}, s.handleMemorySearch)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        buildContextToolName,
			Description: buildContextDescription,
		}, s.handleBuildContext)

		if c.Documents != nil {
			mcp.AddTool(mcpServer, &mcp.Tool{
				Name:        documentSearchToolName,
				Description: documentSearchDescription,
			}, s.handleDocumentSearch)
		}
	}

	// Stateless streamable HTTP handler
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// toolError is the result returned for a failed tool call.
func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}
