package api

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/mnemo/api/mcp"
	"github.com/papercomputeco/mnemo/pkg/assembler"
	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/metrics"
)

// Server is the mnemo HTTP API server.
type Server struct {
	config Config
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server over the components in config. Memory,
// Embedder and Sessions are required.
func NewServer(config Config, log *slog.Logger) (*Server, error) {
	if config.Memory == nil {
		return nil, errors.New("memory store is required")
	}
	if config.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if config.Sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	if config.Assembler == nil {
		config.Assembler = assembler.New(assembler.Config{Memory: config.Memory, Logger: log})
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		logger: log,
		app:    app,
	}

	app.Use(s.recordRequest)

	app.Get("/ping", s.handlePing)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	v1 := app.Group("/v1")
	v1.Post("/memories", s.handleStoreMemory)
	v1.Get("/memories/recent", s.handleRecentMemories)
	v1.Post("/memories/search", s.handleSearchMemories)
	v1.Get("/sessions/:id/memories", s.handleSessionMemories)
	v1.Post("/sessions", s.handleStartSession)
	v1.Post("/context", s.handleBuildContext)
	v1.Post("/chat", s.handleChat)
	v1.Post("/documents", s.handleProcessDocument)
	v1.Get("/documents/search", s.handleSearchDocuments)
	v1.Get("/logs", s.handleLogs)

	if !config.DisableMCP {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Memory:    config.Memory,
			Embedder:  config.Embedder,
			Assembler: config.Assembler,
			Documents: config.Documents,
			Logger:    log,
		})
		if err != nil {
			return nil, err
		}
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	return s, nil
}

// App exposes the fiber app, for tests and embedding.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// recordRequest counts every request by method, route pattern and status.
func (s *Server) recordRequest(c *fiber.Ctx) error {
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
	}
	metrics.RecordHTTPRequest(c.Method(), c.Route().Path, strconv.Itoa(status))
	return err
}
