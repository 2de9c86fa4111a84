// Package servecmder provides the serve command, which runs the mnemo HTTP
// API (and its MCP endpoint) over a fully wired engine.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/mnemo/api"
	"github.com/papercomputeco/mnemo/cmd/mnemo/shared"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/engine"
	"github.com/papercomputeco/mnemo/pkg/logger"
)

const serveLongDesc string = `Run the mnemo API server.

Serves the HTTP API under /v1 (memories, sessions, context, chat, documents
and the conversation log), Prometheus metrics on /metrics and an MCP
endpoint on /mcp exposing memory_search, build_context and document_search.

Memory retention (memory.retention_days) is applied at startup and then on
every --cleanup-interval. With personality.watch set, edits to the
personality file take effect without a restart. Each --log-file also
receives every log record as JSON.

Examples:
  mnemo serve
  mnemo serve --listen :9000 --provider anthropic
  mnemo serve --vector-store-provider qdrant --vector-store-target localhost:6334
  mnemo serve --log-file .mnemo/serve.log`

const serveShortDesc string = "Run the mnemo API server"

type serveCommander struct {
	base engine.Options

	listen          string
	noMCP           bool
	cleanupInterval time.Duration
	logFiles        []string

	logger *slog.Logger
}

func NewServeCmd() *cobra.Command {
	return newServeCmd(engine.Options{})
}

func newServeCmd(base engine.Options) *cobra.Command {
	cmder := &serveCommander{base: base}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, closeLogs, err := cmder.openLogger(shared.Debug(cmd))
			if err != nil {
				return err
			}
			defer closeLogs()
			cmder.logger = log

			opts := cmder.base
			if opts.Config == nil {
				cfg, err := shared.LoadConfig(cmd, append(shared.EngineFlags, config.FlagAPIListen)...)
				if err != nil {
					return err
				}
				opts.Config = cfg
			}
			if opts.Logger == nil {
				opts.Logger = cmder.logger
			}
			if cmd.Flags().Changed(config.Flags[config.FlagAPIListen].Name) || opts.Config.API.Listen == "" {
				opts.Config.API.Listen = cmder.listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			eng, err := shared.NewEngine(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			return cmder.run(ctx, eng)
		},
	}

	shared.AddFlags(cmd, shared.EngineFlags...)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.listen)
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Do not mount the MCP endpoint")
	cmd.Flags().DurationVar(&cmder.cleanupInterval, "cleanup-interval", 24*time.Hour, "How often memory retention is applied (0 disables)")
	cmd.Flags().StringArrayVar(&cmder.logFiles, "log-file", nil, "Also append JSON logs to this file (repeatable)")

	return cmd
}

// openLogger returns the terminal logger, joined through logger.Multi with a
// JSON logger over the --log-file files when any are given. The returned
// func closes the files.
func (c *serveCommander) openLogger(debug bool) (*slog.Logger, func(), error) {
	cli := logger.NewCLI(debug)
	if len(c.logFiles) == 0 {
		return cli, func() {}, nil
	}

	files := make([]*os.File, 0, len(c.logFiles))
	closeFiles := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	writers := make([]io.Writer, 0, len(c.logFiles))
	for _, path := range c.logFiles {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			closeFiles()
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		files = append(files, f)
		writers = append(writers, f)
	}

	structured := logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(true),
		logger.WithSource(debug),
		logger.WithWriters(writers...),
	)
	return logger.Multi(cli, structured), closeFiles, nil
}

func (c *serveCommander) run(ctx context.Context, eng *engine.Engine) error {
	server, err := api.NewServer(api.Config{
		ListenAddr: eng.Config.API.Listen,
		Memory:     eng.Memory,
		Embedder:   eng.Backend,
		Sessions:   eng.Sessions,
		Assembler:  eng.Assembler,
		Tagger:     eng.Backend,
		Chat:       eng.Chat,
		Documents:  eng.Documents,
		Log:        eng.Log,
		Publisher:  eng.Publisher,
		Source:     eng.Source,
		DisableMCP: c.noMCP,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Run(); err != nil {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		c.logger.Info("shutting down")
		return server.Shutdown()
	})

	g.Go(func() error {
		return c.cleanupLoop(gctx, eng)
	})

	if eng.Config.Personality.Watch {
		g.Go(func() error {
			return eng.WatchPersonality(gctx)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *serveCommander) cleanupLoop(ctx context.Context, eng *engine.Engine) error {
	cleanup := func() {
		n, err := eng.Cleanup(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			c.logger.Warn("memory cleanup failed", "error", err)
		case n > 0:
			c.logger.Info("expired memories removed", "count", n)
		}
	}

	cleanup()
	if c.cleanupInterval <= 0 {
		return nil
	}

	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cleanup()
		}
	}
}
