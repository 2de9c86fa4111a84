// Package shared holds the plumbing every engine-backed mnemo command uses:
// flag registration, effective configuration and engine construction.
package shared

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/engine"
	"github.com/papercomputeco/mnemo/pkg/logger"
)

// EngineFlags are the registry keys every engine-backed command exposes.
var EngineFlags = []string{
	config.FlagProvider,
	config.FlagModel,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagPersonality,
	config.FlagRedis,
	config.FlagKafkaBrokers,
}

// AddFlags registers the given registry flags on cmd. Values are read back
// through viper, so the flag targets are never consulted directly.
func AddFlags(cmd *cobra.Command, keys ...string) {
	for _, key := range keys {
		if key == config.FlagEmbeddingDims {
			var dims uint
			config.AddUintFlag(cmd, config.Flags, key, &dims)
			continue
		}
		var s string
		config.AddStringFlag(cmd, config.Flags, key, &s)
	}
}

// LoadConfig resolves the effective configuration for cmd. Precedence is
// flag, then MNEMO_* environment, then config.toml, then defaults.
func LoadConfig(cmd *cobra.Command, keys ...string) (*config.Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, keys)

	return config.FromViper(v), nil
}

// Debug reports the persistent --debug flag.
func Debug(cmd *cobra.Command) bool {
	debug, _ := cmd.Flags().GetBool("debug")
	return debug
}

// StderrLogger logs to stderr so command output on stdout stays clean.
func StderrLogger(debug bool) *slog.Logger {
	return logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(term.IsTerminal(int(os.Stderr.Fd()))),
		logger.WithWriter(os.Stderr),
	)
}

// NewEngine loads configuration for cmd and builds an engine from it. opts
// may carry overrides; its Config, ConfigDir and Logger are filled in when
// empty.
func NewEngine(ctx context.Context, cmd *cobra.Command, opts engine.Options) (*engine.Engine, error) {
	if opts.Config == nil {
		cfg, err := LoadConfig(cmd, EngineFlags...)
		if err != nil {
			return nil, err
		}
		opts.Config = cfg
	}
	if opts.ConfigDir == "" {
		opts.ConfigDir, _ = cmd.Flags().GetString("config-dir")
	}
	if opts.Logger == nil {
		opts.Logger = StderrLogger(Debug(cmd))
	}

	eng, err := engine.New(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting mnemo: %w", err)
	}
	return eng, nil
}
