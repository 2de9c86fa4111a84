// Package initcmder provides the init command for initializing a local .mnemo
// directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/pkg/config"
)

const (
	dirName = ".mnemo"
)

const initLongDesc string = `Initialize a new .mnemo/ directory in the current working directory.

Creates a local .mnemo/ directory that takes precedence over the default
~/.mnemo/ directory for configuration, credentials, the conversation log,
and the local vector index.

With --preset, a config.toml tuned for the named backend is written as
well. Existing config files are left alone unless --force is given.

Available presets: openai, anthropic, deepseek, openrouter, gemini, ollama

Examples:
  mnemo init
  mnemo init --preset ollama`

const initShortDesc string = "Initialize a local .mnemo/ directory"

func NewInitCmd() *cobra.Command {
	var preset string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}
			return runInit(cmd.OutOrStdout(), filepath.Join(cwd, dirName), preset, force)
		},
		ValidArgsFunction: cobra.NoFileCompletions,
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Write a config.toml for the named backend")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config.toml")

	return cmd
}

func runInit(out io.Writer, dir, preset string, force bool) error {
	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Fprintf(out, "Already initialized: %s\n", dir)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .mnemo directory: %w", err)
		}
		fmt.Fprintf(out, "Initialized .mnemo directory: %s\n", dir)
	}

	if preset == "" {
		return nil
	}

	cfg, err := config.PresetConfig(preset)
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}

	_, err = os.Stat(cfger.GetTarget())
	switch {
	case err == nil && !force:
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", cfger.GetTarget())
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("checking config: %w", err)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(out, "Wrote %s preset to %s\n", preset, cfger.GetTarget())
	return nil
}
