// Package topiccmder provides the topic command, which asks the LLM for a
// conversation topic in the voice of the configured personality.
package topiccmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/cmd/mnemo/shared"
	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/engine"
)

const topicLongDesc string = `Suggest a conversation topic.

Topics are generated from the personality profile set with personality.path
(or --personality). Recently suggested topics are remembered so repeated
calls move on to new subjects.

Examples:
  mnemo topic --personality ada.yaml
  mnemo topic --count 3`

const topicShortDesc string = "Suggest a conversation topic"

func NewTopicCmd() *cobra.Command {
	return newTopicCmd(engine.Options{})
}

func newTopicCmd(base engine.Options) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "topic",
		Short: topicShortDesc,
		Long:  topicLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive")
			}

			opts := base
			opts.DisableWorkers = true
			eng, err := shared.NewEngine(cmd.Context(), cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			if p := eng.Personality(); p != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", cliui.KeyStyle.Render("Personality:"), cliui.NameStyle.Render(p.Name))
			}
			for range count {
				topic, err := eng.NextTopic(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", topic)
			}
			return nil
		},
	}

	shared.AddFlags(cmd, shared.EngineFlags...)
	cmd.Flags().IntVarP(&count, "count", "c", 1, "Number of topics to suggest")

	return cmd
}
