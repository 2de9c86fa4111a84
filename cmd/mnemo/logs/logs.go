// Package logscmder provides the logs command, which reads the relational
// conversation log and the document insights recorded alongside it.
package logscmder

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/cmd/mnemo/shared"
	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/engine"
	"github.com/papercomputeco/mnemo/pkg/storage"
)

const logsLongDesc string = `Show the conversation log.

Every remembered turn is also appended to a relational log (SQLite by
default, PostgreSQL with storage.driver = "postgres"). Without flags the
most recent entries are shown, newest first.

Examples:
  mnemo logs
  mnemo logs --limit 50
  mnemo logs --query schema
  mnemo logs --insights /home/me/paper.txt
  mnemo logs --insights-query loom`

const logsShortDesc string = "Show the conversation log"

type logsCommander struct {
	base engine.Options

	limit         int
	query         string
	insights      string
	insightsQuery string
}

func NewLogsCmd() *cobra.Command {
	return newLogsCmd(engine.Options{})
}

func newLogsCmd(base engine.Options) *cobra.Command {
	cmder := &logsCommander{base: base}

	cmd := &cobra.Command{
		Use:   "logs",
		Short: logsShortDesc,
		Long:  logsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmder.limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}

			opts := cmder.base
			opts.DisableWorkers = true
			eng, err := shared.NewEngine(cmd.Context(), cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			return cmder.run(cmd.Context(), cmd.OutOrStdout(), eng.Log)
		},
	}

	shared.AddFlags(cmd, shared.EngineFlags...)
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 20, "Maximum number of entries")
	cmd.Flags().StringVarP(&cmder.query, "query", "q", "", "Only entries whose content contains this text")
	cmd.Flags().StringVar(&cmder.insights, "insights", "", "Show the insights recorded for this document path")
	cmd.Flags().StringVar(&cmder.insightsQuery, "insights-query", "", "Search insight text across all documents")

	return cmd
}

func (c *logsCommander) run(ctx context.Context, out io.Writer, log storage.Driver) error {
	switch {
	case c.insights != "":
		insights, err := log.DocumentInsights(ctx, c.insights)
		if err != nil {
			return err
		}
		printInsights(out, insights, c.limit)
		return nil

	case c.insightsQuery != "":
		insights, err := log.SearchInsights(ctx, c.insightsQuery, c.limit)
		if err != nil {
			return err
		}
		printInsights(out, insights, c.limit)
		return nil
	}

	var (
		entries []*storage.Conversation
		err     error
	)
	if c.query != "" {
		entries, err = log.Search(ctx, c.query, c.limit)
	} else {
		entries, err = log.Recent(ctx, c.limit)
	}
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No log entries.")
		return nil
	}

	for _, e := range entries {
		tag := ""
		if e.Tag != "" {
			tag = " " + cliui.DimStyle.Render("["+e.Tag+"]")
		}
		fmt.Fprintf(out, "%s %s%s  %s\n",
			cliui.DimStyle.Render(e.Timestamp.Local().Format(time.DateTime)),
			cliui.RoleLabel(e.Actor),
			tag,
			cliui.Preview(e.Content, 100),
		)
	}
	return nil
}

func printInsights(out io.Writer, insights []*storage.DocumentInsight, limit int) {
	if len(insights) == 0 {
		fmt.Fprintln(out, "No insights recorded.")
		return
	}
	if len(insights) > limit {
		insights = insights[:limit]
	}
	for _, in := range insights {
		fmt.Fprintf(out, "%s  %s  %s\n",
			cliui.ScoreStyle.Render(fmt.Sprintf("%.2f", in.Relevance)),
			cliui.DimStyle.Render(in.DocumentPath),
			cliui.Preview(in.InsightText, 100),
		)
	}
}
