// Package ingestcmder provides the ingest command, which runs a text
// document through chunking, insight extraction and indexing.
package ingestcmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/cmd/mnemo/shared"
	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/document"
	"github.com/papercomputeco/mnemo/pkg/engine"
	"github.com/papercomputeco/mnemo/pkg/eventstream"
)

const ingestLongDesc string = `Ingest a text document into mnemo.

The document is split into pages on "Page N" markers and into chunks of at
most document.chunk_words words. Each chunk is embedded and indexed, and the
LLM extracts key insights from it. Insights are written to the conversation
log and, when document.index_insights is set, to their own vector
collection.

Use "-" to read the document from stdin.

Examples:
  mnemo ingest notes.txt
  mnemo ingest --quick report.txt
  cat paper.txt | mnemo ingest --name paper.txt -`

const ingestShortDesc string = "Ingest a text document"

type ingestCommander struct {
	base engine.Options

	name    string
	quick   bool
	summary bool
}

func NewIngestCmd() *cobra.Command {
	return newIngestCmd(engine.Options{})
}

func newIngestCmd(base engine.Options) *cobra.Command {
	cmder := &ingestCommander{base: base}

	cmd := &cobra.Command{
		Use:   "ingest <file|->",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, path, err := readDocument(cmd.InOrStdin(), args[0], cmder.name)
			if err != nil {
				return err
			}

			opts := cmder.base
			opts.DisableWorkers = true
			eng, err := shared.NewEngine(cmd.Context(), cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			return cmder.run(cmd.Context(), cmd.OutOrStdout(), eng, text, path)
		},
	}

	shared.AddFlags(cmd, shared.EngineFlags...)
	cmd.Flags().StringVar(&cmder.name, "name", "", "Document name recorded with its insights (default: the file path)")
	cmd.Flags().BoolVar(&cmder.quick, "quick", false, "Print a one-shot analysis without indexing")
	cmd.Flags().BoolVar(&cmder.summary, "summary", false, "Print a per-page summary after indexing")

	return cmd
}

func readDocument(stdin io.Reader, arg, name string) (string, string, error) {
	var (
		data []byte
		err  error
		path = name
	)

	if arg == "-" {
		data, err = io.ReadAll(stdin)
		if path == "" {
			path = "stdin"
		}
	} else {
		data, err = os.ReadFile(arg)
		if path == "" {
			path, _ = filepath.Abs(arg)
		}
	}
	if err != nil {
		return "", "", fmt.Errorf("reading document: %w", err)
	}

	text := string(data)
	if strings.TrimSpace(text) == "" {
		return "", "", fmt.Errorf("document %s is empty", path)
	}
	return text, path, nil
}

func (c *ingestCommander) run(ctx context.Context, out io.Writer, eng *engine.Engine, text, path string) error {
	docs := eng.Documents

	if c.quick {
		analysis, err := docs.QuickAnalyze(ctx, text)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", analysis)
		return nil
	}

	fmt.Fprintf(out, "\n  %s %s\n\n", cliui.KeyStyle.Render("Document:"), cliui.ValueStyle.Render(path))

	var insights []document.Insight
	start := time.Now()
	err := cliui.Step(out, "Extracting insights", func() error {
		var err error
		insights, err = docs.Process(ctx, text, map[string]any{"source": path})
		return err
	})
	if err != nil {
		return err
	}
	chunks := len(document.Chunk(text, docs.ChunkWords()))

	event := eventstream.NewDocumentProcessedEvent(eng.Source, path, chunks, len(insights), time.Since(start))
	if err := eng.Publisher.PublishDocument(ctx, event); err != nil {
		fmt.Fprintf(out, "  %s %s\n", cliui.WarnStyle.Render("!"), cliui.DimStyle.Render("event not published: "+err.Error()))
	}

	fmt.Fprintf(out, "\n  %s %d chunks, %d insights\n\n", cliui.SuccessMark, chunks, len(insights))
	for _, in := range insights {
		fmt.Fprintf(out, "  %s %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("%.2f", in.Relevance)),
			cliui.Preview(in.Text, 100),
		)
	}

	if !c.summary {
		return nil
	}

	var summary string
	err = cliui.Step(out, "Summarizing pages", func() error {
		var err error
		summary, err = docs.Summary(ctx)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s\n", summary)
	return nil
}
