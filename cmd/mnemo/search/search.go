// Package searchcmder provides the search command for similarity search over
// memories, documents, insights and semantically indexed text.
package searchcmder

import (
	"context"
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/cmd/mnemo/shared"
	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/engine"
)

// Search kinds.
const (
	KindMemory    = "memory"
	KindSession   = "session"
	KindDocuments = "documents"
	KindInsights  = "insights"
	KindSemantic  = "semantic"
)

var kinds = []string{KindMemory, KindSession, KindDocuments, KindInsights, KindSemantic}

// Hit is one search result, whatever its kind.
type Hit struct {
	Score     float32   `json:"score,omitempty"`
	Text      string    `json:"text"`
	Role      string    `json:"role,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Source    string    `json:"source,omitempty"`
	Page      int       `json:"page,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type searchCommander struct {
	base engine.Options

	kind    string
	topK    int
	jsonOut bool
}

const searchLongDesc string = `Search what mnemo remembers.

The query is embedded and compared against one of mnemo's collections:
  memory      conversation turns (default)
  documents   document chunks, with page provenance
  insights    insights extracted from documents
  semantic    text indexed for semantic search
  session     every turn of the session whose id is given as the query

Examples:
  mnemo search "the schema migration"
  mnemo search --kind documents "punched cards" --top 3
  mnemo search --kind session 6f1c2a9e-...
  mnemo search "looms" --json`

const searchShortDesc string = "Search memories and documents"

func NewSearchCmd() *cobra.Command {
	return newSearchCmd(engine.Options{})
}

func newSearchCmd(base engine.Options) *cobra.Command {
	cmder := &searchCommander{base: base}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !validKind(cmder.kind) {
				return fmt.Errorf("unknown search kind %q (available: memory, session, documents, insights, semantic)", cmder.kind)
			}
			if cmder.topK <= 0 {
				return fmt.Errorf("--top must be positive")
			}

			opts := cmder.base
			opts.DisableWorkers = true
			eng, err := shared.NewEngine(cmd.Context(), cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			hits, err := cmder.search(cmd.Context(), eng, args[0])
			if err != nil {
				return err
			}
			return cmder.print(cmd.OutOrStdout(), args[0], hits)
		},
		ValidArgsFunction: cobra.NoFileCompletions,
	}

	shared.AddFlags(cmd, shared.EngineFlags...)
	cmd.Flags().StringVar(&cmder.kind, "kind", KindMemory, "What to search: memory, session, documents, insights, semantic")
	cmd.Flags().IntVarP(&cmder.topK, "top", "k", 5, "Number of results to return")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print results as JSON")

	_ = cmd.RegisterFlagCompletionFunc("kind", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return kinds, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func validKind(kind string) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (c *searchCommander) search(ctx context.Context, eng *engine.Engine, query string) ([]Hit, error) {
	switch c.kind {
	case KindSession:
		records, err := eng.Memory.SearchBySession(ctx, query)
		if err != nil {
			return nil, err
		}
		hits := make([]Hit, 0, len(records))
		for _, r := range records {
			hits = append(hits, Hit{Text: r.Text, Role: r.Role, SessionID: r.SessionID, Timestamp: r.Timestamp})
		}
		return hits, nil

	case KindDocuments:
		results, err := eng.Documents.SearchDocument(ctx, query, c.topK)
		if err != nil {
			return nil, err
		}
		hits := make([]Hit, 0, len(results))
		for _, r := range results {
			hits = append(hits, Hit{Score: r.Score, Text: r.Text, Page: r.PageNumber})
		}
		return hits, nil

	case KindInsights:
		results, err := eng.Documents.SearchInsights(ctx, query, c.topK)
		if err != nil {
			return nil, err
		}
		hits := make([]Hit, 0, len(results))
		for _, r := range results {
			hits = append(hits, Hit{Score: r.Score, Text: r.Text})
		}
		return hits, nil
	}

	embedding, err := eng.Backend.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	if c.kind == KindSemantic {
		results, err := eng.Semantic.Search(ctx, embedding, c.topK)
		if err != nil {
			return nil, err
		}
		hits := make([]Hit, 0, len(results))
		for _, r := range results {
			hits = append(hits, Hit{Score: r.Score, Text: r.Text, Source: r.Source})
		}
		return hits, nil
	}

	records, err := eng.Memory.SearchSimilar(ctx, embedding, c.topK)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(records))
	for _, r := range records {
		hits = append(hits, Hit{Score: r.Score, Text: r.Text, Role: r.Role, SessionID: r.SessionID, Timestamp: r.Timestamp})
	}
	return hits, nil
}

func (c *searchCommander) print(out io.Writer, query string, hits []Hit) error {
	if c.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}

	if len(hits) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}

	fmt.Fprintf(out, "\n%s %s\n\n",
		cliui.HeaderStyle.Render("Search Results for:"),
		cliui.KeyStyle.Render(fmt.Sprintf("%q", query)),
	)

	for i, hit := range hits {
		header := cliui.HeaderStyle.Render(fmt.Sprintf("#%d", i+1))
		if c.kind != KindSession {
			header += "  " + cliui.ScoreStyle.Render(fmt.Sprintf("score: %.4f", hit.Score))
		}
		switch {
		case hit.Role != "":
			header += "  " + cliui.RoleLabel(hit.Role)
		case hit.Page > 0:
			header += "  " + cliui.DimStyle.Render(fmt.Sprintf("page %d", hit.Page))
		case hit.Source != "":
			header += "  " + cliui.DimStyle.Render(hit.Source)
		}
		if !hit.Timestamp.IsZero() {
			header += "  " + cliui.DimStyle.Render(hit.Timestamp.Format(time.DateTime))
		}

		fmt.Fprintf(out, "  %s\n  %s\n\n", header, cliui.ValueStyle.Render(cliui.Preview(hit.Text, 100)))
	}
	return nil
}
