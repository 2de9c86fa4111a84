package document

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/papercomputeco/mnemo/pkg/vector"
)

const pageSummaryPrompt = "Summarize this text from page %d concisely:\n\n%s"

// Search embeds query and returns the nearest chunks as raw (text, score)
// pairs, best first.
func (e *Extractor) Search(ctx context.Context, query string, limit int) ([]ScoredText, error) {
	matches, err := e.searchCollection(ctx, vector.CollectionChunks, query, limit)
	if err != nil {
		return nil, err
	}
	return scored(matches), nil
}

// SearchInsights embeds query and returns the nearest indexed insights.
func (e *Extractor) SearchInsights(ctx context.Context, query string, limit int) ([]ScoredText, error) {
	matches, err := e.searchCollection(ctx, vector.CollectionInsights, query, limit)
	if err != nil {
		return nil, err
	}
	return scored(matches), nil
}

// SearchDocument is Search with page and chunk provenance, and the cached
// chunk text as context when available.
func (e *Extractor) SearchDocument(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	matches, err := e.searchCollection(ctx, vector.CollectionChunks, query, limit)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		text, _ := vector.PayloadString(m.Payload, "text")
		page, _ := vector.PayloadInt(m.Payload, "page")
		chunk, _ := vector.PayloadInt(m.Payload, "chunk")

		chunkContext := text
		if cached, ok := e.cache.Get(CacheKey(int(page), int(chunk))); ok {
			chunkContext = cached.Chunk.Text
		}

		results = append(results, SearchResult{
			Text:       text,
			Context:    chunkContext,
			Score:      m.Score,
			PageNumber: int(page),
			ChunkIndex: int(chunk),
		})
	}
	return results, nil
}

// Summary summarizes every indexed page, one completion per page, in page
// order. Pages whose completion fails are left out.
func (e *Extractor) Summary(ctx context.Context) (string, error) {
	return e.SummaryPages(ctx, 0, 0)
}

// SummaryPages is Summary restricted to pages first..last inclusive. A zero
// bound is open.
func (e *Extractor) SummaryPages(ctx context.Context, first, last int) (string, error) {
	dim := e.dimensions
	if dim == 0 {
		dim = int(vector.DefaultDimensions)
	}

	matches, err := e.index.Search(ctx, vector.CollectionChunks, make([]float32, dim), summaryFetch)
	if err != nil {
		return "", err
	}

	type pageChunk struct {
		index int64
		text  string
	}
	byPage := make(map[int][]pageChunk)
	for _, m := range matches {
		text, okText := vector.PayloadString(m.Payload, "text")
		page, okPage := vector.PayloadInt(m.Payload, "page")
		if !okText || !okPage {
			continue
		}
		if (first > 0 && int(page) < first) || (last > 0 && int(page) > last) {
			continue
		}
		chunk, _ := vector.PayloadInt(m.Payload, "chunk")
		byPage[int(page)] = append(byPage[int(page)], pageChunk{index: chunk, text: text})
	}

	pages := make([]int, 0, len(byPage))
	for p := range byPage {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	var b strings.Builder
	for _, page := range pages {
		chunks := byPage[page]
		sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].index < chunks[j].index })
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.text
		}

		summary, err := e.completer.Complete(ctx, fmt.Sprintf(pageSummaryPrompt, page, strings.Join(texts, " ")))
		if err != nil {
			e.logger.Warn("page summary failed", "page", page, "error", err)
			continue
		}
		fmt.Fprintf(&b, "\nPage %d: %s\n", page, summary)
	}
	return b.String(), nil
}

func (e *Extractor) searchCollection(ctx context.Context, collection, query string, limit int) ([]vector.Match, error) {
	ctx, span := e.tracer.Start(ctx, "document.Search")
	defer span.End()

	emb, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrEmbedding, err)
	}
	if err := vector.CheckDimensions(emb, e.dimensions); err != nil {
		return nil, err
	}
	return e.index.Search(ctx, collection, emb, limit)
}

func scored(matches []vector.Match) []ScoredText {
	out := make([]ScoredText, 0, len(matches))
	for _, m := range matches {
		text, ok := vector.PayloadString(m.Payload, "text")
		if !ok {
			continue
		}
		out = append(out, ScoredText{Text: text, Score: m.Score})
	}
	return out
}
