// Package document turns raw document text into page-aware chunks, extracts
// insights from each chunk with a completion backend and indexes the chunk
// embeddings for retrieval.
package document

import (
	"fmt"
	"strings"
)

const (
	// PageMarker separates pages in extracted document text.
	PageMarker = "\n\nPage "

	// DefaultChunkWords is the chunk window used by the extractor.
	DefaultChunkWords = 1000

	// DefaultCacheSize bounds the processed-chunk cache.
	DefaultCacheSize = 100

	// FanOutLimit caps simultaneous backend calls within one Process call.
	FanOutLimit = 20

	// FallbackRelevance is given to insights recovered line by line.
	FallbackRelevance = 0.8

	// summaryFetch is how many chunks Summary reads back from the index.
	summaryFetch = 100
)

// DocumentChunk is a bounded slice of a document's text.
type DocumentChunk struct {
	Text string `json:"text"`

	// PageNumber starts at 1.
	PageNumber int `json:"page_number"`

	// ChunkIndex counts chunks across the whole document from 0.
	ChunkIndex int `json:"chunk_index"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// Insight is one finding extracted from a chunk.
type Insight struct {
	Text      string         `json:"text"`
	Relevance float64        `json:"relevance"`
	Embedding []float32      `json:"embedding,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (i Insight) String() string {
	return fmt.Sprintf("Insight: %s (Relevance: %.2f)", i.Text, i.Relevance)
}

// ScoredText is a raw search hit.
type ScoredText struct {
	Text  string  `json:"text"`
	Score float32 `json:"score"`
}

// SearchResult is a document search hit with its provenance.
type SearchResult struct {
	Text string `json:"text"`

	// Context is the full cached chunk text when the chunk is still cached,
	// else the indexed text.
	Context string `json:"context"`

	Score      float32 `json:"score"`
	PageNumber int     `json:"page_number"`
	ChunkIndex int     `json:"chunk_index"`
}

// Chunk divides text into chunks of chunkWords words. Pages are separated by
// PageMarker and numbered from 1; every segment advances the page number,
// including empty ones, which yield no chunks. A non-positive chunkWords
// falls back to DefaultChunkWords.
func Chunk(text string, chunkWords int) []DocumentChunk {
	if chunkWords <= 0 {
		chunkWords = DefaultChunkWords
	}

	var (
		chunks []DocumentChunk
		index  int
	)
	for i, page := range strings.Split(text, PageMarker) {
		words := strings.Fields(page)
		for start := 0; start < len(words); start += chunkWords {
			end := min(start+chunkWords, len(words))
			chunks = append(chunks, DocumentChunk{
				Text:       strings.Join(words[start:end], " "),
				PageNumber: i + 1,
				ChunkIndex: index,
			})
			index++
		}
	}
	return chunks
}
