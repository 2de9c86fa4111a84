// Package api provides mnemo's HTTP API: memory storage and recall, session
// control, context assembly, chat, document ingestion and the relational log.
package api

import (
	"github.com/papercomputeco/mnemo/pkg/assembler"
	"github.com/papercomputeco/mnemo/pkg/chat"
	"github.com/papercomputeco/mnemo/pkg/document"
	"github.com/papercomputeco/mnemo/pkg/eventstream"
	"github.com/papercomputeco/mnemo/pkg/llm"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/session"
	"github.com/papercomputeco/mnemo/pkg/storage"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	Memory   *memory.Store
	Embedder llm.Embedder
	Sessions *session.Manager

	// Assembler defaults to one over Memory.
	Assembler *assembler.Assembler

	// Tagger, when set, lets POST /v1/memories request topic analysis.
	Tagger memory.Completer

	// The remaining components are optional; their routes answer 503
	// without them.
	Chat      *chat.Service
	Documents *document.Extractor
	Log       storage.Driver

	Publisher eventstream.Publisher
	Source    eventstream.EventSource

	// DisableMCP leaves /mcp unmounted.
	DisableMCP bool
}
