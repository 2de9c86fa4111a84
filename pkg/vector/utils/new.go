// Package vectorutils builds a vector.Index from a provider name.
package vectorutils

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/mnemo/pkg/vector"
	"github.com/papercomputeco/mnemo/pkg/vector/chroma"
	"github.com/papercomputeco/mnemo/pkg/vector/chromem"
	"github.com/papercomputeco/mnemo/pkg/vector/inmemory"
	"github.com/papercomputeco/mnemo/pkg/vector/qdrant"
	"github.com/papercomputeco/mnemo/pkg/vector/sqlitevec"
)

// Supported vector store providers.
const (
	ProviderQdrant    = "qdrant"
	ProviderChroma    = "chroma"
	ProviderChromem   = "chromem"
	ProviderSQLiteVec = "sqlite-vec"
	ProviderInMemory  = "inmemory"
)

// Providers lists every supported provider name.
func Providers() []string {
	return []string{ProviderQdrant, ProviderChroma, ProviderChromem, ProviderSQLiteVec, ProviderInMemory}
}

type NewIndexOpts struct {
	ProviderType string

	// TargetURL is the server URL for qdrant and chroma, or a filesystem
	// path for sqlite-vec and chromem.
	TargetURL string
	APIKey    string
	Logger    *slog.Logger
}

func NewIndex(o *NewIndexOpts) (vector.Index, error) {
	switch o.ProviderType {
	case ProviderQdrant:
		return qdrant.NewIndex(qdrant.Config{URL: o.TargetURL, APIKey: o.APIKey}, o.Logger)
	case ProviderChroma:
		return chroma.NewIndex(chroma.Config{URL: o.TargetURL}, o.Logger)
	case ProviderChromem:
		return chromem.NewIndex(chromem.Config{Path: o.TargetURL}, o.Logger)
	case ProviderSQLiteVec:
		path := o.TargetURL
		if path == "" {
			path = ":memory:"
		}
		return sqlitevec.NewIndex(sqlitevec.Config{DBPath: path}, o.Logger)
	case ProviderInMemory, "":
		return inmemory.NewIndex(), nil
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
