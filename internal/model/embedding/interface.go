package embedding

import (
	"context"
	"fmt"

	"github.com/zombiecoder1/zombiecursor/pkg/config"
)

// Embedder turns text into fixed-length vectors. Dimension is constant for
// the lifetime of an embedder; the memory store enforces it across records.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension returns the embedding vector length.
	Dimension() int
	// Model returns the embedding model identifier.
	Model() string
}

// NewEmbedder builds the configured embedding function.
func NewEmbedder(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "local", "":
		return NewLocalEmbedder(cfg.Dimension), nil
	case "ollama":
		return NewOllamaEmbedder(cfg), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
