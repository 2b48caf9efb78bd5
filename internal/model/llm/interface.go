package llm

import (
	"context"
	"fmt"

	"github.com/zombiecoder1/zombiecursor/pkg/config"
)

// Client is the uniform adapter over a local inference backend.
type Client interface {
	// Chat performs a full completion.
	Chat(ctx context.Context, req *Request) (*Response, error)
	// ChatStream starts a streaming completion. The returned stream delivers
	// chunks in production order and terminates with a stop reason.
	ChatStream(ctx context.Context, req *Request) (*Stream, error)
	// Probe checks backend reachability with a short timeout.
	Probe(ctx context.Context) error
	// Model returns the configured model name.
	Model() string
	// Provider returns the backend identifier (openai | ollama).
	Provider() string
}

// NewClient builds the configured backend client. cfg.Backend selects the
// implementation; everything downstream only sees the Client contract.
func NewClient(cfg config.LLMConfig) (Client, error) {
	switch cfg.Backend {
	case "openai", "":
		return NewOpenAIClient(cfg), nil
	case "ollama":
		return NewOllamaClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
}
