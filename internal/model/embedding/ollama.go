// Copyright 2026 zombiecoder1
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/zombiecoder1/zombiecursor/pkg/config"
	zerr "github.com/zombiecoder1/zombiecursor/pkg/errors"
)

// OllamaEmbedder produces embeddings through Ollama's /api/embeddings route.
type OllamaEmbedder struct {
	client    *resty.Client
	host      string
	model     string
	dimension int
}

// NewOllamaEmbedder builds the Ollama embedding client from cfg.
func NewOllamaEmbedder(cfg config.EmbeddingConfig) *OllamaEmbedder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	return &OllamaEmbedder{
		client:    client,
		host:      strings.TrimRight(cfg.Host, "/"),
		model:     cfg.Model,
		dimension: cfg.Dimension,
	}
}

// Model returns the embedding model name.
func (e *OllamaEmbedder) Model() string { return e.model }

// Dimension returns the configured vector length.
func (e *OllamaEmbedder) Dimension() int { return e.dimension }

// Embed embeds each text with one API call apiece; Ollama's embeddings
// route takes a single prompt per request.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := e.embedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

func (e *OllamaEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"model": e.model, "prompt": text}).
		Post(e.host + "/api/embeddings")
	if err != nil {
		return nil, zerr.WithCause(zerr.KindBackendUnavailable, "embedding backend unreachable", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, zerr.Newf(zerr.KindBackendProtocol, "embedding backend returned status %d", resp.StatusCode())
	}
	var body struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, zerr.WithCause(zerr.KindBackendProtocol, "embedding backend returned malformed response", err)
	}
	if len(body.Embedding) == 0 {
		return nil, zerr.New(zerr.KindBackendProtocol, "embedding backend returned an empty vector")
	}
	if e.dimension > 0 && len(body.Embedding) != e.dimension {
		return nil, zerr.Newf(zerr.KindEmbeddingDimensionMismatch,
			"embedding model produced dimension %d, store expects %d", len(body.Embedding), e.dimension)
	}
	return body.Embedding, nil
}
