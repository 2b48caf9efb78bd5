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
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zombiecoder1/zombiecursor/pkg/config"
	zerr "github.com/zombiecoder1/zombiecursor/pkg/errors"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestLocalEmbedderDeterministic(t *testing.T) {
	e := NewLocalEmbedder(128)
	vecs, err := e.Embed(context.Background(), []string{"list functions in utils.py", "list functions in utils.py"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	require.Len(t, vecs[0], 128)
	require.InDelta(t, 1.0, cosine(vecs[0], vecs[1]), 1e-6)
}

func TestLocalEmbedderSimilarityOrdering(t *testing.T) {
	e := NewLocalEmbedder(256)
	vecs, err := e.Embed(context.Background(), []string{
		"read the config file and parse yaml",
		"parse the yaml config file",
		"quantum entanglement of neutron stars",
	})
	require.NoError(t, err)
	related := cosine(vecs[0], vecs[1])
	unrelated := cosine(vecs[0], vecs[2])
	require.Greater(t, related, unrelated)
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"embedding": [0.1, 0.2, 0.3, 0.4]}`)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(config.EmbeddingConfig{Host: srv.URL, Model: "nomic-embed-text", Dimension: 4})
	vecs, err := e.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	require.Len(t, vecs[0], 4)
}

func TestOllamaEmbedderDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"embedding": [0.1, 0.2]}`)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(config.EmbeddingConfig{Host: srv.URL, Model: "m", Dimension: 4})
	_, err := e.Embed(context.Background(), []string{"hello"})
	require.True(t, zerr.IsKind(err, zerr.KindEmbeddingDimensionMismatch), "got %v", err)
}

func TestOllamaEmbedderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	e := NewOllamaEmbedder(config.EmbeddingConfig{Host: srv.URL, Model: "m", Dimension: 4})
	_, err := e.Embed(context.Background(), []string{"hello"})
	require.True(t, zerr.IsKind(err, zerr.KindBackendUnavailable), "got %v", err)
}
