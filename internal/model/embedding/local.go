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
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalEmbedder is a deterministic feature-hash embedder that needs no
// model server. Tokens (plus bigrams, for a little word-order signal) are
// hashed into a fixed number of buckets and the result is L2-normalized, so
// cosine similarity behaves: identical text scores 1.0 and texts sharing
// vocabulary score higher than unrelated ones. Semantic quality is far below
// a real model; it exists so the gateway (and its tests) work offline.
type LocalEmbedder struct {
	dimension int
}

// NewLocalEmbedder builds a feature-hash embedder. dim <= 0 defaults to 384.
func NewLocalEmbedder(dim int) *LocalEmbedder {
	if dim <= 0 {
		dim = 384
	}
	return &LocalEmbedder{dimension: dim}
}

// Model returns "feature-hash".
func (e *LocalEmbedder) Model() string { return "feature-hash" }

// Dimension returns the vector length.
func (e *LocalEmbedder) Dimension() int { return e.dimension }

// Embed implements Embedder. Never fails.
func (e *LocalEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *LocalEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dimension)
	tokens := tokenize(text)
	for i, tok := range tokens {
		addFeature(vec, tok)
		if i > 0 {
			addFeature(vec, tokens[i-1]+" "+tok)
		}
	}
	normalize(vec)
	return vec
}

func addFeature(vec []float32, feature string) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(len(vec)))
	// Low bit decides sign so buckets do not only accumulate positively.
	if sum&(1<<63) != 0 {
		vec[idx] -= 1
	} else {
		vec[idx] += 1
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
