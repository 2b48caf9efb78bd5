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

// Package memory is the in-process vector store that gives agents recall
// across sessions. Records live fully in memory; durability comes from
// atomic JSON snapshots on disk.
package memory

import (
	"math"
	"time"
)

// Record is one remembered exchange. Vector is produced by the store's
// embedder at insert time and has the store's dimension.
type Record struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Vector    []float32         `json:"vector"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Hit is one search result. Score is in [0, 1] for both cosine and hybrid
// ranking.
type Hit struct {
	Record Record  `json:"record"`
	Score  float64 `json:"score"`
}

// cosineSimilarity assumes equal-length vectors; the store enforces a single
// dimension at insert and load time.
func cosineSimilarity(a, b []float32) float64 {
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
