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

package memory

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/zombiecoder1/zombiecursor/internal/model/embedding"
	"github.com/zombiecoder1/zombiecursor/pkg/errors"
	"github.com/zombiecoder1/zombiecursor/pkg/log"
	"github.com/zombiecoder1/zombiecursor/pkg/metrics"
)

// Hybrid ranking weights: semantic similarity dominates, keyword overlap
// breaks near-ties and rescues exact-term queries the embedder misses.
const (
	semanticWeight = 0.7
	keywordWeight  = 0.3
)

// Store is the vector memory store. Reads run concurrently under an RLock;
// writes and snapshots are serialized.
type Store struct {
	embedder embedding.Embedder
	logger   *log.Logger

	mu          sync.RWMutex
	records     []Record
	dirty       bool
	lastPersist time.Time

	path string // snapshot directory, empty = no persistence
}

// NewStore creates an empty store bound to one embedder. path is the
// snapshot directory; empty disables persistence.
func NewStore(embedder embedding.Embedder, path string, logger *log.Logger) *Store {
	return &Store{
		embedder: embedder,
		path:     path,
		logger:   logger,
	}
}

// Add embeds text and inserts a new record. The returned record includes the
// generated ID and timestamp.
func (s *Store) Add(ctx context.Context, text string, metadata map[string]string) (Record, error) {
	if strings.TrimSpace(text) == "" {
		return Record{}, errors.New(errors.KindInternal, "refusing to remember empty text")
	}
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return Record{}, err
	}
	if dim := s.embedder.Dimension(); dim > 0 && len(vecs[0]) != dim {
		return Record{}, errors.Newf(errors.KindEmbeddingDimensionMismatch,
			"embedder produced dimension %d, store expects %d", len(vecs[0]), dim)
	}

	rec := Record{
		ID:        uuid.NewString(),
		Text:      text,
		Vector:    vecs[0],
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.records = append(s.records, rec)
	s.dirty = true
	count := len(s.records)
	s.mu.Unlock()

	metrics.MemoryRecords.Set(float64(count))
	return rec, nil
}

// Search returns the topK records ranked by cosine similarity to query,
// highest first. Equal scores rank newer records first.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Hit, error) {
	return s.search(ctx, query, topK, func(qVec []float32, qTokens map[string]bool, r Record) float64 {
		return cosineSimilarity(qVec, r.Vector)
	})
}

// HybridSearch blends cosine similarity with keyword overlap. The overlap
// term is the fraction of query tokens present in the record text.
func (s *Store) HybridSearch(ctx context.Context, query string, topK int) ([]Hit, error) {
	return s.search(ctx, query, topK, func(qVec []float32, qTokens map[string]bool, r Record) float64 {
		semantic := cosineSimilarity(qVec, r.Vector)
		return semanticWeight*semantic + keywordWeight*keywordOverlap(qTokens, r.Text)
	})
}

func (s *Store) search(ctx context.Context, query string, topK int,
	score func(qVec []float32, qTokens map[string]bool, r Record) float64) ([]Hit, error) {
	if topK <= 0 {
		return nil, nil
	}
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	qVec := vecs[0]
	qTokens := tokenSet(query)

	s.mu.RLock()
	hits := make([]Hit, 0, len(s.records))
	for _, r := range s.records {
		if len(r.Vector) != len(qVec) {
			continue // stale record from a different embedder, skip
		}
		hits = append(hits, Hit{Record: r, Score: score(qVec, qTokens, r)})
	}
	s.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Record.CreatedAt.After(hits[j].Record.CreatedAt)
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Purge deletes the record with the given id, reporting whether it existed.
func (s *Store) Purge(id string) bool {
	s.mu.Lock()
	found := false
	for i, r := range s.records {
		if r.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			s.dirty = true
			found = true
			break
		}
	}
	count := len(s.records)
	s.mu.Unlock()

	if found {
		metrics.MemoryRecords.Set(float64(count))
	}
	return found
}

// Stats reports store state for the status endpoint.
type Stats struct {
	Records     int       `json:"records"`
	Dimension   int       `json:"dimension"`
	Model       string    `json:"model"`
	Path        string    `json:"path,omitempty"`
	Oldest      time.Time `json:"oldest"`
	Newest      time.Time `json:"newest"`
	Dirty       bool      `json:"dirty"`
	LastPersist time.Time `json:"last_persist,omitempty"`
}

// GetStats returns a point-in-time snapshot of store state. Records append in
// creation order, so the bounds are the first and last entries.
func (s *Store) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := Stats{
		Records:     len(s.records),
		Dimension:   s.embedder.Dimension(),
		Model:       s.embedder.Model(),
		Path:        s.path,
		Dirty:       s.dirty,
		LastPersist: s.lastPersist,
	}
	if len(s.records) > 0 {
		stats.Oldest = s.records[0].CreatedAt
		stats.Newest = s.records[len(s.records)-1].CreatedAt
	}
	return stats
}

// Probe checks that the snapshot directory accepts writes, the one way a
// loaded store can degrade. Memory-only stores always report healthy.
func (s *Store) Probe(_ context.Context) error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(s.path, 0o755); err != nil {
		return errors.WithCause(errors.KindInternal, "snapshot directory unavailable", err)
	}
	f, err := os.CreateTemp(s.path, ".healthcheck-*")
	if err != nil {
		return errors.WithCause(errors.KindInternal, "snapshot directory not writable", err)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return nil
}

// keywordOverlap is the fraction of query tokens that occur in text.
func keywordOverlap(qTokens map[string]bool, text string) float64 {
	if len(qTokens) == 0 {
		return 0
	}
	docTokens := tokenSet(text)
	matched := 0
	for tok := range qTokens {
		if docTokens[tok] {
			matched++
		}
	}
	return float64(matched) / float64(len(qTokens))
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		set[tok] = true
	}
	return set
}
