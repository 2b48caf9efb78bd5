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
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/zombiecoder1/zombiecursor/pkg/errors"
	"github.com/zombiecoder1/zombiecursor/pkg/metrics"
)

const snapshotFile = "memory.json"

// snapshot is the on-disk format. Model and Dimension pin the snapshot to
// the embedder that produced the vectors.
type snapshot struct {
	Model     string    `json:"model"`
	Dimension int       `json:"dimension"`
	SavedAt   time.Time `json:"saved_at"`
	Records   []Record  `json:"records"`
}

// Persist writes the current records to disk atomically: temp file in the
// same directory, fsync, rename. A crash mid-write leaves the previous
// snapshot intact.
func (s *Store) Persist() error {
	if s.path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	if err := os.MkdirAll(s.path, 0o755); err != nil {
		return errors.Wrapf(err, "creating snapshot directory %s", s.path)
	}
	snap := snapshot{
		Model:     s.embedder.Model(),
		Dimension: s.embedder.Dimension(),
		SavedAt:   time.Now().UTC(),
		Records:   s.records,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "encoding snapshot")
	}

	final := filepath.Join(s.path, snapshotFile)
	tmp, err := os.CreateTemp(s.path, snapshotFile+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "creating snapshot temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing snapshot")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "syncing snapshot")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing snapshot")
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return errors.Wrap(err, "publishing snapshot")
	}

	s.dirty = false
	s.lastPersist = snap.SavedAt
	s.logger.Debug("memory snapshot persisted", "records", len(s.records), "path", final)
	return nil
}

// Load replaces the store contents with the on-disk snapshot. A missing
// snapshot yields an empty store; a snapshot written by a different embedder
// is refused rather than silently mixed in.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(s.path, snapshotFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.WithCause(errors.KindIndexCorrupted, "reading memory snapshot", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return errors.WithCause(errors.KindIndexCorrupted, "memory snapshot is not valid JSON", err)
	}
	if snap.Model != s.embedder.Model() || snap.Dimension != s.embedder.Dimension() {
		return errors.Newf(errors.KindEmbeddingDimensionMismatch,
			"snapshot was built with %s/%d, store uses %s/%d",
			snap.Model, snap.Dimension, s.embedder.Model(), s.embedder.Dimension())
	}
	for _, r := range snap.Records {
		if len(r.Vector) != snap.Dimension {
			return errors.Newf(errors.KindIndexCorrupted,
				"record %s has dimension %d, snapshot declares %d", r.ID, len(r.Vector), snap.Dimension)
		}
	}

	s.mu.Lock()
	s.records = snap.Records
	s.dirty = false
	s.lastPersist = snap.SavedAt
	count := len(s.records)
	s.mu.Unlock()

	metrics.MemoryRecords.Set(float64(count))
	s.logger.Info("memory snapshot loaded", "records", count)
	return nil
}

// StartFlusher persists dirty state every interval until ctx is cancelled,
// then takes one final snapshot. interval <= 0 disables periodic flushing.
func (s *Store) StartFlusher(ctx context.Context, interval time.Duration) {
	if s.path == "" || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.flushIfDirty()
			case <-ctx.Done():
				s.flushIfDirty()
				return
			}
		}
	}()
}

func (s *Store) flushIfDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return
	}
	if err := s.persistLocked(); err != nil {
		s.logger.Error("memory snapshot flush failed", "error", err)
	}
}
