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

package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombiecoder1/zombiecursor/pkg/log"
)

const janitorInterval = time.Minute

// Manager owns all live sessions. Idle sessions are evicted after the TTL;
// an evicted session simply starts fresh on its next request.
type Manager struct {
	ttl    time.Duration
	logger *log.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	stopOnce sync.Once
	stop     chan struct{}
}

// NewManager creates a Manager and starts its eviction janitor. ttl <= 0
// keeps sessions forever.
func NewManager(ttl time.Duration, logger *log.Logger) *Manager {
	m := &Manager{
		ttl:      ttl,
		logger:   logger,
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
	}
	if ttl > 0 {
		go m.janitor()
	}
	return m
}

// GetOrCreate returns the session for id, creating it when unknown. An empty
// id gets a generated one; the caller reads it back from the session.
func (m *Manager) GetOrCreate(id, agentType string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.touch()
		return s
	}
	s := newSession(id, agentType)
	m.sessions[id] = s
	return s
}

// Acquire serializes access to one session. It blocks until the session is
// free or ctx expires; the returned release must be called exactly once.
func (m *Manager) Acquire(ctx context.Context, s *Session) (release func(), err error) {
	select {
	case s.slot <- struct{}{}:
		return func() { <-s.slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Stop halts the janitor. Sessions remain usable.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Manager) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.evictIdle()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) evictIdle() {
	cutoff := time.Now().Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		// A session mid-request holds its slot; skip it regardless of age.
		select {
		case s.slot <- struct{}{}:
			<-s.slot
		default:
			continue
		}
		if s.LastActive().Before(cutoff) {
			delete(m.sessions, id)
			m.logger.Debug("session evicted", "session_id", id, "turns", s.Len())
		}
	}
}
