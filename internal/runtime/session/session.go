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

// Package session tracks per-conversation state. Requests for the same
// session are serialized by the Manager so turn order never interleaves.
package session

import (
	"sync"
	"time"
)

// Turn is one conversation entry: a user query, an assistant reply or a tool
// exchange kept for prompt context.
type Turn struct {
	Role      string    `json:"role"` // user | assistant | tool
	Content   string    `json:"content"`
	ToolName  string    `json:"tool_name,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one conversation. Field access goes through methods; the
// manager hands out sessions to one request at a time but status endpoints
// read them concurrently.
type Session struct {
	ID        string
	AgentType string
	CreatedAt time.Time

	mu         sync.RWMutex
	turns      []Turn
	lastActive time.Time

	// Buffered lock channel for request serialization, owned by Manager.
	slot chan struct{}
}

func newSession(id, agentType string) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		AgentType:  agentType,
		CreatedAt:  now,
		lastActive: now,
		slot:       make(chan struct{}, 1),
	}
}

// Append records a turn and refreshes the activity timestamp.
func (s *Session) Append(turn Turn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	s.mu.Lock()
	s.turns = append(s.turns, turn)
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// Recent returns the trailing n turns, oldest first. n <= 0 returns all.
func (s *Session) Recent(n int) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.turns
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Len returns the total number of turns.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// LastActive returns the time of the most recent activity.
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}
