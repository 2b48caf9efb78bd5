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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zombiecoder1/zombiecursor/pkg/log"
)

func TestGetOrCreate(t *testing.T) {
	m := NewManager(time.Minute, log.Discard())
	defer m.Stop()

	s1 := m.GetOrCreate("abc", "coder")
	s2 := m.GetOrCreate("abc", "coder")
	require.Same(t, s1, s2)

	s3 := m.GetOrCreate("", "coder")
	require.NotEmpty(t, s3.ID)
	require.NotSame(t, s1, s3)
	require.Equal(t, 2, m.Count())
}

func TestRecentTurns(t *testing.T) {
	m := NewManager(time.Minute, log.Discard())
	defer m.Stop()

	s := m.GetOrCreate("x", "coder")
	for i := 0; i < 5; i++ {
		s.Append(Turn{Role: "user", Content: "q"})
		s.Append(Turn{Role: "assistant", Content: "a"})
	}
	recent := s.Recent(4)
	require.Len(t, recent, 4)
	require.Equal(t, "user", recent[0].Role)
	require.Equal(t, 10, s.Len())
	require.Len(t, s.Recent(0), 10)
}

func TestAcquireSerializes(t *testing.T) {
	m := NewManager(time.Minute, log.Discard())
	defer m.Stop()
	s := m.GetOrCreate("serial", "coder")

	var mu sync.Mutex
	active, peak := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(context.Background(), s)
			require.NoError(t, err)
			defer release()

			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, 1, peak, "one request per session at a time")
}

func TestAcquireRespectsContext(t *testing.T) {
	m := NewManager(time.Minute, log.Discard())
	defer m.Stop()
	s := m.GetOrCreate("busy", "coder")

	release, err := m.Acquire(context.Background(), s)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, s)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEvictIdle(t *testing.T) {
	m := NewManager(10*time.Millisecond, log.Discard())
	defer m.Stop()

	m.GetOrCreate("old", "coder")
	time.Sleep(30 * time.Millisecond)
	fresh := m.GetOrCreate("fresh", "coder")
	fresh.Append(Turn{Role: "user", Content: "q"})

	m.evictIdle()
	require.Equal(t, 1, m.Count())
	require.Same(t, fresh, m.GetOrCreate("fresh", "coder"))
}

func TestEvictSkipsBusySession(t *testing.T) {
	m := NewManager(time.Nanosecond, log.Discard())
	defer m.Stop()

	s := m.GetOrCreate("busy", "coder")
	release, err := m.Acquire(context.Background(), s)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	m.evictIdle()
	require.Equal(t, 1, m.Count(), "a session mid-request is never evicted")
	release()
}
