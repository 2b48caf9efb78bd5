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

package llm

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// slowClient counts concurrent Chat calls and holds each one briefly.
type slowClient struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (c *slowClient) Chat(ctx context.Context, req *Request) (*Response, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return &Response{Content: "ok", StopReason: StopReasonStop}, nil
}

func (c *slowClient) ChatStream(ctx context.Context, req *Request) (*Stream, error) {
	s := newStream(func() {})
	go func() {
		s.emit(ctx, Chunk{Content: "ok"})
		s.emit(ctx, Chunk{Done: true, StopReason: StopReasonStop})
		s.finish()
	}()
	return s, nil
}

func (c *slowClient) Probe(ctx context.Context) error { return nil }
func (c *slowClient) Model() string                   { return "stub" }
func (c *slowClient) Provider() string                { return "stub" }

func TestRateLimitedClientConcurrencyBound(t *testing.T) {
	inner := &slowClient{}
	c := NewRateLimitedClient(inner, 0, 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Chat(context.Background(), &Request{})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, inner.peak.Load(), int32(2), "concurrency bound exceeded")
}

func TestRateLimitedClientStreamHoldsSlot(t *testing.T) {
	inner := &slowClient{}
	c := NewRateLimitedClient(inner, 0, 1)

	s, err := c.ChatStream(context.Background(), &Request{})
	require.NoError(t, err)
	for range s.Chunks() {
	}
	<-s.Done()

	// Slot must be free again after stream termination.
	done := make(chan struct{})
	go func() {
		_, err := c.Chat(context.Background(), &Request{})
		require.NoError(t, err)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("slot was not released after stream completion")
	}
}

func TestRateLimitedClientCancelledAcquire(t *testing.T) {
	inner := &slowClient{}
	c := NewRateLimitedClient(inner, 0, 1)

	// Occupy the only slot.
	c.semaphore <- struct{}{}
	defer func() { <-c.semaphore }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Chat(ctx, &Request{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
