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
)

// Chunk is one element of a streamed completion. Exactly one chunk per
// stream has Done set; it carries the stop reason, usage and any terminal
// error. Content chunks arrive strictly in production order.
type Chunk struct {
	Content    string
	Done       bool
	StopReason StopReason
	Usage      Usage
	Err        error
}

// Stream is a finite, ordered sequence of chunks backed by one live backend
// connection. Closing the stream (or cancelling the context it was started
// with) releases the connection promptly.
type Stream struct {
	ch        chan Chunk
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func newStream(cancel context.CancelFunc) *Stream {
	return &Stream{
		ch:     make(chan Chunk, 8),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Chunks returns the ordered chunk channel. It is closed after the terminal
// chunk is delivered or the stream is closed.
func (s *Stream) Chunks() <-chan Chunk { return s.ch }

// Done is closed once the producer goroutine has exited and the backend
// connection is released.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Close cancels the stream and releases the backend connection. Safe to call
// multiple times and after normal termination.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
	})
}

// NewScriptedStream builds a stream that replays fixed chunks and
// terminates. Offline fakes use it in place of a live backend stream.
func NewScriptedStream(chunks ...Chunk) *Stream {
	ctx, cancel := context.WithCancel(context.Background())
	s := newStream(cancel)
	go func() {
		defer s.finish()
		for _, c := range chunks {
			if !s.emit(ctx, c) {
				return
			}
		}
	}()
	return s
}

// emit sends c unless the stream context is gone. Returns false when the
// consumer is no longer listening.
func (s *Stream) emit(ctx context.Context, c Chunk) bool {
	select {
	case s.ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// finish closes the chunk channel and signals Done.
func (s *Stream) finish() {
	close(s.ch)
	close(s.done)
}
