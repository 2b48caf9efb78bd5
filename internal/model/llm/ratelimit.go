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

	"golang.org/x/time/rate"

	"github.com/zombiecoder1/zombiecursor/pkg/metrics"
)

// RateLimitedClient wraps a Client with a request-rate limiter and a bound on
// concurrent in-flight calls. One local backend serves many concurrent
// sessions; this keeps it from being swamped. A nil limiter and zero
// concurrency degrade to a direct passthrough.
type RateLimitedClient struct {
	inner     Client
	limiter   *rate.Limiter
	semaphore chan struct{}
}

// NewRateLimitedClient builds the wrapper. requestsPerMinute <= 0 disables
// rate limiting, maxConcurrent <= 0 disables the concurrency bound.
func NewRateLimitedClient(inner Client, requestsPerMinute float64, maxConcurrent int) *RateLimitedClient {
	c := &RateLimitedClient{inner: inner}
	if requestsPerMinute > 0 {
		burst := int(requestsPerMinute / 30)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerMinute/60.0), burst)
	}
	if maxConcurrent > 0 {
		c.semaphore = make(chan struct{}, maxConcurrent)
	}
	return c
}

func (c *RateLimitedClient) acquire(ctx context.Context) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if c.semaphore != nil {
		select {
		case c.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *RateLimitedClient) release() {
	if c.semaphore != nil {
		<-c.semaphore
	}
}

// Chat implements Client.
func (c *RateLimitedClient) Chat(ctx context.Context, req *Request) (*Response, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	resp, err := c.inner.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	metrics.LLMTokensTotal.WithLabelValues("input").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues("output").Add(float64(resp.Usage.CompletionTokens))
	return resp, nil
}

// ChatStream implements Client. The concurrency slot is held until the
// stream terminates, not just until it starts.
func (c *RateLimitedClient) ChatStream(ctx context.Context, req *Request) (*Stream, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	s, err := c.inner.ChatStream(ctx, req)
	if err != nil {
		c.release()
		return nil, err
	}
	go func() {
		<-s.Done()
		c.release()
	}()
	return s, nil
}

// Probe implements Client. Probes bypass the limiter: health checks must not
// queue behind completions.
func (c *RateLimitedClient) Probe(ctx context.Context) error {
	return c.inner.Probe(ctx)
}

// Model implements Client.
func (c *RateLimitedClient) Model() string { return c.inner.Model() }

// Provider implements Client.
func (c *RateLimitedClient) Provider() string { return c.inner.Provider() }
