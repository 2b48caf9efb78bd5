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
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/zombiecoder1/zombiecursor/pkg/config"
	zerr "github.com/zombiecoder1/zombiecursor/pkg/errors"
)

// OllamaClient talks to a native Ollama server: /api/chat for completions
// (NDJSON when streaming) and /api/tags for the health probe.
type OllamaClient struct {
	client  *resty.Client
	host    string
	model   string
	timeout time.Duration
}

// NewOllamaClient builds the native Ollama backend from cfg.
func NewOllamaClient(cfg config.LLMConfig) *OllamaClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OllamaClient{
		client:  resty.New(),
		host:    strings.TrimRight(cfg.Host, "/"),
		model:   cfg.Model,
		timeout: timeout,
	}
}

// Model returns the configured model name.
func (c *OllamaClient) Model() string { return c.model }

// Provider returns "ollama".
func (c *OllamaClient) Provider() string { return "ollama" }

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type ollamaTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type ollamaChatResponse struct {
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

func (c *OllamaClient) buildBody(req *Request, stream bool) map[string]any {
	msgs := make([]ollamaMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, ollamaMessage{Role: m.Role, Content: m.Content})
	}
	body := map[string]any{
		"model":    c.model,
		"messages": msgs,
		"stream":   stream,
		"options": map[string]any{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}
	if len(req.Tools) > 0 {
		tools := make([]ollamaTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			var ot ollamaTool
			ot.Type = "function"
			ot.Function.Name = t.Name
			ot.Function.Description = t.Description
			ot.Function.Parameters = t.Parameters
			tools = append(tools, ot)
		}
		body["tools"] = tools
	}
	return body
}

// Chat performs a non-streaming completion.
func (c *OllamaClient) Chat(ctx context.Context, req *Request) (*Response, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.R().
		SetContext(cctx).
		SetHeader("Content-Type", "application/json").
		SetBody(c.buildBody(req, false)).
		Post(c.host + "/api/chat")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, zerr.WithCause(zerr.KindBackendUnavailable, "backend unreachable", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, zerr.Newf(zerr.KindBackendProtocol, "backend returned status %d", resp.StatusCode())
	}

	var body ollamaChatResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, zerr.WithCause(zerr.KindBackendProtocol, "backend returned malformed response", err)
	}
	out := &Response{
		Content:    body.Message.Content,
		StopReason: mapDoneReason(body.DoneReason, len(body.Message.ToolCalls) > 0),
		Usage:      Usage{PromptTokens: body.PromptEvalCount, CompletionTokens: body.EvalCount},
	}
	for _, tc := range body.Message.ToolCalls {
		args := tc.Function.Arguments
		if args == nil {
			args = map[string]any{}
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{Name: tc.Function.Name, Arguments: args})
	}
	return out, nil
}

// ChatStream starts a streaming completion over NDJSON.
func (c *OllamaClient) ChatStream(ctx context.Context, req *Request) (*Stream, error) {
	sctx, cancel := context.WithCancel(ctx)

	resp, err := c.client.R().
		SetContext(sctx).
		SetHeader("Content-Type", "application/json").
		SetBody(c.buildBody(req, true)).
		SetDoNotParseResponse(true).
		Post(c.host + "/api/chat")
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, zerr.WithCause(zerr.KindBackendUnavailable, "backend unreachable", err)
	}
	raw := resp.RawBody()
	if resp.StatusCode() != http.StatusOK {
		raw.Close()
		cancel()
		return nil, zerr.Newf(zerr.KindBackendProtocol, "backend returned status %d", resp.StatusCode())
	}

	s := newStream(cancel)
	go func() {
		defer s.finish()
		defer raw.Close()

		scanner := bufio.NewScanner(raw)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var chunk ollamaChatResponse
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				s.emit(sctx, Chunk{Done: true, StopReason: StopReasonError,
					Err: zerr.WithCause(zerr.KindBackendProtocol, "backend returned malformed stream chunk", err)})
				return
			}
			if chunk.Message.Content != "" {
				if !s.emit(sctx, Chunk{Content: chunk.Message.Content}) {
					return
				}
			}
			if chunk.Done {
				s.emit(sctx, Chunk{
					Done:       true,
					StopReason: mapDoneReason(chunk.DoneReason, false),
					Usage:      Usage{PromptTokens: chunk.PromptEvalCount, CompletionTokens: chunk.EvalCount},
				})
				return
			}
		}
		if sctx.Err() != nil {
			return
		}
		closed := zerr.New(zerr.KindBackendUnavailable, "backend closed the stream early")
		if err := scanner.Err(); err != nil {
			closed = zerr.WithCause(zerr.KindBackendUnavailable, "backend closed the stream early", err)
		}
		s.emit(sctx, Chunk{Done: true, StopReason: StopReasonError, Err: closed})
	}()
	return s, nil
}

// Probe checks reachability via /api/tags.
func (c *OllamaClient) Probe(ctx context.Context) error {
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	resp, err := c.client.R().SetContext(pctx).Get(c.host + "/api/tags")
	if err != nil {
		return zerr.WithCause(zerr.KindBackendUnavailable, "backend unreachable", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return zerr.Newf(zerr.KindBackendUnavailable, "backend returned status %d", resp.StatusCode())
	}
	return nil
}

func mapDoneReason(reason string, hasToolCalls bool) StopReason {
	if hasToolCalls {
		return StopReasonToolCalls
	}
	switch reason {
	case "length":
		return StopReasonLength
	default:
		return StopReasonStop
	}
}
