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
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/zombiecoder1/zombiecursor/pkg/config"
	zerr "github.com/zombiecoder1/zombiecursor/pkg/errors"
)

// OpenAIClient talks to any chat-completions-compatible server (llama.cpp
// server, vLLM, LM Studio, or OpenAI itself) under {host}/v1.
type OpenAIClient struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIClient builds the chat-completions backend from cfg. Local
// servers usually ignore the API key but some reject an empty one, so a
// placeholder is substituted.
func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "local"
	}
	oc := openai.DefaultConfig(apiKey)
	oc.BaseURL = strings.TrimRight(cfg.Host, "/") + "/v1"
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	// No client-level timeout: streaming responses outlive any fixed budget
	// and per-call deadlines come from the caller's context.
	oc.HTTPClient = &http.Client{}
	return &OpenAIClient{
		api:     openai.NewClientWithConfig(oc),
		model:   cfg.Model,
		timeout: timeout,
	}
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string { return c.model }

// Provider returns "openai".
func (c *OpenAIClient) Provider() string { return "openai" }

// Chat performs a non-streaming completion.
func (c *OpenAIClient) Chat(ctx context.Context, req *Request) (*Response, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(cctx, c.buildRequest(req, false))
	if err != nil {
		return nil, classifyOpenAIError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, zerr.New(zerr.KindBackendProtocol, "backend returned no choices")
	}
	choice := resp.Choices[0]
	out := &Response{
		Content:    choice.Message.Content,
		StopReason: mapFinishReason(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		call, err := decodeToolCall(tc.Function.Name, tc.Function.Arguments)
		if err != nil {
			return nil, err
		}
		out.ToolCalls = append(out.ToolCalls, call)
	}
	return out, nil
}

// ChatStream starts a streaming completion.
func (c *OpenAIClient) ChatStream(ctx context.Context, req *Request) (*Stream, error) {
	sctx, cancel := context.WithCancel(ctx)

	oreq := c.buildRequest(req, true)
	oreq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	sse, err := c.api.CreateChatCompletionStream(sctx, oreq)
	if err != nil {
		cancel()
		return nil, classifyOpenAIError(ctx, err)
	}

	s := newStream(cancel)
	go func() {
		defer s.finish()
		defer sse.Close()

		stop := StopReasonStop
		var usage Usage
		for {
			r, err := sse.Recv()
			if errors.Is(err, io.EOF) {
				s.emit(sctx, Chunk{Done: true, StopReason: stop, Usage: usage})
				return
			}
			if err != nil {
				if sctx.Err() != nil {
					// Consumer cancelled; nothing left to deliver.
					return
				}
				s.emit(sctx, Chunk{Done: true, StopReason: StopReasonError, Err: classifyOpenAIError(sctx, err)})
				return
			}
			if r.Usage != nil {
				usage = Usage{PromptTokens: r.Usage.PromptTokens, CompletionTokens: r.Usage.CompletionTokens}
			}
			if len(r.Choices) == 0 {
				continue
			}
			if fr := r.Choices[0].FinishReason; fr != "" {
				stop = mapFinishReason(fr)
			}
			if delta := r.Choices[0].Delta.Content; delta != "" {
				if !s.emit(sctx, Chunk{Content: delta}) {
					return
				}
			}
		}
	}()
	return s, nil
}

// Probe checks reachability via the list-models route, the one endpoint every
// chat-completions-compatible server answers.
func (c *OpenAIClient) Probe(ctx context.Context) error {
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if _, err := c.api.ListModels(pctx); err != nil {
		return zerr.WithCause(zerr.KindBackendUnavailable, "backend unreachable", err)
	}
	return nil
}

func (c *OpenAIClient) buildRequest(req *Request, stream bool) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	for _, m := range req.Messages {
		om := openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
		if m.Role == RoleTool {
			om.Name = m.ToolName
			om.ToolCallID = m.ToolName
		}
		out.Messages = append(out.Messages, om)
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

const probeTimeout = 2 * time.Second

func decodeToolCall(name, arguments string) (ToolCall, error) {
	call := ToolCall{Name: name, Arguments: map[string]any{}}
	if strings.TrimSpace(arguments) == "" {
		return call, nil
	}
	if err := json.Unmarshal([]byte(arguments), &call.Arguments); err != nil {
		return ToolCall{}, zerr.WithCause(zerr.KindBackendProtocol, "backend returned malformed tool arguments", err)
	}
	return call, nil
}

func mapFinishReason(r openai.FinishReason) StopReason {
	switch r {
	case openai.FinishReasonLength:
		return StopReasonLength
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return StopReasonToolCalls
	default:
		return StopReasonStop
	}
}

// classifyOpenAIError maps go-openai failures onto the adapter taxonomy: an
// HTTP-level answer that is not a valid completion is a protocol error,
// anything below that (dial, TLS, reset) means the backend is unreachable.
func classifyOpenAIError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return zerr.WithCause(zerr.KindBackendProtocol, "backend rejected the request", err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return zerr.WithCause(zerr.KindBackendProtocol, "backend returned an unexpected response", err)
	}
	return zerr.WithCause(zerr.KindBackendUnavailable, "backend unreachable", err)
}
