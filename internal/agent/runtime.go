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

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zombiecoder1/zombiecursor/internal/memory"
	"github.com/zombiecoder1/zombiecursor/internal/model/llm"
	"github.com/zombiecoder1/zombiecursor/internal/project"
	"github.com/zombiecoder1/zombiecursor/internal/runtime/session"
	"github.com/zombiecoder1/zombiecursor/internal/tool"
	"github.com/zombiecoder1/zombiecursor/internal/tool/executor"
	"github.com/zombiecoder1/zombiecursor/internal/tool/registry"
	"github.com/zombiecoder1/zombiecursor/pkg/config"
	"github.com/zombiecoder1/zombiecursor/pkg/errors"
	"github.com/zombiecoder1/zombiecursor/pkg/log"
	"github.com/zombiecoder1/zombiecursor/pkg/metrics"
)

// Function names advertised to the model are "<tool>__<operation>".
const toolNameSep = "__"

// Request is one agent query.
type Request struct {
	Agent     string            `json:"agent"`
	Query     string            `json:"query"`
	Context   string            `json:"context,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Response is a completed agent reply.
type Response struct {
	Content        string         `json:"content"`
	SessionID      string         `json:"session_id"`
	Agent          string         `json:"agent"`
	ToolCallsMade  int            `json:"tool_calls_made"`
	MemoryHitsUsed int            `json:"memory_hits_used"`
	StopReason     llm.StopReason `json:"stop_reason"`
}

// Summary closes a stream: what the run did.
type Summary struct {
	SessionID      string         `json:"session_id"`
	Agent          string         `json:"agent"`
	ToolCallsMade  int            `json:"tool_calls_made"`
	MemoryHitsUsed int            `json:"memory_hits_used"`
	StopReason     llm.StopReason `json:"stop_reason"`
}

// StreamEvent is one streaming element: content, then exactly one terminal
// event carrying either a summary or an error.
type StreamEvent struct {
	Content string   `json:"content,omitempty"`
	Done    bool     `json:"done"`
	Summary *Summary `json:"summary,omitempty"`
	Err     error    `json:"-"`
}

// Runtime drives agent queries end to end. One Runtime serves all agents;
// per-request state lives on the stack and in sessions.
type Runtime struct {
	client   llm.Client
	personas map[string]*Persona
	store    *memory.Store // nil when memory is disabled
	loader   *project.Loader
	sessions *session.Manager
	executor *executor.Executor
	registry *registry.Registry
	cfg      config.AgentConfig
	llmCfg   config.LLMConfig
	topK     int
	logger   *log.Logger
}

// Options carries the Runtime's collaborators.
type Options struct {
	Client   llm.Client
	Personas map[string]*Persona
	Store    *memory.Store
	Loader   *project.Loader
	Sessions *session.Manager
	Executor *executor.Executor
	Registry *registry.Registry
	Agent    config.AgentConfig
	LLM      config.LLMConfig
	TopK     int
	Logger   *log.Logger
}

// NewRuntime wires a Runtime.
func NewRuntime(opts Options) *Runtime {
	return &Runtime{
		client:   opts.Client,
		personas: opts.Personas,
		store:    opts.Store,
		loader:   opts.Loader,
		sessions: opts.Sessions,
		executor: opts.Executor,
		registry: opts.Registry,
		cfg:      opts.Agent,
		llmCfg:   opts.LLM,
		topK:     opts.TopK,
		logger:   opts.Logger,
	}
}

// Agents lists the available persona names.
func (r *Runtime) Agents() []string {
	names := make([]string, 0, len(r.personas))
	for name := range r.personas {
		names = append(names, name)
	}
	return names
}

// Run executes one query to completion.
func (r *Runtime) Run(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := r.run(ctx, req)
	agent := req.Agent
	if agent == "" {
		agent = r.cfg.DefaultAgent
	}
	metrics.RequestDuration.WithLabelValues(agent).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RequestTotal.WithLabelValues(agent, "failed").Inc()
		return nil, err
	}
	metrics.RequestTotal.WithLabelValues(agent, "completed").Inc()
	return resp, nil
}

func (r *Runtime) run(ctx context.Context, req Request) (*Response, error) {
	persona, sess, release, err := r.admit(ctx, req)
	if err != nil {
		return nil, err
	}
	defer release()

	prep, err := r.prepare(ctx, persona, sess, req)
	if err != nil {
		return nil, err
	}

	final, exchange, err := r.toolLoop(ctx, prep.messages, prep.tools)
	if err != nil {
		return nil, err
	}
	content := persona.ApplyOutputRules(final.Content)

	r.recordExchange(sess, req.Query, exchange, content)
	r.writeBack(persona.Name, req.Query, content)

	return &Response{
		Content:        content,
		SessionID:      sess.ID,
		Agent:          persona.Name,
		ToolCallsMade:  len(exchange) / 2,
		MemoryHitsUsed: prep.stats.MemoryHitsUsed,
		StopReason:     final.StopReason,
	}, nil
}

// RunStream executes one query, streaming the answer. Runs with tools
// registered resolve the answer with non-streaming rounds and deliver it as
// one chunk; tool-free runs stream from the first token. Consumers that stop
// reading may cancel ctx instead of draining; the run unwinds and frees the
// session either way.
func (r *Runtime) RunStream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	persona, sess, release, err := r.admit(ctx, req)
	if err != nil {
		return nil, err
	}

	prep, err := r.prepare(ctx, persona, sess, req)
	if err != nil {
		release()
		return nil, err
	}

	events := make(chan StreamEvent, 8)
	emit := func(ev StreamEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	go func() {
		defer close(events)
		defer release()

		summary := &Summary{
			SessionID:      sess.ID,
			Agent:          persona.Name,
			MemoryHitsUsed: prep.stats.MemoryHitsUsed,
			StopReason:     llm.StopReasonStop,
		}

		messages := prep.messages
		if len(prep.tools) > 0 {
			final, exchange, lerr := r.toolLoop(ctx, messages, prep.tools)
			summary.ToolCallsMade = len(exchange) / 2
			if lerr != nil {
				emit(StreamEvent{Done: true, Err: lerr})
				return
			}
			// The loop already produced the final answer; deliver it as one
			// chunk rather than paying for a second generation.
			content := persona.ApplyOutputRules(final.Content)
			summary.StopReason = final.StopReason
			if !emit(StreamEvent{Content: content}) {
				return
			}
			if !emit(StreamEvent{Done: true, Summary: summary}) {
				return
			}
			r.recordExchange(sess, req.Query, exchange, content)
			r.writeBack(persona.Name, req.Query, content)
			return
		}

		stream, serr := r.client.ChatStream(ctx, &llm.Request{
			Messages:    messages,
			Temperature: r.llmCfg.Temperature,
			MaxTokens:   r.llmCfg.MaxTokens,
		})
		if serr != nil {
			emit(StreamEvent{Done: true, Err: serr})
			return
		}
		defer stream.Close()

		var b strings.Builder
		for chunk := range stream.Chunks() {
			if chunk.Err != nil {
				emit(StreamEvent{Done: true, Err: chunk.Err})
				return
			}
			if chunk.Content != "" {
				b.WriteString(chunk.Content)
				if !emit(StreamEvent{Content: chunk.Content}) {
					return
				}
			}
			if chunk.Done {
				summary.StopReason = chunk.StopReason
			}
		}

		content := persona.ApplyOutputRules(b.String())
		if !emit(StreamEvent{Done: true, Summary: summary}) {
			return
		}
		r.recordExchange(sess, req.Query, nil, content)
		r.writeBack(persona.Name, req.Query, content)
	}()
	return events, nil
}

// admit resolves the persona and takes the session lock.
func (r *Runtime) admit(ctx context.Context, req Request) (*Persona, *session.Session, func(), error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, nil, nil, errors.New(errors.KindInternal, "query must not be empty")
	}
	name := req.Agent
	if name == "" {
		name = r.cfg.DefaultAgent
	}
	persona, ok := r.personas[name]
	if !ok {
		return nil, nil, nil, errors.Newf(errors.KindInternal, "unknown agent %q", name)
	}

	sess := r.sessions.GetOrCreate(req.SessionID, name)
	release, err := r.sessions.Acquire(ctx, sess)
	if err != nil {
		return nil, nil, nil, err
	}
	return persona, sess, release, nil
}

type prepared struct {
	messages []llm.Message
	tools    []llm.ToolSchema
	stats    promptStats
}

// prepare assembles the prompt. Context sources degrade independently: a
// failed project scan or memory search downgrades the prompt, never the
// request.
func (r *Runtime) prepare(ctx context.Context, persona *Persona, sess *session.Session, req Request) (*prepared, error) {
	overview := ""
	if r.loader != nil {
		if snap, err := r.loader.Load(ctx); err == nil {
			overview = snap.Overview()
		} else {
			r.logger.Warn("project snapshot unavailable", "error", err)
		}
	}

	var hits []memory.Hit
	if r.store != nil {
		var err error
		hits, err = r.store.HybridSearch(ctx, req.Query, r.topK)
		if err != nil {
			r.logger.Warn("memory search unavailable", "error", err)
			hits = nil
		}
	}

	msgs, stats := assemble(promptInput{
		persona:    persona,
		overview:   overview,
		memoryHits: hits,
		history:    sess.Recent(r.cfg.HistoryTurns),
		extra:      req.Context,
		query:      req.Query,
		budget:     r.cfg.ContextBudget,
	})
	return &prepared{messages: msgs, tools: r.toolSchemas(), stats: stats}, nil
}

// toolLoop alternates model calls and tool execution until the model stops
// requesting tools or the round cap is hit. Tool failures flow back to the
// model as tool turns; only backend failures abort the run. The returned
// exchange holds two messages per executed call, the announcement and the
// result, in execution order.
func (r *Runtime) toolLoop(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema) (*llm.Response, []llm.Message, error) {
	var exchange []llm.Message
	for round := 0; ; round++ {
		resp, err := r.client.Chat(ctx, &llm.Request{
			Messages:    messages,
			Temperature: r.llmCfg.Temperature,
			MaxTokens:   r.llmCfg.MaxTokens,
			Tools:       tools,
		})
		if err != nil {
			return nil, exchange, err
		}
		if len(resp.ToolCalls) == 0 {
			return resp, exchange, nil
		}
		if round >= r.cfg.MaxToolRounds {
			return nil, exchange, errors.Newf(errors.KindToolLoopExceeded,
				"model requested tools beyond the %d round limit", r.cfg.MaxToolRounds)
		}

		for _, call := range resp.ToolCalls {
			announce := llm.Message{Role: llm.RoleAssistant, Content: describeCall(call)}
			result := r.executeCall(ctx, call)
			exchange = append(exchange, announce, result)
			messages = append(messages, announce, result)
		}
	}
}

// executeCall maps one model tool call onto the executor and renders the
// result as a tool turn.
func (r *Runtime) executeCall(ctx context.Context, call llm.ToolCall) llm.Message {
	toolName, op, ok := strings.Cut(call.Name, toolNameSep)
	var res tool.Result
	if !ok {
		res = tool.Result{
			Tool:      call.Name,
			Success:   false,
			Error:     fmt.Sprintf("malformed function name %q, expected tool%soperation", call.Name, toolNameSep),
			ErrorKind: errors.KindInvalidToolParameters,
		}
	} else {
		res = r.executor.Invoke(ctx, tool.Request{Tool: toolName, Operation: op, Params: call.Arguments})
	}

	body, err := json.Marshal(res)
	if err != nil {
		body = []byte(`{"success":false,"error":"unserializable tool result"}`)
	}
	return llm.Message{Role: llm.RoleTool, ToolName: call.Name, Content: string(body)}
}

// toolSchemas flattens the registry into per-operation function schemas.
func (r *Runtime) toolSchemas() []llm.ToolSchema {
	if r.registry == nil {
		return nil
	}
	var schemas []llm.ToolSchema
	for _, spec := range r.registry.Specs() {
		for _, op := range spec.Operations {
			properties := map[string]any{}
			var required []string
			for _, p := range op.Params {
				properties[p.Name] = map[string]any{
					"type":        p.Type,
					"description": p.Description,
				}
				if p.Required {
					required = append(required, p.Name)
				}
			}
			parameters := map[string]any{
				"type":       "object",
				"properties": properties,
			}
			if len(required) > 0 {
				parameters["required"] = required
			}
			schemas = append(schemas, llm.ToolSchema{
				Name:        spec.Name + toolNameSep + op.Name,
				Description: op.Description,
				Parameters:  parameters,
			})
		}
	}
	return schemas
}

// recordExchange appends the request's turns to the session: the user query,
// any tool exchange, then the final answer. Tool turns stay in the record for
// later inspection; prompt assembly filters them out of history.
func (r *Runtime) recordExchange(sess *session.Session, query string, exchange []llm.Message, answer string) {
	sess.Append(session.Turn{Role: llm.RoleUser, Content: query})
	for _, m := range exchange {
		sess.Append(session.Turn{Role: m.Role, Content: m.Content, ToolName: m.ToolName})
	}
	sess.Append(session.Turn{Role: llm.RoleAssistant, Content: answer})
}

// writeBack persists the exchange to memory off the request path. Failures
// are logged; recall is an enhancement, not a dependency.
func (r *Runtime) writeBack(agent, query, answer string) {
	if r.store == nil || answer == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		text := fmt.Sprintf("user: %s\nagent: %s", query, answer)
		if _, err := r.store.Add(ctx, text, map[string]string{"agent": agent}); err != nil {
			r.logger.Warn("memory write-back failed", "agent", agent, "error", err)
		}
	}()
}

func describeCall(call llm.ToolCall) string {
	args, err := json.Marshal(call.Arguments)
	if err != nil {
		args = []byte("{}")
	}
	return fmt.Sprintf("Calling %s with %s", call.Name, args)
}
