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

// Package http is the gateway's single external surface: the agent query
// route plus health, memory status and metrics.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/protocol/http1/resp"

	"github.com/zombiecoder1/zombiecursor/internal/agent"
	"github.com/zombiecoder1/zombiecursor/internal/memory"
	"github.com/zombiecoder1/zombiecursor/internal/model/llm"
	"github.com/zombiecoder1/zombiecursor/pkg/errors"
	"github.com/zombiecoder1/zombiecursor/pkg/log"
	"github.com/zombiecoder1/zombiecursor/pkg/metrics"
)

const probeTimeout = 2 * time.Second

// Handler serves the gateway routes.
type Handler struct {
	runtime *agent.Runtime
	client  llm.Client
	store   *memory.Store // nil when memory is disabled
	logger  *log.Logger
}

// NewHandler wires a Handler.
func NewHandler(runtime *agent.Runtime, client llm.Client, store *memory.Store, logger *log.Logger) *Handler {
	return &Handler{runtime: runtime, client: client, store: store, logger: logger}
}

type queryRequest struct {
	Agent     string            `json:"agent"`
	Query     string            `json:"query"`
	Context   string            `json:"context"`
	Stream    bool              `json:"stream"`
	SessionID string            `json:"session_id"`
	Metadata  map[string]string `json:"metadata"`
}

// Query handles POST /api/agent/query, JSON in, JSON or SSE out.
func (h *Handler) Query(ctx context.Context, c *app.RequestContext) {
	var req queryRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "request body is not valid JSON"})
		return
	}
	if req.Query == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	run := agent.Request{
		Agent:     req.Agent,
		Query:     req.Query,
		Context:   req.Context,
		SessionID: req.SessionID,
		Metadata:  req.Metadata,
	}
	if req.Stream {
		h.queryStream(ctx, c, run)
		return
	}

	result, err := h.runtime.Run(ctx, run)
	if err != nil {
		h.logger.Error("agent request failed", "agent", req.Agent, "error", err)
		c.JSON(statusFor(err), errorBody(err))
		return
	}
	c.JSON(consts.StatusOK, map[string]any{
		"content":          result.Content,
		"session_id":       result.SessionID,
		"agent":            result.Agent,
		"tool_calls_made":  result.ToolCallsMade,
		"memory_hits_used": result.MemoryHitsUsed,
		"stop_reason":      result.StopReason,
	})
}

// queryStream renders the run as server-sent events: data frames for content,
// one done (or error) event, then the connection closes.
func (h *Handler) queryStream(ctx context.Context, c *app.RequestContext, run agent.Request) {
	events, err := h.runtime.RunStream(ctx, run)
	if err != nil {
		h.logger.Error("agent stream failed to start", "agent", run.Agent, "error", err)
		c.JSON(statusFor(err), errorBody(err))
		return
	}

	c.SetStatusCode(consts.StatusOK)
	c.Response.Header.Set("Content-Type", "text/event-stream")
	c.Response.Header.Set("Cache-Control", "no-cache")
	c.Response.Header.Set("Connection", "keep-alive")
	c.Response.HijackWriter(resp.NewChunkedBodyWriter(&c.Response, c.GetWriter()))

	for ev := range events {
		switch {
		case ev.Err != nil:
			writeSSE(c, "error", errorBody(ev.Err))
		case ev.Done:
			writeSSE(c, "done", ev.Summary)
		case ev.Content != "":
			writeSSE(c, "", map[string]string{"content": ev.Content})
		}
		if err := c.Flush(); err != nil {
			// Client went away; keep consuming so the run can finish and
			// release its session.
			for range events {
			}
			return
		}
	}
}

func writeSSE(c *app.RequestContext, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if event != "" {
		fmt.Fprintf(c, "event: %s\n", event)
	}
	fmt.Fprintf(c, "data: %s\n\n", data)
}

// Health handles GET /api/status/health with short probes of each
// dependency. Degraded dependencies report as such without failing the
// route.
func (h *Handler) Health(ctx context.Context, c *app.RequestContext) {
	llmStatus := probeStatus(ctx, h.client.Probe)
	memStatus := "disabled"
	if h.store != nil {
		memStatus = probeStatus(ctx, h.store.Probe)
	}

	status := "ok"
	if llmStatus != "ok" {
		status = "degraded"
	}
	c.JSON(consts.StatusOK, map[string]any{
		"status": status,
		"llm": map[string]string{
			"status":   llmStatus,
			"provider": h.client.Provider(),
			"model":    h.client.Model(),
		},
		"memory": memStatus,
		"agents": h.runtime.Agents(),
	})
}

// MemoryStatus handles GET /api/status/memory.
func (h *Handler) MemoryStatus(_ context.Context, c *app.RequestContext) {
	if h.store == nil {
		c.JSON(consts.StatusOK, map[string]any{"enabled": false})
		return
	}
	stats := h.store.GetStats()
	c.JSON(consts.StatusOK, map[string]any{
		"enabled":      true,
		"records":      stats.Records,
		"dimension":    stats.Dimension,
		"model":        stats.Model,
		"path":         stats.Path,
		"oldest":       stats.Oldest,
		"newest":       stats.Newest,
		"dirty":        stats.Dirty,
		"last_persist": stats.LastPersist,
	})
}

// Metrics handles GET /metrics in Prometheus text format.
func (h *Handler) Metrics(_ context.Context, c *app.RequestContext) {
	c.Response.Header.Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	c.SetStatusCode(consts.StatusOK)
	if err := metrics.WritePrometheus(c); err != nil {
		h.logger.Error("writing metrics failed", "error", err)
	}
}

func probeStatus(ctx context.Context, probe func(context.Context) error) string {
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := probe(pctx); err != nil {
		return "unavailable"
	}
	return "ok"
}

func statusFor(err error) int {
	switch errors.KindOf(err) {
	case errors.KindBackendUnavailable:
		return consts.StatusServiceUnavailable
	case errors.KindBackendProtocol, errors.KindToolLoopExceeded:
		return consts.StatusBadGateway
	default:
		return consts.StatusInternalServerError
	}
}

func errorBody(err error) map[string]string {
	return map[string]string{
		"error": errors.PublicMessage(err),
		"kind":  string(errors.KindOf(err)),
	}
}
