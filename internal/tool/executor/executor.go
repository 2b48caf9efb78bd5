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

// Package executor runs tool invocations through a fixed pipeline:
// validation, path confinement, timeout, result size cap. Validation happens
// before any tool code runs, so an invalid request has no side effects.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/zombiecoder1/zombiecursor/internal/tool"
	"github.com/zombiecoder1/zombiecursor/internal/tool/registry"
	"github.com/zombiecoder1/zombiecursor/pkg/config"
	"github.com/zombiecoder1/zombiecursor/pkg/errors"
	"github.com/zombiecoder1/zombiecursor/pkg/log"
	"github.com/zombiecoder1/zombiecursor/pkg/metrics"
)

// Params carrying filesystem paths are confined to the project root.
var pathParams = map[string]bool{
	"path":        true,
	"directory":   true,
	"source":      true,
	"destination": true,
}

// Executor dispatches validated invocations to registered tools.
type Executor struct {
	registry *registry.Registry
	root     string
	timeout  time.Duration
	maxSize  int
	logger   *log.Logger
}

// New builds an Executor. root is the project root every path parameter is
// confined to; it is resolved to an absolute path once, up front.
func New(reg *registry.Registry, root string, cfg config.ToolsConfig, logger *log.Logger) (*Executor, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.WithCause(errors.KindInternal, "resolving project root", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxSize := cfg.MaxResultSize
	if maxSize <= 0 {
		maxSize = 64 * 1024
	}
	return &Executor{
		registry: reg,
		root:     abs,
		timeout:  timeout,
		maxSize:  maxSize,
		logger:   logger,
	}, nil
}

// Root returns the absolute project root paths are confined to.
func (e *Executor) Root() string { return e.root }

// Invoke runs one tool invocation through the full pipeline and always
// returns a Result; failures are encoded, never panicked or retried.
func (e *Executor) Invoke(ctx context.Context, req tool.Request) tool.Result {
	start := time.Now()
	res := e.invoke(ctx, req)
	res.Tool = req.Tool
	res.Operation = req.Operation
	res.Duration = time.Since(start)

	metrics.ToolDuration.WithLabelValues(req.Tool).Observe(res.Duration.Seconds())
	if !res.Success {
		metrics.ToolFailTotal.WithLabelValues(req.Tool, string(res.ErrorKind)).Inc()
		e.logger.Warn("tool invocation failed",
			"tool", req.Tool, "operation", req.Operation,
			"kind", string(res.ErrorKind), "error", res.Error)
	} else {
		e.logger.Debug("tool invocation ok",
			"tool", req.Tool, "operation", req.Operation,
			"duration", res.Duration, "truncated", res.Truncated)
	}
	return res
}

// InvokeAll runs invocations sequentially in request order. A failed
// invocation does not stop the ones after it; results line up with requests.
func (e *Executor) InvokeAll(ctx context.Context, reqs []tool.Request) []tool.Result {
	results := make([]tool.Result, len(reqs))
	for i, req := range reqs {
		results[i] = e.Invoke(ctx, req)
	}
	return results
}

func (e *Executor) invoke(ctx context.Context, req tool.Request) tool.Result {
	t, ok := e.registry.Get(req.Tool)
	if !ok {
		return failure(errors.Newf(errors.KindInvalidToolParameters, "unknown tool %q", req.Tool))
	}
	spec, ok := findOp(t, req.Operation)
	if !ok {
		return failure(errors.Newf(errors.KindInvalidToolParameters,
			"tool %q has no operation %q", req.Tool, req.Operation))
	}

	params, err := validateParams(spec, req.Params)
	if err != nil {
		return failure(err)
	}
	if err := e.confinePaths(params); err != nil {
		return failure(err)
	}

	payload, err := e.run(ctx, t, req.Operation, params)
	if err != nil {
		return failure(err)
	}
	return e.cap(payload)
}

// run executes the tool body under the executor timeout. Cancellation is
// best effort: the tool goroutine sees ctx cancelled, but the caller gets
// its timeout result without waiting for the goroutine to notice.
func (e *Executor) run(ctx context.Context, t tool.Tool, op string, params map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		payload any
		err     error
	}
	ch := make(chan outcome, 1)
	go func() {
		payload, err := t.Execute(ctx, op, params)
		ch <- outcome{payload, err}
	}()

	select {
	case out := <-ch:
		if out.err != nil && ctx.Err() == context.DeadlineExceeded {
			return nil, errors.Newf(errors.KindToolTimeout,
				"operation %s exceeded %s", op, e.timeout)
		}
		return out.payload, out.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.Newf(errors.KindToolTimeout,
				"operation %s exceeded %s", op, e.timeout)
		}
		return nil, ctx.Err()
	}
}

// cap serializes the payload and truncates anything over the size limit.
// Truncation replaces the payload with a prefix of its JSON form; the flag
// tells the model the data is partial.
func (e *Executor) cap(payload any) tool.Result {
	raw, err := json.Marshal(payload)
	if err != nil {
		return failure(errors.WithCause(errors.KindInternal, "serializing tool result", err))
	}
	if len(raw) <= e.maxSize {
		return tool.Result{Success: true, Payload: payload}
	}
	return tool.Result{
		Success:   true,
		Payload:   string(raw[:e.maxSize]),
		Truncated: true,
	}
}

// confinePaths resolves every path-carrying parameter against the project
// root and rejects anything that escapes it. Params are rewritten to the
// resolved absolute path so tools never re-derive it.
func (e *Executor) confinePaths(params map[string]any) error {
	for name, v := range params {
		if !pathParams[name] {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue // type already validated; path params are strings
		}
		resolved, err := e.confine(s)
		if err != nil {
			return err
		}
		params[name] = resolved
	}
	return nil
}

func (e *Executor) confine(p string) (string, error) {
	candidate := p
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(e.root, candidate)
	}
	candidate = filepath.Clean(candidate)
	rel, err := filepath.Rel(e.root, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Newf(errors.KindPathTraversalDenied, "path %q escapes the project root", p)
	}
	return candidate, nil
}

// validateParams checks req params against the spec: required present,
// nothing unknown, JSON types compatible. Returns a fresh map so the
// confinement rewrites never touch the caller's copy.
func validateParams(spec tool.OpSpec, raw map[string]any) (map[string]any, error) {
	known := make(map[string]tool.ParamSpec, len(spec.Params))
	for _, p := range spec.Params {
		known[p.Name] = p
	}
	for name := range raw {
		if _, ok := known[name]; !ok {
			return nil, errors.Newf(errors.KindInvalidToolParameters,
				"operation %s does not take parameter %q", spec.Name, name)
		}
	}
	params := make(map[string]any, len(raw))
	for _, p := range spec.Params {
		v, ok := raw[p.Name]
		if !ok {
			if p.Required {
				return nil, errors.Newf(errors.KindInvalidToolParameters,
					"operation %s requires parameter %q", spec.Name, p.Name)
			}
			continue
		}
		coerced, err := coerce(p, v)
		if err != nil {
			return nil, err
		}
		params[p.Name] = coerced
	}
	return params, nil
}

// coerce checks a value against the declared type. Numbers arrive from JSON
// as float64; integer params are converted when the value is whole.
func coerce(p tool.ParamSpec, v any) (any, error) {
	switch p.Type {
	case "string":
		if s, ok := v.(string); ok {
			return s, nil
		}
	case "boolean":
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case "number":
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		}
	case "integer":
		switch n := v.(type) {
		case int:
			return n, nil
		case float64:
			if n == float64(int(n)) {
				return int(n), nil
			}
		}
	}
	return nil, errors.Newf(errors.KindInvalidToolParameters,
		"parameter %q must be of type %s, got %T", p.Name, p.Type, v)
}

func findOp(t tool.Tool, name string) (tool.OpSpec, bool) {
	for _, op := range t.Operations() {
		if op.Name == name {
			return op, true
		}
	}
	return tool.OpSpec{}, false
}

func failure(err error) tool.Result {
	kind := errors.KindOf(err)
	if kind == "" {
		kind = errors.KindInternal
	}
	return tool.Result{
		Success:   false,
		Error:     fmt.Sprintf("%v", err),
		ErrorKind: kind,
	}
}
