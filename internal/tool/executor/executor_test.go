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

package executor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zombiecoder1/zombiecursor/internal/tool"
	"github.com/zombiecoder1/zombiecursor/internal/tool/builtin"
	"github.com/zombiecoder1/zombiecursor/internal/tool/registry"
	"github.com/zombiecoder1/zombiecursor/pkg/config"
	"github.com/zombiecoder1/zombiecursor/pkg/errors"
	"github.com/zombiecoder1/zombiecursor/pkg/log"
)

// fakeTool lets tests control execution time and payload size.
type fakeTool struct {
	sleep    time.Duration
	payload  any
	executed atomic.Bool
}

func (f *fakeTool) Name() string                { return "fake" }
func (f *fakeTool) Description() string         { return "test tool" }
func (f *fakeTool) Capability() tool.Capability { return tool.CapabilitySystem }

func (f *fakeTool) Operations() []tool.OpSpec {
	return []tool.OpSpec{
		{
			Name: "run",
			Params: []tool.ParamSpec{
				{Name: "path", Type: "string", Required: false},
				{Name: "count", Type: "integer", Required: true},
				{Name: "label", Type: "string", Required: false},
			},
		},
	}
}

func (f *fakeTool) Execute(ctx context.Context, op string, params map[string]any) (any, error) {
	f.executed.Store(true)
	if f.sleep > 0 {
		select {
		case <-time.After(f.sleep):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.payload != nil {
		return f.payload, nil
	}
	return map[string]any{"params": params}, nil
}

func newTestExecutor(t *testing.T, ft *fakeTool, cfg config.ToolsConfig) (*Executor, string) {
	t.Helper()
	root := t.TempDir()
	reg := registry.New()
	if ft != nil {
		reg.Register(ft)
	}
	builtin.RegisterAll(reg, root, cfg)
	ex, err := New(reg, root, cfg, log.Discard())
	require.NoError(t, err)
	return ex, root
}

func TestInvokeValidation(t *testing.T) {
	ft := &fakeTool{}
	ex, _ := newTestExecutor(t, ft, config.ToolsConfig{})

	cases := []struct {
		name string
		req  tool.Request
	}{
		{"unknown tool", tool.Request{Tool: "nope", Operation: "run", Params: map[string]any{"count": 1.0}}},
		{"unknown operation", tool.Request{Tool: "fake", Operation: "nope", Params: map[string]any{"count": 1.0}}},
		{"missing required", tool.Request{Tool: "fake", Operation: "run", Params: map[string]any{}}},
		{"unknown param", tool.Request{Tool: "fake", Operation: "run", Params: map[string]any{"count": 1.0, "bogus": true}}},
		{"wrong type", tool.Request{Tool: "fake", Operation: "run", Params: map[string]any{"count": "three"}}},
		{"fractional integer", tool.Request{Tool: "fake", Operation: "run", Params: map[string]any{"count": 1.5}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ex.Invoke(context.Background(), tc.req)
			require.False(t, res.Success)
			require.Equal(t, errors.KindInvalidToolParameters, res.ErrorKind)
		})
	}
	require.False(t, ft.executed.Load(), "invalid requests must not reach the tool")
}

func TestInvokePathTraversalDenied(t *testing.T) {
	ft := &fakeTool{}
	ex, root := newTestExecutor(t, ft, config.ToolsConfig{EnableWrite: true})

	for _, p := range []string{"../outside.txt", "../../etc/passwd", "/etc/passwd", "a/../../outside.txt"} {
		res := ex.Invoke(context.Background(), tool.Request{
			Tool:      "fake",
			Operation: "run",
			Params:    map[string]any{"count": 1.0, "path": p},
		})
		require.False(t, res.Success, "path %q", p)
		require.Equal(t, errors.KindPathTraversalDenied, res.ErrorKind)
	}
	require.False(t, ft.executed.Load())

	// Through a real write-capable tool: denial leaves no trace on disk.
	res := ex.Invoke(context.Background(), tool.Request{
		Tool:      "filesystem",
		Operation: "write_file",
		Params:    map[string]any{"path": "../escaped.txt", "content": "x"},
	})
	require.False(t, res.Success)
	require.Equal(t, errors.KindPathTraversalDenied, res.ErrorKind)
	_, err := os.Stat(filepath.Join(filepath.Dir(root), "escaped.txt"))
	require.True(t, os.IsNotExist(err), "denied write must leave no file behind")
}

func TestInvokeAbsolutePathInsideRootAllowed(t *testing.T) {
	ex, root := newTestExecutor(t, nil, config.ToolsConfig{})
	require.NoError(t, os.WriteFile(filepath.Join(root, "ok.txt"), []byte("hello"), 0o644))

	res := ex.Invoke(context.Background(), tool.Request{
		Tool:      "filesystem",
		Operation: "read_file",
		Params:    map[string]any{"path": filepath.Join(root, "ok.txt")},
	})
	require.True(t, res.Success, "error: %s", res.Error)
}

func TestInvokeTimeout(t *testing.T) {
	ft := &fakeTool{sleep: 5 * time.Second}
	ex, _ := newTestExecutor(t, ft, config.ToolsConfig{Timeout: 50 * time.Millisecond})

	start := time.Now()
	res := ex.Invoke(context.Background(), tool.Request{
		Tool:      "fake",
		Operation: "run",
		Params:    map[string]any{"count": 1.0},
	})
	require.False(t, res.Success)
	require.Equal(t, errors.KindToolTimeout, res.ErrorKind)
	require.Less(t, time.Since(start), 2*time.Second, "timeout must be reported promptly")
}

func TestInvokeResultTruncation(t *testing.T) {
	ft := &fakeTool{payload: strings.Repeat("z", 10_000)}
	ex, _ := newTestExecutor(t, ft, config.ToolsConfig{MaxResultSize: 1024})

	res := ex.Invoke(context.Background(), tool.Request{
		Tool:      "fake",
		Operation: "run",
		Params:    map[string]any{"count": 1.0},
	})
	require.True(t, res.Success)
	require.True(t, res.Truncated)
	s, ok := res.Payload.(string)
	require.True(t, ok)
	require.Len(t, s, 1024)
}

func TestInvokeAllOrderAndIsolation(t *testing.T) {
	ex, root := newTestExecutor(t, &fakeTool{}, config.ToolsConfig{})
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("aaa"), 0o644))

	results := ex.InvokeAll(context.Background(), []tool.Request{
		{Tool: "filesystem", Operation: "read_file", Params: map[string]any{"path": "a.txt"}},
		{Tool: "filesystem", Operation: "read_file", Params: map[string]any{"path": "missing.txt"}},
		{Tool: "fake", Operation: "run", Params: map[string]any{"count": 2.0}},
	})
	require.Len(t, results, 3)
	require.True(t, results[0].Success)
	require.False(t, results[1].Success, "missing file fails")
	require.True(t, results[2].Success, "failure must not stop later invocations")
	require.Equal(t, "filesystem", results[0].Tool)
	require.Equal(t, "fake", results[2].Tool)
}

func TestIntegerCoercion(t *testing.T) {
	ft := &fakeTool{}
	ex, _ := newTestExecutor(t, ft, config.ToolsConfig{})

	res := ex.Invoke(context.Background(), tool.Request{
		Tool:      "fake",
		Operation: "run",
		Params:    map[string]any{"count": 3.0},
	})
	require.True(t, res.Success)
	payload := res.Payload.(map[string]any)
	params := payload["params"].(map[string]any)
	require.Equal(t, 3, params["count"], "JSON numbers coerce to int for integer params")
}
