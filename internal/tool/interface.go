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

// Package tool defines the capability-scoped tool contract. Tools are a
// closed set registered at startup; adding one means implementing this
// interface, never touching the dispatcher.
package tool

import (
	"context"
	"time"

	"github.com/zombiecoder1/zombiecursor/pkg/errors"
)

// Capability classes. A tool's side effects stay within its declared class.
type Capability string

const (
	CapabilityReadFS Capability = "read-fs"
	CapabilitySearch Capability = "search"
	CapabilityVCS    Capability = "vcs"
	CapabilitySystem Capability = "system"
)

// ParamSpec describes one operation parameter.
type ParamSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // string | integer | number | boolean
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

// OpSpec describes one operation a tool supports.
type OpSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ParamSpec `json:"params"`
}

// Tool is one capability-scoped variant behind the dispatch interface.
// Execute receives params already validated against the matching OpSpec and,
// for path params, already confined to the project root.
type Tool interface {
	Name() string
	Description() string
	Capability() Capability
	Operations() []OpSpec
	Execute(ctx context.Context, op string, params map[string]any) (any, error)
}

// Request is one tool invocation.
type Request struct {
	Tool      string         `json:"tool_name"`
	Operation string         `json:"operation"`
	Params    map[string]any `json:"params"`
}

// Result is immutable once produced. The executor never retries.
type Result struct {
	Tool      string        `json:"tool_name"`
	Operation string        `json:"operation"`
	Success   bool          `json:"success"`
	Payload   any           `json:"payload,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorKind errors.Kind   `json:"error_kind,omitempty"`
	Truncated bool          `json:"truncated,omitempty"`
	Duration  time.Duration `json:"duration"`
}
