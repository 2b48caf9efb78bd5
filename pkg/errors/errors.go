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

// Package errors carries the gateway error taxonomy. Every failure that
// crosses a component boundary is classified with a Kind so callers can
// choose between recover-in-conversation, fail-request and degrade paths
// without string matching.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway failure.
type Kind string

const (
	// LLM adapter layer.
	KindBackendUnavailable Kind = "backend_unavailable"
	KindBackendProtocol    Kind = "backend_protocol_error"

	// Tool layer.
	KindInvalidToolParameters Kind = "invalid_tool_parameters"
	KindPathTraversalDenied   Kind = "path_traversal_denied"
	KindToolTimeout           Kind = "tool_timeout"
	KindToolLoopExceeded      Kind = "tool_loop_exceeded"

	// Memory store.
	KindEmbeddingDimensionMismatch Kind = "embedding_dimension_mismatch"
	KindIndexCorrupted             Kind = "index_corrupted"

	// Runtime. Recovered by truncation, never user-visible.
	KindContextBudgetExceeded Kind = "context_budget_exceeded"

	KindInternal Kind = "internal"
)

// Error is a classified gateway error. Message is safe to expose across the
// external boundary; the wrapped cause is not.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a classified error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithCause creates a classified error wrapping cause.
func WithCause(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf returns the Kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindInternal
}

// IsKind reports whether err (or anything it wraps) carries kind.
func IsKind(err error, kind Kind) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind == kind
	}
	return false
}

// PublicMessage returns the boundary-safe message for err. Unclassified
// errors collapse to a generic message so internal detail never leaks.
func PublicMessage(err error) string {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Message
	}
	return "internal error"
}

// Wrap wraps err with an additional message.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
