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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zombiecoder1/zombiecursor/internal/memory"
	"github.com/zombiecoder1/zombiecursor/internal/model/llm"
	"github.com/zombiecoder1/zombiecursor/internal/runtime/session"
)

func promptText(msgs []llm.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func testInput(budget int) promptInput {
	return promptInput{
		persona:  &Persona{Name: "coder", System: "You are a coding assistant."},
		overview: "Project: demo\nFiles: 3",
		memoryHits: []memory.Hit{
			{Record: memory.Record{Text: "remembered fact one"}, Score: 0.9},
			{Record: memory.Record{Text: "remembered fact two"}, Score: 0.8},
		},
		history: []session.Turn{
			{Role: "user", Content: "older question"},
			{Role: "assistant", Content: "older answer"},
			{Role: "user", Content: "newer question"},
			{Role: "assistant", Content: "newer answer"},
		},
		query:  "what does the loader do?",
		budget: budget,
	}
}

func TestAssembleUnlimitedBudget(t *testing.T) {
	msgs, stats := assemble(testInput(0))

	text := promptText(msgs)
	require.Contains(t, text, "You are a coding assistant.")
	require.Contains(t, text, "Project: demo")
	require.Contains(t, text, "remembered fact one")
	require.Contains(t, text, "older question")
	require.Contains(t, text, "what does the loader do?")
	require.Equal(t, 2, stats.MemoryHitsUsed)
	require.Equal(t, 4, stats.HistoryTurns)

	require.Equal(t, llm.RoleUser, msgs[len(msgs)-1].Role)
	require.Equal(t, "what does the loader do?", msgs[len(msgs)-1].Content)
}

func TestAssembleDropsMemoryBeforeHistory(t *testing.T) {
	in := testInput(0)
	full, _ := assemble(in)
	fullTokens := 0
	for _, m := range full {
		fullTokens += countTokens(m.Content)
	}

	// Budget that forces dropping something but not everything.
	in.budget = fullTokens - 1
	msgs, stats := assemble(in)
	require.Less(t, stats.MemoryHitsUsed, 2, "memory hits go first")
	require.Equal(t, 4, stats.HistoryTurns, "history survives while memory can still shrink")
	require.Contains(t, promptText(msgs), "what does the loader do?")
}

func TestAssembleDropsOldestHistoryFirst(t *testing.T) {
	in := testInput(0)
	in.memoryHits = nil
	full, _ := assemble(in)
	fullTokens := 0
	for _, m := range full {
		fullTokens += countTokens(m.Content)
	}

	in.budget = fullTokens - 1
	msgs, stats := assemble(in)
	require.Equal(t, 3, stats.HistoryTurns)
	text := promptText(msgs)
	require.NotContains(t, text, "older question", "oldest turn dropped first")
	require.Contains(t, text, "newer answer")
}

func TestAssembleNeverDropsPersonaOrQuery(t *testing.T) {
	in := testInput(1) // absurdly small budget
	msgs, _ := assemble(in)

	require.GreaterOrEqual(t, len(msgs), 2)
	require.Contains(t, msgs[0].Content, "You are a coding assistant.")
	require.Equal(t, "what does the loader do?", msgs[len(msgs)-1].Content)
}

func TestAssembleSkipsToolTurns(t *testing.T) {
	in := testInput(0)
	in.history = append(in.history, session.Turn{Role: "tool", Content: `{"raw":"output"}`, ToolName: "search"})
	msgs, _ := assemble(in)
	require.NotContains(t, promptText(msgs), "raw", "tool output never re-enters the prompt")
}

func TestAssembleExtraContext(t *testing.T) {
	in := testInput(0)
	in.extra = "The user is looking at loader.go"
	msgs, _ := assemble(in)
	require.Contains(t, promptText(msgs), "The user is looking at loader.go")
}

func TestCountTokensPositive(t *testing.T) {
	n := countTokens("hello world, this is a reasonably sized sentence")
	require.Greater(t, n, 0)
	require.Less(t, n, 50)
}
