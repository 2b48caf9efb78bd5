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
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/zombiecoder1/zombiecursor/internal/memory"
	"github.com/zombiecoder1/zombiecursor/internal/model/llm"
	"github.com/zombiecoder1/zombiecursor/internal/runtime/session"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

// countTokens measures text with the cl100k tokenizer; when the tokenizer
// is unavailable it falls back to the bytes/4 heuristic.
func countTokens(text string) int {
	codecOnce.Do(func() {
		c, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err == nil {
			codec = c
		}
	})
	if codec != nil {
		if n, err := codec.Count(text); err == nil {
			return n
		}
	}
	return len(text) / 4
}

// promptInput is everything context assembly may draw from.
type promptInput struct {
	persona    *Persona
	overview   string // project snapshot, may be empty
	memoryHits []memory.Hit
	history    []session.Turn
	extra      string // caller-supplied context from the request
	query      string
	budget     int // tokens; <= 0 means unlimited
}

// promptStats reports what survived assembly.
type promptStats struct {
	MemoryHitsUsed int
	HistoryTurns   int
	Tokens         int
}

// assemble builds the message list under the token budget. Drop order when
// over budget: memory hits (lowest ranked first), then oldest history, then
// the project overview. The persona and the current query always survive.
func assemble(in promptInput) ([]llm.Message, promptStats) {
	hits := in.memoryHits
	history := in.history
	overview := in.overview

	for {
		msgs := build(in.persona, overview, hits, history, in.extra, in.query)
		tokens := 0
		for _, m := range msgs {
			tokens += countTokens(m.Content)
		}
		if in.budget <= 0 || tokens <= in.budget {
			return msgs, promptStats{
				MemoryHitsUsed: len(hits),
				HistoryTurns:   len(history),
				Tokens:         tokens,
			}
		}
		switch {
		case len(hits) > 0:
			hits = hits[:len(hits)-1]
		case len(history) > 0:
			history = history[1:]
		case overview != "":
			overview = ""
		default:
			// Only persona and query remain; emit them even over budget.
			return msgs, promptStats{Tokens: tokens}
		}
	}
}

func build(persona *Persona, overview string, hits []memory.Hit, history []session.Turn, extra, query string) []llm.Message {
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: persona.SystemPrompt()}}

	if overview != "" {
		msgs = append(msgs, llm.Message{
			Role:    llm.RoleSystem,
			Content: "Current project:\n" + overview,
		})
	}
	if len(hits) > 0 {
		var b strings.Builder
		b.WriteString("Relevant memory from earlier sessions:\n")
		for _, h := range hits {
			fmt.Fprintf(&b, "- %s\n", h.Record.Text)
		}
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: b.String()})
	}
	for _, t := range history {
		role := t.Role
		if role == "tool" {
			// Raw tool output stays internal; history carries only the
			// conversational turns.
			continue
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Content})
	}
	if extra != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: "Additional context:\n" + extra})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: query})
	return msgs
}
