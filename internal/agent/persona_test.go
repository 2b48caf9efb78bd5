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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const coderPersonaYAML = `name: coder
description: Code-focused assistant
system: |
  You are a coding assistant working inside the user's project.
rules:
  - id: cite-files
    trigger: always
    effect: Reference concrete file paths when discussing code.
  - id: no-reasoning
    trigger: on_output
    effect: strip_reasoning
`

func TestLoadPersonas(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "coder.yaml"), []byte(coderPersonaYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	personas, err := LoadPersonas(dir)
	require.NoError(t, err)
	require.Len(t, personas, 1)

	p := personas["coder"]
	require.NotNil(t, p)
	require.Equal(t, "coder", p.Name)
	require.Len(t, p.Rules, 2)
}

func TestLoadPersonasEmptyDir(t *testing.T) {
	_, err := LoadPersonas(t.TempDir())
	require.Error(t, err)
}

func TestSystemPromptIncludesAlwaysRules(t *testing.T) {
	p := &Persona{
		System: "Base prompt.",
		Rules: []Rule{
			{ID: "a", Trigger: TriggerAlways, Effect: "Always cite sources."},
			{ID: "b", Trigger: TriggerOnOutput, Effect: EffectStripReasoning},
		},
	}
	prompt := p.SystemPrompt()
	require.Contains(t, prompt, "Base prompt.")
	require.Contains(t, prompt, "Always cite sources.")
	require.NotContains(t, prompt, EffectStripReasoning, "output rules stay out of the prompt")
}

func TestApplyOutputRulesStripReasoning(t *testing.T) {
	p := &Persona{Rules: []Rule{{ID: "r", Trigger: TriggerOnOutput, Effect: EffectStripReasoning}}}

	out := p.ApplyOutputRules("<think>let me reason\nabout this</think>The answer is 4.")
	require.Equal(t, "The answer is 4.", out)

	out = p.ApplyOutputRules("no reasoning here")
	require.Equal(t, "no reasoning here", out)
}

func TestApplyOutputRulesNoRules(t *testing.T) {
	p := &Persona{}
	require.Equal(t, "<think>x</think>y", p.ApplyOutputRules("<think>x</think>y"))
}
