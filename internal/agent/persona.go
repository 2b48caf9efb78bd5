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

// Package agent runs the query state machine: context assembly, the LLM
// call, the bounded tool loop and memory write-back.
package agent

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zombiecoder1/zombiecursor/pkg/errors"
)

// Rule triggers.
const (
	TriggerAlways   = "always"    // effect text joins the system prompt
	TriggerOnOutput = "on_output" // effect names a transform of the final text
)

// Known on_output effects.
const EffectStripReasoning = "strip_reasoning"

var thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Rule is one behavioral rule of a persona, typed config instead of prose
// buried in the system prompt.
type Rule struct {
	ID      string `yaml:"id"`
	Trigger string `yaml:"trigger"`
	Effect  string `yaml:"effect"`
}

// Persona defines one agent variant: its system prompt and rules. Loaded
// from YAML at startup; immutable afterwards.
type Persona struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	System      string `yaml:"system"`
	Rules       []Rule `yaml:"rules"`
}

// SystemPrompt returns the system text with every always-rule appended.
func (p *Persona) SystemPrompt() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.System))
	for _, r := range p.Rules {
		if r.Trigger == TriggerAlways {
			b.WriteString("\n")
			b.WriteString(strings.TrimSpace(r.Effect))
		}
	}
	return b.String()
}

// ApplyOutputRules runs every on_output rule over the final response text.
func (p *Persona) ApplyOutputRules(text string) string {
	for _, r := range p.Rules {
		if r.Trigger != TriggerOnOutput {
			continue
		}
		switch r.Effect {
		case EffectStripReasoning:
			text = strings.TrimSpace(thinkBlockRe.ReplaceAllString(text, ""))
		}
	}
	return text
}

// LoadPersonas reads every *.yaml persona in dir, keyed by persona name.
func LoadPersonas(dir string) (map[string]*Persona, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading persona directory %s", dir)
	}
	personas := make(map[string]*Persona)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading persona %s", path)
		}
		var p Persona
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, errors.Wrapf(err, "parsing persona %s", path)
		}
		if p.Name == "" {
			return nil, errors.Newf(errors.KindInternal, "persona %s has no name", path)
		}
		personas[p.Name] = &p
	}
	if len(personas) == 0 {
		return nil, errors.Newf(errors.KindInternal, "no personas found in %s", dir)
	}
	return personas, nil
}
