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

package registry

import (
	"sort"
	"sync"

	"github.com/zombiecoder1/zombiecursor/internal/tool"
)

// Registry holds the closed set of tools registered at startup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]tool.Tool
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{tools: make(map[string]tool.Tool)}
}

// Register adds or replaces a tool by name.
func (r *Registry) Register(t tool.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (tool.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools, ordered by name for stable output.
func (r *Registry) List() []tool.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tool.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// Spec is one tool's advertised surface.
type Spec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Capability  tool.Capability `json:"capability"`
	Operations  []tool.OpSpec   `json:"operations"`
}

// Specs returns the advertised surface of every registered tool, ordered by
// name. The agent runtime converts these into LLM function schemas.
func (r *Registry) Specs() []Spec {
	list := r.List()
	specs := make([]Spec, 0, len(list))
	for _, t := range list {
		specs = append(specs, Spec{
			Name:        t.Name(),
			Description: t.Description(),
			Capability:  t.Capability(),
			Operations:  t.Operations(),
		})
	}
	return specs
}
