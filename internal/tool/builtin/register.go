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

package builtin

import (
	"github.com/zombiecoder1/zombiecursor/internal/tool/registry"
	"github.com/zombiecoder1/zombiecursor/pkg/config"
)

// RegisterAll registers the builtin tools enabled by cfg. root must be the
// same absolute project root the executor confines paths to.
func RegisterAll(reg *registry.Registry, root string, cfg config.ToolsConfig) {
	reg.Register(NewFilesystemTool(root, cfg.EnableWrite))
	reg.Register(NewSearchTool(root))
	if cfg.EnableGit {
		reg.Register(NewGitTool(root))
	}
	if cfg.EnableSystem {
		reg.Register(NewSystemTool(root))
	}
}
