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

// Package builtin holds the tools shipped with the gateway: filesystem,
// search, version control and system info. All of them receive path
// parameters already confined to the project root by the executor.
package builtin

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/zombiecoder1/zombiecursor/internal/tool"
	"github.com/zombiecoder1/zombiecursor/pkg/errors"
)

// maxFileReadBytes bounds a single read_file payload before the executor's
// own serialized-size cap applies.
const maxFileReadBytes = 1 << 20

// Directories never descended into by list_files or the search tool.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	"dist":         true,
	"build":        true,
	"target":       true,
	".idea":        true,
	".vscode":      true,
}

// FilesystemTool reads project files. Writing exists behind an explicit
// config switch and is off by default.
type FilesystemTool struct {
	root        string
	enableWrite bool
}

// NewFilesystemTool builds the filesystem tool rooted at root.
func NewFilesystemTool(root string, enableWrite bool) *FilesystemTool {
	return &FilesystemTool{root: root, enableWrite: enableWrite}
}

func (t *FilesystemTool) Name() string { return "filesystem" }

func (t *FilesystemTool) Description() string {
	return "Read files and list directories inside the project"
}

func (t *FilesystemTool) Capability() tool.Capability { return tool.CapabilityReadFS }

func (t *FilesystemTool) Operations() []tool.OpSpec {
	ops := []tool.OpSpec{
		{
			Name:        "read_file",
			Description: "Read the contents of a file",
			Params: []tool.ParamSpec{
				{Name: "path", Type: "string", Required: true, Description: "File path relative to the project root"},
			},
		},
		{
			Name:        "list_files",
			Description: "List files in a directory",
			Params: []tool.ParamSpec{
				{Name: "directory", Type: "string", Required: false, Description: "Directory to list, defaults to the project root"},
				{Name: "pattern", Type: "string", Required: false, Description: "Glob pattern applied to file names, e.g. *.go"},
				{Name: "recursive", Type: "boolean", Required: false, Description: "Descend into subdirectories"},
			},
		},
		{
			Name:        "file_info",
			Description: "Return size, type and modification time of a path",
			Params: []tool.ParamSpec{
				{Name: "path", Type: "string", Required: true, Description: "Path relative to the project root"},
			},
		},
	}
	if t.enableWrite {
		ops = append(ops, tool.OpSpec{
			Name:        "write_file",
			Description: "Write content to a file, creating parent directories",
			Params: []tool.ParamSpec{
				{Name: "path", Type: "string", Required: true, Description: "File path relative to the project root"},
				{Name: "content", Type: "string", Required: true, Description: "Full file content to write"},
			},
		})
	}
	return ops
}

func (t *FilesystemTool) Execute(ctx context.Context, op string, params map[string]any) (any, error) {
	switch op {
	case "read_file":
		return t.readFile(params["path"].(string))
	case "list_files":
		return t.listFiles(ctx, params)
	case "file_info":
		return t.fileInfo(params["path"].(string))
	case "write_file":
		if !t.enableWrite {
			return nil, errors.New(errors.KindInvalidToolParameters, "write_file is disabled")
		}
		return t.writeFile(params["path"].(string), params["content"].(string))
	default:
		return nil, errors.Newf(errors.KindInvalidToolParameters, "unknown operation %q", op)
	}
}

func (t *FilesystemTool) readFile(path string) (any, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if info.IsDir() {
		return nil, errors.Newf(errors.KindInvalidToolParameters, "%s is a directory", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	limit := info.Size()
	truncated := false
	if limit > maxFileReadBytes {
		limit = maxFileReadBytes
		truncated = true
	}
	buf := make([]byte, limit)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return map[string]any{
		"path":      t.rel(path),
		"content":   string(buf[:n]),
		"size":      info.Size(),
		"truncated": truncated,
		"modified":  info.ModTime().Format(time.RFC3339),
	}, nil
}

func (t *FilesystemTool) listFiles(ctx context.Context, params map[string]any) (any, error) {
	dir := t.root
	if d, ok := params["directory"].(string); ok {
		dir = d
	}
	pattern, _ := params["pattern"].(string)
	recursive, _ := params["recursive"].(bool)

	type entry struct {
		Path  string `json:"path"`
		Size  int64  `json:"size"`
		IsDir bool   `json:"is_dir"`
	}
	var entries []entry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != dir && (skipDirs[d.Name()] || !recursive) {
				return filepath.SkipDir
			}
			return nil
		}
		if pattern != "" {
			if ok, _ := filepath.Match(pattern, d.Name()); !ok {
				return nil
			}
		}
		info, ierr := d.Info()
		if ierr != nil {
			return nil
		}
		entries = append(entries, entry{Path: t.rel(path), Size: info.Size(), IsDir: false})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}
	return map[string]any{"directory": t.rel(dir), "count": len(entries), "files": entries}, nil
}

func (t *FilesystemTool) fileInfo(path string) (any, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	return map[string]any{
		"path":     t.rel(path),
		"size":     info.Size(),
		"is_dir":   info.IsDir(),
		"mode":     info.Mode().String(),
		"modified": info.ModTime().Format(time.RFC3339),
	}, nil
}

func (t *FilesystemTool) writeFile(path, content string) (any, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "mkdir for %s", path)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, errors.Wrapf(err, "write %s", path)
	}
	return map[string]any{"path": t.rel(path), "bytes_written": len(content)}, nil
}

// rel reports paths relative to the project root so payloads never leak the
// absolute location of the workspace.
func (t *FilesystemTool) rel(path string) string {
	if r, err := filepath.Rel(t.root, path); err == nil {
		return r
	}
	return path
}
