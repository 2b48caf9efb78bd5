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

// Package project captures a lightweight snapshot of the workspace so agent
// prompts carry real project structure instead of a blind guess. Snapshots
// are cached with a TTL; concurrent refreshes collapse into one scan.
package project

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/zombiecoder1/zombiecursor/pkg/config"
	"github.com/zombiecoder1/zombiecursor/pkg/errors"
	"github.com/zombiecoder1/zombiecursor/pkg/log"
)

var excludedDirs = map[string]bool{
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
	"vectorstores": true,
}

var languageByExt = map[string]string{
	".go": "Go", ".py": "Python", ".js": "JavaScript", ".ts": "TypeScript",
	".jsx": "JavaScript", ".tsx": "TypeScript", ".java": "Java",
	".c": "C", ".h": "C", ".cpp": "C++", ".hpp": "C++", ".rs": "Rust",
	".rb": "Ruby", ".php": "PHP", ".sh": "Shell", ".sql": "SQL",
	".yaml": "YAML", ".yml": "YAML", ".json": "JSON", ".toml": "TOML",
	".md": "Markdown", ".html": "HTML", ".css": "CSS", ".proto": "Protobuf",
}

// FileInfo is one file in a project snapshot.
type FileInfo struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Language string `json:"language,omitempty"`
}

// Snapshot is a point-in-time view of the project tree, bounded by the
// loader's file and byte limits.
type Snapshot struct {
	Root       string         `json:"root"`
	Files      []FileInfo     `json:"files"`
	Languages  map[string]int `json:"languages"`
	FileCount  int            `json:"file_count"` // total seen, may exceed len(Files)
	TotalBytes int64          `json:"total_bytes"`
	Truncated  bool           `json:"truncated"`
	CapturedAt time.Time      `json:"captured_at"`
}

// Loader scans the project root and caches the result.
type Loader struct {
	root     string
	maxFiles int
	maxBytes int64
	ttl      time.Duration
	logger   *log.Logger

	sf singleflight.Group

	mu     sync.RWMutex
	cached *Snapshot
}

// NewLoader builds a Loader from cfg. The root is resolved to an absolute
// path once.
func NewLoader(cfg config.ProjectConfig, logger *log.Logger) (*Loader, error) {
	abs, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, errors.WithCause(errors.KindInternal, "resolving project root", err)
	}
	return &Loader{
		root:     abs,
		maxFiles: cfg.MaxFiles,
		maxBytes: cfg.MaxBytes,
		ttl:      cfg.CacheTTL,
		logger:   logger,
	}, nil
}

// Root returns the absolute project root.
func (l *Loader) Root() string { return l.root }

// Load returns the cached snapshot when fresh, otherwise rescans. Concurrent
// callers during a rescan share one walk.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	l.mu.RLock()
	cached := l.cached
	l.mu.RUnlock()
	if cached != nil && time.Since(cached.CapturedAt) < l.ttl {
		return cached, nil
	}

	v, err, _ := l.sf.Do("scan", func() (any, error) {
		// Another caller may have refreshed while this one waited.
		l.mu.RLock()
		fresh := l.cached
		l.mu.RUnlock()
		if fresh != nil && time.Since(fresh.CapturedAt) < l.ttl {
			return fresh, nil
		}

		snap, serr := l.scan(ctx)
		if serr != nil {
			return nil, serr
		}
		l.mu.Lock()
		l.cached = snap
		l.mu.Unlock()
		l.logger.Debug("project snapshot refreshed",
			"files", snap.FileCount, "bytes", snap.TotalBytes, "truncated", snap.Truncated)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Invalidate drops the cached snapshot so the next Load rescans.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	l.cached = nil
	l.mu.Unlock()
}

func (l *Loader) scan(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Root:       l.root,
		Languages:  make(map[string]int),
		CapturedAt: time.Now().UTC(),
	}
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are not fatal
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != l.root && (excludedDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		info, ierr := d.Info()
		if ierr != nil {
			return nil
		}

		snap.FileCount++
		snap.TotalBytes += info.Size()
		lang := languageByExt[filepath.Ext(path)]
		if lang != "" {
			snap.Languages[lang]++
		}

		if l.maxFiles > 0 && len(snap.Files) >= l.maxFiles {
			snap.Truncated = true
			return nil
		}
		rel, rerr := filepath.Rel(l.root, path)
		if rerr != nil {
			rel = path
		}
		snap.Files = append(snap.Files, FileInfo{Path: rel, Size: info.Size(), Language: lang})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "scanning project")
	}
	if l.maxBytes > 0 && snap.TotalBytes > l.maxBytes {
		snap.Truncated = true
	}
	sort.Slice(snap.Files, func(i, j int) bool { return snap.Files[i].Path < snap.Files[j].Path })
	return snap, nil
}

// Overview renders the snapshot as a compact text block for prompts.
func (s *Snapshot) Overview() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", filepath.Base(s.Root))
	fmt.Fprintf(&b, "Files: %d (%d bytes)\n", s.FileCount, s.TotalBytes)

	if len(s.Languages) > 0 {
		type langCount struct {
			name  string
			count int
		}
		langs := make([]langCount, 0, len(s.Languages))
		for name, count := range s.Languages {
			langs = append(langs, langCount{name, count})
		}
		sort.Slice(langs, func(i, j int) bool {
			if langs[i].count != langs[j].count {
				return langs[i].count > langs[j].count
			}
			return langs[i].name < langs[j].name
		})
		parts := make([]string, 0, len(langs))
		for _, lc := range langs {
			parts = append(parts, fmt.Sprintf("%s (%d)", lc.name, lc.count))
		}
		fmt.Fprintf(&b, "Languages: %s\n", strings.Join(parts, ", "))
	}

	if len(s.Files) > 0 {
		b.WriteString("Layout:\n")
		for _, f := range s.Files {
			fmt.Fprintf(&b, "  %s\n", f.Path)
		}
		if s.Truncated {
			b.WriteString("  ... (truncated)\n")
		}
	}
	return b.String()
}
