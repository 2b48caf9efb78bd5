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

package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zombiecoder1/zombiecursor/pkg/config"
	"github.com/zombiecoder1/zombiecursor/pkg/log"
)

func seedProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"main.go":              "package main",
		"internal/api/api.go":  "package api",
		"scripts/run.py":       "print('hi')",
		"README.md":            "# readme",
		"node_modules/x/x.js":  "ignored",
		".git/config":          "ignored",
		"vectorstores/data.db": "ignored",
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func newLoader(t *testing.T, root string, ttl time.Duration, maxFiles int) *Loader {
	t.Helper()
	l, err := NewLoader(config.ProjectConfig{
		Root: root, MaxFiles: maxFiles, MaxBytes: 1 << 20, CacheTTL: ttl,
	}, log.Discard())
	require.NoError(t, err)
	return l
}

func TestLoadSnapshot(t *testing.T) {
	root := seedProject(t)
	l := newLoader(t, root, time.Minute, 50)

	snap, err := l.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, snap.FileCount, "excluded directories are not counted")
	require.Equal(t, 2, snap.Languages["Go"])
	require.Equal(t, 1, snap.Languages["Python"])

	paths := make([]string, 0, len(snap.Files))
	for _, f := range snap.Files {
		paths = append(paths, f.Path)
	}
	require.Contains(t, paths, "main.go")
	require.Contains(t, paths, filepath.Join("internal", "api", "api.go"))
	require.NotContains(t, paths, filepath.Join("node_modules", "x", "x.js"))
}

func TestLoadCachesWithinTTL(t *testing.T) {
	root := seedProject(t)
	l := newLoader(t, root, time.Minute, 50)
	ctx := context.Background()

	first, err := l.Load(ctx)
	require.NoError(t, err)

	// A new file inside the TTL window is invisible until invalidation.
	require.NoError(t, os.WriteFile(filepath.Join(root, "late.go"), []byte("package late"), 0o644))
	second, err := l.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, first.CapturedAt, second.CapturedAt)
	require.Equal(t, first.FileCount, second.FileCount)

	l.Invalidate()
	third, err := l.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, first.FileCount+1, third.FileCount)
}

func TestLoadExpiredTTLRescans(t *testing.T) {
	root := seedProject(t)
	l := newLoader(t, root, time.Millisecond, 50)
	ctx := context.Background()

	first, err := l.Load(ctx)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "late.go"), []byte("package late"), 0o644))

	second, err := l.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, first.FileCount+1, second.FileCount)
}

func TestLoadFileLimitTruncates(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(root, fmt.Sprintf("f%02d.go", i)), []byte("package f"), 0o644))
	}
	l := newLoader(t, root, time.Minute, 3)

	snap, err := l.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Files, 3)
	require.Equal(t, 10, snap.FileCount, "count covers the whole tree")
	require.True(t, snap.Truncated)
}

func TestLoadConcurrent(t *testing.T) {
	root := seedProject(t)
	l := newLoader(t, root, time.Minute, 50)

	var wg sync.WaitGroup
	snaps := make([]*Snapshot, 8)
	for i := range snaps {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			snap, err := l.Load(context.Background())
			require.NoError(t, err)
			snaps[n] = snap
		}(i)
	}
	wg.Wait()
	for _, snap := range snaps[1:] {
		require.Equal(t, snaps[0].CapturedAt, snap.CapturedAt, "concurrent loads share one scan")
	}
}

func TestOverview(t *testing.T) {
	root := seedProject(t)
	l := newLoader(t, root, time.Minute, 50)

	snap, err := l.Load(context.Background())
	require.NoError(t, err)
	text := snap.Overview()
	require.Contains(t, text, "main.go")
	require.Contains(t, text, "Go (2)")
	require.Contains(t, text, "Files: 4")
}
