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
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/zombiecoder1/zombiecursor/internal/tool"
	"github.com/zombiecoder1/zombiecursor/pkg/errors"
)

const (
	defaultMaxMatches  = 50
	maxSearchFileBytes = 1 << 20
	maxLineLength      = 500
)

// Extensions scanned by the search tool. Everything else is assumed binary
// or irrelevant.
var searchableExts = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".jsx": true,
	".tsx": true, ".java": true, ".c": true, ".h": true, ".cpp": true,
	".hpp": true, ".rs": true, ".rb": true, ".php": true, ".sh": true,
	".md": true, ".txt": true, ".yaml": true, ".yml": true, ".json": true,
	".toml": true, ".html": true, ".css": true, ".sql": true, ".proto": true,
}

// Per-extension symbol declaration patterns; %s is the symbol name.
var symbolPatterns = map[string][]string{
	".go":  {`func\s+(\(\s*\w+\s+\*?\w+\s*\)\s*)?%s\s*\(`, `type\s+%s\s+`, `var\s+%s\s+`, `const\s+%s\s+`},
	".py":  {`def\s+%s\s*\(`, `class\s+%s\s*[\(:]`},
	".js":  {`function\s+%s\s*\(`, `class\s+%s\s*[{\s]`, `(const|let|var)\s+%s\s*=`},
	".ts":  {`function\s+%s\s*\(`, `class\s+%s\s*[{\s]`, `interface\s+%s\s*[{\s]`, `(const|let|var)\s+%s\s*[:=]`},
	".rs":  {`fn\s+%s\s*[<\(]`, `struct\s+%s\s*[{<;\s]`, `enum\s+%s\s*[{<\s]`},
	".java": {`(class|interface|enum)\s+%s\s*[{<\s]`,
		`(public|private|protected|static|\s)+[\w<>\[\]]+\s+%s\s*\(`},
}

// Match is one search hit.
type Match struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// SearchTool scans project text files for literal text, symbol declarations
// and symbol references.
type SearchTool struct {
	root string
}

// NewSearchTool builds the search tool rooted at root.
func NewSearchTool(root string) *SearchTool {
	return &SearchTool{root: root}
}

func (t *SearchTool) Name() string { return "search" }

func (t *SearchTool) Description() string {
	return "Search project files for text, symbol definitions and references"
}

func (t *SearchTool) Capability() tool.Capability { return tool.CapabilitySearch }

func (t *SearchTool) Operations() []tool.OpSpec {
	dirParam := tool.ParamSpec{Name: "directory", Type: "string", Required: false, Description: "Directory to search, defaults to the project root"}
	maxParam := tool.ParamSpec{Name: "max_results", Type: "integer", Required: false, Description: "Maximum number of matches, defaults to 50"}
	return []tool.OpSpec{
		{
			Name:        "search_text",
			Description: "Find lines containing a literal text fragment",
			Params: []tool.ParamSpec{
				{Name: "query", Type: "string", Required: true, Description: "Text to search for"},
				dirParam,
				{Name: "file_pattern", Type: "string", Required: false, Description: "Glob pattern applied to file names, e.g. *.go"},
				maxParam,
			},
		},
		{
			Name:        "search_symbols",
			Description: "Find where a function, type or class is declared",
			Params: []tool.ParamSpec{
				{Name: "name", Type: "string", Required: true, Description: "Symbol name to look up"},
				dirParam,
			},
		},
		{
			Name:        "find_references",
			Description: "Find lines referencing a symbol",
			Params: []tool.ParamSpec{
				{Name: "symbol", Type: "string", Required: true, Description: "Symbol to find references to"},
				dirParam,
				maxParam,
			},
		},
	}
}

func (t *SearchTool) Execute(ctx context.Context, op string, params map[string]any) (any, error) {
	dir := t.root
	if d, ok := params["directory"].(string); ok {
		dir = d
	}
	max := defaultMaxMatches
	if m, ok := params["max_results"].(int); ok && m > 0 {
		max = m
	}

	switch op {
	case "search_text":
		pattern, _ := params["file_pattern"].(string)
		return t.searchText(ctx, dir, params["query"].(string), pattern, max)
	case "search_symbols":
		return t.searchSymbols(ctx, dir, params["name"].(string))
	case "find_references":
		return t.findReferences(ctx, dir, params["symbol"].(string), max)
	default:
		return nil, errors.Newf(errors.KindInvalidToolParameters, "unknown operation %q", op)
	}
}

func (t *SearchTool) searchText(ctx context.Context, dir, query, pattern string, max int) (any, error) {
	var matches []Match
	err := t.walk(ctx, dir, func(path string) bool {
		if pattern != "" {
			if ok, _ := filepath.Match(pattern, filepath.Base(path)); !ok {
				return true
			}
		}
		t.scanFile(path, func(line int, text string) bool {
			if strings.Contains(text, query) {
				matches = append(matches, Match{File: t.rel(path), Line: line, Text: clip(text)})
			}
			return len(matches) < max
		})
		return len(matches) < max
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"query": query, "count": len(matches), "matches": matches}, nil
}

func (t *SearchTool) searchSymbols(ctx context.Context, dir, name string) (any, error) {
	quoted := regexp.QuoteMeta(name)
	compiled := make(map[string][]*regexp.Regexp, len(symbolPatterns))
	for ext, patterns := range symbolPatterns {
		for _, p := range patterns {
			compiled[ext] = append(compiled[ext], regexp.MustCompile(fmt.Sprintf(p, quoted)))
		}
	}

	var matches []Match
	err := t.walk(ctx, dir, func(path string) bool {
		res, ok := compiled[filepath.Ext(path)]
		if !ok {
			return true
		}
		t.scanFile(path, func(line int, text string) bool {
			for _, re := range res {
				if re.MatchString(text) {
					matches = append(matches, Match{File: t.rel(path), Line: line, Text: clip(text)})
					break
				}
			}
			return len(matches) < defaultMaxMatches
		})
		return len(matches) < defaultMaxMatches
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"symbol": name, "count": len(matches), "matches": matches}, nil
}

func (t *SearchTool) findReferences(ctx context.Context, dir, symbol string, max int) (any, error) {
	// Word-boundary match so "load" does not hit "download".
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(symbol) + `\b`)
	if err != nil {
		return nil, errors.WithCause(errors.KindInvalidToolParameters, "invalid symbol", err)
	}
	var matches []Match
	werr := t.walk(ctx, dir, func(path string) bool {
		t.scanFile(path, func(line int, text string) bool {
			if re.MatchString(text) {
				matches = append(matches, Match{File: t.rel(path), Line: line, Text: clip(text)})
			}
			return len(matches) < max
		})
		return len(matches) < max
	})
	if werr != nil {
		return nil, werr
	}
	return map[string]any{"symbol": symbol, "count": len(matches), "matches": matches}, nil
}

// walk visits searchable files under dir until fn returns false.
func (t *SearchTool) walk(ctx context.Context, dir string, fn func(path string) bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != dir && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !searchableExts[filepath.Ext(path)] {
			return nil
		}
		if info, ierr := d.Info(); ierr != nil || info.Size() > maxSearchFileBytes {
			return nil
		}
		if !fn(path) {
			return filepath.SkipAll
		}
		return nil
	})
}

// scanFile calls fn per line until fn returns false. Read errors end the
// scan silently; a partially scanned file is still useful.
func (t *SearchTool) scanFile(path string, fn func(line int, text string) bool) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxSearchFileBytes)
	for n := 1; scanner.Scan(); n++ {
		if !fn(n, scanner.Text()) {
			return
		}
	}
}

func (t *SearchTool) rel(path string) string {
	if r, err := filepath.Rel(t.root, path); err == nil {
		return r
	}
	return path
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLineLength {
		return s[:maxLineLength]
	}
	return s
}
