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
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/zombiecoder1/zombiecursor/internal/tool"
	"github.com/zombiecoder1/zombiecursor/pkg/errors"
)

const defaultLogCount = 10

// GitTool inspects the project repository through go-git; it never shells
// out and never mutates the repository.
type GitTool struct {
	root string
}

// NewGitTool builds the version control tool rooted at root.
func NewGitTool(root string) *GitTool {
	return &GitTool{root: root}
}

func (t *GitTool) Name() string { return "git" }

func (t *GitTool) Description() string {
	return "Inspect the project's git repository: status, history, branches"
}

func (t *GitTool) Capability() tool.Capability { return tool.CapabilityVCS }

func (t *GitTool) Operations() []tool.OpSpec {
	maxParam := tool.ParamSpec{Name: "max_count", Type: "integer", Required: false, Description: "Maximum number of commits, defaults to 10"}
	return []tool.OpSpec{
		{
			Name:        "status",
			Description: "Working tree status: branch, modified and untracked files",
		},
		{
			Name:        "log",
			Description: "Recent commit history",
			Params: []tool.ParamSpec{
				maxParam,
				{Name: "author", Type: "string", Required: false, Description: "Only commits whose author matches this substring"},
			},
		},
		{
			Name:        "current_branch",
			Description: "Name and head commit of the current branch",
		},
		{
			Name:        "file_history",
			Description: "Commits that touched one file",
			Params: []tool.ParamSpec{
				{Name: "path", Type: "string", Required: true, Description: "File path relative to the project root"},
				maxParam,
			},
		},
	}
}

func (t *GitTool) Execute(ctx context.Context, op string, params map[string]any) (any, error) {
	repo, err := git.PlainOpenWithOptions(t.root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errors.WithCause(errors.KindInvalidToolParameters, "project is not a git repository", err)
	}

	switch op {
	case "status":
		return t.status(repo)
	case "log":
		author, _ := params["author"].(string)
		return t.log(ctx, repo, maxCount(params), author, "")
	case "current_branch":
		return t.currentBranch(repo)
	case "file_history":
		return t.log(ctx, repo, maxCount(params), "", params["path"].(string))
	default:
		return nil, errors.Newf(errors.KindInvalidToolParameters, "unknown operation %q", op)
	}
}

func (t *GitTool) status(repo *git.Repository) (any, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return nil, errors.Wrap(err, "opening worktree")
	}
	status, err := wt.Status()
	if err != nil {
		return nil, errors.Wrap(err, "reading status")
	}

	var modified, staged, untracked []string
	for path, st := range status {
		switch {
		case st.Worktree == git.Untracked:
			untracked = append(untracked, path)
		case st.Staging != git.Unmodified && st.Staging != git.Untracked:
			staged = append(staged, path)
		case st.Worktree != git.Unmodified:
			modified = append(modified, path)
		}
	}

	branch := ""
	if head, herr := repo.Head(); herr == nil {
		branch = head.Name().Short()
	}
	return map[string]any{
		"branch":    branch,
		"clean":     status.IsClean(),
		"staged":    staged,
		"modified":  modified,
		"untracked": untracked,
	}, nil
}

func (t *GitTool) currentBranch(repo *git.Repository) (any, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, errors.Wrap(err, "resolving HEAD")
	}
	return map[string]any{
		"branch": head.Name().Short(),
		"commit": head.Hash().String(),
	}, nil
}

type commitInfo struct {
	Hash    string `json:"hash"`
	Author  string `json:"author"`
	Email   string `json:"email"`
	Date    string `json:"date"`
	Message string `json:"message"`
}

// log walks history from HEAD. file filters to commits touching one path,
// author to a substring match on the author name or email.
func (t *GitTool) log(ctx context.Context, repo *git.Repository, max int, author, file string) (any, error) {
	opts := &git.LogOptions{}
	if file != "" {
		rel, err := filepath.Rel(t.root, file)
		if err != nil {
			rel = file
		}
		rel = filepath.ToSlash(rel)
		opts.PathFilter = func(p string) bool { return p == rel }
	}
	iter, err := repo.Log(opts)
	if err != nil {
		return nil, errors.Wrap(err, "reading log")
	}
	defer iter.Close()

	var commits []commitInfo
	err = iter.ForEach(func(c *object.Commit) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if author != "" &&
			!strings.Contains(c.Author.Name, author) &&
			!strings.Contains(c.Author.Email, author) {
			return nil
		}
		commits = append(commits, commitInfo{
			Hash:    c.Hash.String()[:12],
			Author:  c.Author.Name,
			Email:   c.Author.Email,
			Date:    c.Author.When.Format(time.RFC3339),
			Message: strings.TrimSpace(strings.SplitN(c.Message, "\n", 2)[0]),
		})
		if len(commits) >= max {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "walking history")
	}
	return map[string]any{"count": len(commits), "commits": commits}, nil
}

func maxCount(params map[string]any) int {
	if m, ok := params["max_count"].(int); ok && m > 0 {
		return m
	}
	return defaultLogCount
}
