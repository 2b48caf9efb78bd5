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

// Package app assembles the gateway: config in, wired components out.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"

	"github.com/zombiecoder1/zombiecursor/internal/agent"
	apihttp "github.com/zombiecoder1/zombiecursor/internal/api/http"
	"github.com/zombiecoder1/zombiecursor/internal/memory"
	"github.com/zombiecoder1/zombiecursor/internal/model/embedding"
	"github.com/zombiecoder1/zombiecursor/internal/model/llm"
	"github.com/zombiecoder1/zombiecursor/internal/project"
	"github.com/zombiecoder1/zombiecursor/internal/runtime/session"
	"github.com/zombiecoder1/zombiecursor/internal/tool/builtin"
	"github.com/zombiecoder1/zombiecursor/internal/tool/executor"
	"github.com/zombiecoder1/zombiecursor/internal/tool/registry"
	"github.com/zombiecoder1/zombiecursor/pkg/config"
	"github.com/zombiecoder1/zombiecursor/pkg/errors"
	"github.com/zombiecoder1/zombiecursor/pkg/log"
)

// App is the assembled gateway.
type App struct {
	cfg      *config.Config
	logger   *log.Logger
	store    *memory.Store // nil when memory is disabled
	sessions *session.Manager
	hertz    *server.Hertz

	flushCancel context.CancelFunc
}

// NewApp wires every component from cfg. Degradable dependencies (memory
// snapshot, project scan) log and continue; a broken LLM config fails fast.
func NewApp(cfg *config.Config) (*App, error) {
	logger, err := log.NewLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	setHertzLogger(&cfg.Log)

	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("initializing llm backend: %w", err)
	}
	if cfg.LLM.RequestsPerMinute > 0 || cfg.LLM.MaxConcurrent > 0 {
		client = llm.NewRateLimitedClient(client, cfg.LLM.RequestsPerMinute, cfg.LLM.MaxConcurrent)
	}

	var store *memory.Store
	if cfg.Memory.Enabled {
		embedder, err := embedding.NewEmbedder(cfg.Embedding)
		if err != nil {
			return nil, fmt.Errorf("initializing embedder: %w", err)
		}
		store = memory.NewStore(embedder, cfg.Memory.Path, logger)
		if err := store.Load(); err != nil {
			// A corrupt or incompatible snapshot costs recall, not startup.
			logger.Error("memory snapshot rejected, starting empty",
				"kind", string(errors.KindOf(err)), "error", err)
		}
	}

	loader, err := project.NewLoader(cfg.Project, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing project loader: %w", err)
	}

	reg := registry.New()
	builtin.RegisterAll(reg, loader.Root(), cfg.Tools)
	exec, err := executor.New(reg, loader.Root(), cfg.Tools, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing tool executor: %w", err)
	}

	personas, err := agent.LoadPersonas(cfg.Agent.PersonaDir)
	if err != nil {
		return nil, fmt.Errorf("loading personas: %w", err)
	}
	sessions := session.NewManager(cfg.Agent.SessionTTL, logger)

	runtime := agent.NewRuntime(agent.Options{
		Client:   client,
		Personas: personas,
		Store:    store,
		Loader:   loader,
		Sessions: sessions,
		Executor: exec,
		Registry: reg,
		Agent:    cfg.Agent,
		LLM:      cfg.LLM,
		TopK:     cfg.Memory.TopK,
		Logger:   logger,
	})

	handler := apihttp.NewHandler(runtime, client, store, logger)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	hertz := apihttp.NewRouter(handler).Build(addr)

	logger.Info("gateway assembled",
		"addr", addr,
		"llm_backend", client.Provider(),
		"llm_model", client.Model(),
		"agents", len(personas),
		"tools", len(reg.List()),
		"memory_enabled", store != nil)

	return &App{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		sessions: sessions,
		hertz:    hertz,
	}, nil
}

// Run starts the background flusher and serves HTTP until shutdown.
func (a *App) Run() error {
	if a.store != nil {
		ctx, cancel := context.WithCancel(context.Background())
		a.flushCancel = cancel
		a.store.StartFlusher(ctx, a.cfg.Memory.FlushInterval)
	}
	return a.hertz.Run()
}

// Shutdown stops serving, then persists what needs persisting. Safe to call
// once after Run.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error
	if err := a.hertz.Shutdown(ctx); err != nil {
		firstErr = err
	}
	a.sessions.Stop()
	if a.flushCancel != nil {
		a.flushCancel()
	}
	if a.store != nil {
		if err := a.store.Persist(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.logger.Info("gateway stopped")
	return firstErr
}

// setHertzLogger routes hertz's own logging through slog so all output
// shares one format.
func setHertzLogger(cfg *log.Config) {
	levelVar := &slog.LevelVar{}
	levelVar.Set(cfg.SlogLevel())
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(os.Stdout),
		hertzslog.WithLevel(levelVar),
	))
}
