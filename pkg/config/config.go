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

package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zombiecoder1/zombiecursor/pkg/log"
)

// Config is the full gateway configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Project   ProjectConfig   `mapstructure:"project"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Log       log.Config      `mapstructure:"log"`
}

// ServerConfig HTTP surface settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LLMConfig selects and tunes the inference backend. Backend decides the
// adapter implementation; nothing downstream branches on it.
type LLMConfig struct {
	Backend     string        `mapstructure:"backend"` // openai | ollama
	Host        string        `mapstructure:"host"`    // e.g. http://localhost:8007
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"` // OpenAI-compatible servers may require any non-empty key
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`

	RequestsPerMinute float64 `mapstructure:"requests_per_minute"` // 0 = unlimited
	MaxConcurrent     int     `mapstructure:"max_concurrent"`      // 0 = unlimited
}

// EmbeddingConfig selects the embedding function. Provider "local" is the
// deterministic feature-hash embedder; "ollama" calls /api/embeddings.
type EmbeddingConfig struct {
	Provider  string        `mapstructure:"provider"` // ollama | local
	Host      string        `mapstructure:"host"`
	Model     string        `mapstructure:"model"`
	Dimension int           `mapstructure:"dimension"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// MemoryConfig vector memory store settings.
type MemoryConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Path          string        `mapstructure:"path"` // snapshot directory
	TopK          int           `mapstructure:"top_k"`
	FlushInterval time.Duration `mapstructure:"flush_interval"` // 0 = explicit persist only
}

// ProjectConfig context loader settings.
type ProjectConfig struct {
	Root     string        `mapstructure:"root"`
	MaxFiles int           `mapstructure:"max_files"`
	MaxBytes int64         `mapstructure:"max_bytes"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// ToolsConfig executor limits and capability switches.
type ToolsConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxResultSize int           `mapstructure:"max_result_size"`
	EnableWrite   bool          `mapstructure:"enable_write"`
	EnableGit     bool          `mapstructure:"enable_git"`
	EnableSystem  bool          `mapstructure:"enable_system"`
}

// AgentConfig runtime settings shared by all agents.
type AgentConfig struct {
	PersonaDir    string        `mapstructure:"persona_dir"`
	DefaultAgent  string        `mapstructure:"default_agent"`
	HistoryTurns  int           `mapstructure:"history_turns"`  // trailing turns kept per prompt
	ContextBudget int           `mapstructure:"context_budget"` // tokens
	MaxToolRounds int           `mapstructure:"max_tool_rounds"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
}

// Load reads configuration from path (empty = ./config.yaml if present),
// applies ZC_* environment overrides and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ZC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
		// No config file: defaults + env only.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5051)

	v.SetDefault("llm.backend", "openai")
	v.SetDefault("llm.host", "http://localhost:8007")
	v.SetDefault("llm.model", "llama2")
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.requests_per_minute", 0)
	v.SetDefault("llm.max_concurrent", 4)

	v.SetDefault("embedding.provider", "local")
	v.SetDefault("embedding.host", "http://localhost:11434")
	v.SetDefault("embedding.model", "nomic-embed-text")
	v.SetDefault("embedding.dimension", 384)
	v.SetDefault("embedding.timeout", "15s")

	v.SetDefault("memory.enabled", true)
	v.SetDefault("memory.path", "./vectorstores/data")
	v.SetDefault("memory.top_k", 5)
	v.SetDefault("memory.flush_interval", "30s")

	v.SetDefault("project.root", ".")
	v.SetDefault("project.max_files", 50)
	v.SetDefault("project.max_bytes", 1048576)
	v.SetDefault("project.cache_ttl", "5m")

	v.SetDefault("tools.timeout", "30s")
	v.SetDefault("tools.max_result_size", 65536)
	v.SetDefault("tools.enable_write", false)
	v.SetDefault("tools.enable_git", true)
	v.SetDefault("tools.enable_system", true)

	v.SetDefault("agent.persona_dir", "./personas")
	v.SetDefault("agent.default_agent", "coder")
	v.SetDefault("agent.history_turns", 10)
	v.SetDefault("agent.context_budget", 3000)
	v.SetDefault("agent.max_tool_rounds", 4)
	v.SetDefault("agent.session_ttl", "30m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
