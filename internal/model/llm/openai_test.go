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

package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zombiecoder1/zombiecursor/pkg/config"
	zerr "github.com/zombiecoder1/zombiecursor/pkg/errors"
)

func openaiCfg(host string) config.LLMConfig {
	return config.LLMConfig{Backend: "openai", Host: host, Model: "llama2", Timeout: 5 * time.Second}
}

func TestOpenAIChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"choices": [{"message": {"role": "assistant", "content": "hello there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3}
		}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient(openaiCfg(srv.URL))
	resp, err := c.Chat(context.Background(), &Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "hello there", resp.Content)
	require.Equal(t, StopReasonStop, resp.StopReason)
	require.Equal(t, 12, resp.Usage.PromptTokens)
	require.Equal(t, 3, resp.Usage.CompletionTokens)
}

func TestOpenAIChatToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{"id": "c1", "type": "function", "function": {"name": "search__search_text", "arguments": "{\"query\": \"def main\"}"}}]
				},
				"finish_reason": "tool_calls"
			}]
		}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient(openaiCfg(srv.URL))
	resp, err := c.Chat(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "find main"}}})
	require.NoError(t, err)
	require.Equal(t, StopReasonToolCalls, resp.StopReason)
	require.Len(t, resp.ToolCalls, 1)
	require.Equal(t, "search__search_text", resp.ToolCalls[0].Name)
	require.Equal(t, "def main", resp.ToolCalls[0].Arguments["query"])
}

func TestOpenAIChatBackendUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewOpenAIClient(openaiCfg(srv.URL))
	_, err := c.Chat(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
	require.True(t, zerr.IsKind(err, zerr.KindBackendUnavailable), "got %v", err)
}

func TestOpenAIChatProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": {"message": "model exploded", "type": "server_error"}}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient(openaiCfg(srv.URL))
	_, err := c.Chat(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
	require.True(t, zerr.IsKind(err, zerr.KindBackendProtocol), "got %v", err)
}

func TestOpenAIChatStreamOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		for _, tok := range []string{"zom", "bie", "cursor"} {
			fmt.Fprintf(w, "data: {\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", tok)
			fl.Flush()
		}
		fmt.Fprint(w, "data: {\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		fl.Flush()
	}))
	defer srv.Close()

	c := NewOpenAIClient(openaiCfg(srv.URL))
	s, err := c.ChatStream(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	defer s.Close()

	var got []string
	var terminal Chunk
	for ch := range s.Chunks() {
		if ch.Done {
			terminal = ch
			continue
		}
		got = append(got, ch.Content)
	}
	require.Equal(t, []string{"zom", "bie", "cursor"}, got)
	require.True(t, terminal.Done)
	require.Equal(t, StopReasonStop, terminal.StopReason)
	require.NoError(t, terminal.Err)
}

func TestOpenAIChatStreamCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"first\"}}]}\n\n")
		fl.Flush()
		<-release // hold the connection open
	}))
	defer srv.Close()
	defer close(release)

	c := NewOpenAIClient(openaiCfg(srv.URL))
	s, err := c.ChatStream(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)

	first := <-s.Chunks()
	require.Equal(t, "first", first.Content)

	s.Close()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not release the connection after Close")
	}
}

func TestOpenAIProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object": "list", "data": [{"id": "llama2", "object": "model"}]}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient(openaiCfg(srv.URL))
	require.NoError(t, c.Probe(context.Background()))

	srv.Close()
	err := c.Probe(context.Background())
	require.True(t, zerr.IsKind(err, zerr.KindBackendUnavailable), "got %v", err)
}

func TestNewClientSelectsBackend(t *testing.T) {
	c, err := NewClient(config.LLMConfig{Backend: "openai", Host: "http://localhost:1", Model: "m"})
	require.NoError(t, err)
	require.Equal(t, "openai", c.Provider())

	c, err = NewClient(config.LLMConfig{Backend: "ollama", Host: "http://localhost:1", Model: "m"})
	require.NoError(t, err)
	require.Equal(t, "ollama", c.Provider())

	_, err = NewClient(config.LLMConfig{Backend: "gguf"})
	require.Error(t, err)
}
