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

package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// DefaultRegistry is the gateway-wide registry exposed on /metrics.
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		RequestDuration, RequestTotal,
		ToolDuration, ToolFailTotal,
		LLMTokensTotal, LLMRequestTotal,
		MemoryRecords,
	)
}

// RequestDuration agent request duration in seconds.
var RequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "zombiecursor_request_duration_seconds",
		Help:    "Agent request duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"agent"},
)

// RequestTotal agent requests by terminal state.
var RequestTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "zombiecursor_request_total",
		Help: "Agent requests by terminal state",
	},
	[]string{"agent", "state"}, // completed | failed
)

// ToolDuration tool invocation duration in seconds.
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "zombiecursor_tool_duration_seconds",
		Help:    "Tool invocation duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// ToolFailTotal failed tool invocations by error kind.
var ToolFailTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "zombiecursor_tool_fail_total",
		Help: "Failed tool invocations by error kind",
	},
	[]string{"tool", "kind"},
)

// LLMTokensTotal LLM tokens by direction.
var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "zombiecursor_llm_tokens_total",
		Help: "LLM tokens by direction",
	},
	[]string{"direction"}, // input | output
)

// LLMRequestTotal LLM backend calls by outcome.
var LLMRequestTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "zombiecursor_llm_request_total",
		Help: "LLM backend calls by outcome",
	},
	[]string{"backend", "outcome"}, // ok | unavailable | protocol_error
)

// MemoryRecords records currently held by the vector memory store.
var MemoryRecords = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "zombiecursor_memory_records",
		Help: "Records currently held by the vector memory store",
	},
)

// WritePrometheus writes the registry in Prometheus text format.
func WritePrometheus(w io.Writer) error {
	families, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
