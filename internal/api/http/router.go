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

package http

import (
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
)

// Router builds the hertz server around one Handler.
type Router struct {
	handler *Handler
}

// NewRouter creates a Router.
func NewRouter(handler *Handler) *Router {
	return &Router{handler: handler}
}

// Build creates the hertz server on addr and registers all routes.
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	srv := server.New(append([]config.Option{server.WithHostPorts(addr)}, opts...)...)
	r.Register(srv)
	return srv
}

// Register attaches the gateway routes to srv.
func (r *Router) Register(srv *server.Hertz) {
	api := srv.Group("/api")
	api.POST("/agent/query", r.handler.Query)

	status := api.Group("/status")
	status.GET("/health", r.handler.Health)
	status.GET("/memory", r.handler.MemoryStatus)

	srv.GET("/metrics", r.handler.Metrics)
}
