// Copyright 2025 The CortexKit Authors
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

package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cortexkit/cortex/pkg/observability"
)

// routes assembles the chi router. The observability middleware is bound
// to the manager active at build time; /metrics resolves the manager per
// request so it follows engine swaps.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	if eng := s.Engine(); eng != nil && eng.Observability() != nil {
		obs := eng.Observability()
		r.Use(observability.HTTPMiddleware(obs.GetTracer("cortex.server"), obs.GetMetrics()))
	}
	r.Use(corsHeaders(s.cfg.Server.CORS))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/query", s.handleQuery)
	r.Post("/query/stream", s.handleQueryStream)
	r.Get("/agents", s.handleAgents)
	r.Get("/config", s.handleConfig)
	r.Get("/config/schema", s.handleConfigSchema)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/memory", func(r chi.Router) {
		r.Use(s.requireStore)
		r.Post("/search", s.handleMemorySearch)
		r.Post("/retrieve", s.handleMemoryRetrieve)
		r.Post("/write", s.handleMemoryWrite)
		r.Post("/event/write", s.handleEventWrite)
		r.Get("/session/{id}", s.handleSessionEvents)
		r.Post("/session/delete", s.handleSessionDelete)
		r.Get("/tail", s.handleTail)
		r.Get("/wm", s.handleWMGet)
		r.Post("/wm/add", s.handleWMAdd)
		r.Post("/wm/clear", s.handleWMClear)
		r.Post("/procedural/register", s.handleProceduralRegister)
		r.Get("/procedural/list", s.handleProceduralList)
		r.Post("/rebuild_index", s.handleRebuildIndex)
		r.Post("/consolidate", s.handleConsolidate)
		r.Post("/prune", s.handlePrune)
		r.Post("/delete", s.handleMemoryDelete)
		r.Delete("/{id}", s.handleMemoryDeleteByID)
	})

	return r
}

// requireStore rejects memory routes when persistence is disabled.
func (s *Server) requireStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		eng := s.Engine()
		if eng == nil || eng.Store() == nil {
			writeError(w, http.StatusServiceUnavailable, "memory is disabled")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
