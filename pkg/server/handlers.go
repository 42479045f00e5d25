package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"

	"github.com/cortexkit/cortex/pkg/config"
	"github.com/cortexkit/cortex/pkg/engine"
)

// queryRequest is the body of /query and /query/stream.
type queryRequest struct {
	Text             string `json:"text"`
	Mode             string `json:"mode,omitempty"`
	LoopDepth        int    `json:"loop_depth,omitempty"`
	AllowMemoryWrite *bool  `json:"allow_memory_write,omitempty"`
	UserID           string `json:"user_id,omitempty"`
	SessionID        string `json:"session_id,omitempty"`
}

// queryResponse wraps one processed cycle.
type queryResponse struct {
	JobID   string         `json:"job_id"`
	Result  *engine.Result `json:"result,omitempty"`
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
}

// engineRequest maps the wire request onto an engine request. Memory
// writes default to allowed, matching the consent prompt living on the
// client side of this API.
func (q *queryRequest) engineRequest() *engine.Request {
	allow := true
	if q.AllowMemoryWrite != nil {
		allow = *q.AllowMemoryWrite
	}
	return &engine.Request{
		Query:            q.Text,
		Mode:             config.Mode(q.Mode),
		Iterations:       q.LoopDepth,
		UserID:           q.UserID,
		SessionID:        q.SessionID,
		AllowMemoryWrite: allow,
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "cortex cognitive engine",
		"version": buildVersion(),
		"status":  "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	eng := s.Engine()
	if eng == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not running")
		return
	}
	writeJSON(w, http.StatusOK, eng.Health())
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Mode != "" {
		if _, ok := config.ModeLoopDepth[config.Mode(req.Mode)]; !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid mode %q", req.Mode))
			return
		}
	}

	jobID := uuid.NewString()
	res, err := s.Engine().Process(r.Context(), req.engineRequest())
	if err != nil {
		if errors.Is(err, engine.ErrEmptyQuery) {
			writeJSON(w, http.StatusBadRequest, queryResponse{JobID: jobID, Error: err.Error()})
			return
		}
		// Processing failures are reported in-band so the job id
		// stays visible to the client.
		writeJSON(w, http.StatusOK, queryResponse{JobID: jobID, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{JobID: jobID, Result: res, Success: true})
}

// handleQueryStream processes a query and streams lifecycle frames as
// server-sent events: start, then result or error, then done.
func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	jobID := uuid.NewString()
	writeSSE(w, flusher, map[string]any{"type": "start", "job_id": jobID})

	res, err := s.Engine().Process(r.Context(), req.engineRequest())
	if err != nil {
		writeSSE(w, flusher, map[string]any{"type": "error", "error": err.Error()})
	} else {
		writeSSE(w, flusher, map[string]any{"type": "result", "data": res})
	}
	writeSSE(w, flusher, map[string]any{"type": "done"})
}

func writeSSE(w io.Writer, flusher http.Flusher, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, engine.Agents())
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Config().Sanitized())
}

func (s *Server) handleConfigSchema(w http.ResponseWriter, r *http.Request) {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&config.Config{})
	schema.ID = "https://cortexkit.dev/schemas/config.json"
	schema.Title = "Cortex Configuration Schema"
	schema.Description = "Configuration schema for the cortex engine and server"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(schema); err != nil {
		s.logger.Error("Failed to encode schema", "error", err)
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	eng := s.Engine()
	if eng == nil || eng.Observability() == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics unavailable")
		return
	}
	eng.Observability().MetricsHandler().ServeHTTP(w, r)
}

// buildVersion reports the module version baked into the binary.
func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}
