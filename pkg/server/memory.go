package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cortexkit/cortex/pkg/memory"
)

const defaultTailLength = 20

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

func (s *Server) handleMemorySearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	k := req.K
	if k <= 0 {
		k = s.Config().Memory.TopK
	}

	hits, err := s.Engine().Store().Retrieve(r.Context(), req.Query, k)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if hits == nil {
		hits = []memory.Hit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "hits": hits})
}

// handleMemoryRetrieve returns plain snippet strings, the same view the
// engine injects into reasoner prompts.
func (s *Server) handleMemoryRetrieve(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	k := req.K
	if k <= 0 {
		k = s.Config().Memory.TopK
	}

	snippets, err := s.Engine().Store().RetrieveSnippets(r.Context(), req.Query, k)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snippets == nil {
		snippets = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "snippets": snippets})
}

type writeMemoryRequest struct {
	Kind       string   `json:"kind"`
	Text       string   `json:"text"`
	Tags       []string `json:"tags,omitempty"`
	Importance float64  `json:"importance,omitempty"`
	Consent    bool     `json:"consent"`
	Privacy    string   `json:"privacy,omitempty"`
}

func (s *Server) handleMemoryWrite(w http.ResponseWriter, r *http.Request) {
	var req writeMemoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !memory.ValidKind(memory.Kind(req.Kind)) {
		writeError(w, http.StatusBadRequest, "invalid memory kind "+strconv.Quote(req.Kind))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	id, err := s.Engine().Store().Write(r.Context(), memory.WriteRequest{
		Kind:       memory.Kind(req.Kind),
		Text:       req.Text,
		Tags:       req.Tags,
		Importance: req.Importance,
		Consent:    req.Consent,
		Privacy:    memory.PrivacyLevel(req.Privacy),
	})
	if err != nil {
		if errors.Is(err, memory.ErrConsentRequired) {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

type eventWriteRequest struct {
	SessionID string         `json:"session_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
}

func (s *Server) handleEventWrite(w http.ResponseWriter, r *http.Request) {
	var req eventWriteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Kind == "" {
		writeError(w, http.StatusBadRequest, "event kind is required")
		return
	}

	sessionID, err := s.Engine().Store().LogEvent(r.Context(), req.SessionID, req.UserID, req.Kind, req.Payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "session_id": sessionID})
}

func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	events, err := s.Engine().Store().GetSessionEvents(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []memory.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "events": events})
}

type sessionDeleteRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	var req sessionDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	deleted, err := s.Engine().Store().DeleteSession(r.Context(), req.SessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": deleted})
}

func (s *Server) handleTail(w http.ResponseWriter, r *http.Request) {
	n := defaultTailLength
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = parsed
	}

	events, err := s.Engine().Store().GetTail(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []memory.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "events": events})
}

func (s *Server) handleWMGet(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	entries, err := s.Engine().Store().WMGet(r.Context(), userID, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "entries": entries})
}

type wmAddRequest struct {
	UserID  string   `json:"user_id"`
	Entries []string `json:"entries"`
}

func (s *Server) handleWMAdd(w http.ResponseWriter, r *http.Request) {
	var req wmAddRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if len(req.Entries) == 0 {
		writeError(w, http.StatusBadRequest, "entries are required")
		return
	}

	if err := s.Engine().Store().WMAdd(r.Context(), req.UserID, req.Entries, 0); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type wmClearRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleWMClear(w http.ResponseWriter, r *http.Request) {
	var req wmClearRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	cleared, err := s.Engine().Store().WMClear(r.Context(), req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "cleared": cleared})
}

type proceduralRegisterRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Steps       []string `json:"steps,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

func (s *Server) handleProceduralRegister(w http.ResponseWriter, r *http.Request) {
	var req proceduralRegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	id, err := s.Engine().Store().RegisterProcedural(r.Context(), req.Name, req.Description, req.Steps, req.Tags)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

func (s *Server) handleProceduralList(w http.ResponseWriter, r *http.Request) {
	items, err := s.Engine().Store().ListProcedural(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []memory.ProceduralItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "items": items})
}

func (s *Server) handleRebuildIndex(w http.ResponseWriter, r *http.Request) {
	reindexed, err := s.Engine().Store().RebuildIndex(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "reindexed": reindexed})
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	consolidated, err := s.Engine().Store().Consolidate(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "consolidated": consolidated})
}

func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	pruned, err := s.Engine().Store().Prune(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "pruned": pruned})
}

type memoryDeleteRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleMemoryDelete(w http.ResponseWriter, r *http.Request) {
	var req memoryDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.deleteMemory(w, r, req.ID)
}

func (s *Server) handleMemoryDeleteByID(w http.ResponseWriter, r *http.Request) {
	s.deleteMemory(w, r, chi.URLParam(r, "id"))
}

func (s *Server) deleteMemory(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := s.Engine().Store().Delete(r.Context(), id); err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
