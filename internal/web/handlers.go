package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/slacksift/slacksift/internal/search"
	"github.com/slacksift/slacksift/internal/workspace"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiErrorResponse{
		Error: apiError{
			Code:    code,
			Message: message,
		},
	})
}

// writeReadError maps read-path failures onto API errors.
func writeReadError(w http.ResponseWriter, err error) {
	if errors.Is(err, workspace.ErrIndexNotFound) {
		writeAPIError(w, http.StatusNotFound, "INDEX_NOT_FOUND", err.Error())
		return
	}
	writeAPIError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
}

func (s *Server) guardGET(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return false
	}
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return false
	}
	return true
}

// parseAfter accepts a unix timestamp or a YYYY-MM-DD date.
func parseAfter(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

func parseLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !s.guardGET(w, r) {
		return
	}
	if err := s.handle.RequireIndex(); err != nil {
		writeReadError(w, err)
		return
	}

	params := r.URL.Query()
	after, err := parseAfter(params.Get("after"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "after must be a unix timestamp or YYYY-MM-DD")
		return
	}

	query := search.Query{
		Text:         params.Get("q"),
		From:         params.Get("from"),
		After:        after,
		Limit:        parseLimit(params.Get("limit")),
		Context:      parseLimit(params.Get("context")),
		RefreshFirst: params.Get("refresh") == "true",
	}
	results, err := s.handle.Engine.Search(r.Context(), query)
	if err != nil {
		writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if !s.guardGET(w, r) {
		return
	}
	if err := s.handle.RequireIndex(); err != nil {
		writeReadError(w, err)
		return
	}

	msgs, err := s.handle.Engine.Recent(r.Context(), parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	if !s.guardGET(w, r) {
		return
	}
	if err := s.handle.RequireIndex(); err != nil {
		writeReadError(w, err)
		return
	}

	contacts, err := s.handle.Engine.Contacts(r.Context(), parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contacts": contacts})
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	if !s.guardGET(w, r) {
		return
	}
	if err := s.handle.RequireIndex(); err != nil {
		writeReadError(w, err)
		return
	}

	convs, err := s.handle.Engine.Conversations(r.Context(), parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	if !s.guardGET(w, r) {
		return
	}
	if err := s.handle.RequireIndex(); err != nil {
		writeReadError(w, err)
		return
	}

	params := r.URL.Query()
	name := strings.TrimSpace(params.Get("name"))
	if name == "" {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required")
		return
	}
	after, err := parseAfter(params.Get("after"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "after must be a unix timestamp or YYYY-MM-DD")
		return
	}

	msgs, err := s.handle.Engine.Thread(r.Context(), name, after, parseLimit(params.Get("limit")))
	if err != nil {
		writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.guardGET(w, r) {
		return
	}

	st, err := s.handle.Stats()
	if err != nil {
		writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workspace": map[string]string{
			"id":   st.WorkspaceID,
			"name": st.WorkspaceName,
		},
		"stats":   st.Stats,
		"cursors": len(st.Cursors),
	})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	var req struct {
		Mode string `json:"mode"`
	}
	if r.Body != nil {
		// An empty body means an incremental sync.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	var full bool
	switch req.Mode {
	case "", "update":
		full = false
	case "full":
		full = true
	default:
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", `mode must be "full" or "update"`)
		return
	}

	if !s.startSync(full) {
		writeAPIError(w, http.StatusConflict, "SYNC_RUNNING", "a sync is already running")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"started": true, "full": full})
}
