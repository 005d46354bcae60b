// Package api holds the JSON handlers backed by the action journal.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ayusman/handmouse/internal/store"
)

// MaxListLimit caps the limit query parameter.
const MaxListLimit = 1000

// ActionHandler serves the journaled actions.
type ActionHandler struct {
	store *store.Store
}

// NewActionHandler creates a new ActionHandler with the given store.
func NewActionHandler(s *store.Store) *ActionHandler {
	return &ActionHandler{store: s}
}

type listActionsResponse struct {
	Actions []*store.Action `json:"actions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP handles GET /api/actions?limit=N, newest first.
func (h *ActionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxListLimit)
	}

	actions, err := h.store.Actions().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list actions")
		return
	}
	if actions == nil {
		actions = []*store.Action{}
	}

	writeJSON(w, http.StatusOK, listActionsResponse{Actions: actions})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
