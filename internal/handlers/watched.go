package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"wallpaper-viewer/internal/logging"
)

// GetWatched returns which of the queried ids are marked watched.
// Ids arrive as a comma-separated list in the ids query parameter.
func (h *Handlers) GetWatched(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	watched, err := h.db.Watched(r.Context(), ids)
	if err != nil {
		logging.Error("watched query failed: %v", err)
		writeJSONError(w, "database error", http.StatusInternalServerError)
		return
	}
	if watched == nil {
		watched = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string][]string{"watched": watched})
}

type setWatchedRequest struct {
	IDs     []string `json:"ids"`
	Watched *bool    `json:"watched"` // absent means mark watched
}

// SetWatched marks or unmarks the given ids as watched.
func (h *Handlers) SetWatched(w http.ResponseWriter, r *http.Request) {
	var req setWatchedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	watched := req.Watched == nil || *req.Watched
	count, err := h.db.SetWatched(r.Context(), req.IDs, watched)
	if err != nil {
		logging.Error("watched update failed: %v", err)
		writeJSONError(w, "database error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"ok": true, "count": count})
}
