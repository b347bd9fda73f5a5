package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"wallpaper-viewer/internal/logging"
	"wallpaper-viewer/internal/mp4"
)

// FaststartResult is the JSON body of the explicit remux endpoint. Before
// and After are the moov box end offsets of the source and the remuxed
// file; a successful remux moves the offset toward the front.
type FaststartResult struct {
	OK      bool   `json:"ok"`
	Skipped bool   `json:"skipped"`
	Before  *int64 `json:"before,omitempty"`
	After   *int64 `json:"after,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TriggerFaststart remuxes a single item on demand. It is idempotent: a
// per-id record short-circuits repeat invocations, and items that do not
// need a remux are reported as skipped. This is the only endpoint that
// surfaces a generation failure to the caller.
func (h *Handlers) TriggerFaststart(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	item, ok := h.catalog.Lookup(id)
	if !ok {
		writeJSONError(w, "unknown id", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if h.faststart == nil {
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, FaststartResult{Error: "faststart cache unavailable"})
		return
	}

	if _, done := h.faststartDone.Load(id); done {
		writeJSON(w, FaststartResult{OK: true, Skipped: true})
		return
	}

	if !isQuickTimeFamily(item.VideoPath) || !mp4.MoovNearEnd(item.VideoPath, h.moovTolerance) {
		h.faststartDone.Store(id, struct{}{})
		writeJSON(w, FaststartResult{OK: true, Skipped: true})
		return
	}

	before := moovEndOffset(item.VideoPath)

	path, err := h.faststartArtifact(r.Context(), item)
	if err != nil {
		logging.Error("explicit faststart remux failed for %s: %v", id, err)
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, FaststartResult{Before: before, Error: err.Error()})
		return
	}

	h.faststartDone.Store(id, struct{}{})
	writeJSON(w, FaststartResult{
		OK:     true,
		Before: before,
		After:  moovEndOffset(path),
	})
}

// moovEndOffset reports where the moov box ends, or nil when the file
// cannot be parsed.
func moovEndOffset(path string) *int64 {
	end, err := mp4.MoovEnd(path)
	if err != nil {
		return nil
	}
	return &end
}
