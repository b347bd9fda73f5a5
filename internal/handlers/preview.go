package handlers

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"wallpaper-viewer/internal/logging"
	"wallpaper-viewer/internal/metrics"
	"wallpaper-viewer/internal/preview"
	"wallpaper-viewer/internal/sniff"
	"wallpaper-viewer/internal/streaming"
)

const (
	defaultPreviewQuality = 80
	maxPreviewEdge        = 2048
)

// ServePreview serves a workshop item's preview image, optionally resized
// to a square and transcoded. Images carry no range support; the response
// varies on Accept because fmt=auto negotiates webp.
func (h *Handlers) ServePreview(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	item, ok := h.catalog.Lookup(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Vary", "Accept")

	path := item.PreviewPath
	mime := sniff.File(path).MimeType
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/gif"
	}

	opts, transform := previewOptions(r)
	if transform && h.previews != nil {
		rendered, err := h.previews.Render(r.Context(), id, item.PreviewPath, opts)
		if err == nil {
			path = rendered
			mime = opts.Mime()
		} else {
			logging.Warn("preview transform failed for %s, serving original: %v", id, err)
		}
	}

	st, err := os.Stat(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	identity := identityFor(st)
	writeValidators(w, identity)
	if notModified(r, identity) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		logging.Error("failed to open %s: %v", path, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.FormatInt(st.Size(), 10))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	n, err := streaming.CopyFile(r.Context(), w, f, st.Size(), h.stream)
	metrics.HTTPBytesStreamed.WithLabelValues("preview").Add(float64(n))
	logStreamResult("preview", path, err)
}

// previewOptions parses s/fmt/q query parameters. The second return is
// false when the request asks for the untouched original.
func previewOptions(r *http.Request) (preview.Options, bool) {
	q := r.URL.Query()

	edge, _ := strconv.Atoi(q.Get("s"))
	if edge < 0 {
		edge = 0
	}
	if edge > maxPreviewEdge {
		edge = maxPreviewEdge
	}

	format := strings.ToLower(q.Get("fmt"))
	switch format {
	case "webp", "jpeg", "png":
	case "jpg":
		format = "jpeg"
	case "", "auto":
		if edge == 0 {
			// no resize and no explicit format: serve the original
			return preview.Options{}, false
		}
		if strings.Contains(r.Header.Get("Accept"), "image/webp") {
			format = "webp"
		} else {
			format = "jpeg"
		}
	default:
		return preview.Options{}, false
	}

	quality, err := strconv.Atoi(q.Get("q"))
	if err != nil || quality < 10 || quality > 100 {
		quality = defaultPreviewQuality
	}
	if edge == 0 {
		edge = 512
	}

	return preview.Options{
		Edge:    edge,
		Format:  preview.Format(format),
		Quality: quality,
	}, true
}
