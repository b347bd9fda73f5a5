package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"wallpaper-viewer/internal/artifact"
	"wallpaper-viewer/internal/catalog"
	"wallpaper-viewer/internal/httprange"
	"wallpaper-viewer/internal/logging"
	"wallpaper-viewer/internal/metrics"
	"wallpaper-viewer/internal/mp4"
	"wallpaper-viewer/internal/sniff"
	"wallpaper-viewer/internal/streaming"
)

// quickTimeExts are the container extensions eligible for faststart remux.
var quickTimeExts = map[string]bool{
	".mp4": true,
	".m4v": true,
	".mov": true,
	".qt":  true,
}

func isQuickTimeFamily(path string) bool {
	return quickTimeExts[strings.ToLower(filepath.Ext(path))]
}

// ServeVideo streams a workshop item's video with full single-range
// support. MP4-family sources whose moov box sits at the tail are
// transparently substituted with a cached faststart remux.
func (h *Handlers) ServeVideo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	item, ok := h.catalog.Lookup(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	path := item.VideoPath
	if h.faststart != nil && isQuickTimeFamily(path) && mp4.MoovNearEnd(path, h.moovTolerance) {
		if cached, err := h.faststartArtifact(r.Context(), item); err == nil {
			path = cached
		} else {
			logging.Warn("faststart remux failed for %s, serving original: %v", id, err)
		}
	}

	res := sniff.File(path)
	w.Header().Set("X-Video-Container", string(res.Container))
	w.Header().Set("X-Video-Mime", res.MimeType)
	if video, audio := sniff.Codecs(path); len(video) > 0 || len(audio) > 0 {
		w.Header().Set("X-Video-Codecs", sniff.CodecList(video, audio))
	}

	h.serveRange(w, r, path, res.MimeType, "video")
}

// ServeAudio streams the extracted audio track of a workshop item as
// audio/mp4. When extraction is unavailable or fails, the unprocessed
// video file is served instead so the endpoint never hard-errors.
func (h *Handlers) ServeAudio(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	item, ok := h.catalog.Lookup(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	path := item.VideoPath
	mime := sniff.File(path).MimeType

	if h.audio != nil {
		if extracted, err := h.audioArtifact(r.Context(), item); err == nil {
			path = extracted
			mime = "audio/mp4"
		} else {
			logging.Warn("audio extraction failed for %s, serving source: %v", id, err)
		}
	}

	h.serveRange(w, r, path, mime, "audio")
}

// faststartArtifact returns the path of the cached faststart remux for the
// item, generating it on first use.
func (h *Handlers) faststartArtifact(ctx context.Context, item *catalog.Item) (string, error) {
	st, err := os.Stat(item.VideoPath)
	if err != nil {
		return "", err
	}
	key := artifact.Key(item.ID, st, "faststart", ".mp4")
	path, generated, err := h.faststart.Materialize(ctx, key, func(ctx context.Context, tmpPath string) error {
		return h.runner.FaststartRemux(ctx, item.VideoPath, tmpPath)
	})
	if err != nil {
		return "", err
	}
	if generated {
		h.faststart.Supersede(item.ID, key)
	}
	return path, nil
}

// audioArtifact returns the path of the cached audio extraction for the
// item, generating it on first use.
func (h *Handlers) audioArtifact(ctx context.Context, item *catalog.Item) (string, error) {
	st, err := os.Stat(item.VideoPath)
	if err != nil {
		return "", err
	}
	key := artifact.Key(item.ID, st, "audio", ".m4a")
	path, generated, err := h.audio.Materialize(ctx, key, func(ctx context.Context, tmpPath string) error {
		return h.runner.ExtractAudio(ctx, item.VideoPath, tmpPath)
	})
	if err != nil {
		return "", err
	}
	if generated {
		h.audio.Supersede(item.ID, key)
	}
	return path, nil
}

// serveRange is the shared conditional + range state machine for video and
// audio responses.
func (h *Handlers) serveRange(w http.ResponseWriter, r *http.Request, path, mime, kind string) {
	st, err := os.Stat(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	size := st.Size()

	identity := identityFor(st)
	writeValidators(w, identity)
	w.Header().Set("Accept-Ranges", "bytes")

	if notModified(r, identity) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	window, err := httprange.Parse(r.Header.Get("Range"), size)
	if err != nil {
		w.Header().Set("Content-Range", httprange.Unsatisfied(size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
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

	if window == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		n, err := streaming.CopyFile(r.Context(), w, f, size, h.stream)
		metrics.HTTPBytesStreamed.WithLabelValues(kind).Add(float64(n))
		logStreamResult(kind, path, err)
		return
	}

	w.Header().Set("Content-Range", window.ContentRange(size))
	w.Header().Set("Content-Length", strconv.FormatInt(window.Length(), 10))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		return
	}
	n, err := streaming.CopyRange(r.Context(), w, f, window.Start, window.Length(), h.stream)
	metrics.HTTPBytesStreamed.WithLabelValues(kind).Add(float64(n))
	logStreamResult(kind, path, err)
}

func logStreamResult(kind, path string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, streaming.ErrClientGone):
		logging.Debug("%s stream of %s stopped: client disconnected", kind, path)
	default:
		logging.Warn("%s stream of %s failed: %v", kind, path, err)
	}
}
