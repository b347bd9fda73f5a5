package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"wallpaper-viewer/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Uptime     string `json:"uptime"`
	WorkshopOK bool   `json:"workshopOk"`
	ConfigOK   bool   `json:"configOk"`
	FFmpegOK   bool   `json:"ffmpegOk"`
	Items      int    `json:"items"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports the state of the workshop directory, the Wallpaper
// Engine config, and the external tool.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	workshopInfo, err := os.Stat(h.workshopDir)
	workshopOK := err == nil && workshopInfo.IsDir()

	cfgInfo, err := os.Stat(filepath.Join(h.wePath, "config.json"))
	configOK := err == nil && cfgInfo.Mode().IsRegular()

	response := HealthResponse{
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		WorkshopOK:   workshopOK,
		ConfigOK:     configOK,
		FFmpegOK:     h.ffmpegOK,
		Items:        len(h.catalog.State().Items),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if workshopOK {
		response.Status = statusHealthy
	} else {
		response.Status = statusDegraded
	}

	w.Header().Set("Content-Type", "application/json")
	if workshopOK {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 only when the workshop directory is readable.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if info, err := os.Stat(h.workshopDir); err == nil && info.IsDir() {
		w.WriteHeader(http.StatusOK)
		writeJSON(w, map[string]string{"status": "ready"})
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{"status": "not_ready"})
	}
}
