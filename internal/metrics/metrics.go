package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallpaper_viewer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wallpaper_viewer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wallpaper_viewer_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	HTTPBytesStreamed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallpaper_viewer_http_bytes_streamed_total",
			Help: "Total media bytes written to clients",
		},
		[]string{"kind"}, // "video", "audio", "preview"
	)
)

// Derived-artifact cache metrics
var (
	ArtifactCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallpaper_viewer_artifact_cache_hits_total",
			Help: "Cache hits served without generation",
		},
		[]string{"kind"},
	)

	ArtifactGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallpaper_viewer_artifact_generations_total",
			Help: "Artifact generations started",
		},
		[]string{"kind"},
	)

	ArtifactFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallpaper_viewer_artifact_failures_total",
			Help: "Artifact generations that failed",
		},
		[]string{"kind"},
	)
)

// Catalog metrics
var (
	CatalogScans = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wallpaper_viewer_catalog_scans_total",
			Help: "Full workshop directory scans performed",
		},
	)

	CatalogItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wallpaper_viewer_catalog_items",
			Help: "Video items found by the most recent scan",
		},
	)

	CatalogScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wallpaper_viewer_catalog_scan_duration_seconds",
			Help:    "Workshop scan duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)
