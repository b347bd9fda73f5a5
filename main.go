package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallpaper-viewer/internal/catalog"
	"wallpaper-viewer/internal/database"
	"wallpaper-viewer/internal/ffmpeg"
	"wallpaper-viewer/internal/handlers"
	"wallpaper-viewer/internal/logging"
	"wallpaper-viewer/internal/middleware"
	"wallpaper-viewer/internal/preview"
	"wallpaper-viewer/internal/startup"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if config.PreviewsEnabled {
		preview.InitVips()
	}

	runner := ffmpeg.NewExec(config.FFmpegPath, config.FFmpegTimeout)
	if err := runner.Available(); err != nil {
		logging.Warn("ffmpeg unavailable, faststart remux and audio extraction disabled: %v", err)
	}

	cat := catalog.New(config.WorkshopDir, config.WEPath, config.ScanTTL)

	h, err := handlers.New(cat, db, runner, config)
	if err != nil {
		startup.LogFatal("Failed to initialize handlers: %v", err)
	}

	router := setupRouter(h)
	startup.LogHTTPRoutes(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	handler := middleware.Logger(loggingConfig)(router)

	if config.MetricsEnabled {
		handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
		go serveMetrics(config.MetricsPort)
	}

	srv := &http.Server{
		Addr:        ":" + config.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// streams may legitimately take minutes; the copier aborts on
		// client disconnect instead
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv)

	startup.LogServerStarted(config.Port, config.MetricsPort, config.MetricsEnabled, time.Since(startTime))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// health and version endpoints
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// media delivery: conditional caching plus single-range support
	media := r.PathPrefix("/media").Subrouter()
	media.HandleFunc("/video/{id}", h.ServeVideo).Methods("GET", "HEAD")
	media.HandleFunc("/audio/{id}", h.ServeAudio).Methods("GET", "HEAD")
	media.HandleFunc("/preview/{id}", h.ServePreview).Methods("GET", "HEAD")

	// browser API; JSON responses go through gzip
	compress := middleware.Compression(middleware.DefaultCompressionConfig())
	api := r.PathPrefix("/api").Subrouter()
	api.Use(compress)
	api.HandleFunc("/scan", h.Scan).Methods("GET")
	api.HandleFunc("/folder_videos", h.FolderVideos).Methods("GET")
	api.HandleFunc("/delete", h.DeleteItems).Methods("POST")
	api.HandleFunc("/playlist", h.Playlist).Methods("POST")
	api.HandleFunc("/faststart/{id}", h.TriggerFaststart).Methods("POST")
	api.HandleFunc("/watched", h.GetWatched).Methods("GET")
	api.HandleFunc("/watched", h.SetWatched).Methods("POST")

	r.HandleFunc("/go/workshop/{id}", h.WorkshopRedirect).Methods("GET")

	// frontend assets
	r.PathPrefix("/").Handler(http.FileServer(http.Dir("./static")))

	return r
}

func serveMetrics(port string) {
	m := http.NewServeMux()
	m.Handle("/metrics", promhttp.Handler())
	logging.Info("Metrics server listening on :%s", port)
	if err := http.ListenAndServe(":"+port, m); err != nil {
		logging.Error("Metrics server error: %v", err)
	}
}

func handleShutdown(srv *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	}
	preview.ShutdownVips()
	logging.Info("Shutdown complete")
}
