package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"wallpaper-viewer/internal/logging"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// BuildInfo contains version and build information.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information.
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Config holds all application configuration.
type Config struct {
	WorkshopDir string
	WEPath      string
	CacheDir    string
	DatabaseDir string
	Port        string
	MetricsPort string

	ScanTTL           time.Duration
	FFmpegPath        string
	FFmpegTimeout     time.Duration
	MoovTailTolerance int64

	LogStaticFiles bool
	MetricsEnabled bool

	// Derived paths
	DatabasePath string
	FaststartDir string
	PreviewDir   string
	AudioDir     string

	// Feature flags based on cache directory availability
	FaststartEnabled bool
	PreviewsEnabled  bool
	AudioEnabled     bool
}

// LoadConfig loads and validates configuration from the environment,
// reading an optional .env file first.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		logging.Debug("loaded .env file")
	}

	printBanner()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	cfg := &Config{
		WorkshopDir:    getEnv("WORKSHOP_PATH", "/data/workshop/content/431960"),
		WEPath:         getEnv("WE_PATH", "/data/wallpaper_engine"),
		CacheDir:       getEnv("CACHE_DIR", "/cache"),
		DatabaseDir:    getEnv("DATABASE_DIR", "/database"),
		Port:           getEnv("PORT", "8080"),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
		FFmpegPath:     getEnv("FFMPEG_PATH", "ffmpeg"),
		LogStaticFiles: getEnvBool("LOG_STATIC_FILES", false),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
	}

	cfg.ScanTTL = getEnvDuration("SCAN_TTL", 5*time.Second)
	cfg.FFmpegTimeout = getEnvDuration("FFMPEG_TIMEOUT", 10*time.Minute)
	cfg.MoovTailTolerance = getEnvInt64("MOOV_TAIL_TOLERANCE", 4*1024*1024)

	logging.Info("  WORKSHOP_PATH:       %s", cfg.WorkshopDir)
	logging.Info("  WE_PATH:             %s", cfg.WEPath)
	logging.Info("  CACHE_DIR:           %s", cfg.CacheDir)
	logging.Info("  DATABASE_DIR:        %s", cfg.DatabaseDir)
	logging.Info("  PORT:                %s", cfg.Port)
	logging.Info("  METRICS_PORT:        %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", cfg.MetricsEnabled)
	logging.Info("  SCAN_TTL:            %s", cfg.ScanTTL)
	logging.Info("  FFMPEG_TIMEOUT:      %s", cfg.FFmpegTimeout)
	logging.Info("  MOOV_TAIL_TOLERANCE: %d", cfg.MoovTailTolerance)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	for _, dir := range []*string{&cfg.WorkshopDir, &cfg.WEPath, &cfg.CacheDir, &cfg.DatabaseDir} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path %s: %w", *dir, err)
		}
		*dir = abs
	}

	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, "watched.db")
	cfg.FaststartDir = filepath.Join(cfg.CacheDir, "faststart")
	cfg.PreviewDir = filepath.Join(cfg.CacheDir, "previews")
	cfg.AudioDir = filepath.Join(cfg.CacheDir, "audio")

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if _, err := os.Stat(cfg.WorkshopDir); err != nil {
		logging.Warn("  Workshop directory issue: %v", err)
	}

	if err := os.MkdirAll(cfg.DatabaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	if err := testWriteAccess(cfg.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable: %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	cfg.FaststartEnabled = setupOptionalDir(cfg.FaststartDir, "faststart")
	cfg.PreviewsEnabled = setupOptionalDir(cfg.PreviewDir, "previews")
	cfg.AudioEnabled = setupOptionalDir(cfg.AudioDir, "audio")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Watched store: ENABLED (required)")
	logging.Info("    Faststart:     %s", enabledString(cfg.FaststartEnabled))
	logging.Info("    Previews:      %s", enabledString(cfg.PreviewsEnabled))
	logging.Info("    Audio:         %s", enabledString(cfg.AudioEnabled))
	logging.Info("    Metrics:       %s", enabledString(cfg.MetricsEnabled))

	return cfg, nil
}

func setupOptionalDir(path, name string) bool {
	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}
	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}
	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogHTTPRoutes logs the registered routes at debug level.
func LogHTTPRoutes(router *mux.Router) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if !logging.IsDebugEnabled() {
		return
	}

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}
		for _, m := range methods {
			logging.Debug("  %-6s %s", m, path)
		}
		return nil
	})
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}
}

// LogServerStarted logs successful server start with endpoint information.
func LogServerStarted(port, metricsPort string, metricsEnabled bool, startupDuration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:  %v", startupDuration)
	logging.Info("  Application:   http://localhost:%s", port)
	if metricsEnabled {
		logging.Info("  Metrics:       http://localhost:%s/metrics", metricsPort)
	} else {
		logging.Info("  Metrics:       DISABLED")
	}
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
}

// LogShutdownInitiated logs shutdown start.
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogFatal logs a fatal error and exits.
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	logging.Info("Wallpaper Viewer")
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Go:         %s on %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean for %s: %q, using default %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration for %s: %q, using default %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logging.Warn("Invalid integer for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
