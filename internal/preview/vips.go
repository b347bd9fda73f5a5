//go:build cgo && !novips

package preview

import (
	"errors"
	"sync"

	"wallpaper-viewer/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	vipsMu        sync.Mutex
	vipsStarted   bool
	vipsAvailable bool
)

// InitVips starts libvips once at process startup. Failure is not fatal:
// webp previews then go through ffmpeg instead.
func InitVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsStarted {
		return
	}
	vipsStarted = true

	defer func() {
		if r := recover(); r != nil {
			logging.Warn("libvips unavailable, webp encoding falls back to ffmpeg: %v", r)
			vipsAvailable = false
		}
	}()

	level := vips.LogLevelError
	if logging.IsDebugEnabled() {
		level = vips.LogLevelWarning
	}
	vips.LoggingSettings(func(domain string, vl vips.LogLevel, msg string) {
		switch vl {
		case vips.LogLevelError, vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}, level)

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheSize:     50 * 1024 * 1024,
	})
	vipsAvailable = true
	logging.Info("libvips initialized for webp preview encoding")
}

// ShutdownVips releases libvips resources at process shutdown.
func ShutdownVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	if vipsAvailable {
		vips.Shutdown()
		vipsAvailable = false
	}
}

func vipsEnabled() bool {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	return vipsAvailable
}

// vipsEncodeWebP loads src, scales and center-crops it to a square of edge
// pixels, and returns it encoded as webp.
func vipsEncodeWebP(src string, edge, quality int) ([]byte, error) {
	if !vipsEnabled() {
		return nil, errors.New("libvips not initialized")
	}

	img, err := vips.NewImageFromFile(src)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	if err := img.ThumbnailWithSize(edge, edge, vips.InterestingCentre, vips.SizeBoth); err != nil {
		return nil, err
	}

	params := vips.NewWebpExportParams()
	params.Quality = quality
	data, _, err := img.ExportWebp(params)
	return data, err
}
