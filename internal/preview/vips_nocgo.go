//go:build !cgo || novips

package preview

import (
	"errors"

	"wallpaper-viewer/internal/logging"
)

// InitVips is a no-op without govips (non-cgo build or the novips tag):
// webp previews go through ffmpeg instead.
func InitVips() {
	logging.Warn("libvips unavailable, webp encoding falls back to ffmpeg: built without libvips support")
}

// ShutdownVips releases nothing in a build without libvips support.
func ShutdownVips() {}

func vipsEnabled() bool { return false }

func vipsEncodeWebP(string, int, int) ([]byte, error) {
	return nil, errors.New("libvips not initialized")
}
