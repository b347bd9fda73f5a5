package sniff

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"wallpaper-viewer/internal/logging"
)

// headerLen is how much of the file is read for container classification.
const headerLen = 4096

// Container identifies the detected container family of a media file.
type Container string

const (
	ContainerWebM      Container = "webm"
	ContainerMatroska  Container = "matroska"
	ContainerQuickTime Container = "quicktime"
	ContainerMP4       Container = "mp4"
	ContainerAVI       Container = "avi"
	ContainerFLV       Container = "flv"
	ContainerOgg       Container = "ogg"
	ContainerMPEGTS    Container = "mpegts"
	ContainerMPEGPS    Container = "mpegps"
	ContainerUnknown   Container = "unknown"
)

// Result describes a sniffed media file.
type Result struct {
	Container Container
	MimeType  string
}

var extensionMimes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".flv":  "video/x-flv",
	".ogv":  "video/ogg",
	".ogg":  "video/ogg",
	".ts":   "video/mp2t",
	".mpg":  "video/mpeg",
	".mpeg": "video/mpeg",
	".gif":  "image/gif",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// File reads the first bytes of path and classifies its true container,
// independent of file extension. Extensions on user-downloaded content are
// unreliable; playback correctness depends on the real MIME type.
func File(path string) Result {
	f, err := os.Open(path)
	if err != nil {
		return extensionFallback(path)
	}
	defer f.Close()

	header := make([]byte, headerLen)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return extensionFallback(path)
	}
	return Classify(header[:n], path)
}

// Classify applies the signature table to an already-read header.
// The path is only consulted for the extension fallback.
func Classify(header []byte, path string) Result {
	if r, ok := classifyHeader(header); ok {
		return r
	}
	return extensionFallback(path)
}

func classifyHeader(h []byte) (Result, bool) {
	if len(h) < 4 {
		return Result{}, false
	}

	// EBML: WebM and Matroska share the same magic, the doctype string
	// inside the header tells them apart.
	if h[0] == 0x1A && h[1] == 0x45 && h[2] == 0xDF && h[3] == 0xA3 {
		switch {
		case bytes.Contains(h, []byte("webm")):
			return Result{ContainerWebM, "video/webm"}, true
		case bytes.Contains(h, []byte("matroska")):
			return Result{ContainerMatroska, "video/x-matroska"}, true
		default:
			return Result{ContainerMatroska, "video/x-matroska"}, true
		}
	}

	// ISO base media: size(4) + "ftyp" + brand(4)
	if len(h) >= 12 && bytes.Equal(h[4:8], []byte("ftyp")) {
		if bytes.Equal(h[8:12], []byte("qt  ")) {
			return Result{ContainerQuickTime, "video/quicktime"}, true
		}
		return Result{ContainerMP4, "video/mp4"}, true
	}
	// Some muxers emit junk before the ftyp box
	if idx := bytes.Index(h[:min(len(h), 64)], []byte("ftyp")); idx > 0 {
		return Result{ContainerMP4, "video/mp4"}, true
	}

	if len(h) >= 12 && bytes.Equal(h[0:4], []byte("RIFF")) && bytes.Equal(h[8:12], []byte("AVI ")) {
		return Result{ContainerAVI, "video/x-msvideo"}, true
	}

	if len(h) >= 3 && bytes.Equal(h[0:3], []byte("FLV")) {
		return Result{ContainerFLV, "video/x-flv"}, true
	}

	if bytes.Equal(h[0:4], []byte("OggS")) {
		return Result{ContainerOgg, "video/ogg"}, true
	}

	// MPEG-TS sync byte
	if h[0] == 0x47 {
		return Result{ContainerMPEGTS, "video/mp2t"}, true
	}

	// MPEG program stream pack header
	if h[0] == 0x00 && h[1] == 0x00 && h[2] == 0x01 && h[3] == 0xBA {
		return Result{ContainerMPEGPS, "video/mpeg"}, true
	}

	return Result{}, false
}

func extensionFallback(path string) Result {
	ext := strings.ToLower(filepath.Ext(path))
	if mime, ok := extensionMimes[ext]; ok {
		logging.Debug("sniff: falling back to extension %s for %s", ext, path)
		return Result{ContainerUnknown, mime}
	}
	return Result{ContainerUnknown, "application/octet-stream"}
}
