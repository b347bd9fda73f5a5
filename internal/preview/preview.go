package preview

import (
	"context"
	"fmt"
	"image"
	"image/gif"
	"os"
	"path/filepath"
	"strings"

	"wallpaper-viewer/internal/artifact"
	"wallpaper-viewer/internal/ffmpeg"
	"wallpaper-viewer/internal/logging"

	// decoders for the formats workshop previews come in
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP decode
)

// Format is the requested output encoding.
type Format string

const (
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

var formatExt = map[Format]string{
	FormatWebP: ".webp",
	FormatJPEG: ".jpg",
	FormatPNG:  ".png",
}

var formatMime = map[Format]string{
	FormatWebP: "image/webp",
	FormatJPEG: "image/jpeg",
	FormatPNG:  "image/png",
}

// Options selects the preview variant: a square of Edge pixels in the given
// format. Quality applies to lossy formats only.
type Options struct {
	Edge    int
	Format  Format
	Quality int
}

func (o Options) variant() string {
	return fmt.Sprintf("edge=%d&fmt=%s&q=%d", o.Edge, o.Format, o.Quality)
}

// Mime returns the MIME type of the rendered output.
func (o Options) Mime() string {
	return formatMime[o.Format]
}

// Transformer renders preview image variants into the artifact cache.
// Static images go through imaging (vips for webp encode when libvips is
// present); animated sources targeting webp are re-encoded frame by frame
// through ffmpeg so per-frame durations survive.
type Transformer struct {
	cache  *artifact.Manager
	runner ffmpeg.Runner
}

// NewTransformer wires the preview pipeline to its cache and tool runner.
func NewTransformer(cache *artifact.Manager, runner ffmpeg.Runner) *Transformer {
	return &Transformer{cache: cache, runner: runner}
}

// Render returns the path of the requested variant, generating and caching
// it on first use. The source is identified by id for cache naming; any
// change to its size or mtime lands on a new key.
func (t *Transformer) Render(ctx context.Context, id, srcPath string, opts Options) (string, error) {
	st, err := os.Stat(srcPath)
	if err != nil {
		return "", fmt.Errorf("preview source not accessible: %w", err)
	}

	key := artifact.Key(id, st, opts.variant(), formatExt[opts.Format])
	path, generated, err := t.cache.Materialize(ctx, key, func(ctx context.Context, tmp string) error {
		return t.generate(ctx, srcPath, tmp, opts)
	})
	if err != nil {
		return "", err
	}

	if generated {
		t.cache.Supersede(id, key)
	}
	return path, nil
}

func (t *Transformer) generate(ctx context.Context, srcPath, tmp string, opts Options) error {
	if opts.Format == FormatWebP && isAnimated(srcPath) {
		return t.runner.AnimatedWebP(ctx, srcPath, tmp, opts.Edge, opts.Quality)
	}

	if opts.Format == FormatWebP {
		if data, err := vipsEncodeWebP(srcPath, opts.Edge, opts.Quality); err == nil {
			return os.WriteFile(tmp, data, 0o644)
		} else if vipsEnabled() {
			logging.Debug("vips webp encode failed for %s, using ffmpeg: %v", srcPath, err)
		}
		// single-frame export through the same tool path as animations
		return t.runner.AnimatedWebP(ctx, srcPath, tmp, opts.Edge, opts.Quality)
	}

	img, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", srcPath, err)
	}

	thumb := squareCrop(img, opts.Edge)

	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer out.Close()

	switch opts.Format {
	case FormatJPEG:
		return imaging.Encode(out, thumb, imaging.JPEG, imaging.JPEGQuality(opts.Quality))
	case FormatPNG:
		return imaging.Encode(out, thumb, imaging.PNG)
	default:
		return fmt.Errorf("unsupported preview format %q", opts.Format)
	}
}

// squareCrop scales so the shorter edge equals edge, then center-crops to an
// exact square. Aspect ratio is never distorted before the crop.
func squareCrop(img image.Image, edge int) image.Image {
	return imaging.Fill(img, edge, edge, imaging.Center, imaging.Lanczos)
}

// isAnimated reports whether the source is a multi-frame GIF. Other animated
// containers are not produced by the workshop.
func isAnimated(path string) bool {
	if strings.ToLower(filepath.Ext(path)) != ".gif" {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	g, err := gif.DecodeAll(f)
	if err != nil {
		return false
	}
	return len(g.Image) > 1
}
