package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"wallpaper-viewer/internal/logging"
)

// Runner abstracts the external transcoding tool so the cache-generation
// logic is testable without invoking a real binary.
type Runner interface {
	// FaststartRemux stream-copies src into dst with the moov box
	// relocated to the front. No re-encoding takes place.
	FaststartRemux(ctx context.Context, src, dst string) error

	// ExtractAudio writes the first audio track of src into dst as an
	// audio/mp4 container. Stream copy is attempted first; on failure the
	// track is re-encoded to AAC at a fixed bitrate. Both paths force
	// presentation timestamps to start at zero.
	ExtractAudio(ctx context.Context, src, dst string) error

	// AnimatedWebP re-encodes an animated source into a square webp of
	// the given edge, preserving per-frame durations.
	AnimatedWebP(ctx context.Context, src, dst string, edge, quality int) error
}

// Exec runs ffmpeg as a child process. Every invocation is bounded by the
// configured timeout so a stuck process cannot stall a cache key forever.
type Exec struct {
	binary  string
	timeout time.Duration
}

// NewExec returns an Exec runner. An empty binary defaults to "ffmpeg";
// a zero timeout defaults to 10 minutes.
func NewExec(binary string, timeout time.Duration) *Exec {
	if binary == "" {
		binary = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Exec{binary: binary, timeout: timeout}
}

// Available reports whether the configured binary can be executed.
func (e *Exec) Available() error {
	path, err := exec.LookPath(e.binary)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", e.binary)
	}
	logging.Debug("ffmpeg path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, e.binary, "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get %s version: %w", e.binary, err)
	}
	if lines := strings.SplitN(string(out), "\n", 2); len(lines) > 0 {
		logging.Debug("ffmpeg version: %s", strings.TrimSpace(lines[0]))
	}
	return nil
}

func (e *Exec) run(ctx context.Context, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("ffmpeg timed out after %v", e.timeout)
		}
		return fmt.Errorf("ffmpeg error: %w - %s", err, lastLine(stderr.String()))
	}

	logging.Debug("ffmpeg %s finished in %v", args[len(args)-1], time.Since(start))
	return nil
}

// lastLine trims ffmpeg's noisy stderr down to its final line, which holds
// the actual failure reason.
func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndexByte(s, '\n'); idx != -1 {
		s = s[idx+1:]
	}
	return s
}

// FaststartRemux implements Runner.
func (e *Exec) FaststartRemux(ctx context.Context, src, dst string) error {
	return e.run(ctx,
		"-y",
		"-i", src,
		"-c", "copy",
		"-movflags", "+faststart",
		"-f", "mp4",
		dst,
	)
}

// ExtractAudio implements Runner.
func (e *Exec) ExtractAudio(ctx context.Context, src, dst string) error {
	base := []string{
		"-y",
		"-i", src,
		"-vn",
		"-map", "0:a:0",
	}
	tail := []string{
		// players report playback position relative to the first pts,
		// so it must be zero
		"-avoid_negative_ts", "make_zero",
		"-muxpreload", "0",
		"-muxdelay", "0",
		"-movflags", "+faststart",
		"-f", "mp4",
		dst,
	}

	// lossless first
	copyArgs := append(append([]string{}, base...), "-c:a", "copy")
	copyArgs = append(copyArgs, tail...)
	if err := e.run(ctx, copyArgs...); err == nil {
		return nil
	} else {
		logging.Debug("audio stream copy failed for %s, re-encoding: %v", src, err)
	}

	encArgs := append(append([]string{}, base...), "-c:a", "aac", "-b:a", "192k")
	encArgs = append(encArgs, tail...)
	return e.run(ctx, encArgs...)
}

// AnimatedWebP implements Runner.
func (e *Exec) AnimatedWebP(ctx context.Context, src, dst string, edge, quality int) error {
	es := strconv.Itoa(edge)
	// shorter edge scaled to the requested size, then a centered square crop
	filter := fmt.Sprintf("scale=%s:%s:force_original_aspect_ratio=increase,crop=%s:%s", es, es, es, es)
	return e.run(ctx,
		"-y",
		"-i", src,
		"-vf", filter,
		"-loop", "0",
		"-c:v", "libwebp",
		"-quality", strconv.Itoa(quality),
		"-f", "webp",
		dst,
	)
}
