package artifact

import (
	"context"
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"wallpaper-viewer/internal/logging"
	"wallpaper-viewer/internal/metrics"

	"golang.org/x/sync/singleflight"
)

// GenerateFunc produces an artifact at tmpPath. On success the manager
// atomically publishes tmpPath over the final cache path. tmpPath carries a
// ".tmp" suffix so a crashed generation never leaves a half-written file
// under the final name.
type GenerateFunc func(ctx context.Context, tmpPath string) error

// Manager implements generate-once-cache-forever for derived media files:
// faststart-remuxed videos, transformed previews, and extracted audio
// tracks. Artifacts are content-addressed by Key and immutable once
// published.
//
// Per-key exclusivity comes from singleflight rather than a per-path mutex
// map, so coordination state exists only while a generation is in flight
// and concurrent distinct artifacts never serialize against each other.
type Manager struct {
	dir   string
	kind  string
	group singleflight.Group
}

// New creates a Manager publishing into dir. kind labels metrics and logs
// ("faststart", "preview", "audio").
func New(dir, kind string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s cache directory: %w", kind, err)
	}
	return &Manager{dir: dir, kind: kind}, nil
}

// Dir returns the cache directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Key derives a deterministic cache file name from source identity and the
// requested variant. The name carries two digest segments, source (name,
// size, mtime) then variant, so Supersede can tell a stale source generation
// apart from a sibling variant of the same source. Any change to the
// source's size or mtime produces a new key, so stale artifacts are simply
// never referenced again.
func Key(id string, st os.FileInfo, variant, ext string) string {
	src := md5.Sum(fmt.Appendf(nil, "%s|%d|%d",
		st.Name(), st.Size(), st.ModTime().Unix()))
	vr := md5.Sum([]byte(variant))
	return fmt.Sprintf("%s-%x-%x%s", id, src, vr, ext)
}

// sourceSegment extracts the source digest from a Key-shaped file name.
func sourceSegment(id, name string) (string, bool) {
	rest, ok := strings.CutPrefix(name, id+"-")
	if !ok {
		return "", false
	}
	src, _, ok := strings.Cut(rest, "-")
	return src, ok
}

// Path returns the on-disk location an artifact with the given key would
// occupy, whether or not it exists yet.
func (m *Manager) Path(key string) string {
	return filepath.Join(m.dir, key)
}

// Materialize returns the path of the artifact for key, generating it first
// if needed. At most one generation per key runs at a time; concurrent
// callers for the same key wait for the in-flight generation and then
// observe the identical file. A failed generation is not retried — the error
// is returned to every waiting caller and the next request starts fresh.
// The second result reports whether the generator actually ran, so callers
// can confine cleanup work to real generations instead of every hit.
func (m *Manager) Materialize(ctx context.Context, key string, generate GenerateFunc) (string, bool, error) {
	final := m.Path(key)

	// fast path, no coordination
	if _, err := os.Stat(final); err == nil {
		metrics.ArtifactCacheHits.WithLabelValues(m.kind).Inc()
		return final, false, nil
	}

	v, err, _ := m.group.Do(key, func() (interface{}, error) {
		// double-check: another caller may have finished between our
		// stat and joining the flight
		if _, err := os.Stat(final); err == nil {
			return false, nil
		}

		metrics.ArtifactGenerations.WithLabelValues(m.kind).Inc()
		logging.Debug("%s cache miss, generating %s", m.kind, key)

		tmp := final + ".tmp"
		if err := generate(ctx, tmp); err != nil {
			if rmErr := os.Remove(tmp); rmErr != nil && !os.IsNotExist(rmErr) {
				logging.Warn("failed to remove partial %s artifact %s: %v", m.kind, tmp, rmErr)
			}
			metrics.ArtifactFailures.WithLabelValues(m.kind).Inc()
			return false, fmt.Errorf("%s generation failed: %w", m.kind, err)
		}

		if err := os.Rename(tmp, final); err != nil {
			return false, fmt.Errorf("failed to publish %s artifact: %w", m.kind, err)
		}
		return true, nil
	})
	if err != nil {
		return "", false, err
	}

	generated, _ := v.(bool)
	return final, generated, nil
}

// Supersede removes cached artifacts for the same id whose source digest
// differs from keep's, reclaiming storage left behind when the source file
// changed. Sibling variants of the still-current source are untouched.
// Called after a successful generation; errors are logged, never propagated.
func (m *Manager) Supersede(id, keep string) {
	keepSrc, ok := sourceSegment(id, keep)
	if !ok {
		return
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		logging.Warn("failed to read %s cache directory: %v", m.kind, err)
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".tmp") {
			// possibly an in-flight generation
			continue
		}
		src, ok := sourceSegment(id, name)
		if !ok || src == keepSrc {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, name)); err != nil {
			logging.Warn("failed to remove superseded %s artifact %s: %v", m.kind, name, err)
			continue
		}
		logging.Debug("removed superseded %s artifact %s", m.kind, name)
	}
}

// Clear deletes every published artifact and returns the bytes freed.
func (m *Manager) Clear() (int64, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read %s cache directory: %w", m.kind, err)
	}

	var freed int64
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, entry.Name())); err != nil {
			logging.Warn("failed to remove %s artifact %s: %v", m.kind, entry.Name(), err)
			continue
		}
		freed += info.Size()
	}
	return freed, nil
}
