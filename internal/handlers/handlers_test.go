package handlers

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"wallpaper-viewer/internal/catalog"
	"wallpaper-viewer/internal/database"
	"wallpaper-viewer/internal/startup"
)

// fakeRunner stands in for ffmpeg and writes marker bytes.
type fakeRunner struct {
	remuxCalls   int
	audioCalls   int
	failRemux    bool
	failAudio    bool
	remuxPayload []byte
}

func (f *fakeRunner) FaststartRemux(_ context.Context, _, dst string) error {
	f.remuxCalls++
	if f.failRemux {
		return errors.New("remux exploded")
	}
	payload := f.remuxPayload
	if payload == nil {
		payload = frontMoovMP4()
	}
	return os.WriteFile(dst, payload, 0o644)
}

func (f *fakeRunner) ExtractAudio(_ context.Context, _, dst string) error {
	f.audioCalls++
	if f.failAudio {
		return errors.New("no audio track")
	}
	return os.WriteFile(dst, []byte("extracted m4a bytes"), 0o644)
}

func (f *fakeRunner) AnimatedWebP(_ context.Context, _, dst string, _, _ int) error {
	return os.WriteFile(dst, []byte("webp frames"), 0o644)
}

func mp4Box(typ string, payload []byte) []byte {
	b := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(b, uint32(8+len(payload)))
	copy(b[4:], typ)
	copy(b[8:], payload)
	return b
}

// tailMoovMP4 builds a minimal MP4 whose moov box sits at the very end.
func tailMoovMP4() []byte {
	var out []byte
	out = append(out, mp4Box("ftyp", []byte("isomiso2"))...)
	out = append(out, mp4Box("mdat", bytes.Repeat([]byte{0xAB}, 64))...)
	out = append(out, mp4Box("moov", bytes.Repeat([]byte{0xCD}, 32))...)
	return out
}

// frontMoovMP4 builds the faststart-shaped counterpart.
func frontMoovMP4() []byte {
	var out []byte
	out = append(out, mp4Box("ftyp", []byte("isomiso2"))...)
	out = append(out, mp4Box("moov", bytes.Repeat([]byte{0xCD}, 32))...)
	out = append(out, mp4Box("mdat", bytes.Repeat([]byte{0xAB}, 64))...)
	return out
}

type testEnv struct {
	h        *Handlers
	runner   *fakeRunner
	workshop string
	wePath   string
}

type envOptions struct {
	faststart bool
	audio     bool
	previews  bool
}

// writeTestItem creates a workshop entry whose video is a tail-moov MP4.
func writeTestItem(t *testing.T, workshop, id, title, rating string, video []byte) {
	t.Helper()
	dir := filepath.Join(workshop, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	proj, _ := json.Marshal(map[string]string{
		"title":         title,
		"preview":       "preview.gif",
		"file":          "video.mp4",
		"type":          "video",
		"contentrating": rating,
	})
	files := map[string][]byte{
		"project.json": proj,
		"video.mp4":    video,
		"preview.gif":  append([]byte("GIF89a"), bytes.Repeat([]byte{0x01}, 32)...),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), content, 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	workshop := t.TempDir()
	wePath := t.TempDir()
	cacheDir := t.TempDir()

	writeTestItem(t, workshop, "1000000001", "Aquarium Loop", "Everyone", tailMoovMP4())
	writeTestItem(t, workshop, "1000000002", "Neon City Night", "Mature", tailMoovMP4())

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "watched.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &startup.Config{
		WorkshopDir:       workshop,
		WEPath:            wePath,
		CacheDir:          cacheDir,
		MoovTailTolerance: 4 * 1024 * 1024,
		FaststartDir:      filepath.Join(cacheDir, "faststart"),
		PreviewDir:        filepath.Join(cacheDir, "previews"),
		AudioDir:          filepath.Join(cacheDir, "audio"),
		FaststartEnabled:  opts.faststart,
		PreviewsEnabled:   opts.previews,
		AudioEnabled:      opts.audio,
	}

	runner := &fakeRunner{}
	cat := catalog.New(workshop, wePath, time.Hour)
	h, err := New(cat, db, runner, cfg)
	if err != nil {
		t.Fatal(err)
	}

	return &testEnv{h: h, runner: runner, workshop: workshop, wePath: wePath}
}
