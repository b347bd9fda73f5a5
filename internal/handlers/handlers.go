package handlers

import (
	"sync"
	"time"

	"wallpaper-viewer/internal/artifact"
	"wallpaper-viewer/internal/catalog"
	"wallpaper-viewer/internal/database"
	"wallpaper-viewer/internal/ffmpeg"
	"wallpaper-viewer/internal/preview"
	"wallpaper-viewer/internal/startup"
	"wallpaper-viewer/internal/streaming"
)

// Handlers bundles the HTTP handlers with their collaborators. Artifact
// managers are nil when their cache directory (or ffmpeg) is unavailable;
// the corresponding endpoints then serve the unprocessed source.
type Handlers struct {
	catalog *catalog.Catalog
	db      *database.Database
	runner  ffmpeg.Runner

	faststart *artifact.Manager
	audio     *artifact.Manager
	previews  *preview.Transformer

	workshopDir   string
	wePath        string
	moovTolerance int64
	stream        streaming.Config
	ffmpegOK      bool

	// ids already remuxed (or confirmed not to need it) this process
	faststartDone sync.Map

	startTime time.Time
}

// New wires the handler set together, creating the artifact caches for
// each feature the configuration enables.
func New(cat *catalog.Catalog, db *database.Database, runner ffmpeg.Runner, cfg *startup.Config) (*Handlers, error) {
	h := &Handlers{
		catalog:       cat,
		db:            db,
		runner:        runner,
		workshopDir:   cfg.WorkshopDir,
		wePath:        cfg.WEPath,
		moovTolerance: cfg.MoovTailTolerance,
		stream:        streaming.Config{ChunkSize: streaming.DefaultChunkSize},
		ffmpegOK:      true,
		startTime:     time.Now(),
	}

	if e, ok := runner.(*ffmpeg.Exec); ok {
		h.ffmpegOK = e.Available() == nil
	}

	if cfg.FaststartEnabled && h.ffmpegOK {
		m, err := artifact.New(cfg.FaststartDir, "faststart")
		if err != nil {
			return nil, err
		}
		h.faststart = m
	}

	if cfg.AudioEnabled && h.ffmpegOK {
		m, err := artifact.New(cfg.AudioDir, "audio")
		if err != nil {
			return nil, err
		}
		h.audio = m
	}

	if cfg.PreviewsEnabled {
		m, err := artifact.New(cfg.PreviewDir, "preview")
		if err != nil {
			return nil, err
		}
		h.previews = preview.NewTransformer(m, runner)
	}

	return h, nil
}
