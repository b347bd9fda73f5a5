package streaming

import (
	"context"
	"errors"
	"io"
	"net/http"

	"wallpaper-viewer/internal/logging"
)

// ErrClientGone indicates the client disconnected before the window was
// fully delivered. Detected via request-context cancellation or a failed
// write; not a server error.
var ErrClientGone = errors.New("client disconnected")

// DefaultChunkSize is sized for local/LAN transfers: large enough to
// amortize syscall overhead, small enough that memory use stays flat
// regardless of file size.
const DefaultChunkSize = 4 * 1024 * 1024

// Config controls chunked delivery.
type Config struct {
	// ChunkSize is the read/write unit; 0 means DefaultChunkSize.
	ChunkSize int
}

// CopyRange streams length bytes of r starting at offset to w in bounded
// chunks, flushing after each chunk and stopping promptly when the request
// context is canceled. Returns the bytes actually written.
func CopyRange(ctx context.Context, w http.ResponseWriter, r io.ReaderAt, offset, length int64, cfg Config) (int64, error) {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, chunkSize)

	var written int64
	for written < length {
		select {
		case <-ctx.Done():
			return written, ErrClientGone
		default:
		}

		n := int64(chunkSize)
		if remaining := length - written; remaining < n {
			n = remaining
		}

		read, err := r.ReadAt(buf[:n], offset+written)
		if read > 0 {
			wn, werr := w.Write(buf[:read])
			written += int64(wn)
			if werr != nil {
				logging.Debug("stream write failed after %d bytes: %v", written, werr)
				return written, ErrClientGone
			}
			if wn < read {
				return written, ErrClientGone
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if err == io.EOF && written == length {
				break
			}
			return written, err
		}
	}

	return written, nil
}

// CopyFile streams an entire reader of known size.
func CopyFile(ctx context.Context, w http.ResponseWriter, r io.ReaderAt, size int64, cfg Config) (int64, error) {
	return CopyRange(ctx, w, r, 0, size, cfg)
}
