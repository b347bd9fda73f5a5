package mp4

import (
	"encoding/binary"
	"errors"
	"io"
	"os"

	"wallpaper-viewer/internal/logging"
)

// DefaultTailTolerance is how close to the end of the file the moov box may
// sit before playback startup is considered degraded. Players must read moov
// before starting playback, so a moov within the final few megabytes forces
// most of the file to download first.
const DefaultTailTolerance = 4 * 1024 * 1024

// ErrNoMoov indicates the file was walked to the end without finding a moov box.
var ErrNoMoov = errors.New("no moov box found")

// errMalformed indicates the box structure is inconsistent (sizes that do not
// advance, or that point past the end of the file).
var errMalformed = errors.New("malformed box structure")

// MoovEnd walks the top-level boxes of an MP4/MOV-family file and returns the
// byte offset just past the end of the moov box.
//
// Box header layout: uint32 size, 4-byte type. size==1 means a uint64
// largesize follows; size==0 means the box extends to EOF.
func MoovEnd(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return moovEnd(f, st.Size())
}

func moovEnd(r io.ReaderAt, fileSize int64) (int64, error) {
	var offset int64
	header := make([]byte, 16)

	for offset+8 <= fileSize {
		if _, err := r.ReadAt(header[:8], offset); err != nil {
			return 0, err
		}

		size := int64(binary.BigEndian.Uint32(header[0:4]))
		boxType := string(header[4:8])

		switch size {
		case 0:
			// box extends to EOF
			size = fileSize - offset
		case 1:
			if offset+16 > fileSize {
				return 0, errMalformed
			}
			if _, err := r.ReadAt(header[8:16], offset+8); err != nil {
				return 0, err
			}
			size = int64(binary.BigEndian.Uint64(header[8:16]))
		}

		next := offset + size
		if next <= offset || next > fileSize {
			return 0, errMalformed
		}

		if boxType == "moov" {
			return next, nil
		}
		offset = next
	}

	return 0, ErrNoMoov
}

// MoovNearEnd reports whether the moov box ends within tolerance bytes of
// EOF. Pass tolerance <= 0 for DefaultTailTolerance. Any parse failure is
// treated as "not near the end": a remux is never forced on input we cannot
// parse.
func MoovNearEnd(path string, tolerance int64) bool {
	if tolerance <= 0 {
		tolerance = DefaultTailTolerance
	}

	st, err := os.Stat(path)
	if err != nil {
		return false
	}

	end, err := MoovEnd(path)
	if err != nil {
		logging.Debug("mp4: moov walk failed for %s: %v", path, err)
		return false
	}

	return st.Size()-end <= tolerance
}
