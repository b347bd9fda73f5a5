package sniff

import (
	"bytes"
	"io"
	"os"
	"sort"
	"strings"
)

// codecScanWindow bounds how much of the file the fourcc scan reads at each
// end. Sample descriptions normally live in the moov box, which sits either
// at the head or the tail of the file.
const codecScanWindow = 2 * 1024 * 1024

var videoFourccs = []string{"avc1", "hvc1", "hev1", "av01", "vp09", "vp08"}
var audioFourccs = []string{"mp4a", "ac-3", "ec-3", "opus", "alac", "flac"}

// Codecs scans the first and last 2 MiB of a file for known codec fourcc
// markers. Purely diagnostic: an empty result is not an error.
func Codecs(path string) (video, audio []string) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, nil
	}
	size := st.Size()

	head := make([]byte, min(size, codecScanWindow))
	if _, err := f.ReadAt(head, 0); err != nil && err != io.EOF {
		return nil, nil
	}

	var tail []byte
	if size > codecScanWindow {
		tail = make([]byte, codecScanWindow)
		if _, err := f.ReadAt(tail, size-codecScanWindow); err != nil && err != io.EOF {
			tail = nil
		}
	}

	seen := func(markers []string) []string {
		var found []string
		for _, m := range markers {
			b := []byte(m)
			if bytes.Contains(head, b) || bytes.Contains(tail, b) {
				found = append(found, m)
			}
		}
		sort.Strings(found)
		return found
	}

	return seen(videoFourccs), seen(audioFourccs)
}

// CodecList joins a fourcc slice for a diagnostic response header.
func CodecList(video, audio []string) string {
	all := append(append([]string{}, video...), audio...)
	return strings.Join(all, ",")
}
