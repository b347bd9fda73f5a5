package httprange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors returned by Parse. All three map to a 416 response with a
// "Content-Range: bytes */<size>" header.
var (
	// ErrMalformed indicates the header does not match the
	// bytes=<start>-<end> / bytes=<start>- / bytes=-<suffix> grammar.
	ErrMalformed = errors.New("malformed range header")

	// ErrUnsatisfiable indicates a syntactically valid start at or past
	// the end of the resource.
	ErrUnsatisfiable = errors.New("range not satisfiable")

	// ErrMultiRange indicates the header requests multiple ranges.
	// Multipart responses are never emitted.
	ErrMultiRange = errors.New("multiple ranges not supported")
)

// Window is a single validated inclusive byte range,
// satisfying 0 <= Start <= End <= size-1.
type Window struct {
	Start int64
	End   int64
}

// Length returns the number of bytes covered by the window.
func (w Window) Length() int64 {
	return w.End - w.Start + 1
}

// ContentRange formats the Content-Range header value for a 206 response.
func (w Window) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", w.Start, w.End, size)
}

// Unsatisfied formats the Content-Range header value for a 416 response.
func Unsatisfied(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}

// Parse parses an HTTP Range header against a resource of the given size.
// An absent header yields (nil, nil): the caller serves the full resource.
//
// Supported forms:
//
//	bytes=N-M   closed range, M clamped to size-1
//	bytes=N-    from byte N to end
//	bytes=-N    last N bytes
func Parse(header string, size int64) (*Window, error) {
	if header == "" {
		return nil, nil
	}

	const prefix = "bytes="
	spec, ok := strings.CutPrefix(strings.TrimSpace(header), prefix)
	if !ok {
		return nil, ErrMalformed
	}

	if strings.Contains(spec, ",") {
		return nil, ErrMultiRange
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, ErrMalformed
	}

	var start, end int64
	switch {
	case startStr == "" && endStr != "":
		// bytes=-N: the last N bytes
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return nil, ErrMalformed
		}
		start = size - n
		if start < 0 {
			start = 0
		}
		end = size - 1

	case startStr != "" && endStr == "":
		// bytes=N-: open-ended
		n, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil || n < 0 {
			return nil, ErrMalformed
		}
		start = n
		end = size - 1

	case startStr != "" && endStr != "":
		s, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil || s < 0 {
			return nil, ErrMalformed
		}
		e, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || e < s {
			return nil, ErrMalformed
		}
		start = s
		end = e
		if end > size-1 {
			end = size - 1
		}

	default:
		return nil, ErrMalformed
	}

	if start >= size {
		return nil, ErrUnsatisfiable
	}

	return &Window{Start: start, End: end}, nil
}
