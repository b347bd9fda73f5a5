package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"testing"

	"github.com/gorilla/mux"
)

func videoRequest(id string, headers map[string]string) *http.Request {
	req := httptest.NewRequest("GET", "/media/video/"+id, nil)
	req = mux.SetURLVars(req, map[string]string{"id": id})
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestServeVideoFull(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	want := tailMoovMP4()

	rec := httptest.NewRecorder()
	env.h.ServeVideo(rec, videoRequest("1000000001", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q, want bytes", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("Content-Type = %q, want video/mp4", got)
	}
	if got := rec.Header().Get("Content-Length"); got != strconv.Itoa(len(want)) {
		t.Errorf("Content-Length = %q, want %d", got, len(want))
	}
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=31536000, immutable" {
		t.Errorf("Cache-Control = %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), want) {
		t.Error("Body does not match source file")
	}
}

func TestServeVideoETagShape(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rec := httptest.NewRecorder()
	env.h.ServeVideo(rec, videoRequest("1000000001", nil))

	etag := rec.Header().Get("ETag")
	if ok, _ := regexp.MatchString(`^W/"\d+-\d+-\d+"$`, etag); !ok {
		t.Errorf("ETag %q does not match weak inode-size-mtime shape", etag)
	}
	if rec.Header().Get("Last-Modified") == "" {
		t.Error("Last-Modified missing")
	}
}

func TestServeVideoDiagnosticHeaders(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rec := httptest.NewRecorder()
	env.h.ServeVideo(rec, videoRequest("1000000001", nil))

	if got := rec.Header().Get("X-Video-Container"); got != "mp4" {
		t.Errorf("X-Video-Container = %q, want mp4", got)
	}
	if got := rec.Header().Get("X-Video-Mime"); got != "video/mp4" {
		t.Errorf("X-Video-Mime = %q, want video/mp4", got)
	}
}

func TestServeVideoRanges(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	full := tailMoovMP4()
	size := int64(len(full))

	tests := []struct {
		name      string
		header    string
		wantStart int64
		wantEnd   int64
	}{
		{"closed", "bytes=2-5", 2, 5},
		{"open ended", "bytes=8-", 8, size - 1},
		{"suffix", "bytes=-10", size - 10, size - 1},
		{"end clamped", fmt.Sprintf("bytes=4-%d", size+100), 4, size - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			env.h.ServeVideo(rec, videoRequest("1000000001", map[string]string{"Range": tt.header}))

			if rec.Code != http.StatusPartialContent {
				t.Fatalf("Expected 206, got %d", rec.Code)
			}
			wantCR := fmt.Sprintf("bytes %d-%d/%d", tt.wantStart, tt.wantEnd, size)
			if got := rec.Header().Get("Content-Range"); got != wantCR {
				t.Errorf("Content-Range = %q, want %q", got, wantCR)
			}
			wantLen := tt.wantEnd - tt.wantStart + 1
			if got := rec.Header().Get("Content-Length"); got != strconv.FormatInt(wantLen, 10) {
				t.Errorf("Content-Length = %q, want %d", got, wantLen)
			}
			if !bytes.Equal(rec.Body.Bytes(), full[tt.wantStart:tt.wantEnd+1]) {
				t.Error("Body window does not match")
			}
		})
	}
}

func TestServeVideoRangeErrors(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	size := len(tailMoovMP4())

	tests := []struct {
		name   string
		header string
	}{
		{"multi range", "bytes=0-1,4-5"},
		{"malformed", "bytes=abc-def"},
		{"inverted", "bytes=5-2"},
		{"start past end of file", fmt.Sprintf("bytes=%d-", size)},
		{"zero suffix", "bytes=-0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			env.h.ServeVideo(rec, videoRequest("1000000001", map[string]string{"Range": tt.header}))

			if rec.Code != http.StatusRequestedRangeNotSatisfiable {
				t.Fatalf("Expected 416, got %d", rec.Code)
			}
			want := fmt.Sprintf("bytes */%d", size)
			if got := rec.Header().Get("Content-Range"); got != want {
				t.Errorf("Content-Range = %q, want %q", got, want)
			}
		})
	}
}

func TestServeVideoUnknownID(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rec := httptest.NewRecorder()
	env.h.ServeVideo(rec, videoRequest("9999999999", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
}

func TestServeVideoConditional(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	first := httptest.NewRecorder()
	env.h.ServeVideo(first, videoRequest("1000000001", nil))
	etag := first.Header().Get("ETag")
	lastMod := first.Header().Get("Last-Modified")

	t.Run("if-none-match hit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.h.ServeVideo(rec, videoRequest("1000000001", map[string]string{"If-None-Match": etag}))

		if rec.Code != http.StatusNotModified {
			t.Fatalf("Expected 304, got %d", rec.Code)
		}
		if rec.Body.Len() != 0 {
			t.Error("304 must have no body")
		}
		if rec.Header().Get("ETag") != etag {
			t.Error("304 must re-emit ETag")
		}
		if rec.Header().Get("Cache-Control") == "" {
			t.Error("304 must re-emit Cache-Control")
		}
	})

	t.Run("if-none-match miss", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.h.ServeVideo(rec, videoRequest("1000000001", map[string]string{"If-None-Match": `W/"0-0-0"`}))
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
	})

	t.Run("if-modified-since hit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.h.ServeVideo(rec, videoRequest("1000000001", map[string]string{"If-Modified-Since": lastMod}))
		if rec.Code != http.StatusNotModified {
			t.Fatalf("Expected 304, got %d", rec.Code)
		}
	})

	t.Run("if-modified-since stale", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.h.ServeVideo(rec, videoRequest("1000000001", map[string]string{"If-Modified-Since": "Mon, 01 Jan 2001 00:00:00 GMT"}))
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
	})

	t.Run("if-none-match wins over if-modified-since", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.h.ServeVideo(rec, videoRequest("1000000001", map[string]string{
			"If-None-Match":     `W/"0-0-0"`,
			"If-Modified-Since": lastMod,
		}))
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200 when If-None-Match misses, got %d", rec.Code)
		}
	})
}

func TestServeVideoFaststartSubstitution(t *testing.T) {
	env := newTestEnv(t, envOptions{faststart: true})
	remuxed := frontMoovMP4()

	rec := httptest.NewRecorder()
	env.h.ServeVideo(rec, videoRequest("1000000001", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if env.runner.remuxCalls != 1 {
		t.Fatalf("Expected 1 remux call, got %d", env.runner.remuxCalls)
	}
	if !bytes.Equal(rec.Body.Bytes(), remuxed) {
		t.Error("Expected the remuxed file to be served")
	}

	// second request hits the cache
	rec2 := httptest.NewRecorder()
	env.h.ServeVideo(rec2, videoRequest("1000000001", nil))
	if env.runner.remuxCalls != 1 {
		t.Errorf("Expected cached artifact to be reused, got %d calls", env.runner.remuxCalls)
	}
}

func TestServeVideoFaststartFailureFallsBack(t *testing.T) {
	env := newTestEnv(t, envOptions{faststart: true})
	env.runner.failRemux = true

	rec := httptest.NewRecorder()
	env.h.ServeVideo(rec, videoRequest("1000000001", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 fallback, got %d", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), tailMoovMP4()) {
		t.Error("Expected the original file on remux failure")
	}
}

func TestServeAudioExtracted(t *testing.T) {
	env := newTestEnv(t, envOptions{audio: true})

	req := httptest.NewRequest("GET", "/media/audio/1000000001", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "1000000001"})
	rec := httptest.NewRecorder()
	env.h.ServeAudio(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/mp4" {
		t.Errorf("Content-Type = %q, want audio/mp4", got)
	}
	if rec.Body.String() != "extracted m4a bytes" {
		t.Error("Expected extracted audio body")
	}
	if rec.Header().Get("Accept-Ranges") != "bytes" {
		t.Error("Audio responses must advertise range support")
	}
}

func TestServeAudioRange(t *testing.T) {
	env := newTestEnv(t, envOptions{audio: true})

	req := httptest.NewRequest("GET", "/media/audio/1000000001", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "1000000001"})
	req.Header.Set("Range", "bytes=0-3")
	rec := httptest.NewRecorder()
	env.h.ServeAudio(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("Expected 206, got %d", rec.Code)
	}
	if rec.Body.String() != "extr" {
		t.Errorf("Body = %q, want first 4 bytes", rec.Body.String())
	}
}

func TestServeAudioFailureFallsBack(t *testing.T) {
	env := newTestEnv(t, envOptions{audio: true})
	env.runner.failAudio = true

	req := httptest.NewRequest("GET", "/media/audio/1000000001", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "1000000001"})
	rec := httptest.NewRecorder()
	env.h.ServeAudio(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 fallback, got %d", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), tailMoovMP4()) {
		t.Error("Expected the source video on extraction failure")
	}
}

func TestServePreviewOriginal(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	req := httptest.NewRequest("GET", "/media/preview/1000000001", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "1000000001"})
	rec := httptest.NewRecorder()
	env.h.ServePreview(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Vary"); got != "Accept" {
		t.Errorf("Vary = %q, want Accept", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/gif" {
		t.Errorf("Content-Type = %q, want image/gif", got)
	}
	if rec.Header().Get("ETag") == "" {
		t.Error("Preview must carry validators")
	}
}

func TestServePreviewConditional(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	req := httptest.NewRequest("GET", "/media/preview/1000000001", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "1000000001"})
	first := httptest.NewRecorder()
	env.h.ServePreview(first, req)

	req2 := httptest.NewRequest("GET", "/media/preview/1000000001", nil)
	req2 = mux.SetURLVars(req2, map[string]string{"id": "1000000001"})
	req2.Header.Set("If-None-Match", first.Header().Get("ETag"))
	rec := httptest.NewRecorder()
	env.h.ServePreview(rec, req2)

	if rec.Code != http.StatusNotModified {
		t.Fatalf("Expected 304, got %d", rec.Code)
	}
}

func TestServePreviewTransformFailureFallsBack(t *testing.T) {
	// the fixture preview is not decodable, so a transform request must
	// fall back to the original bytes
	env := newTestEnv(t, envOptions{previews: true})

	req := httptest.NewRequest("GET", "/media/preview/1000000001?s=64&fmt=png", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "1000000001"})
	rec := httptest.NewRecorder()
	env.h.ServePreview(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 fallback, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/gif" {
		t.Errorf("Content-Type = %q, want original image/gif", got)
	}
}

func TestPreviewOptions(t *testing.T) {
	tests := []struct {
		name          string
		url           string
		accept        string
		wantTransform bool
		wantFormat    string
		wantEdge      int
		wantQuality   int
	}{
		{"no params serves original", "/p", "", false, "", 0, 0},
		{"explicit webp", "/p?s=128&fmt=webp&q=70", "", true, "webp", 128, 70},
		{"jpg alias", "/p?s=128&fmt=jpg", "", true, "jpeg", 128, 80},
		{"auto negotiates webp", "/p?s=128", "image/webp,image/*", true, "webp", 128, 80},
		{"auto without webp accept", "/p?s=128", "image/png", true, "jpeg", 128, 80},
		{"quality out of bounds", "/p?s=128&fmt=png&q=5", "", true, "png", 128, 80},
		{"unknown format serves original", "/p?s=128&fmt=tiff", "", false, "", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.url, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			opts, transform := previewOptions(req)
			if transform != tt.wantTransform {
				t.Fatalf("transform = %v, want %v", transform, tt.wantTransform)
			}
			if !transform {
				return
			}
			if string(opts.Format) != tt.wantFormat {
				t.Errorf("format = %q, want %q", opts.Format, tt.wantFormat)
			}
			if opts.Edge != tt.wantEdge {
				t.Errorf("edge = %d, want %d", opts.Edge, tt.wantEdge)
			}
			if opts.Quality != tt.wantQuality {
				t.Errorf("quality = %d, want %d", opts.Quality, tt.wantQuality)
			}
		})
	}
}

func TestTriggerFaststart(t *testing.T) {
	env := newTestEnv(t, envOptions{faststart: true})

	post := func() (*httptest.ResponseRecorder, FaststartResult) {
		req := httptest.NewRequest("POST", "/api/faststart/1000000001", nil)
		req = mux.SetURLVars(req, map[string]string{"id": "1000000001"})
		rec := httptest.NewRecorder()
		env.h.TriggerFaststart(rec, req)
		var res FaststartResult
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("Bad JSON: %v", err)
		}
		return rec, res
	}

	rec, res := post()
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !res.OK || res.Skipped {
		t.Errorf("Expected ok without skip, got %+v", res)
	}
	if res.Before == nil || res.After == nil {
		t.Fatal("Expected before/after moov offsets")
	}
	if *res.After >= *res.Before {
		t.Errorf("Remux should move moov toward the front: before=%d after=%d", *res.Before, *res.After)
	}

	// idempotent: second call is skipped without another remux
	_, res2 := post()
	if !res2.OK || !res2.Skipped {
		t.Errorf("Expected skipped repeat, got %+v", res2)
	}
	if env.runner.remuxCalls != 1 {
		t.Errorf("Expected 1 remux call, got %d", env.runner.remuxCalls)
	}
}

func TestTriggerFaststartFailure(t *testing.T) {
	env := newTestEnv(t, envOptions{faststart: true})
	env.runner.failRemux = true

	req := httptest.NewRequest("POST", "/api/faststart/1000000001", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "1000000001"})
	rec := httptest.NewRecorder()
	env.h.TriggerFaststart(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
	var res FaststartResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("Bad JSON: %v", err)
	}
	if res.OK || res.Error == "" {
		t.Errorf("Expected error result, got %+v", res)
	}
}

func TestTriggerFaststartUnknownID(t *testing.T) {
	env := newTestEnv(t, envOptions{faststart: true})

	req := httptest.NewRequest("POST", "/api/faststart/9999999999", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "9999999999"})
	rec := httptest.NewRecorder()
	env.h.TriggerFaststart(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
}

func TestHeadVideoOmitsBody(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	req := httptest.NewRequest("HEAD", "/media/video/1000000001", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "1000000001"})
	rec := httptest.NewRecorder()
	env.h.ServeVideo(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Error("HEAD response must not carry a body")
	}
	if rec.Header().Get("Content-Length") == "" {
		t.Error("HEAD response must carry Content-Length")
	}
}
