package handlers

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

// cacheControlImmutable is safe on every media response because any content
// change lands on a new ETag (and, for derived artifacts, a new cache path).
const cacheControlImmutable = "public, max-age=31536000, immutable"

// fileIdentity is the metadata-only validator pair for one file.
type fileIdentity struct {
	ETag         string
	LastModified time.Time
}

// identityFor derives a weak ETag and a seconds-truncated Last-Modified
// from file metadata alone. The inode is 0 on platforms without one.
func identityFor(st os.FileInfo) fileIdentity {
	return fileIdentity{
		ETag:         fmt.Sprintf(`W/"%d-%d-%d"`, inodeOf(st), st.Size(), st.ModTime().Unix()),
		LastModified: st.ModTime().UTC().Truncate(time.Second),
	}
}

// writeValidators emits the validator and caching headers every media
// response carries, including 304s.
func writeValidators(w http.ResponseWriter, id fileIdentity) {
	w.Header().Set("ETag", id.ETag)
	w.Header().Set("Last-Modified", id.LastModified.Format(http.TimeFormat))
	w.Header().Set("Cache-Control", cacheControlImmutable)
}

// notModified reports whether the request's conditional headers prove the
// client copy is fresh. If-None-Match wins over If-Modified-Since.
func notModified(r *http.Request, id fileIdentity) bool {
	if inm := r.Header.Get("If-None-Match"); inm != "" {
		return inm == id.ETag
	}
	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		t, err := http.ParseTime(ims)
		if err == nil && !id.LastModified.After(t) {
			return true
		}
	}
	return false
}
