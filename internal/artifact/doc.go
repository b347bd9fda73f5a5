// Package artifact implements a concurrency-safe generate-once cache for
// derived media files. Artifacts are named by a digest of source identity
// plus variant parameters, generated into a temporary file, and published
// with an atomic rename so readers never observe partial writes.
package artifact
