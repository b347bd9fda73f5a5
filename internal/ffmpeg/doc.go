// Package ffmpeg wraps the external transcoding tool behind a small
// interface so cache generation can be exercised in tests with a fake.
package ffmpeg
