// Package streaming delivers byte windows of large media files in bounded
// chunks with prompt client-disconnect detection.
package streaming
