// Package handlers implements the HTTP surface: range-capable video and
// audio delivery, negotiated preview images, the folder browser API, the
// watched store endpoints, and health/version probes.
package handlers
