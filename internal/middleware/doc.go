// Package middleware provides HTTP middleware for request logging,
// Prometheus metrics, and gzip compression of API responses.
package middleware
