// Package metrics defines the Prometheus collectors exposed on the
// metrics listener.
package metrics
