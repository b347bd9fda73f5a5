// Package database stores per-item watched state in SQLite.
package database
