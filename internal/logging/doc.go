// Package logging provides leveled logging configured from the DEBUG and
// LOG_LEVEL environment variables.
package logging
