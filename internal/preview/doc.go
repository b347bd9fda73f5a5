// Package preview renders square preview-image variants (resize, format
// conversion, quality) into the derived-artifact cache.
package preview
