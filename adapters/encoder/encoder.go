// Package encoder provides format-specific image encoders.
package encoder

import (
	"image"
	"io"

	"github.com/Skryldev/image-converter/core"
)

// Encoder writes an image.Image in a single output format.
type Encoder interface {
	Format() core.Format
	Encode(w io.Writer, img image.Image, opts core.EncodeOptions) error
}

// Set indexes encoders by format.
type Set map[core.Format]Encoder

// NewSet builds a Set from encs; later entries win.
func NewSet(encs ...Encoder) Set {
	s := make(Set, len(encs))
	for _, e := range encs {
		s[e.Format()] = e
	}
	return s
}
