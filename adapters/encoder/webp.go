package encoder

import (
	"fmt"
	"image"
	"io"

	"github.com/gen2brain/webp"

	"github.com/Skryldev/image-converter/core"
)

// WebP encodes images to WebP through libwebp compiled to WASM.  Quality is
// honoured; Lossless ignores it.
type WebP struct {
	Method int // 0 (fast) - 6 (slower, smaller)
}

func NewWebP(method int) *WebP { return &WebP{Method: method} }

func (e *WebP) Format() core.Format { return core.FormatWebP }

func (e *WebP) Encode(w io.Writer, img image.Image, opts core.EncodeOptions) error {
	err := webp.Encode(w, img, webp.Options{
		Quality:  opts.Quality,
		Lossless: opts.Lossless,
		Method:   e.Method,
	})
	if err != nil {
		return fmt.Errorf("webp encode: %w", err)
	}
	return nil
}
