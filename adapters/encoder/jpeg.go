package encoder

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"

	"github.com/Skryldev/image-converter/core"
)

// JPEG encodes images to JPEG format.
type JPEG struct {
	// FlattenAlpha composites translucent images onto Background first.
	// Without it transparent pixels come out black.
	FlattenAlpha bool
	Background   color.Color
}

func NewJPEG(flattenAlpha bool) *JPEG {
	return &JPEG{FlattenAlpha: flattenAlpha, Background: color.White}
}

func (j *JPEG) Format() core.Format { return core.FormatJPEG }

// Encode passes opts.Quality to the encoder verbatim.
func (j *JPEG) Encode(w io.Writer, img image.Image, opts core.EncodeOptions) error {
	if j.FlattenAlpha {
		img = flatten(img, j.Background)
	}
	if err := imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(opts.Quality)); err != nil {
		return fmt.Errorf("jpeg encode: %w", err)
	}
	return nil
}

func flatten(img image.Image, bg color.Color) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	if bg == nil {
		bg = color.White
	}
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), bg)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}
