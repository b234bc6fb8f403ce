package encoder

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/disintegration/imaging"

	"github.com/Skryldev/image-converter/core"
)

// PNG encodes images to PNG format.  Always lossless; quality is ignored.
type PNG struct {
	Compression png.CompressionLevel
}

func NewPNG(level png.CompressionLevel) *PNG { return &PNG{Compression: level} }

func (p *PNG) Format() core.Format { return core.FormatPNG }

func (p *PNG) Encode(w io.Writer, img image.Image, _ core.EncodeOptions) error {
	if err := imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(p.Compression)); err != nil {
		return fmt.Errorf("png encode: %w", err)
	}
	return nil
}
