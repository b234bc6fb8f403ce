// Package heic converts HEIC/HEIF containers into PNG so the primary codec
// can read them.  Decoding runs libheif on wazero.
package heic

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/gen2brain/heic"

	"github.com/Skryldev/image-converter/adapters/encoder"
	"github.com/Skryldev/image-converter/core"
)

// Decoder implements core.AltDecoder.
type Decoder struct {
	png *encoder.PNG
}

// New returns a Decoder writing its intermediate PNG with fast compression;
// the PNG is decoded again straight away.
func New() *Decoder {
	return &Decoder{png: encoder.NewPNG(png.BestSpeed)}
}

// Decode returns the primary image of the container as PNG.  libheif exposes
// only the primary image here, so the slice has one element.
func (d *Decoder) Decode(ctx context.Context, data []byte) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("heic: no data")
	}
	img, err := heic.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("heic decode: %w", err)
	}
	var buf bytes.Buffer
	if err := d.png.Encode(&buf, img, core.EncodeOptions{}); err != nil {
		return nil, fmt.Errorf("heic to png: %w", err)
	}
	return [][]byte{buf.Bytes()}, nil
}

var _ core.AltDecoder = (*Decoder)(nil)
