// Package decoder turns encoded bytes into image.Image values using the
// formats registered with the image package.
package decoder

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	// Register extra input formats with image.Decode.
	_ "github.com/gen2brain/avif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Skryldev/image-converter/core"
)

// ColorSpace represents the image colour model.
type ColorSpace string

const (
	ColorSpaceRGB  ColorSpace = "rgb"
	ColorSpaceRGBA ColorSpace = "rgba"
	ColorSpaceCMYK ColorSpace = "cmyk"
	ColorSpaceGray ColorSpace = "gray"
)

// Info describes a decoded image.
type Info struct {
	Width      int
	Height     int
	Format     core.Format
	ColorSpace ColorSpace
	HasAlpha   bool
}

// Decode parses data with EXIF orientation applied.  It accepts every format
// registered with the image package: png, jpeg, gif (stdlib), bmp, tiff,
// webp (x/image) and avif.
func Decode(data []byte) (image.Image, Info, error) {
	if len(data) == 0 {
		return nil, Info{}, fmt.Errorf("decode: no data")
	}
	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, Info{}, fmt.Errorf("decode: %w", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, Info{}, fmt.Errorf("decode %s: %w", name, err)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, Info{}, fmt.Errorf("decode %s: empty image", name)
	}
	return img, Info{
		Width:      b.Dx(),
		Height:     b.Dy(),
		Format:     core.ParseFormat(name),
		ColorSpace: colorSpace(img),
		HasAlpha:   HasAlpha(img),
	}, nil
}

// colorSpace returns the colour space of an image.Image.
func colorSpace(img image.Image) ColorSpace {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return ColorSpaceGray
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		return ColorSpaceRGBA
	case *image.CMYK:
		return ColorSpaceCMYK
	}
	return ColorSpaceRGB
}

// HasAlpha reports whether img has any non-opaque pixel.  Images that cannot
// report opacity are assumed opaque.
func HasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return false
}
