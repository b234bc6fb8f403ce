package core

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/Skryldev/image-converter/errors"
)

// Bridge decodes normalized bytes into an ImageHandle and re-encodes it.
// It owns quality resolution and format closure; the Runtime only sees
// requests that already passed validation.
type Bridge struct {
	rt             Runtime
	defaultQuality int
	base           EncodeOptions
}

// NewBridge creates a Bridge over rt.  base supplies the flags sent with every
// encode; its Quality is ignored in favour of the target's.
func NewBridge(rt Runtime, defaultQuality int, base EncodeOptions) *Bridge {
	return &Bridge{rt: rt, defaultQuality: defaultQuality, base: base}
}

// ValidateTarget checks t without touching the runtime.
func (b *Bridge) ValidateTarget(t Target) error {
	if !t.Format.IsOutput() {
		return apperrors.New(apperrors.CategoryEncode, "bridge.encode",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, t.Format))
	}
	if t.Format == FormatPNG {
		return nil
	}
	if t.Quality != QualityDefault && (t.Quality < 0 || t.Quality > 100) {
		return apperrors.New(apperrors.CategoryEncode, "bridge.encode",
			fmt.Errorf("%w: got %d", apperrors.ErrInvalidQuality, t.Quality))
	}
	return nil
}

func (b *Bridge) quality(t Target) int {
	if t.Quality == QualityDefault {
		return b.defaultQuality
	}
	return t.Quality
}

// Decode parses nb into a handle.  The returned handle's Release is safe to
// call more than once; only the first call reaches the runtime.
func (b *Bridge) Decode(_ context.Context, nb NormalizedBytes) (ImageHandle, error) {
	const op = "bridge.decode"
	if len(nb.Data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, op, apperrors.ErrEmptyInput)
	}
	h, err := b.rt.Decode(nb.Data)
	if err != nil {
		if h != nil {
			h.Release()
		}
		return nil, apperrors.New(apperrors.CategoryDecode, op, err)
	}
	if h == nil {
		return nil, apperrors.New(apperrors.CategoryDecode, op,
			fmt.Errorf("%s runtime returned no image", b.rt.Name()))
	}
	return &onceHandle{ImageHandle: h}, nil
}

// Encode serialises h to t.  Unsupported formats and out-of-range quality
// fail before the runtime is called.
func (b *Bridge) Encode(_ context.Context, h ImageHandle, t Target) (*ConversionResult, error) {
	if err := b.ValidateTarget(t); err != nil {
		return nil, err
	}
	op := "bridge.encode." + string(t.Format)

	opts := EncodeOptions{StripMetadata: b.base.StripMetadata}
	switch t.Format {
	case FormatWebP:
		opts.Quality = b.quality(t)
		opts.Lossless = b.base.Lossless
	case FormatJPEG:
		opts.Quality = b.quality(t)
		opts.Interlaced = b.base.Interlaced
	case FormatPNG:
		opts.Interlaced = b.base.Interlaced
	}
	data, err := b.rt.Encode(unwrapHandle(h), t.Format, opts)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryEncode, op, err)
	}
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CategoryEncode, op, apperrors.ErrEmptyOutput)
	}
	return &ConversionResult{
		Data:     data,
		MIMEType: t.Format.MIMEType(),
		Size:     int64(len(data)),
	}, nil
}

// Convert runs decode then encode.  The handle is released exactly once on
// every path out of this function.  enter, if non-nil, is told when decoding
// and encoding begin.
func (b *Bridge) Convert(ctx context.Context, nb NormalizedBytes, t Target, enter func(State)) (*ConversionResult, error) {
	if enter == nil {
		enter = func(State) {}
	}
	if err := b.ValidateTarget(t); err != nil {
		return nil, err
	}

	enter(StateDecoding)
	h, err := b.Decode(ctx, nb)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	enter(StateEncoding)
	return b.Encode(ctx, h, t)
}

// onceHandle makes Release idempotent so a handle reaches the runtime's
// release routine at most once.
type onceHandle struct {
	ImageHandle
	once sync.Once
}

func (h *onceHandle) Release() { h.once.Do(h.ImageHandle.Release) }

func unwrapHandle(h ImageHandle) ImageHandle {
	if oh, ok := h.(*onceHandle); ok {
		return oh.ImageHandle
	}
	return h
}
