package core

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/Skryldev/image-converter/errors"
	"github.com/Skryldev/image-converter/utils"
)

// Normalizer routes HEIC/HEIF inputs through an AltDecoder and passes every
// other input through untouched.
type Normalizer struct {
	alt    AltDecoder
	logger Logger
}

// NewNormalizer creates a Normalizer.  alt may be nil, in which case HEIC
// inputs fail as unsupported.
func NewNormalizer(alt AltDecoder) *Normalizer {
	return &Normalizer{alt: alt, logger: nopLogger{}}
}

// SetLogger attaches a structured logger.
func (n *Normalizer) SetLogger(l Logger) {
	if l != nil {
		n.logger = l
	}
}

// IsHEIC reports whether the declared media type or the file name marks the
// input as HEIC/HEIF.  Either signal is enough; browsers and operating systems
// report this format inconsistently.
func IsHEIC(mediaType, name string) bool {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if mt == "image/heic" || mt == "image/heif" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(name), ".heic")
}

// Normalize returns bytes the primary codec should be able to decode.  data is
// not modified.  Multi-image HEIC containers yield only their first image.
func (n *Normalizer) Normalize(ctx context.Context, data []byte, mediaType, name string) (NormalizedBytes, error) {
	source := Format(utils.DetectFormat(data))

	if !IsHEIC(mediaType, name) {
		return NormalizedBytes{Data: data, Source: source}, nil
	}

	const op = "normalize.heic"
	if n.alt == nil {
		return NormalizedBytes{}, apperrors.New(apperrors.CategoryInput, op,
			heicError(apperrors.ErrNoAltDecoder))
	}
	if err := ctx.Err(); err != nil {
		return NormalizedBytes{}, apperrors.New(apperrors.CategoryInput, op, heicError(err))
	}

	images, err := n.alt.Decode(ctx, data)
	if err != nil {
		n.logger.Warn("normalize.heic.failed", "name", name, "error", err.Error())
		return NormalizedBytes{}, apperrors.New(apperrors.CategoryInput, op,
			heicError(err))
	}
	if len(images) == 0 || len(images[0]) == 0 {
		return NormalizedBytes{}, apperrors.New(apperrors.CategoryInput, op,
			heicError(apperrors.ErrNoImages))
	}
	if len(images) > 1 {
		n.logger.Debug("normalize.heic.extra_images_dropped", "name", name, "count", len(images)-1)
	}

	return NormalizedBytes{Data: images[0], Converted: true, Source: FormatHEIC}, nil
}

// heicError marks err as a HEIC failure; both ErrHEIC and err stay matchable.
func heicError(err error) error { return fmt.Errorf("%w: %w", apperrors.ErrHEIC, err) }
