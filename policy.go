package imageconverter

import (
	"fmt"
	"strings"

	"github.com/Skryldev/image-converter/core"
	apperrors "github.com/Skryldev/image-converter/errors"
	"github.com/Skryldev/image-converter/utils"
)

// SourceFormats lists the formats a caller may offer for conversion.
var SourceFormats = []core.Format{
	core.FormatJPEG, core.FormatPNG, core.FormatWebP, core.FormatAVIF, core.FormatHEIC,
}

// SuggestedName derives an output file name from the input name: the last
// extension is replaced by f's.
func SuggestedName(name string, f core.Format) string {
	return utils.SuggestedName(name, f.Extension())
}

// ValidatePair checks a source/target pair given as user-facing names
// ("jpg", "png", ...).  Names are parsed with core.ParseFormat, so aliases
// collapse first: "jpg" to "jpeg" is rejected as an identity conversion, and
// "heif" is accepted as a source because it parses to heic.  Converting a
// format to itself is rejected.
func ValidatePair(source, target string) error {
	src := core.ParseFormat(source)
	if !isSource(src) {
		return apperrors.New(apperrors.CategoryInput, "validate_pair",
			fmt.Errorf("%w: source %q", apperrors.ErrUnsupportedFormat, source))
	}
	dst := core.ParseFormat(target)
	if !dst.IsOutput() {
		return apperrors.New(apperrors.CategoryEncode, "validate_pair",
			fmt.Errorf("%w: target %q", apperrors.ErrUnsupportedFormat, target))
	}
	if src == dst {
		return apperrors.New(apperrors.CategoryInput, "validate_pair",
			fmt.Errorf("%w: %s", apperrors.ErrIdentityConversion, src))
	}
	return nil
}

// Pairs returns every valid source/target combination.
func Pairs() [][2]core.Format {
	var out [][2]core.Format
	for _, src := range SourceFormats {
		for _, dst := range core.OutputFormats {
			if src != dst {
				out = append(out, [2]core.Format{src, dst})
			}
		}
	}
	return out
}

// Accepts reports whether a file picker should offer the file: any image/*
// media type, or a .heic name since browsers often leave HEIC untyped.
func Accepts(mediaType, name string) bool {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(mediaType)), "image/") {
		return true
	}
	return core.IsHEIC("", name)
}

func isSource(f core.Format) bool {
	for _, s := range SourceFormats {
		if s == f {
			return true
		}
	}
	return false
}
