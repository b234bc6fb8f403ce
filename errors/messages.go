package errors

import (
	"context"
	"errors"
)

// UserMessage renders err as a sentence suitable for showing to the person who
// submitted the image.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch CategoryOf(err) {
	case CategoryRuntime:
		return "The image converter could not be started. Please try again."
	case CategoryInput:
		switch {
		case errors.Is(err, ErrHEIC):
			return "Failed to process HEIC image."
		case errors.Is(err, ErrInputTooLarge):
			return "The image is too large to convert."
		case errors.Is(err, ErrEmptyInput):
			return "The selected file is empty."
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return "The conversion was cancelled."
		case errors.Is(err, ErrUnsupportedFormat), errors.Is(err, ErrIdentityConversion):
			return "This conversion is not supported."
		}
		return "The selected file could not be read."
	case CategoryDecode:
		return "Failed to decode image data. The format might not be supported."
	case CategoryEncode:
		return "Failed to convert image."
	case CategoryAllocation:
		return "Not enough memory to store the converted image."
	case CategoryConfig:
		return "The image converter is misconfigured."
	}
	return "Something went wrong while converting the image."
}
