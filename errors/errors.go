package errors

import (
	"errors"
	"fmt"
)

// Category classifies a conversion failure.  Every error surfaced by the
// converter carries exactly one category.
type Category string

const (
	CategoryRuntime    Category = "runtime_unavailable"
	CategoryInput      Category = "unsupported_input"
	CategoryDecode     Category = "decode"
	CategoryEncode     Category = "encode"
	CategoryAllocation Category = "allocation"
	CategoryConfig     Category = "config"
)

// ConversionError is the structured error type used throughout the module.
type ConversionError struct {
	Category Category
	Op       string // operation name
	Err      error

	// Retryable hints that resubmitting the whole conversion may succeed.
	// The converter itself never retries.
	Retryable bool
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// New creates a non-retryable ConversionError.
func New(category Category, op string, err error) *ConversionError {
	return &ConversionError{Category: category, Op: op, Err: err}
}

// Unavailable creates a retryable runtime error.  A later invocation may
// attempt initialisation again.
func Unavailable(op string, err error) *ConversionError {
	return &ConversionError{Category: CategoryRuntime, Op: op, Err: err, Retryable: true}
}

// Wrap wraps an existing error with context.  An error that already carries a
// category is returned unchanged so the first classification wins.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ConversionError
	if errors.As(err, &ce) {
		return err
	}
	return New(category, op, err)
}

// IsRetryable reports whether err represents a failure the caller may resubmit.
func IsRetryable(err error) bool {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Category == cat
	}
	return false
}

// CategoryOf returns the category of err, or "" for unclassified errors.
func CategoryOf(err error) Category {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ""
}

// Sentinel errors for common failure modes.
var (
	ErrUnsupportedFormat  = errors.New("unsupported image format")
	ErrHEIC               = errors.New("failed to process HEIC image")
	ErrEmptyInput         = errors.New("empty input")
	ErrInputTooLarge      = errors.New("input exceeds size limit")
	ErrNoImages           = errors.New("decoder returned no images")
	ErrNoAltDecoder       = errors.New("no alternate decoder configured")
	ErrInvalidQuality     = errors.New("quality must be between 0 and 100")
	ErrEmptyOutput        = errors.New("encoder produced no bytes")
	ErrIdentityConversion = errors.New("source and target formats are the same")
	ErrNotFound           = errors.New("resource not found")
	ErrStoreFull          = errors.New("output store capacity exceeded")
	ErrRuntimeClosed      = errors.New("codec runtime is shut down")
)
