package core

import (
	"io"
	"strings"
	"time"
)

// Format identifies an image codec.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"

	// Input-only formats.
	FormatAVIF Format = "avif"
	FormatHEIC Format = "heic"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"

	FormatUnknown Format = "unknown"
)

// OutputFormats is the closed set a conversion may target.
var OutputFormats = []Format{FormatPNG, FormatJPEG, FormatWebP}

var mimeTypes = map[Format]string{
	FormatPNG:  "image/png",
	FormatJPEG: "image/jpeg",
	FormatWebP: "image/webp",
	FormatAVIF: "image/avif",
	FormatHEIC: "image/heic",
	FormatGIF:  "image/gif",
	FormatBMP:  "image/bmp",
	FormatTIFF: "image/tiff",
}

// ParseFormat maps a user-supplied name to a Format.  "jpg" is accepted as an
// alias of jpeg; unknown names yield FormatUnknown.
func ParseFormat(s string) Format {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "jpg":
		return FormatJPEG
	case "heif":
		return FormatHEIC
	case "tif":
		return FormatTIFF
	case FormatPNG, FormatJPEG, FormatWebP, FormatAVIF, FormatHEIC, FormatGIF, FormatBMP, FormatTIFF:
		return f
	}
	return FormatUnknown
}

// FormatFromMediaType maps a MIME type (parameters ignored) to a Format.
func FormatFromMediaType(mediaType string) Format {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case "image/jpg", "image/pjpeg":
		return FormatJPEG
	case "image/heif":
		return FormatHEIC
	}
	for f, m := range mimeTypes {
		if m == mt {
			return f
		}
	}
	return FormatUnknown
}

// MIMEType returns the media type for f, or "application/octet-stream".
func (f Format) MIMEType() string {
	if m, ok := mimeTypes[f]; ok {
		return m
	}
	return "application/octet-stream"
}

// Extension returns the file extension (without dot) used for f.
func (f Format) Extension() string { return string(f) }

// IsOutput reports whether f is a valid conversion target.
func (f Format) IsOutput() bool {
	switch f {
	case FormatPNG, FormatJPEG, FormatWebP:
		return true
	}
	return false
}

func (f Format) String() string { return string(f) }

// QualityDefault asks the converter to use its configured default quality.
const QualityDefault = -1

// Target is the requested output encoding.  Quality is 0-100 or QualityDefault
// and only matters for jpeg and webp.
type Target struct {
	Format  Format
	Quality int
}

// Input is the caller's byte source.  It is never mutated.
type Input struct {
	Reader    io.Reader
	MediaType string // declared type; may be empty or wrong
	Name      string // used for extension inference and the suggested output name
	Size      int64  // -1 if unknown
}

// NormalizedBytes is a byte sequence the primary codec is expected to decode.
type NormalizedBytes struct {
	Data []byte

	// Converted is true when the bytes came out of the alternate decoder.
	Converted bool
	// Source is the sniffed format of the original input.
	Source Format
}

// ConversionResult is the encoded output of the codec bridge.
type ConversionResult struct {
	Data     []byte
	MIMEType string
	Size     int64
}

// OutputResource is the retrievable artefact handed back to the caller.
type OutputResource struct {
	Handle   string // store URI, e.g. mem://<id> or file://<path>
	Size     int64
	MIMEType string
	Name     string // suggested download name
}

// Result is returned by Converter.Convert on success.
type Result struct {
	ID     string
	Output *OutputResource

	// Observability.
	States         []State
	StageTimings   map[State]time.Duration
	ProcessingTime time.Duration
}

// Object is what the assembler hands to a Store.
type Object struct {
	Data     []byte
	MIMEType string
	Name     string
}
