package core

import (
	"context"
	"io"
	"time"
)

// Runtime is a byte-level codec engine.  It is started once per process by a
// Loader and must be safe for concurrent use once started.
// Implementations live in adapters/native and adapters/vips.
type Runtime interface {
	Name() string
	Startup(ctx context.Context) error
	Shutdown()

	// Decode parses encoded bytes into a runtime-resident image.
	Decode(data []byte) (ImageHandle, error)
	// Encode serialises h.  Callers validate format and quality first.
	Encode(h ImageHandle, format Format, opts EncodeOptions) ([]byte, error)
}

// ImageHandle is a decoded image owned by one invocation.  Release must be
// called exactly once; the Bridge guarantees this.
type ImageHandle interface {
	Width() int
	Height() int
	Release()
}

// EncodeOptions carries format-specific encoding parameters.
type EncodeOptions struct {
	Quality       int  // 0-100, already resolved; ignored for png
	Lossless      bool // webp only
	StripMetadata bool
	Interlaced    bool // progressive jpeg, Adam7 png; honoured by the vips runtime
}

// AltDecoder turns an input the primary codec cannot read into one or more
// images the primary codec can read.
// Implementations live in adapters/heic.
type AltDecoder interface {
	Decode(ctx context.Context, data []byte) ([][]byte, error)
}

// Store keeps assembled outputs addressable by a handle.
// Implementations live in adapters/storage/.
type Store interface {
	Put(ctx context.Context, obj Object) (handle string, err error)
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
	Revoke(ctx context.Context, handle string) error
}

// Hook observes stage transitions of an invocation.
type Hook interface {
	BeforeStage(ctx context.Context, id string, stage State)
	AfterStage(ctx context.Context, id string, stage State, d time.Duration, err error)
}

// MetricsCollector receives performance observations from the converter.
type MetricsCollector interface {
	RecordStageTime(stage string, d time.Duration)
	RecordThroughput(bytes int64)
	RecordError(stage string, category string)
	RecordConversion(from, to Format)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
