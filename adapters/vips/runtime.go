//go:build vips

// Package vips is a libvips codec runtime.  It needs cgo and libvips, so it is
// only compiled with the "vips" build tag.
package vips

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/Skryldev/image-converter/config"
	"github.com/Skryldev/image-converter/core"
	apperrors "github.com/Skryldev/image-converter/errors"
)

// RuntimeConfig configures the libvips runtime.
type RuntimeConfig struct {
	MaxCacheSize int
	MaxWorkers   int
	ReportLeaks  bool
	Logger       core.Logger
}

// Runtime wraps the process-wide libvips instance.
// Safe for concurrent use across goroutines.
type Runtime struct {
	cfg RuntimeConfig

	mu      sync.Mutex
	started bool
	closed  bool

	live int64
}

// libvips is process-wide and cannot come back after vips_shutdown.
var terminated atomic.Bool

// New creates a stopped Runtime.
func New(cfg RuntimeConfig) *Runtime {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	return &Runtime{cfg: cfg}
}

// Factory builds a vips Runtime from configuration.
func Factory(cfg config.Config) (core.Runtime, error) {
	return New(RuntimeConfig{
		MaxCacheSize: cfg.Vips.MaxCacheSize,
		MaxWorkers:   cfg.Vips.Concurrency,
		ReportLeaks:  cfg.Vips.ReportLeaks,
	}), nil
}

// Register adds the vips backend to reg.
func Register(reg *core.RuntimeRegistry) { reg.Register(config.BackendVips, Factory) }

func (r *Runtime) Name() string { return "vips" }

// SetLogger routes libvips log output to l.
func (r *Runtime) SetLogger(l core.Logger) { r.cfg.Logger = l }

// Startup initialises libvips.  govips panics when vips_init fails; the
// Loader turns that into an error.  Once any Runtime has shut down, Startup
// returns ErrRuntimeClosed.
func (r *Runtime) Startup(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed || terminated.Load() {
		return fmt.Errorf("vips startup: %w", apperrors.ErrRuntimeClosed)
	}
	if l := r.cfg.Logger; l != nil {
		govips.LoggingSettings(func(domain string, level govips.LogLevel, msg string) {
			switch level {
			case govips.LogLevelError, govips.LogLevelCritical:
				l.Error("vips.log", "domain", domain, "msg", msg)
			case govips.LogLevelWarning:
				l.Warn("vips.log", "domain", domain, "msg", msg)
			default:
				l.Debug("vips.log", "domain", domain, "msg", msg)
			}
		}, govips.LogLevelWarning)
	}
	govips.Startup(&govips.Config{
		ConcurrencyLevel: r.cfg.MaxWorkers,
		MaxCacheSize:     r.cfg.MaxCacheSize,
		ReportLeaks:      r.cfg.ReportLeaks,
		CollectStats:     true,
	})

	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	return nil
}

// Shutdown releases all libvips resources.  libvips cannot be restarted in
// the same process, so call this once at exit; the Runtime is unusable after.
func (r *Runtime) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if !r.started {
		return
	}
	if n := atomic.LoadInt64(&r.live); n > 0 && r.cfg.Logger != nil {
		r.cfg.Logger.Warn("vips.shutdown.leaked_handles", "count", n)
	}
	govips.Shutdown()
	terminated.Store(true)
	r.started = false
}

// Decode loads data into a vips image and applies EXIF orientation.
func (r *Runtime) Decode(data []byte) (core.ImageHandle, error) {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return nil, apperrors.ErrRuntimeClosed
	}

	ref, err := govips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("vips load: %w", err)
	}
	if err := ref.AutoRotate(); err != nil {
		ref.Close()
		return nil, fmt.Errorf("vips autorotate: %w", err)
	}
	atomic.AddInt64(&r.live, 1)
	return &Image{ref: ref, rt: r, source: vipsFormatToCore(ref.Format())}, nil
}

// Encode exports h in format.  JPEG output of translucent images is
// flattened onto white on a copy, leaving h untouched.
func (r *Runtime) Encode(h core.ImageHandle, format core.Format, opts core.EncodeOptions) ([]byte, error) {
	vi, ok := h.(*Image)
	if !ok || vi == nil || vi.ref == nil {
		return nil, fmt.Errorf("vips encode: handle %T was not created by this runtime", h)
	}

	switch format {
	case core.FormatJPEG:
		ref := vi.ref
		if ref.HasAlpha() {
			flat, err := ref.Copy()
			if err != nil {
				return nil, fmt.Errorf("vips copy: %w", err)
			}
			defer flat.Close()
			if err := flat.Flatten(&govips.Color{R: 255, G: 255, B: 255}); err != nil {
				return nil, fmt.Errorf("vips flatten: %w", err)
			}
			ref = flat
		}
		ep := govips.NewJpegExportParams()
		ep.Quality = opts.Quality
		ep.StripMetadata = opts.StripMetadata
		ep.Interlace = opts.Interlaced
		buf, _, err := ref.ExportJpeg(ep)
		if err != nil {
			return nil, fmt.Errorf("vips export jpeg: %w", err)
		}
		return buf, nil

	case core.FormatPNG:
		ep := govips.NewPngExportParams()
		ep.StripMetadata = opts.StripMetadata
		ep.Interlace = opts.Interlaced
		buf, _, err := vi.ref.ExportPng(ep)
		if err != nil {
			return nil, fmt.Errorf("vips export png: %w", err)
		}
		return buf, nil

	case core.FormatWebP:
		ep := govips.NewWebpExportParams()
		ep.Quality = opts.Quality
		ep.Lossless = opts.Lossless
		ep.StripMetadata = opts.StripMetadata
		buf, _, err := vi.ref.ExportWebp(ep)
		if err != nil {
			return nil, fmt.Errorf("vips export webp: %w", err)
		}
		return buf, nil
	}
	return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format)
}

// Live returns the number of images decoded but not yet released.
func (r *Runtime) Live() int64 { return atomic.LoadInt64(&r.live) }

// ─── Image ────────────────────────────────────────────────────────────────────

// Image wraps a *govips.ImageRef.
type Image struct {
	ref    *govips.ImageRef
	rt     *Runtime
	source core.Format
	once   sync.Once
}

func (v *Image) Width() int  { return v.ref.Width() }
func (v *Image) Height() int { return v.ref.Height() }

// Source is the format libvips detected on load.
func (v *Image) Source() core.Format { return v.source }

// Release closes the underlying vips image.  Later calls are no-ops.
func (v *Image) Release() {
	v.once.Do(func() {
		v.ref.Close()
		atomic.AddInt64(&v.rt.live, -1)
	})
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func vipsFormatToCore(f govips.ImageType) core.Format {
	switch f {
	case govips.ImageTypeJPEG:
		return core.FormatJPEG
	case govips.ImageTypePNG:
		return core.FormatPNG
	case govips.ImageTypeWEBP:
		return core.FormatWebP
	case govips.ImageTypeGIF:
		return core.FormatGIF
	case govips.ImageTypeTIFF:
		return core.FormatTIFF
	case govips.ImageTypeHEIF:
		return core.FormatHEIC
	case govips.ImageTypeAVIF:
		return core.FormatAVIF
	case govips.ImageTypeBMP:
		return core.FormatBMP
	default:
		return core.FormatUnknown
	}
}

// compile-time interface checks
var _ core.Runtime = (*Runtime)(nil)
var _ core.ImageHandle = (*Image)(nil)
