// Package native is a pure-Go codec runtime.  Decoding goes through the image
// package registry; WebP encoding runs libwebp on wazero.
package native

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Skryldev/image-converter/adapters/decoder"
	"github.com/Skryldev/image-converter/adapters/encoder"
	"github.com/Skryldev/image-converter/config"
	"github.com/Skryldev/image-converter/core"
	apperrors "github.com/Skryldev/image-converter/errors"
)

// Options configures the runtime.
type Options struct {
	PNGCompression png.CompressionLevel
	WebPMethod     int
	FlattenAlpha   bool
	ReportLeaks    bool
	Logger         core.Logger
}

// Runtime keeps decoded images in a handle table until they are released.
// Safe for concurrent use.
type Runtime struct {
	opts     Options
	encoders encoder.Set

	mu      sync.Mutex
	started bool
	live    map[string]*Handle

	decoded  int64
	released int64
}

// New creates a stopped Runtime.
func New(opts Options) *Runtime {
	return &Runtime{
		opts: opts,
		encoders: encoder.NewSet(
			encoder.NewPNG(opts.PNGCompression),
			encoder.NewJPEG(opts.FlattenAlpha),
			encoder.NewWebP(opts.WebPMethod),
		),
		live: make(map[string]*Handle),
	}
}

// Factory builds a native Runtime from configuration.
func Factory(cfg config.Config) (core.Runtime, error) {
	return New(Options{
		PNGCompression: png.CompressionLevel(cfg.Native.PNGCompression),
		WebPMethod:     cfg.Native.WebPMethod,
		FlattenAlpha:   cfg.Native.FlattenAlpha,
		ReportLeaks:    true,
	}), nil
}

func (r *Runtime) Name() string { return "native" }

// SetLogger attaches a logger used for leak reports.
func (r *Runtime) SetLogger(l core.Logger) { r.opts.Logger = l }

// Startup compiles the WASM encoder by pushing a 1x1 image through it, so
// the first real conversion does not pay for it.
func (r *Runtime) Startup(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	warm := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	warm.Set(0, 0, color.NRGBA{A: 255})
	var buf bytes.Buffer
	if err := r.encoders[core.FormatWebP].Encode(&buf, warm, core.EncodeOptions{Quality: 50}); err != nil {
		return fmt.Errorf("native startup: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	return nil
}

// Shutdown stops the runtime and drops any handles that were never released.
func (r *Runtime) Shutdown() {
	r.mu.Lock()
	leaked := len(r.live)
	r.live = make(map[string]*Handle)
	r.started = false
	r.mu.Unlock()

	if leaked > 0 && r.opts.ReportLeaks && r.opts.Logger != nil {
		r.opts.Logger.Warn("native.shutdown.leaked_handles", "count", leaked)
	}
}

// Decode parses data and registers the image in the handle table.
func (r *Runtime) Decode(data []byte) (core.ImageHandle, error) {
	if !r.isStarted() {
		return nil, apperrors.ErrRuntimeClosed
	}
	img, info, err := decoder.Decode(data)
	if err != nil {
		return nil, err
	}
	h := &Handle{id: uuid.NewString(), img: img, info: info, rt: r}

	r.mu.Lock()
	r.live[h.id] = h
	r.mu.Unlock()
	atomic.AddInt64(&r.decoded, 1)
	return h, nil
}

// Encode writes h in format.
func (r *Runtime) Encode(h core.ImageHandle, format core.Format, opts core.EncodeOptions) ([]byte, error) {
	nh, ok := h.(*Handle)
	if !ok || nh == nil {
		return nil, fmt.Errorf("native encode: handle %T was not created by this runtime", h)
	}
	img, err := nh.image()
	if err != nil {
		return nil, err
	}
	enc, ok := r.encoders[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format)
	}
	var buf bytes.Buffer
	if err := enc.Encode(&buf, img, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Live returns the number of handles decoded but not yet released.
func (r *Runtime) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Stats returns lifetime decode and release counts.
func (r *Runtime) Stats() (decoded, released int64) {
	return atomic.LoadInt64(&r.decoded), atomic.LoadInt64(&r.released)
}

func (r *Runtime) isStarted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

func (r *Runtime) release(h *Handle) {
	r.mu.Lock()
	_, ok := r.live[h.id]
	delete(r.live, h.id)
	r.mu.Unlock()
	if ok {
		atomic.AddInt64(&r.released, 1)
	}
}

// ─── Handle ───────────────────────────────────────────────────────────────────

// Handle is a decoded image owned by the native runtime.
type Handle struct {
	id   string
	info decoder.Info
	rt   *Runtime

	mu       sync.Mutex
	img      image.Image
	released bool
}

func (h *Handle) Width() int  { return h.info.Width }
func (h *Handle) Height() int { return h.info.Height }

// Info returns what the decoder learned about the image.
func (h *Handle) Info() decoder.Info { return h.info }

// Release drops the pixel buffer.  Later calls are no-ops.
func (h *Handle) Release() {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	h.img = nil
	h.mu.Unlock()
	h.rt.release(h)
}

func (h *Handle) image() (image.Image, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, fmt.Errorf("native: handle %s used after release", h.id)
	}
	return h.img, nil
}
