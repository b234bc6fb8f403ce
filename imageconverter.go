// Package imageconverter converts a raster image from one encoded format to
// another in-process.  HEIC/HEIF inputs are normalized to PNG first; outputs
// are png, jpeg or webp.
package imageconverter

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/Skryldev/image-converter/adapters/heic"
	"github.com/Skryldev/image-converter/adapters/native"
	"github.com/Skryldev/image-converter/adapters/storage"
	"github.com/Skryldev/image-converter/config"
	"github.com/Skryldev/image-converter/core"
	apperrors "github.com/Skryldev/image-converter/errors"
	"github.com/Skryldev/image-converter/hooks"
)

// Re-export output Format constants for convenience.
const (
	PNG  = core.FormatPNG
	JPEG = core.FormatJPEG
	WebP = core.FormatWebP
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// DefaultRegistry returns a registry holding the runtimes linked into every
// build.  The vips runtime registers itself via adapters/vips.Register.
func DefaultRegistry() *core.RuntimeRegistry {
	reg := core.NewRuntimeRegistry()
	reg.Register(config.BackendNative, native.Factory)
	return reg
}

// Option customises New.
type Option func(*options)

type options struct {
	runtime  core.Runtime
	registry *core.RuntimeRegistry
	alt      core.AltDecoder
	altSet   bool
	store    core.Store
	logger   core.Logger
}

// WithRuntime uses rt instead of building one from cfg.Backend.
func WithRuntime(rt core.Runtime) Option { return func(o *options) { o.runtime = rt } }

// WithRegistry builds the runtime from reg instead of DefaultRegistry.
func WithRegistry(reg *core.RuntimeRegistry) Option { return func(o *options) { o.registry = reg } }

// WithAltDecoder replaces the HEIC decoder.  nil disables HEIC support.
func WithAltDecoder(d core.AltDecoder) Option {
	return func(o *options) { o.alt, o.altSet = d, true }
}

// WithStore replaces the store selected by cfg.Store.
func WithStore(s core.Store) Option { return func(o *options) { o.store = s } }

// WithLogger attaches a structured logger to every component.
func WithLogger(l core.Logger) Option { return func(o *options) { o.logger = l } }

// Converter is the primary entry point.  Safe for concurrent use.
type Converter struct {
	inner   *core.Converter
	store   core.Store
	rt      core.Runtime
	metrics *hooks.MetricsHook
}

// New validates cfg and wires a Converter.  The codec runtime is not started
// until the first conversion or an explicit EnsureReady.
func New(cfg config.Config, opts ...Option) (*Converter, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "new", err)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	rt := o.runtime
	if rt == nil {
		reg := o.registry
		if reg == nil {
			reg = DefaultRegistry()
		}
		var err error
		if rt, err = reg.Build(cfg); err != nil {
			return nil, err
		}
	}

	alt := o.alt
	if !o.altSet {
		alt = heic.New()
	}

	store := o.store
	if store == nil {
		var err error
		if store, err = newStore(cfg); err != nil {
			return nil, apperrors.New(apperrors.CategoryConfig, "new.store", err)
		}
	}

	c := &Converter{
		inner:   core.New(cfg, rt, alt, store),
		store:   store,
		rt:      rt,
		metrics: hooks.NewMetricsHook(nil),
	}
	c.inner.AddHook(c.metrics)
	if o.logger != nil {
		c.SetLogger(o.logger)
	}
	return c, nil
}

func newStore(cfg config.Config) (core.Store, error) {
	if cfg.Store == config.StoreLocal {
		return storage.NewLocal(cfg.Local.RootDir, os.FileMode(cfg.Local.Permissions), cfg.ChunkSize)
	}
	return storage.NewMemory(cfg.Memory.MaxBytes), nil
}

// SetLogger attaches a structured logger.
func (c *Converter) SetLogger(l core.Logger) {
	c.inner.SetLogger(l)
	if ls, ok := c.rt.(interface{ SetLogger(core.Logger) }); ok {
		ls.SetLogger(l)
	}
}

// SetMetrics attaches a metrics collector for both conversion totals and
// per-stage observations, replacing any earlier one.  nil detaches it.
// Not safe to call concurrently with Convert.
func (c *Converter) SetMetrics(m core.MetricsCollector) {
	c.inner.SetMetrics(m)
	c.metrics.SetCollector(m)
}

// AddHook registers an observer for stage events.
func (c *Converter) AddHook(h core.Hook) { c.inner.AddHook(h) }

// EnsureReady starts the codec runtime if it is not running yet.
func (c *Converter) EnsureReady(ctx context.Context) error { return c.inner.Loader().EnsureReady(ctx) }

// Convert runs one conversion and returns a handle to the stored output.
func (c *Converter) Convert(ctx context.Context, in core.Input, t core.Target) (*core.Result, error) {
	return c.inner.Convert(ctx, in, t)
}

// Open reads back an output returned by Convert.
func (c *Converter) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	return c.store.Open(ctx, handle)
}

// Revoke releases an output.  The converter never does this on its own.
func (c *Converter) Revoke(ctx context.Context, handle string) error {
	return c.store.Revoke(ctx, handle)
}

// Store returns the output store.
func (c *Converter) Store() core.Store { return c.store }

// Core exposes the underlying orchestrator.
func (c *Converter) Core() *core.Converter { return c.inner }

// Stats returns lightweight conversion statistics.
func (c *Converter) Stats() (converted, failed int64) {
	return c.inner.ConvertedCount(), c.inner.FailedCount()
}

// Shutdown stops the codec runtime.
func (c *Converter) Shutdown() { c.inner.Shutdown() }

// ── Input and target constructors ─────────────────────────────────────────────

// FromReader creates an Input with no type or name hints.
func FromReader(r io.Reader) core.Input { return core.Input{Reader: r, Size: -1} }

// FromReaderWithMeta creates an Input with known size, media type and name.
func FromReaderWithMeta(r io.Reader, size int64, mediaType, name string) core.Input {
	return core.Input{Reader: r, Size: size, MediaType: mediaType, Name: name}
}

// FromBytes creates an Input over data.
func FromBytes(data []byte, mediaType, name string) core.Input {
	return core.Input{Reader: bytes.NewReader(data), Size: int64(len(data)), MediaType: mediaType, Name: name}
}

// To targets f at the configured default quality.
func To(f core.Format) core.Target { return core.Target{Format: f, Quality: core.QualityDefault} }

// ToQuality targets f at quality q (0-100).
func ToQuality(f core.Format, q int) core.Target { return core.Target{Format: f, Quality: q} }

// UserMessage renders err for display to the person who submitted the image.
func UserMessage(err error) string { return apperrors.UserMessage(err) }
