package core

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Skryldev/image-converter/config"
	apperrors "github.com/Skryldev/image-converter/errors"
	"github.com/Skryldev/image-converter/utils"
)

// Converter is the conversion orchestrator.  It is safe for concurrent use;
// invocations share only the Loader.
type Converter struct {
	cfg        config.Config
	loader     *Loader
	normalizer *Normalizer
	bridge     *Bridge
	assembler  *Assembler

	hooks   []Hook
	logger  Logger
	metrics MetricsCollector

	convertedCount int64
	failedCount    int64
}

// New creates a Converter.  alt may be nil when HEIC support is not linked in.
func New(cfg config.Config, rt Runtime, alt AltDecoder, store Store) *Converter {
	base := EncodeOptions{
		StripMetadata: cfg.StripMetadata,
		Lossless:      cfg.WebPLossless,
		Interlaced:    cfg.Interlace,
	}
	return &Converter{
		cfg:        cfg,
		loader:     NewLoader(rt, cfg.InitTimeout),
		normalizer: NewNormalizer(alt),
		bridge:     NewBridge(rt, cfg.DefaultQuality, base),
		assembler:  NewAssembler(store),
		logger:     nopLogger{},
	}
}

// SetLogger attaches a structured logger.
func (c *Converter) SetLogger(l Logger) {
	if l == nil {
		return
	}
	c.logger = l
	c.loader.SetLogger(l)
	c.normalizer.SetLogger(l)
}

// SetMetrics attaches a collector for per-conversion totals.  Per-stage
// timings and errors flow through hooks.MetricsHook.
func (c *Converter) SetMetrics(m MetricsCollector) { c.metrics = m }

// AddHook registers a stage observer.  Not safe to call concurrently with Convert.
func (c *Converter) AddHook(h Hook) { c.hooks = append(c.hooks, h) }

// Loader exposes the shared runtime loader.
func (c *Converter) Loader() *Loader { return c.loader }

// Bridge exposes the codec bridge for direct decode/encode use.
func (c *Converter) Bridge() *Bridge { return c.bridge }

// Convert runs one invocation: runtime readiness, normalization, decode,
// encode, assembly.  Nothing is retried; the first failing stage ends the
// invocation and its error carries the failure category.
func (c *Converter) Convert(ctx context.Context, in Input, t Target) (*Result, error) {
	inv := c.begin(ctx, in, t)

	if err := c.bridge.ValidateTarget(t); err != nil {
		return nil, inv.fail(err)
	}

	inv.enter(StateRuntimeLoading)
	if err := c.loader.EnsureReady(ctx); err != nil {
		return nil, inv.fail(err)
	}

	inv.enter(StateNormalizing)
	raw, err := c.drain(ctx, in)
	if err != nil {
		return nil, inv.fail(err)
	}
	nb, err := c.normalizer.Normalize(ctx, raw, in.MediaType, in.Name)
	if err != nil {
		return nil, inv.fail(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, inv.fail(err)
	}

	res, err := c.bridge.Convert(ctx, nb, t, inv.enter)
	if err != nil {
		return nil, inv.fail(err)
	}

	inv.enter(StateAssembling)
	out, err := c.assembler.Assemble(ctx, res, utils.SuggestedName(in.Name, t.Format.Extension()))
	if err != nil {
		return nil, inv.fail(err)
	}

	inv.enter(StateDone)
	atomic.AddInt64(&c.convertedCount, 1)
	if c.metrics != nil {
		c.metrics.RecordConversion(nb.Source, t.Format)
		c.metrics.RecordThroughput(out.Size)
	}

	total := time.Since(inv.start)
	c.logger.Info("convert.done",
		"id", inv.id,
		"from", nb.Source,
		"to", t.Format,
		"heic", nb.Converted,
		"in_bytes", len(raw),
		"out_bytes", out.Size,
		"duration_ms", total.Milliseconds(),
	)
	return &Result{
		ID:             inv.id,
		Output:         out,
		States:         inv.states,
		StageTimings:   inv.timings,
		ProcessingTime: total,
	}, nil
}

// drain reads the whole input, enforcing MaxInputBytes.
func (c *Converter) drain(ctx context.Context, in Input) ([]byte, error) {
	const op = "convert.read"
	if in.Reader == nil {
		return nil, apperrors.New(apperrors.CategoryInput, op, apperrors.ErrEmptyInput)
	}
	limit := c.cfg.MaxInputBytes
	if limit > 0 && in.Size > limit {
		return nil, apperrors.New(apperrors.CategoryInput, op,
			fmt.Errorf("%w: %d > %d bytes", apperrors.ErrInputTooLarge, in.Size, limit))
	}

	r := in.Reader
	if limit > 0 {
		r = &utils.LimitedReader{R: in.Reader, Max: limit}
	}
	buf, err := utils.DrainReader(ctx, r, c.cfg.ChunkSize, in.Size)
	if err != nil {
		if errors.Is(err, utils.ErrLimitExceeded) {
			err = fmt.Errorf("%w: more than %d bytes", apperrors.ErrInputTooLarge, limit)
		}
		return nil, apperrors.New(apperrors.CategoryInput, op, err)
	}
	raw := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	if len(raw) == 0 {
		return nil, apperrors.New(apperrors.CategoryInput, op, apperrors.ErrEmptyInput)
	}
	return raw, nil
}

// ConvertedCount returns the number of successful conversions.
func (c *Converter) ConvertedCount() int64 { return atomic.LoadInt64(&c.convertedCount) }

// FailedCount returns the number of failed conversions.
func (c *Converter) FailedCount() int64 { return atomic.LoadInt64(&c.failedCount) }

// Shutdown stops the codec runtime.
func (c *Converter) Shutdown() { c.loader.Shutdown() }

// ── invocation state machine ──────────────────────────────────────────────────

type invocation struct {
	c   *Converter
	ctx context.Context
	id  string

	state      State
	states     []State
	start      time.Time
	stageStart time.Time
	timings    map[State]time.Duration
}

func (c *Converter) begin(ctx context.Context, in Input, t Target) *invocation {
	inv := &invocation{
		c:       c,
		ctx:     ctx,
		id:      uuid.NewString(),
		state:   StateIdle,
		states:  []State{StateIdle},
		start:   time.Now(),
		timings: make(map[State]time.Duration, 5),
	}
	c.logger.Debug("convert.start",
		"id", inv.id,
		"name", in.Name,
		"media_type", in.MediaType,
		"target", t.Format,
		"quality", t.Quality,
	)
	return inv
}

func (inv *invocation) enter(s State) {
	if !CanTransition(inv.state, s) {
		panic(fmt.Sprintf("core: illegal state transition %s -> %s", inv.state, s))
	}
	inv.finishStage(nil)
	inv.state = s
	inv.states = append(inv.states, s)
	if s.Terminal() {
		return
	}
	inv.stageStart = time.Now()
	for _, h := range inv.c.hooks {
		h.BeforeStage(inv.ctx, inv.id, s)
	}
}

func (inv *invocation) finishStage(err error) {
	if inv.state == StateIdle || inv.state.Terminal() {
		return
	}
	d := time.Since(inv.stageStart)
	inv.timings[inv.state] = d
	for _, h := range inv.c.hooks {
		h.AfterStage(inv.ctx, inv.id, inv.state, d, err)
	}
}

func (inv *invocation) fail(err error) error {
	stage := inv.state
	err = apperrors.Wrap(stageCategory(stage), "convert."+stage.String(), err)
	inv.finishStage(err)
	inv.state = StateFailed
	inv.states = append(inv.states, StateFailed)

	atomic.AddInt64(&inv.c.failedCount, 1)
	inv.c.logger.Warn("convert.failed",
		"id", inv.id,
		"stage", stage,
		"category", apperrors.CategoryOf(err),
		"error", err.Error(),
	)
	return err
}

// stageCategory classifies errors that reach fail without a category, such
// as context cancellation between stages.
func stageCategory(s State) apperrors.Category {
	switch s {
	case StateRuntimeLoading:
		return apperrors.CategoryRuntime
	case StateDecoding:
		return apperrors.CategoryDecode
	case StateEncoding:
		return apperrors.CategoryEncode
	case StateAssembling:
		return apperrors.CategoryAllocation
	}
	return apperrors.CategoryInput
}
