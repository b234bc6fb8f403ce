// Package hooks provides production-ready Hook, Logger and MetricsCollector
// implementations.
package hooks

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Skryldev/image-converter/core"
	apperrors "github.com/Skryldev/image-converter/errors"
)

// ── Structured logger adapter ─────────────────────────────────────────────────

// SlogLogger wraps the standard library slog.Logger to satisfy core.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a logger backed by slog.
func NewSlogLogger(l *slog.Logger) *SlogLogger { return &SlogLogger{log: l} }

func (s *SlogLogger) Debug(msg string, fields ...interface{}) { s.log.Debug(msg, fields...) }
func (s *SlogLogger) Info(msg string, fields ...interface{})  { s.log.Info(msg, fields...) }
func (s *SlogLogger) Warn(msg string, fields ...interface{})  { s.log.Warn(msg, fields...) }
func (s *SlogLogger) Error(msg string, fields ...interface{}) { s.log.Error(msg, fields...) }

// ── Logging hook ──────────────────────────────────────────────────────────────

// LoggingHook logs the start and end of every conversion stage.
type LoggingHook struct {
	logger core.Logger
}

// NewLoggingHook creates a LoggingHook.
func NewLoggingHook(l core.Logger) *LoggingHook { return &LoggingHook{logger: l} }

func (h *LoggingHook) BeforeStage(_ context.Context, id string, stage core.State) {
	h.logger.Debug("convert.stage.start", "id", id, "stage", stage.String())
}

func (h *LoggingHook) AfterStage(_ context.Context, id string, stage core.State, d time.Duration, err error) {
	if err != nil {
		h.logger.Error("convert.stage.error",
			"id", id,
			"stage", stage.String(),
			"duration_ms", d.Milliseconds(),
			"category", string(apperrors.CategoryOf(err)),
			"error", err.Error(),
		)
		return
	}
	h.logger.Debug("convert.stage.done",
		"id", id,
		"stage", stage.String(),
		"duration_ms", d.Milliseconds(),
	)
}

// ── In-memory metrics collector ───────────────────────────────────────────────

// InMemoryMetrics accumulates metrics; safe for concurrent use.
type InMemoryMetrics struct {
	mu sync.RWMutex

	stageDurationsMs map[string]int64 // cumulative ms per stage
	stageCalls       map[string]int64 // call count per stage
	stageErrors      map[string]int64
	categoryErrors   map[string]int64
	conversions      map[string]int64 // keyed "from->to"

	totalThroughputB int64
}

// NewInMemoryMetrics creates an empty metrics store.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		stageDurationsMs: make(map[string]int64),
		stageCalls:       make(map[string]int64),
		stageErrors:      make(map[string]int64),
		categoryErrors:   make(map[string]int64),
		conversions:      make(map[string]int64),
	}
}

func (m *InMemoryMetrics) RecordStageTime(stage string, d time.Duration) {
	m.mu.Lock()
	m.stageDurationsMs[stage] += d.Milliseconds()
	m.stageCalls[stage]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordThroughput(bytes int64) {
	atomic.AddInt64(&m.totalThroughputB, bytes)
}

func (m *InMemoryMetrics) RecordError(stage string, category string) {
	m.mu.Lock()
	m.stageErrors[stage]++
	m.categoryErrors[category]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordConversion(from, to core.Format) {
	m.mu.Lock()
	m.conversions[string(from)+"->"+string(to)]++
	m.mu.Unlock()
}

// Snapshot returns a copy of current metrics.
func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		StageDurationsMs: copyCounts(m.stageDurationsMs),
		StageCalls:       copyCounts(m.stageCalls),
		StageErrors:      copyCounts(m.stageErrors),
		CategoryErrors:   copyCounts(m.categoryErrors),
		Conversions:      copyCounts(m.conversions),
		TotalThroughputB: atomic.LoadInt64(&m.totalThroughputB),
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// MetricsSnapshot is an immutable point-in-time copy of metrics.
type MetricsSnapshot struct {
	StageDurationsMs map[string]int64
	StageCalls       map[string]int64
	StageErrors      map[string]int64
	CategoryErrors   map[string]int64
	Conversions      map[string]int64
	TotalThroughputB int64
}

// ── Metrics hook ──────────────────────────────────────────────────────────────

// MetricsHook feeds stage events into a MetricsCollector.  The collector can
// be swapped or cleared while conversions run; a nil collector records nothing.
type MetricsHook struct {
	mu        sync.RWMutex
	collector core.MetricsCollector
}

// NewMetricsHook creates a MetricsHook.  c may be nil.
func NewMetricsHook(c core.MetricsCollector) *MetricsHook { return &MetricsHook{collector: c} }

// SetCollector replaces the collector.
func (h *MetricsHook) SetCollector(c core.MetricsCollector) {
	h.mu.Lock()
	h.collector = c
	h.mu.Unlock()
}

func (h *MetricsHook) BeforeStage(context.Context, string, core.State) {}

func (h *MetricsHook) AfterStage(_ context.Context, _ string, stage core.State, d time.Duration, err error) {
	h.mu.RLock()
	c := h.collector
	h.mu.RUnlock()
	if c == nil {
		return
	}
	c.RecordStageTime(stage.String(), d)
	if err != nil {
		c.RecordError(stage.String(), string(apperrors.CategoryOf(err)))
	}
}

var (
	_ core.Hook             = (*LoggingHook)(nil)
	_ core.Hook             = (*MetricsHook)(nil)
	_ core.MetricsCollector = (*InMemoryMetrics)(nil)
	_ core.Logger           = (*SlogLogger)(nil)
	_ core.Logger           = (*ZerologLogger)(nil)
)
