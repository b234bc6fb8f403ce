package hooks

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Skryldev/image-converter/core"
)

// OTelMetrics mirrors converter metrics to OpenTelemetry instruments.
type OTelMetrics struct {
	stageDuration metric.Float64Histogram
	errors        metric.Int64Counter
	conversions   metric.Int64Counter
	outputBytes   metric.Int64Counter
}

// NewOTelMetrics registers instruments on mp, or on the global provider when
// mp is nil.
func NewOTelMetrics(mp metric.MeterProvider) (*OTelMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m := mp.Meter("github.com/Skryldev/image-converter")

	var (
		o   OTelMetrics
		err error
	)
	if o.stageDuration, err = m.Float64Histogram("imgconv.stage.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Time spent in each conversion stage"),
	); err != nil {
		return nil, err
	}
	if o.errors, err = m.Int64Counter("imgconv.errors",
		metric.WithDescription("Failed conversions by stage and category"),
	); err != nil {
		return nil, err
	}
	if o.conversions, err = m.Int64Counter("imgconv.conversions",
		metric.WithDescription("Completed conversions by source and target format"),
	); err != nil {
		return nil, err
	}
	if o.outputBytes, err = m.Int64Counter("imgconv.output.bytes",
		metric.WithUnit("By"),
		metric.WithDescription("Bytes of assembled output"),
	); err != nil {
		return nil, err
	}
	return &o, nil
}

func (o *OTelMetrics) RecordStageTime(stage string, d time.Duration) {
	o.stageDuration.Record(context.Background(), float64(d.Microseconds())/1000,
		metric.WithAttributes(attribute.String("stage", stage)))
}

func (o *OTelMetrics) RecordThroughput(bytes int64) {
	o.outputBytes.Add(context.Background(), bytes)
}

func (o *OTelMetrics) RecordError(stage string, category string) {
	o.errors.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("category", category),
	))
}

func (o *OTelMetrics) RecordConversion(from, to core.Format) {
	o.conversions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
}

// Multi fans every observation out to several collectors.
type Multi []core.MetricsCollector

func (m Multi) RecordStageTime(stage string, d time.Duration) {
	for _, c := range m {
		c.RecordStageTime(stage, d)
	}
}

func (m Multi) RecordThroughput(bytes int64) {
	for _, c := range m {
		c.RecordThroughput(bytes)
	}
}

func (m Multi) RecordError(stage string, category string) {
	for _, c := range m {
		c.RecordError(stage, category)
	}
}

func (m Multi) RecordConversion(from, to core.Format) {
	for _, c := range m {
		c.RecordConversion(from, to)
	}
}

var (
	_ core.MetricsCollector = (*OTelMetrics)(nil)
	_ core.MetricsCollector = Multi(nil)
)
