package observability

import (
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// NewNoopTracer creates a tracer that does nothing.
func NewNoopTracer() *Tracer {
	return &Tracer{
		tracer:      tracenoop.NewTracerProvider().Tracer(""),
		serviceName: "",
	}
}

// NewNoopMetrics creates metrics that do nothing.
func NewNoopMetrics() *Metrics {
	meter := noop.NewMeterProvider().Meter("")
	m := &Metrics{}

	// Note: noop meter never returns errors, but we must check them to satisfy the linter.
	m.parseDuration, _ = meter.Float64Histogram(metricParseDuration)     //nolint:errcheck
	m.parseCount, _ = meter.Int64Counter(metricParseCount)               //nolint:errcheck
	m.filterDuration, _ = meter.Float64Histogram(metricFilterDuration)   //nolint:errcheck
	m.itemsIn, _ = meter.Int64Histogram(metricItemsIn)                   //nolint:errcheck
	m.itemsOut, _ = meter.Int64Histogram(metricItemsOut)                 //nolint:errcheck
	m.dbQueryDuration, _ = meter.Float64Histogram(metricDBQueryDuration) //nolint:errcheck
	m.errorCount, _ = meter.Int64Counter(metricErrorCount)               //nolint:errcheck

	return m
}
