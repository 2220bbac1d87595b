package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricParseDuration   = "aql.parse.duration"
	metricParseCount      = "aql.parse.count"
	metricFilterDuration  = "aql.filter.duration"
	metricItemsIn         = "aql.filter.items_in"
	metricItemsOut        = "aql.filter.items_out"
	metricDBQueryDuration = "aql.db.query.duration"
	metricErrorCount      = "aql.error.count"
)

// Metrics holds the AQL-specific metric instruments.
type Metrics struct {
	parseDuration   metric.Float64Histogram
	parseCount      metric.Int64Counter
	filterDuration  metric.Float64Histogram
	itemsIn         metric.Int64Histogram
	itemsOut        metric.Int64Histogram
	dbQueryDuration metric.Float64Histogram
	errorCount      metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with the given MeterProvider.
func NewMetrics(mp metric.MeterProvider) *Metrics {
	meter := mp.Meter(MeterName)
	m := &Metrics{}

	// Note: errors from meter instrument creation are unlikely in practice
	// and would only occur with invalid parameters. We use explicit checks
	// to satisfy the linter while continuing with partial metrics on error.
	var err error

	m.parseDuration, err = meter.Float64Histogram(
		metricParseDuration,
		metric.WithDescription("Duration of AQL parses in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		m.parseDuration, _ = meter.Float64Histogram(metricParseDuration)
	}

	m.parseCount, err = meter.Int64Counter(
		metricParseCount,
		metric.WithDescription("Total number of AQL parses"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		m.parseCount, _ = meter.Int64Counter(metricParseCount)
	}

	m.filterDuration, err = meter.Float64Histogram(
		metricFilterDuration,
		metric.WithDescription("Duration of AQL filter evaluations in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		m.filterDuration, _ = meter.Float64Histogram(metricFilterDuration)
	}

	m.itemsIn, err = meter.Int64Histogram(
		metricItemsIn,
		metric.WithDescription("Number of records passed to a filter"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		m.itemsIn, _ = meter.Int64Histogram(metricItemsIn)
	}

	m.itemsOut, err = meter.Int64Histogram(
		metricItemsOut,
		metric.WithDescription("Number of records matching a filter"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		m.itemsOut, _ = meter.Int64Histogram(metricItemsOut)
	}

	m.dbQueryDuration, err = meter.Float64Histogram(
		metricDBQueryDuration,
		metric.WithDescription("Duration of database queries in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		m.dbQueryDuration, _ = meter.Float64Histogram(metricDBQueryDuration)
	}

	m.errorCount, err = meter.Int64Counter(
		metricErrorCount,
		metric.WithDescription("Total number of rejected AQL queries"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.errorCount, _ = meter.Int64Counter(metricErrorCount)
	}

	return m
}

// RecordParse records a completed parse. An empty code means the query was accepted.
func (m *Metrics) RecordParse(ctx context.Context, duration time.Duration, cacheHit bool, code string) {
	attrs := []attribute.KeyValue{CacheHitAttr(cacheHit), attribute.Bool(AttrParseOK, code == "")}
	m.parseDuration.Record(ctx, durationMillis(duration), metric.WithAttributes(attrs...))
	m.parseCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	if code != "" {
		m.errorCount.Add(ctx, 1, metric.WithAttributes(ErrorCodeAttr(code)))
	}
}

// RecordFilter records a completed filter evaluation.
func (m *Metrics) RecordFilter(ctx context.Context, mode string, in, out int, duration time.Duration) {
	attrs := metric.WithAttributes(FilterModeAttr(mode))
	m.filterDuration.Record(ctx, durationMillis(duration), attrs)
	m.itemsIn.Record(ctx, int64(in), attrs)
	m.itemsOut.Record(ctx, int64(out), attrs)
}

// RecordDBQuery records metrics for a database query.
func (m *Metrics) RecordDBQuery(ctx context.Context, operation string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("db.operation", operation))
	m.dbQueryDuration.Record(ctx, durationMillis(duration), attrs)
}

// RecordError records a rejected query outside of parsing, such as a failed
// SQL translation.
func (m *Metrics) RecordError(ctx context.Context, code string) {
	m.errorCount.Add(ctx, 1, metric.WithAttributes(ErrorCodeAttr(code)))
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
