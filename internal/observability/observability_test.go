package observability

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(
		WithServiceName("test-service"),
		WithServiceVersion("1.2.3"),
		WithDetailedDBTracing(),
		WithQueryTracing(),
		WithServerTiming(),
	)

	assert.Equal(t, "test-service", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.True(t, cfg.EnableDetailedDBTracing)
	assert.True(t, cfg.QueryTracingEnabled())
	assert.True(t, cfg.ServerTimingEnabled())
	assert.False(t, cfg.IsEnabled())
}

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, "aql", cfg.ServiceName)
	assert.False(t, cfg.QueryTracingEnabled())
	assert.False(t, cfg.ServerTimingEnabled())
}

func TestConfigInitialize(t *testing.T) {
	cfg := NewConfig(
		WithTracerProvider(tracenoop.NewTracerProvider()),
		WithMeterProvider(noop.NewMeterProvider()),
	)

	require.NoError(t, cfg.Initialize())
	assert.True(t, cfg.IsEnabled())
	assert.NotNil(t, cfg.Tracer())
	assert.NotNil(t, cfg.Metrics())
}

func TestConfigInitializeNoProviders(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Initialize())
	assert.NotNil(t, cfg.Tracer())
	assert.NotNil(t, cfg.Metrics())
}

func TestNilConfig(t *testing.T) {
	var cfg *Config
	assert.NotNil(t, cfg.Tracer())
	assert.NotNil(t, cfg.Metrics())
	assert.False(t, cfg.IsEnabled())
	assert.False(t, cfg.ServerTimingEnabled())
	assert.False(t, cfg.QueryTracingEnabled())
}

func TestNoopMetrics(t *testing.T) {
	m := NewNoopMetrics()
	ctx := context.Background()

	// None of these may panic.
	m.RecordParse(ctx, time.Millisecond, false, "")
	m.RecordParse(ctx, time.Millisecond, true, "UnexpectedToken")
	m.RecordFilter(ctx, FilterModeMemory, 10, 3, time.Millisecond)
	m.RecordDBQuery(ctx, "SELECT", time.Millisecond)
	m.RecordError(ctx, "Unknown")
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestMetricsRecordParse(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m := NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	ctx := context.Background()

	m.RecordParse(ctx, 2*time.Millisecond, false, "")
	m.RecordParse(ctx, time.Millisecond, false, "UnbalancedParenthesis")

	got := collectMetrics(t, reader)
	require.Contains(t, got, metricParseDuration)
	require.Contains(t, got, metricParseCount)
	require.Contains(t, got, metricErrorCount)

	count, ok := got[metricParseCount].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range count.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(2), total)

	errs, ok := got[metricErrorCount].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, errs.DataPoints, 1)
	code, ok := errs.DataPoints[0].Attributes.Value(AttrErrorCode)
	require.True(t, ok)
	assert.Equal(t, "UnbalancedParenthesis", code.AsString())
}

func TestMetricsRecordFilter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m := NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	m.RecordFilter(context.Background(), FilterModeSQL, 100, 7, time.Millisecond)

	got := collectMetrics(t, reader)
	out, ok := got[metricItemsOut].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, out.DataPoints, 1)
	assert.Equal(t, int64(7), out.DataPoints[0].Sum)
	mode, ok := out.DataPoints[0].Attributes.Value(AttrFilterMode)
	require.True(t, ok)
	assert.Equal(t, FilterModeSQL, mode.AsString())
}

func TestServerTimingMetricEmptyStop(t *testing.T) {
	metric := &ServerTimingMetric{}
	metric.Stop()

	var nilMetric *ServerTimingMetric
	nilMetric.Stop()
}

func TestStartServerTimingWithoutHeader(t *testing.T) {
	m := StartServerTiming(context.Background(), "parse")
	require.NotNil(t, m)
	m.Stop()
	RecordServerTiming(context.Background(), "db", "", time.Millisecond)
}

func TestDBTimeAccumulator(t *testing.T) {
	acc := &DBTimeAccumulator{}
	acc.Add(10 * time.Millisecond)
	acc.Add(20 * time.Millisecond)
	acc.Add(30 * time.Millisecond)
	assert.Equal(t, 60*time.Millisecond, acc.Duration())
}

func TestDBTimeAccumulatorConcurrent(t *testing.T) {
	acc := &DBTimeAccumulator{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				acc.Add(time.Millisecond)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, time.Second, acc.Duration())
}

func TestAddDBTime(t *testing.T) {
	assert.Nil(t, DBTimeAccumulatorFromContext(context.Background()))
	AddDBTime(context.Background(), time.Millisecond)

	ctx := WithDBTimeAccumulator(context.Background())
	AddDBTime(ctx, 50*time.Millisecond)
	AddDBTime(ctx, 100*time.Millisecond)

	acc := DBTimeAccumulatorFromContext(ctx)
	require.NotNil(t, acc)
	assert.Equal(t, 150*time.Millisecond, acc.Duration())
}

type timedResult struct {
	ID     int `gorm:"primarykey"`
	Status string
}

func TestServerTimingCallbacksIntegration(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&timedResult{}))
	require.NoError(t, RegisterServerTimingCallbacks(db))

	ctx := WithDBTimeAccumulator(context.Background())
	require.NoError(t, db.WithContext(ctx).Create(&timedResult{ID: 1, Status: "passed"}).Error)

	acc := DBTimeAccumulatorFromContext(ctx)
	require.NotNil(t, acc)
	first := acc.Duration()
	assert.Greater(t, int64(first), int64(0))

	var results []timedResult
	require.NoError(t, db.WithContext(ctx).Find(&results).Error)
	assert.Greater(t, int64(acc.Duration()), int64(first))
}

func TestGORMCallbacksTraceQueries(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()

	cfg := NewConfig(
		WithTracerProvider(tp),
		WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))),
		WithDetailedDBTracing(),
	)
	require.NoError(t, cfg.Initialize())

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&timedResult{}))
	require.NoError(t, RegisterGORMCallbacks(db, cfg))

	require.NoError(t, db.Create(&timedResult{ID: 1, Status: "failed"}).Error)
	var results []timedResult
	require.NoError(t, db.Where("status = ?", "failed").Find(&results).Error)

	names := make([]string, 0)
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Contains(t, names, "db.create")
	assert.Contains(t, names, "db.query")
	assert.Contains(t, collectMetrics(t, reader), metricDBQueryDuration)
}

func TestRegisterGORMCallbacksDisabled(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, RegisterGORMCallbacks(db, nil))
	require.NoError(t, RegisterGORMCallbacks(db, NewConfig()))
}
