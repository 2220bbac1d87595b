package aql

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nlstn/go-aql/internal/aqlerrors"
	"github.com/nlstn/go-aql/internal/observability"
	"github.com/nlstn/go-aql/internal/query"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// ObservabilityConfig configures tracing and metrics for an Engine.
type ObservabilityConfig struct {
	// TracerProvider is the OpenTelemetry tracer provider. Nil disables tracing.
	TracerProvider trace.TracerProvider

	// MeterProvider is the OpenTelemetry meter provider. Nil disables metrics.
	MeterProvider metric.MeterProvider

	// ServiceName identifies the service in traces and metrics.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// EnableDetailedDBTracing traces individual queries on GORM handles
	// registered with Engine.InstrumentDB.
	EnableDetailedDBTracing bool

	// EnableQueryTracing records the raw query text on parse spans.
	EnableQueryTracing bool

	// EnableServerTiming adds parse and filter durations to the
	// Server-Timing header of requests carrying timing information.
	EnableServerTiming bool
}

func (c ObservabilityConfig) options() []observability.Option {
	opts := []observability.Option{
		observability.WithTracerProvider(c.TracerProvider),
		observability.WithMeterProvider(c.MeterProvider),
	}
	if c.ServiceName != "" {
		opts = append(opts, observability.WithServiceName(c.ServiceName))
	}
	if c.ServiceVersion != "" {
		opts = append(opts, observability.WithServiceVersion(c.ServiceVersion))
	}
	if c.EnableDetailedDBTracing {
		opts = append(opts, observability.WithDetailedDBTracing())
	}
	if c.EnableQueryTracing {
		opts = append(opts, observability.WithQueryTracing())
	}
	if c.EnableServerTiming {
		opts = append(opts, observability.WithServerTiming())
	}
	return opts
}

// Engine bundles parsing and filtering with logging, tracing, metrics and a
// parse cache for long-running consumers. An Engine is safe for concurrent use
// once configured; the setters must not race with queries.
type Engine struct {
	logger        *slog.Logger
	observability *observability.Config
	cache         *query.ParseCache
	cacheSize     int
	obsConfig     *ObservabilityConfig
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger. A nil logger uses slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithObservability enables OpenTelemetry instrumentation.
func WithObservability(cfg ObservabilityConfig) EngineOption {
	return func(e *Engine) {
		e.obsConfig = &cfg
	}
}

// WithParseCacheSize sets how many unrestricted queries are cached.
// Zero uses the default size and a negative size disables caching.
func WithParseCacheSize(size int) EngineOption {
	return func(e *Engine) {
		e.cacheSize = size
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...EngineOption) (*Engine, error) {
	e := &Engine{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	e.SetLogger(e.logger)
	if e.cacheSize >= 0 {
		e.cache = query.NewParseCache(e.cacheSize)
	}

	obs := ObservabilityConfig{}
	if e.obsConfig != nil {
		obs = *e.obsConfig
	}
	if err := e.SetObservability(obs); err != nil {
		return nil, err
	}
	return e, nil
}

// SetLogger replaces the engine's logger. A nil logger uses slog.Default().
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetObservability replaces the engine's instrumentation.
func (e *Engine) SetObservability(cfg ObservabilityConfig) error {
	obs := observability.NewConfig(cfg.options()...)
	if err := obs.Initialize(); err != nil {
		return err
	}
	e.observability = obs
	return nil
}

// Observability returns the active observability configuration.
func (e *Engine) Observability() *observability.Config {
	return e.observability
}

// CachedQueries returns the number of parsed queries currently cached.
func (e *Engine) CachedQueries() int {
	if e.cache == nil {
		return 0
	}
	return e.cache.Len()
}

// InstrumentDB registers tracing and server-timing callbacks on db.
// Tracing callbacks are only added when detailed DB tracing is enabled.
func (e *Engine) InstrumentDB(db *gorm.DB) error {
	if err := observability.RegisterGORMCallbacks(db, e.observability); err != nil {
		return err
	}
	if e.observability.ServerTimingEnabled() {
		return observability.RegisterServerTimingCallbacks(db)
	}
	return nil
}

// Parse parses text like the package-level Parse. Queries without context
// values or a parser config are served from the parse cache.
func (e *Engine) Parse(ctx context.Context, text string, opts ...ParseOption) (*ParseResult, error) {
	o := collectParseOptions(opts)
	tracer := e.observability.Tracer()
	ctx, span := tracer.StartParse(ctx, text, e.observability.QueryTracingEnabled(), o.config != nil, len(o.values))
	defer span.End()
	if e.observability.ServerTimingEnabled() {
		defer observability.StartServerTimingWithDesc(ctx, "aql-parse", "AQL parse").Stop()
	}

	start := time.Now()
	var (
		result *ParseResult
		hit    bool
		err    error
	)
	if e.cache != nil && o.config == nil && len(o.values) == 0 {
		result, hit, err = e.parseCached(text)
	} else {
		result, err = Parse(text, opts...)
	}
	duration := time.Since(start)

	logger := observability.LoggerWithTrace(ctx, e.logger)
	span.SetAttributes(observability.CacheHitAttr(hit))
	if err != nil {
		code := string(CodeOf(err))
		tracer.RecordQueryError(span, code, err)
		e.observability.Metrics().RecordParse(ctx, duration, hit, code)
		logger.Info("aql query rejected",
			slog.String(observability.LogFieldQuery, text),
			slog.String(observability.LogFieldCode, code),
			slog.String(observability.LogFieldError, err.Error()),
		)
		return nil, err
	}

	e.observability.Metrics().RecordParse(ctx, duration, hit, "")
	if logger.Enabled(ctx, slog.LevelDebug) {
		canonical, _ := query.String(result.Expression) //nolint:errcheck
		logger.Debug("aql query accepted",
			slog.String(observability.LogFieldCanonical, canonical),
			slog.Bool("cache_hit", hit),
			slog.Float64(observability.LogFieldDuration, float64(duration)/float64(time.Millisecond)),
		)
	}
	return result, nil
}

func (e *Engine) parseCached(text string) (result *ParseResult, hit bool, err error) {
	defer recoverError(&err)

	expr, hit, err := e.cache.Parse(text)
	if err != nil {
		return nil, false, aqlerrors.Wrap(err)
	}
	return &ParseResult{Expression: expr}, hit, nil
}

// Filter parses text and returns the matching items in their original order.
func (e *Engine) Filter(ctx context.Context, items []Record, text string, opts ...ParseOption) ([]Record, error) {
	result, err := e.Parse(ctx, text, opts...)
	if err != nil {
		return nil, err
	}
	return e.FilterExpression(ctx, items, result.Expression)
}

// FilterExpression returns the items matching a previously parsed expression.
func (e *Engine) FilterExpression(ctx context.Context, items []Record, expr Expression) ([]Record, error) {
	tracer := e.observability.Tracer()
	ctx, span := tracer.StartFilter(ctx, len(items))
	defer span.End()
	if e.observability.ServerTimingEnabled() {
		defer observability.StartServerTimingWithDesc(ctx, "aql-filter", "AQL filter").Stop()
	}

	start := time.Now()
	out, err := FilterExpression(items, expr)
	duration := time.Since(start)
	if err != nil {
		code := string(CodeOf(err))
		tracer.RecordQueryError(span, code, err)
		e.observability.Metrics().RecordError(ctx, code)
		return nil, err
	}

	span.SetAttributes(observability.ItemsOutAttr(len(out)))
	e.observability.Metrics().RecordFilter(ctx, observability.FilterModeMemory, len(items), len(out), duration)
	observability.LoggerWithTrace(ctx, e.logger).Debug("aql filter applied",
		slog.Int(observability.LogFieldItemsIn, len(items)),
		slog.Int(observability.LogFieldItemsOut, len(out)),
	)
	return out, nil
}

// ApplyFilter pushes expr down to db like the package-level ApplyFilter.
// Expressions without an SQL equivalent are reported with ErrUnsupportedSQL
// and logged at debug level, as falling back is an expected outcome.
func (e *Engine) ApplyFilter(ctx context.Context, db *gorm.DB, expr Expression, columns ColumnResolver) (*gorm.DB, error) {
	tracer := e.observability.Tracer()
	dialect := ""
	if db != nil && db.Dialector != nil {
		dialect = db.Dialector.Name()
	}
	ctx, span := tracer.StartSQLFilter(ctx, dialect)
	defer span.End()

	tx, err := ApplyFilter(db, expr, columns)
	logger := observability.LoggerWithTrace(ctx, e.logger)
	if err != nil {
		if errors.Is(err, ErrUnsupportedSQL) {
			logger.Debug("aql filter not pushed down", slog.String(observability.LogFieldError, err.Error()))
			return nil, err
		}
		code := string(CodeOf(err))
		tracer.RecordQueryError(span, code, err)
		e.observability.Metrics().RecordError(ctx, code)
		return nil, err
	}
	if tx == nil {
		return nil, nil
	}
	return tx.WithContext(ctx), nil
}
