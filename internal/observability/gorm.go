package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	gormSpanKey             = "aql:gorm:span"
	gormStartTimeKey        = "aql:gorm:start"
	gormTimingStartKey      = "aql:gorm:timing_start"
	gormTimingCallbacksName = "aql_server_timing"
)

// RegisterGORMCallbacks registers GORM callbacks for database query tracing.
// An AQL store reads through Query and Row, seeds through Create and migrates
// through Raw, so those are the processors instrumented.
// This should be called after GORM is initialized and observability is configured.
func RegisterGORMCallbacks(db *gorm.DB, cfg *Config) error {
	if cfg == nil || cfg.TracerProvider == nil || !cfg.EnableDetailedDBTracing {
		return nil
	}

	tracer := cfg.Tracer()
	before := func(spanName string) func(*gorm.DB) {
		return func(db *gorm.DB) { startSpan(db, tracer, spanName) }
	}
	after := func(operation string) func(*gorm.DB) {
		return func(db *gorm.DB) { endSpan(db, tracer, cfg, operation) }
	}

	// Query callbacks
	if err := db.Callback().Query().Before("gorm:query").Register("aql:before_query", before("db.query")); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register("aql:after_query", after("SELECT")); err != nil {
		return err
	}

	// Create callbacks
	if err := db.Callback().Create().Before("gorm:create").Register("aql:before_create", before("db.create")); err != nil {
		return err
	}
	if err := db.Callback().Create().After("gorm:create").Register("aql:after_create", after("INSERT")); err != nil {
		return err
	}

	// Row callbacks
	if err := db.Callback().Row().Before("gorm:row").Register("aql:before_row", before("db.row")); err != nil {
		return err
	}
	if err := db.Callback().Row().After("gorm:row").Register("aql:after_row", after("ROW")); err != nil {
		return err
	}

	// Raw callbacks
	if err := db.Callback().Raw().Before("gorm:raw").Register("aql:before_raw", before("db.raw")); err != nil {
		return err
	}
	if err := db.Callback().Raw().After("gorm:raw").Register("aql:after_raw", after("RAW")); err != nil {
		return err
	}

	return nil
}

// RegisterServerTimingCallbacks registers GORM callbacks for server timing metrics.
// These callbacks track database operation duration and add it to the request's
// database time accumulator, which is used to report the "db" metric in Server-Timing headers.
// This is independent of the tracing callbacks and can be enabled without OpenTelemetry.
func RegisterServerTimingCallbacks(db *gorm.DB) error {
	// Query callbacks
	if err := db.Callback().Query().Before("gorm:query").Register(gormTimingCallbacksName+":before_query", beforeTiming); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register(gormTimingCallbacksName+":after_query", afterTiming); err != nil {
		return err
	}

	// Create callbacks
	if err := db.Callback().Create().Before("gorm:create").Register(gormTimingCallbacksName+":before_create", beforeTiming); err != nil {
		return err
	}
	if err := db.Callback().Create().After("gorm:create").Register(gormTimingCallbacksName+":after_create", afterTiming); err != nil {
		return err
	}

	// Row callbacks
	if err := db.Callback().Row().Before("gorm:row").Register(gormTimingCallbacksName+":before_row", beforeTiming); err != nil {
		return err
	}
	if err := db.Callback().Row().After("gorm:row").Register(gormTimingCallbacksName+":after_row", afterTiming); err != nil {
		return err
	}

	return nil
}

// beforeTiming records the start time of a database operation for server timing.
func beforeTiming(db *gorm.DB) {
	db.InstanceSet(gormTimingStartKey, time.Now())
}

// afterTiming calculates the duration of a database operation and adds it to the accumulator.
func afterTiming(db *gorm.DB) {
	startTimeVal, ok := db.InstanceGet(gormTimingStartKey)
	if !ok {
		return
	}

	startTime, ok := startTimeVal.(time.Time)
	if !ok {
		return
	}

	if db.Statement != nil && db.Statement.Context != nil {
		AddDBTime(db.Statement.Context, time.Since(startTime))
	}
}

func startSpan(db *gorm.DB, tracer *Tracer, spanName string) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := tracer.StartSpan(ctx, spanName,
		attribute.String("db.system", db.Dialector.Name()),
	)

	db.Statement.Context = ctx
	db.InstanceSet(gormSpanKey, span)
	db.InstanceSet(gormStartTimeKey, time.Now())
}

func endSpan(db *gorm.DB, tracer *Tracer, cfg *Config, operation string) {
	spanVal, ok := db.InstanceGet(gormSpanKey)
	if !ok {
		return
	}

	span, ok := spanVal.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	if db.Statement != nil {
		if tableName := db.Statement.Table; tableName != "" {
			span.SetAttributes(attribute.String("db.sql.table", tableName))
		}
		span.SetAttributes(attribute.Int64("db.rows_affected", db.RowsAffected))
	}

	if db.Error != nil {
		tracer.RecordError(span, db.Error)
	}

	if startTimeVal, ok := db.InstanceGet(gormStartTimeKey); ok {
		if startTime, ok := startTimeVal.(time.Time); ok {
			cfg.Metrics().RecordDBQuery(db.Statement.Context, operation, time.Since(startTime))
		}
	}
}
