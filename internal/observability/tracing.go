package observability

import (
	"context"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry tracer with AQL-specific span creation methods.
type Tracer struct {
	tracer      trace.Tracer
	serviceName string
}

// NewTracer creates a new Tracer using the given TracerProvider.
func NewTracer(tp trace.TracerProvider, serviceName string) *Tracer {
	return &Tracer{
		tracer:      tp.Tracer(TracerName),
		serviceName: serviceName,
	}
}

// StartSpan starts a new span with the given name and attributes.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, span
}

// StartParse starts a span for parsing a query. The query text is only
// attached when includeQuery is set.
func (t *Tracer) StartParse(ctx context.Context, query string, includeQuery, restricted bool, contextKeys int) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		QueryLengthAttr(len(query)),
		RestrictedAttr(restricted),
		ContextKeysAttr(contextKeys),
	}
	if includeQuery {
		attrs = append(attrs, QueryAttr(query))
	}
	return t.tracer.Start(ctx, SpanParse, trace.WithAttributes(attrs...))
}

// StartFilter starts a span for evaluating a compiled expression over records.
func (t *Tracer) StartFilter(ctx context.Context, itemCount int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanFilter, trace.WithAttributes(
		FilterModeAttr(FilterModeMemory),
		ItemsInAttr(itemCount),
	))
}

// StartSQLFilter starts a span for translating an expression into SQL.
func (t *Tracer) StartSQLFilter(ctx context.Context, dialect string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanSQLFilter, trace.WithAttributes(
		FilterModeAttr(FilterModeSQL),
		attribute.String("db.system", dialect),
	))
}

// StartRequest starts a span for an HTTP request.
func (t *Tracer) StartRequest(ctx context.Context, r *http.Request) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanRequest, trace.WithAttributes(
		attribute.String("http.method", r.Method),
		attribute.String("http.route", r.URL.Path),
	))
}

// SetHTTPStatus sets the HTTP status code on the current span.
func (t *Tracer) SetHTTPStatus(ctx context.Context, statusCode int) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int("http.status_code", statusCode))
	if statusCode >= 400 {
		span.SetStatus(codes.Error, http.StatusText(statusCode))
	}
}

// StartDBQuery starts a span for a database query.
func (t *Tracer) StartDBQuery(ctx context.Context, operation string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "db.query", trace.WithAttributes(
		attribute.String("db.operation", operation),
	))
}

// RecordError records an error on the span.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// RecordQueryError records a rejected query on the span together with its error code.
func (t *Tracer) RecordQueryError(span trace.Span, code string, err error) {
	if err == nil {
		return
	}
	span.SetAttributes(ErrorCodeAttr(code))
	t.RecordError(span, err)
}

// LoggerWithTrace returns a logger enriched with trace context.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return logger
	}
	return logger.With(
		slog.String(LogFieldTraceID, span.SpanContext().TraceID().String()),
		slog.String(LogFieldSpanID, span.SpanContext().SpanID().String()),
	)
}
