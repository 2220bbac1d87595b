// Package observability provides OpenTelemetry-based instrumentation for the AQL engine.
//
// It supports distributed tracing, metrics collection, and enhanced structured logging.
//
// All observability features are opt-in. When not configured, no-op implementations
// are used with zero performance overhead.
package observability

import "go.opentelemetry.io/otel/attribute"

// Instrumentation identity constants
const (
	// TracerName is the instrumentation name for tracing.
	TracerName = "github.com/nlstn/go-aql"
	// MeterName is the instrumentation name for metrics.
	MeterName = "github.com/nlstn/go-aql"
)

// Span names.
const (
	SpanParse     = "aql.parse"
	SpanFilter    = "aql.filter"
	SpanSQLFilter = "aql.filter.sql"
	SpanRequest   = "aql.request"
)

// AQL semantic attribute keys following OpenTelemetry conventions.
const (
	AttrQuery        = "aql.query"
	AttrQueryLength  = "aql.query.length"
	AttrCacheHit     = "aql.cache.hit"
	AttrParseOK      = "aql.parse.ok"
	AttrRestricted   = "aql.restricted"
	AttrContextKeys  = "aql.context.keys"
	AttrFilterMode   = "aql.filter.mode"
	AttrItemsIn      = "aql.items.in"
	AttrItemsOut     = "aql.items.out"
	AttrErrorCode    = "aql.error.code"
	AttrErrorMessage = "aql.error.message"
)

// Filter modes for the aql.filter.mode attribute.
const (
	FilterModeMemory = "memory"
	FilterModeSQL    = "sql"
)

// Log field keys for structured logging with trace context.
const (
	LogFieldQuery     = "query"
	LogFieldCanonical = "canonical"
	LogFieldCode      = "code"
	LogFieldTraceID   = "trace_id"
	LogFieldSpanID    = "span_id"
	LogFieldDuration  = "duration_ms"
	LogFieldItemsIn   = "items_in"
	LogFieldItemsOut  = "items_out"
	LogFieldError     = "error"
)

// QueryAttr creates an attribute for the raw query text.
func QueryAttr(query string) attribute.KeyValue {
	return attribute.String(AttrQuery, query)
}

// QueryLengthAttr creates an attribute for the query length in bytes.
func QueryLengthAttr(n int) attribute.KeyValue {
	return attribute.Int(AttrQueryLength, n)
}

// CacheHitAttr creates an attribute reporting a parse cache hit.
func CacheHitAttr(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// RestrictedAttr creates an attribute reporting whether a parser config was applied.
func RestrictedAttr(restricted bool) attribute.KeyValue {
	return attribute.Bool(AttrRestricted, restricted)
}

// ContextKeysAttr creates an attribute for the number of context values.
func ContextKeysAttr(n int) attribute.KeyValue {
	return attribute.Int(AttrContextKeys, n)
}

// FilterModeAttr creates an attribute for the filter mode.
func FilterModeAttr(mode string) attribute.KeyValue {
	return attribute.String(AttrFilterMode, mode)
}

// ItemsInAttr creates an attribute for the number of input records.
func ItemsInAttr(n int) attribute.KeyValue {
	return attribute.Int(AttrItemsIn, n)
}

// ItemsOutAttr creates an attribute for the number of matching records.
func ItemsOutAttr(n int) attribute.KeyValue {
	return attribute.Int(AttrItemsOut, n)
}

// ErrorCodeAttr creates an attribute for the error code.
func ErrorCodeAttr(code string) attribute.KeyValue {
	return attribute.String(AttrErrorCode, code)
}
