package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	servertiming "github.com/mitchellh/go-server-timing"
	"github.com/nlstn/go-aql"
	"github.com/nlstn/go-aql/internal/observability"
	"gorm.io/gorm"
)

const (
	modeMemory = "memory"
	modeSQL    = "sql"
)

type server struct {
	db      *gorm.DB
	engine  *aql.Engine
	config  *aql.ParserConfig
	columns aql.ColumnMap
	logger  *slog.Logger
	now     func() time.Time
}

func newServer(db *gorm.DB, engine *aql.Engine, config *aql.ParserConfig, logger *slog.Logger) *server {
	if logger == nil {
		logger = slog.Default()
	}
	return &server{
		db:      db,
		engine:  engine,
		config:  config,
		columns: resultColumns,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/results", s.handleResults)
	mux.HandleFunc("POST /api/query", s.handleQuery)
	return servertiming.Middleware(s.traced(mux), nil)
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// traced wraps every request in a span and a DB time accumulator.
func (s *server) traced(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := s.engine.Observability().Tracer()
		ctx, span := tracer.StartRequest(r.Context(), r)
		defer span.End()
		ctx = observability.WithDBTimeAccumulator(ctx)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		tracer.SetHTTPStatus(ctx, rec.status)
	})
}

func (s *server) parseOptions(text string) []aql.ParseOption {
	opts := []aql.ParseOption{aql.WithConfig(s.config)}
	// Only function literals need context values; omitting them keeps the
	// query eligible for the engine's parse cache.
	if strings.Contains(text, "()") {
		opts = append(opts, aql.WithContextValues(map[string]any{
			"now()": s.now(),
		}))
	}
	return opts
}

type resultsResponse struct {
	Query   string       `json:"query"`
	Mode    string       `json:"mode"`
	Count   int          `json:"count"`
	Results []TestResult `json:"results"`
}

func (s *server) handleResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	text := r.URL.Query().Get("aql")
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = modeMemory
	}
	if mode != modeMemory && mode != modeSQL {
		s.writeError(ctx, w, &aql.AqlError{
			Code:    aql.CodeInvalidInput,
			Message: "mode must be memory or sql",
			Details: map[string]any{"mode": mode},
		})
		return
	}

	result, err := s.engine.Parse(ctx, text, s.parseOptions(text)...)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	canonical, err := aql.String(result.Expression)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	var results []TestResult
	if mode == modeSQL {
		results, err = s.querySQL(ctx, result.Expression)
		if errors.Is(err, aql.ErrUnsupportedSQL) {
			mode = modeMemory
		} else if err != nil {
			s.writeError(ctx, w, err)
			return
		}
	}
	if mode == modeMemory {
		results, err = s.queryMemory(ctx, result.Expression)
		if err != nil {
			s.writeError(ctx, w, err)
			return
		}
	}

	s.recordDBTime(ctx)
	s.writeJSON(ctx, w, http.StatusOK, resultsResponse{
		Query:   canonical,
		Mode:    mode,
		Count:   len(results),
		Results: results,
	})
}

// querySQL pushes expr down to the database. Expressions on fields without
// a column report ErrUnsupportedSQL so the caller can filter in memory.
func (s *server) querySQL(ctx context.Context, expr aql.Expression) ([]TestResult, error) {
	if !referencesOnly(expr, s.columns) {
		return nil, aql.ErrUnsupportedSQL
	}
	tx, err := s.engine.ApplyFilter(ctx, s.db.Model(&TestResult{}), expr, s.columns.Resolve)
	if err != nil {
		return nil, err
	}
	var results []TestResult
	if err := tx.Order("full_name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *server) queryMemory(ctx context.Context, expr aql.Expression) ([]TestResult, error) {
	var all []TestResult
	if err := s.db.WithContext(ctx).Order("full_name").Find(&all).Error; err != nil {
		return nil, err
	}
	return aql.FilterFunc(all, expr, TestResult.Record)
}

// referencesOnly reports whether every accessor in expr is a plain field
// listed in columns.
func referencesOnly(expr aql.Expression, columns aql.ColumnMap) bool {
	known := func(a aql.Accessor) bool {
		_, ok := columns[a.Identifier]
		return ok && a.Param == nil
	}
	switch e := expr.(type) {
	case nil:
		return true
	case *aql.ConditionExpr:
		return known(e.Left)
	case *aql.ArrayConditionExpr:
		return known(e.Left)
	case *aql.BinaryExpr:
		return referencesOnly(e.Left, columns) && referencesOnly(e.Right, columns)
	case *aql.NotExpr:
		return referencesOnly(e.Expr, columns)
	case *aql.GroupExpr:
		return referencesOnly(e.Expr, columns)
	case *aql.BooleanExpr:
		return true
	}
	return false
}

type queryRequest struct {
	Query any `json:"query"`
}

type queryResponse struct {
	Canonical string `json:"canonical"`
}

func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(ctx, w, &aql.AqlError{
			Code:    aql.CodeInvalidInput,
			Message: "request body must be a JSON object",
			Err:     err,
		})
		return
	}

	var (
		result *aql.ParseResult
		err    error
	)
	if text, ok := req.Query.(string); ok {
		result, err = s.engine.Parse(ctx, text, s.parseOptions(text)...)
	} else {
		result, err = aql.ParseValue(req.Query, aql.WithConfig(s.config))
	}
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	canonical, err := aql.String(result.Expression)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	s.writeJSON(ctx, w, http.StatusOK, queryResponse{Canonical: canonical})
}

type errorResponse struct {
	Code    aql.ErrorCode  `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// writeError answers 400 for rejected queries and 500 for everything else.
func (s *server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := errorResponse{Code: aql.CodeUnknown, Message: "internal server error"}

	var aqlErr *aql.AqlError
	if errors.As(err, &aqlErr) && aqlErr.Code != aql.CodeUnknown {
		status = http.StatusBadRequest
		body = errorResponse{Code: aqlErr.Code, Message: aqlErr.Message, Details: aqlErr.Details}
	} else {
		observability.LoggerWithTrace(ctx, s.logger).Error("request failed",
			slog.String(observability.LogFieldError, err.Error()))
	}
	s.writeJSON(ctx, w, status, body)
}

func (s *server) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		observability.LoggerWithTrace(ctx, s.logger).Error("failed to write response",
			slog.String(observability.LogFieldError, err.Error()))
	}
}

// recordDBTime adds the accumulated database time to the Server-Timing header.
// It must run before the response header is written.
func (s *server) recordDBTime(ctx context.Context) {
	if !s.engine.Observability().ServerTimingEnabled() {
		return
	}
	if acc := observability.DBTimeAccumulatorFromContext(ctx); acc != nil {
		observability.RecordServerTiming(ctx, "db", "Database", acc.Duration())
	}
}
