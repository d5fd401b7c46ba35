// Package trace stamps outbound API requests with a request id and logs
// their outcome.
package trace

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"pft/internal/log"
)

// HeaderRequestID carries the request id to the server.
const HeaderRequestID = "X-Request-ID"

type contextKey string

const requestIDKey contextKey = "request_id"

// Stats tracks request totals.
type Stats struct {
	TotalRequests       int64
	FailedRequests      int64
	AverageResponseTime int64 // in microseconds
}

// Transport is an http.RoundTripper that logs every request.
type Transport struct {
	Base   http.RoundTripper
	Logger *log.Logger
	stats  Stats
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, logger *log.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Logger: log.OrNop(logger)}
}

func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()

	requestID := GetRequestID(r.Context())
	if requestID == "" {
		requestID = GenerateRequestID()
	}
	r = r.Clone(WithRequestID(r.Context(), requestID))
	r.Header.Set(HeaderRequestID, requestID)

	atomic.AddInt64(&t.stats.TotalRequests, 1)
	resp, err := t.Base.RoundTrip(r)
	duration := time.Since(start)
	atomic.StoreInt64(&t.stats.AverageResponseTime, duration.Microseconds())

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	level := slog.LevelDebug
	switch {
	case err != nil || status >= 500:
		level = slog.LevelWarn
		atomic.AddInt64(&t.stats.FailedRequests, 1)
	case status >= 400:
		level = slog.LevelInfo
	}

	fields := log.NewFields().
		WithHTTP(r.Method, r.URL.Redacted(), status, duration.Milliseconds()).
		WithError(err)
	fields[log.FieldRequestID] = requestID
	t.Logger.Log(r.Context(), level, "API request completed", fields.ToSlice()...)

	return resp, err
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}

// WithRequestID returns a context whose outbound requests reuse id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Stats returns current totals.
func (t *Transport) Stats() Stats {
	return Stats{
		TotalRequests:       atomic.LoadInt64(&t.stats.TotalRequests),
		FailedRequests:      atomic.LoadInt64(&t.stats.FailedRequests),
		AverageResponseTime: atomic.LoadInt64(&t.stats.AverageResponseTime),
	}
}
