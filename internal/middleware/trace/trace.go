// Package trace stamps outgoing backend requests with a request ID and logs
// their outcome.
package trace

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"fintrack/internal/log"
)

// HeaderRequestID carries the request ID to the backend.
const HeaderRequestID = "X-Request-ID"

// Transport is an http.RoundTripper that traces every request it forwards.
type Transport struct {
	base    http.RoundTripper
	logger  *log.Logger
	metrics *Metrics
}

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests  int64
	FailedRequests int64
	LastDurationUs int64
}

// NewTransport wraps base, or http.DefaultTransport when base is nil.
func NewTransport(base http.RoundTripper, logger *log.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Transport{
		base:    base,
		logger:  logger.WithComponent(log.ComponentAPI),
		metrics: &Metrics{},
	}
}

// RoundTrip implements http.RoundTripper. Every request gets a fresh ID.
func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()
	requestID := GenerateRequestID()

	// RoundTrippers must not modify the caller's request.
	r = r.Clone(r.Context())
	r.Header.Set(HeaderRequestID, requestID)

	atomic.AddInt64(&t.metrics.TotalRequests, 1)
	t.logger.DebugContext(r.Context(), "Backend request started",
		log.FieldRequestID, requestID,
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)

	resp, err := t.base.RoundTrip(r)
	duration := time.Since(start)
	atomic.StoreInt64(&t.metrics.LastDurationUs, duration.Microseconds())

	if err != nil {
		atomic.AddInt64(&t.metrics.FailedRequests, 1)
		t.logger.ErrorContext(r.Context(), "Backend request failed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldDuration, duration.Milliseconds(),
			log.FieldError, err)
		return nil, err
	}

	level := slog.LevelDebug
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		level = slog.LevelWarn
	} else if resp.StatusCode >= 500 {
		level = slog.LevelError
	}
	if resp.StatusCode >= 400 {
		atomic.AddInt64(&t.metrics.FailedRequests, 1)
	}

	t.logger.Logger.Log(r.Context(), level, "Backend request completed",
		log.FieldComponent, t.logger.Component(),
		log.FieldRequestID, requestID,
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, duration.Milliseconds())

	return resp, nil
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// GetMetrics returns current metrics
func (t *Transport) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:  atomic.LoadInt64(&t.metrics.TotalRequests),
		FailedRequests: atomic.LoadInt64(&t.metrics.FailedRequests),
		LastDurationUs: atomic.LoadInt64(&t.metrics.LastDurationUs),
	}
}
