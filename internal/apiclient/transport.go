package apiclient

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// LoggingTransport logs request metadata; bodies and headers are never logged.
type LoggingTransport struct {
	Base http.RoundTripper
	Log  *zap.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	start := time.Now()
	resp, err := base.RoundTrip(req)

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Duration("dur", time.Since(start)),
		zap.String("request_id", req.Header.Get(headerRequestID)),
	}
	if err != nil {
		t.Log.Warn("http", append(fields, zap.Error(err))...)
		return nil, err
	}
	t.Log.Debug("http", append(fields, zap.Int("status", resp.StatusCode))...)
	return resp, nil
}
