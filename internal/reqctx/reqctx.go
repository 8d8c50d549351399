// Package reqctx carries per-request metadata through context.
package reqctx

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

type ctxKey string

const requestIDKey ctxKey = "petflix.requestID"

// WithRequestID stores a request id in context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromCtx fetches the request id from context.
func RequestIDFromCtx(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// EnsureRequestID returns ctx carrying a request id, generating a UUIDv4 if none is set.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if id, ok := RequestIDFromCtx(ctx); ok {
		return ctx, id
	}
	v, err := uuid.NewV4()
	if err != nil {
		return ctx, ""
	}
	id := v.String()
	return WithRequestID(ctx, id), id
}
