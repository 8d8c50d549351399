package reqctx

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
)

func TestWithRequestID_And_RequestIDFromCtx(t *testing.T) {
	t.Parallel()

	if id, ok := RequestIDFromCtx(context.Background()); ok || id != "" {
		t.Fatalf("expected no request id in empty ctx")
	}

	ctx := WithRequestID(context.Background(), "req-1")
	got, ok := RequestIDFromCtx(ctx)
	if !ok || got != "req-1" {
		t.Fatalf("mismatch: got %q ok=%v", got, ok)
	}

	type ctxKey string
	const requestIDKey ctxKey = "petflix.requestID"
	bad := context.WithValue(context.Background(), requestIDKey, 42)
	if id, ok := RequestIDFromCtx(bad); ok || id != "" {
		t.Fatalf("expected miss on wrong typed value")
	}
}

func TestEnsureRequestID(t *testing.T) {
	t.Parallel()

	ctx, id := EnsureRequestID(context.Background())
	if _, err := uuid.FromString(id); err != nil {
		t.Fatalf("not a uuid: %v", err)
	}
	again, id2 := EnsureRequestID(ctx)
	if id2 != id {
		t.Fatalf("must keep existing id: %q != %q", id2, id)
	}
	if got, _ := RequestIDFromCtx(again); got != id {
		t.Fatalf("ctx lost id")
	}
}
