package observability

import (
	"context"
	"errors"
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry enables error reporting. An empty dsn disables it.
func InitSentry(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
	})
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// CaptureError reports err unless it is nil or a cancellation. It reports
// whether the error was handed to Sentry.
func CaptureError(err error, tags map[string]string) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	hub := sentry.CurrentHub()
	if hub.Client() == nil {
		return false
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
	return true
}
