// Package retry runs a single operation with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"sync"
	"syscall"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Defaults used by DefaultOptions.
const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = 10 * time.Second
)

// DefaultRetryableStatuses lists the HTTP statuses retried when Options.RetryableStatuses is nil.
var DefaultRetryableStatuses = []int{408, 429, 500, 502, 503, 504}

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// Options configures a retry run.
//
// The zero value performs exactly one attempt; DefaultOptions returns the
// documented defaults (3 retries, 1s initial delay, 10s cap).
type Options struct {
	// MaxRetries bounds the number of retries after the first attempt.
	MaxRetries int
	// InitialDelay is the wait before the first retry. Default: 1s.
	InitialDelay time.Duration
	// MaxDelay caps every individual wait. Default: 10s.
	MaxDelay time.Duration
	// RetryableStatuses is the set of HTTP statuses worth another attempt.
	// Nil means DefaultRetryableStatuses.
	RetryableStatuses map[int]struct{}
	// OnRetry is called before each wait with the 1-based retry number and
	// the error that triggered it.
	OnRetry func(attempt int, err error)
	// JitterPercent spreads each delay by up to ±JitterPercent%. Zero keeps
	// delays deterministic.
	JitterPercent uint64
}

// DefaultOptions returns Options with the documented defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries:        DefaultMaxRetries,
		InitialDelay:      DefaultInitialDelay,
		MaxDelay:          DefaultMaxDelay,
		RetryableStatuses: StatusSet(DefaultRetryableStatuses...),
	}
}

// StatusSet builds a status set from codes.
func StatusSet(codes ...int) map[int]struct{} {
	s := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

func (o Options) withDefaults() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = DefaultInitialDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.MaxDelay < o.InitialDelay {
		o.MaxDelay = o.InitialDelay
	}
	if o.RetryableStatuses == nil {
		o.RetryableStatuses = StatusSet(DefaultRetryableStatuses...)
	}
	return o
}

// Delay returns the wait before retry i (0-indexed): min(InitialDelay*2^i, MaxDelay).
func (o Options) Delay(i int) time.Duration {
	o = o.withDefaults()
	if i < 0 {
		i = 0
	}
	d := o.InitialDelay
	for ; i > 0; i-- {
		d *= 2
		if d >= o.MaxDelay || d <= 0 {
			return o.MaxDelay
		}
	}
	if d > o.MaxDelay {
		return o.MaxDelay
	}
	return d
}

// Retryable reports whether err should trigger another attempt under o.
func (o Options) Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		statuses := o.RetryableStatuses
		if statuses == nil {
			statuses = StatusSet(DefaultRetryableStatuses...)
		}
		_, ok := statuses[sc.StatusCode()]
		return ok
	}
	return IsNetworkError(err)
}

// IsNetworkError reports whether err means no HTTP response was obtained.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}

// backoff builds the go-retry schedule for o. lastErr returns the error that
// made the engine ask for the next delay.
func (o Options) backoff(lastErr func() error) goretry.Backoff {
	var (
		mu sync.Mutex
		i  int
	)
	var b goretry.Backoff = goretry.BackoffFunc(func() (time.Duration, bool) {
		mu.Lock()
		defer mu.Unlock()
		d := o.Delay(i)
		i++
		return d, false
	})
	if o.JitterPercent > 0 {
		b = goretry.WithJitterPercent(o.JitterPercent, b)
	}
	b = goretry.WithMaxRetries(uint64(o.MaxRetries), b)

	attempt := 0
	return goretry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := b.Next()
		if stop {
			return 0, true
		}
		attempt++
		if o.OnRetry != nil {
			o.OnRetry(attempt, lastErr())
		}
		return d, false
	})
}

// Do runs op, retrying retryable failures. It returns nil on success or the
// last error unchanged once the budget is spent.
func Do(ctx context.Context, opts Options, op func(ctx context.Context) error) error {
	o := opts.withDefaults()

	var last error
	b := o.backoff(func() error { return last })

	return goretry.Do(ctx, b, func(ctx context.Context) error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		last = err
		if o.Retryable(err) {
			return goretry.RetryableError(err)
		}
		return err
	})
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, opts Options, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, opts, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
