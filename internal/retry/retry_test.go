package retry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type statusErr struct{ code int }

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e statusErr) StatusCode() int { return e.code }

func fast(maxRetries int) Options {
	o := DefaultOptions()
	o.MaxRetries = maxRetries
	o.InitialDelay = time.Millisecond
	o.MaxDelay = 4 * time.Millisecond
	return o
}

func TestOptions_Delay_ExponentialAndCapped(t *testing.T) {
	t.Parallel()

	o := Options{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		require.Equal(t, w, o.Delay(i), "delay %d", i)
	}

	prev := time.Duration(0)
	for i := 0; i < 64; i++ {
		d := o.Delay(i)
		require.GreaterOrEqual(t, d, prev)
		require.LessOrEqual(t, d, o.MaxDelay)
		prev = d
	}
}

func TestOptions_Delay_Defaults(t *testing.T) {
	t.Parallel()

	o := Options{}
	require.Equal(t, DefaultInitialDelay, o.Delay(0))
	require.Equal(t, 8*time.Second, o.Delay(3))
	require.Equal(t, DefaultMaxDelay, o.Delay(4))
}

func TestDo_ExhaustsBudget(t *testing.T) {
	t.Parallel()

	var calls int32
	wantErr := statusErr{code: 503}
	err := Do(context.Background(), fast(3), func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return wantErr
	})
	require.Equal(t, wantErr, err)
	require.EqualValues(t, 4, atomic.LoadInt32(&calls))
}

func TestDo_NonRetryableShortCircuits(t *testing.T) {
	t.Parallel()

	var calls int
	var retries int
	o := fast(5)
	o.OnRetry = func(int, error) { retries++ }

	err := Do(context.Background(), o, func(context.Context) error {
		calls++
		return statusErr{code: 400}
	})
	require.Equal(t, statusErr{code: 400}, err)
	require.Equal(t, 1, calls)
	require.Zero(t, retries)

	calls = 0
	plain := errors.New("decode failed")
	err = Do(context.Background(), o, func(context.Context) error {
		calls++
		return plain
	})
	require.ErrorIs(t, err, plain)
	require.Equal(t, 1, calls)
}

func TestDo_NetworkErrorIsRetried(t *testing.T) {
	t.Parallel()

	var calls int
	err := Do(context.Background(), fast(2), func(context.Context) error {
		calls++
		if calls < 3 {
			return &url.Error{Op: "Get", URL: "http://x", Err: errors.New("connection refused")}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDo_OnRetryCalledBeforeEachWait(t *testing.T) {
	t.Parallel()

	var attempts []int
	var seen []error
	o := fast(2)
	o.OnRetry = func(attempt int, err error) {
		attempts = append(attempts, attempt)
		seen = append(seen, err)
	}

	n := 0
	_ = Do(context.Background(), o, func(context.Context) error {
		n++
		return statusErr{code: 500 + n}
	})
	require.Equal(t, []int{1, 2}, attempts)
	require.Equal(t, []error{statusErr{code: 501}, statusErr{code: 502}}, seen)
}

func TestDo_ZeroRetries(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), Options{}, func(context.Context) error {
		calls++
		return statusErr{code: 503}
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestDo_ContextCanceledDuringWait(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	o := DefaultOptions()
	o.OnRetry = func(int, error) { cancel() }

	calls := 0
	err := Do(ctx, o, func(context.Context) error {
		calls++
		return statusErr{code: 503}
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

// Scenario: maxRetries=2, initialDelay=100ms, maxDelay=1s, always 503.
func TestDo_ScenarioWaitsHundredThenTwoHundred(t *testing.T) {
	t.Parallel()

	var stamps []time.Time
	o := Options{
		MaxRetries:   2,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
	}
	err := Do(context.Background(), o, func(context.Context) error {
		stamps = append(stamps, time.Now())
		return statusErr{code: 503}
	})

	var se statusErr
	require.ErrorAs(t, err, &se)
	require.Equal(t, 503, se.code)
	require.Len(t, stamps, 3)
	require.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 100*time.Millisecond)
	require.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), 200*time.Millisecond)
}

func TestDoValue_ReturnsResult(t *testing.T) {
	t.Parallel()

	n := 0
	v, err := DoValue(context.Background(), fast(3), func(context.Context) (string, error) {
		n++
		if n == 1 {
			return "", statusErr{code: 429}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", v)
	require.Equal(t, 2, n)
}

func TestRetryable_Classification(t *testing.T) {
	t.Parallel()

	o := DefaultOptions()
	for _, c := range []int{408, 429, 500, 502, 503, 504} {
		require.True(t, o.Retryable(statusErr{code: c}), "status %d", c)
	}
	for _, c := range []int{400, 401, 403, 404, 409, 422, 501} {
		require.False(t, o.Retryable(statusErr{code: c}), "status %d", c)
	}
	require.True(t, o.Retryable(&url.Error{Op: "Get", URL: "u", Err: errors.New("eof")}))
	require.False(t, o.Retryable(context.Canceled))
	require.False(t, o.Retryable(&url.Error{Op: "Get", URL: "u", Err: context.DeadlineExceeded}))
	require.False(t, o.Retryable(nil))

	custom := Options{RetryableStatuses: StatusSet(418)}
	require.True(t, custom.Retryable(statusErr{code: 418}))
	require.False(t, custom.Retryable(statusErr{code: 503}))

	wrapped := fmt.Errorf("call: %w", statusErr{code: 502})
	require.True(t, o.Retryable(wrapped))
}
