package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/petflix/internal/errs"
	"github.com/and161185/petflix/internal/reqctx"
	"github.com/and161185/petflix/internal/retry"
	"github.com/and161185/petflix/internal/tokenstore"
)

func fastRetry(n int) retry.Options {
	o := retry.DefaultOptions()
	o.MaxRetries = n
	o.InitialDelay = time.Millisecond
	o.MaxDelay = 2 * time.Millisecond
	return o
}

func newTestClient(t *testing.T, r http.Handler, tokens tokenstore.Store) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, tokens, WithLogger(zaptest.NewLogger(t)), WithRetryOptions(fastRetry(2)))
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	t.Parallel()

	_, err := New("ftp://example.com", nil)
	require.Error(t, err)
	_, err = New("://bad", nil)
	require.Error(t, err)

	c, err := New("http://localhost:8080/", nil)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080", c.BaseURL())
}

func TestClient_Get_AttachesBearerAndDecodes(t *testing.T) {
	t.Parallel()

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/users/me", func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Authorization") != "Bearer abc123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if req.Header.Get("X-Request-ID") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "u1", "username": "alice"})
	}).Methods(http.MethodGet)

	c := newTestClient(t, r, tokenstore.NewMemoryStore("abc123"))

	var out struct{ ID, Username string }
	require.NoError(t, c.Get(context.Background(), "/api/v1/users/me", &out))
	require.Equal(t, "u1", out.ID)
	require.Equal(t, "alice", out.Username)
}

func TestClient_NoTokenNoAuthorizationHeader(t *testing.T) {
	t.Parallel()

	r := mux.NewRouter()
	r.HandleFunc("/ping", func(w http.ResponseWriter, req *http.Request) {
		if _, ok := req.Header["Authorization"]; ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	})

	for _, store := range []tokenstore.Store{nil, tokenstore.NewMemoryStore("")} {
		c := newTestClient(t, r, store)
		var out map[string]any
		require.NoError(t, c.Get(context.Background(), "ping", &out))
		require.Equal(t, true, out["ok"])
	}
}

func TestClient_Post_SendsJSON(t *testing.T) {
	t.Parallel()

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/playlists", func(w http.ResponseWriter, req *http.Request) {
		var in map[string]any
		if req.Header.Get("Content-Type") != "application/json" || json.NewDecoder(req.Body).Decode(&in) != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "p1", "name": in["name"]})
	}).Methods(http.MethodPost)

	c := newTestClient(t, r, nil)
	var out map[string]any
	require.NoError(t, c.Post(context.Background(), "/api/v1/playlists", map[string]string{"name": "cats"}, &out))
	require.Equal(t, "cats", out["name"])
}

func TestClient_Delete_NoContentYieldsEmptyObject(t *testing.T) {
	t.Parallel()

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/videos/{id}/like", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)

	c := newTestClient(t, r, nil)
	var out map[string]any
	require.NoError(t, c.Delete(context.Background(), "/api/v1/videos/v1/like", &out))
	require.NotNil(t, out)
	require.Empty(t, out)

	require.NoError(t, c.Delete(context.Background(), "/api/v1/videos/v1/like", nil))
}

func TestClient_ErrorEnvelope(t *testing.T) {
	t.Parallel()

	r := mux.NewRouter()
	r.HandleFunc("/json", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"error":"username taken"}`)
	})
	r.HandleFunc("/text", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `<html>oops</html>`)
	})
	r.HandleFunc("/unauth", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	c := newTestClient(t, r, nil)
	ctx := context.Background()

	err := c.Get(ctx, "/json", nil)
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, http.StatusConflict, ae.Status)
	require.Equal(t, "username taken", ae.Message())
	require.Equal(t, http.StatusConflict, StatusOf(err))

	err = c.Get(ctx, "/text", nil)
	require.ErrorAs(t, err, &ae)
	require.Equal(t, map[string]any{"error": "Request failed"}, ae.Body)
	require.ErrorIs(t, err, errs.ErrValidation)

	err = c.Get(ctx, "/unauth", nil)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.True(t, IsAuthRejection(err))
	require.False(t, IsAuthRejection(errors.New("x")))
}

func TestClient_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var hits int32
	r := mux.NewRouter()
	r.HandleFunc("/flaky", func(w http.ResponseWriter, req *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	})
	r.HandleFunc("/down", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	r.HandleFunc("/bad", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&hits, 100)
		w.WriteHeader(http.StatusBadRequest)
	})

	c := newTestClient(t, r, nil)
	ctx := context.Background()

	var out map[string]any
	require.NoError(t, c.Get(ctx, "/flaky", &out))
	require.EqualValues(t, 3, atomic.LoadInt32(&hits))

	err := c.Get(ctx, "/down", nil)
	require.Equal(t, http.StatusBadGateway, StatusOf(err))

	atomic.StoreInt32(&hits, 0)
	_ = c.Get(ctx, "/bad", nil)
	require.EqualValues(t, 100, atomic.LoadInt32(&hits), "400 must not be retried")
}

func TestClient_NoRetryOption(t *testing.T) {
	t.Parallel()

	var hits int32
	r := mux.NewRouter()
	r.HandleFunc("/down", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c := newTestClient(t, r, nil)

	_ = c.Get(context.Background(), "/down", nil, NoRetry())
	require.EqualValues(t, 1, atomic.LoadInt32(&hits))

	atomic.StoreInt32(&hits, 0)
	_ = c.Get(context.Background(), "/down", nil, RetryOptions(fastRetry(4)))
	require.EqualValues(t, 5, atomic.LoadInt32(&hits))
}

func TestClient_NetworkFailureIsRetriedThenSurfaced(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	var retries int32
	o := fastRetry(2)
	o.OnRetry = func(int, error) { atomic.AddInt32(&retries, 1) }
	c, err := New(base, nil, WithRetryOptions(o), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	err = c.Get(context.Background(), "/x", nil)
	require.Error(t, err)
	require.True(t, retry.IsNetworkError(err))
	require.EqualValues(t, 2, atomic.LoadInt32(&retries))
}

func TestClient_PropagatesRequestIDAndHeaders(t *testing.T) {
	t.Parallel()

	r := mux.NewRouter()
	r.HandleFunc("/echo", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"rid":   req.Header.Get("X-Request-ID"),
			"extra": req.Header.Get("X-Extra"),
			"ua":    req.UserAgent(),
		})
	})
	c := newTestClient(t, r, nil)

	ctx := reqctx.WithRequestID(context.Background(), "rid-1")
	var out map[string]string
	require.NoError(t, c.Get(ctx, "/echo", &out, Header("X-Extra", "yes")))
	require.Equal(t, "rid-1", out["rid"])
	require.Equal(t, "yes", out["extra"])
	require.Equal(t, "petflix-go", out["ua"])
}

func TestClient_AbsoluteURLPassesThrough(t *testing.T) {
	t.Parallel()

	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.WriteString(w, `{"from":"other"}`)
	}))
	defer other.Close()

	c := newTestClient(t, mux.NewRouter(), nil)
	var out map[string]string
	require.NoError(t, c.Get(context.Background(), other.URL+"/anything", &out))
	require.Equal(t, "other", out["from"])
}

func TestClient_DecodeFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	var hits int32
	r := mux.NewRouter()
	r.HandleFunc("/garbage", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = io.WriteString(w, `not json`)
	})
	c := newTestClient(t, r, nil)

	var out map[string]any
	require.Error(t, c.Get(context.Background(), "/garbage", &out))
	require.EqualValues(t, 1, atomic.LoadInt32(&hits))
}
