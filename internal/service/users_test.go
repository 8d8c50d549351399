package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/and161185/petflix/internal/errs"
	"github.com/and161185/petflix/internal/model"
	"github.com/and161185/petflix/internal/session"
)

var (
	_ UserService           = (*UserServiceImpl)(nil)
	_ session.ProfileFetcher = (*UserServiceImpl)(nil)
	_ session.Authenticator  = (*UserServiceImpl)(nil)
)

func TestUsers_Me(t *testing.T) {
	t.Parallel()

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/users/me", func(w http.ResponseWriter, req *http.Request) {
		switch req.Header.Get("Authorization") {
		case "Bearer abc123":
			writeJSON(w, http.StatusOK, model.Profile{ID: "u1", Username: "alice"})
		case "Bearer ghost":
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
		default:
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}
	}).Methods(http.MethodGet)

	p, err := NewUserService(newAPI(t, r, "abc123")).Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, "alice", p.Username)

	_, err = NewUserService(newAPI(t, r, "")).Me(context.Background())
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = NewUserService(newAPI(t, r, "ghost")).Me(context.Background())
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUsers_LoginAndRegister(t *testing.T) {
	t.Parallel()

	var registerHits int32
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/users/login", func(w http.ResponseWriter, req *http.Request) {
		var c model.Credentials
		_ = json.NewDecoder(req.Body).Decode(&c)
		if c.Password != "pw" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, model.AuthResult{Token: "tok", User: model.Profile{ID: "u1", Email: c.Email}})
	}).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/users/register", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&registerHits, 1)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "try later"})
	}).Methods(http.MethodPost)

	s := NewUserService(newAPI(t, r, ""))
	ctx := context.Background()

	_, err := s.Login(ctx, model.Credentials{})
	require.ErrorIs(t, err, errs.ErrValidation)

	res, err := s.Login(ctx, model.Credentials{Email: "a@x.io", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, "tok", res.Token)
	require.Equal(t, "a@x.io", res.User.Email)

	_, err = s.Login(ctx, model.Credentials{Email: "a@x.io", Password: "nope"})
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = s.Register(ctx, model.Registration{Username: "a"})
	require.ErrorIs(t, err, errs.ErrValidation)
	require.Zero(t, atomic.LoadInt32(&registerHits))

	_, err = s.Register(ctx, model.Registration{Username: "a", Email: "a@x.io", Password: "pw"})
	require.Error(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&registerHits), "register must not be retried")
}

func TestUsers_ProfileAndFollow(t *testing.T) {
	t.Parallel()

	var followed, unfollowed string
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/users/me", func(w http.ResponseWriter, req *http.Request) {
		var upd map[string]any
		_ = json.NewDecoder(req.Body).Decode(&upd)
		if _, ok := upd["avatar_url"]; ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unexpected field"})
			return
		}
		writeJSON(w, http.StatusOK, model.Profile{ID: "u1", Bio: upd["bio"].(string)})
	}).Methods(http.MethodPut)
	r.HandleFunc("/api/v1/users/{id}", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, model.Profile{ID: mux.Vars(req)["id"]})
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/users/{id}/follow", func(w http.ResponseWriter, req *http.Request) {
		followed = mux.Vars(req)["id"]
		writeJSON(w, http.StatusOK, map[string]bool{"following": true})
	}).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/users/{id}/follow", func(w http.ResponseWriter, req *http.Request) {
		unfollowed = mux.Vars(req)["id"]
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)

	s := NewUserService(newAPI(t, r, "abc123"))
	ctx := context.Background()

	bio := "cats only"
	p, err := s.UpdateProfile(ctx, model.ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
	require.Equal(t, "cats only", p.Bio)

	empty := ""
	_, err = s.UpdateProfile(ctx, model.ProfileUpdate{Username: &empty})
	require.ErrorIs(t, err, errs.ErrValidation)

	p, err = s.Get(ctx, "u7")
	require.NoError(t, err)
	require.Equal(t, "u7", p.ID)
	_, err = s.Get(ctx, " ")
	require.ErrorIs(t, err, errs.ErrValidation)

	require.NoError(t, s.Follow(ctx, "u2"))
	require.NoError(t, s.Unfollow(ctx, "u3"))
	require.Equal(t, "u2", followed)
	require.Equal(t, "u3", unfollowed)
	require.ErrorIs(t, s.Follow(ctx, ""), errs.ErrValidation)
}
