package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/petflix/internal/apiclient"
	"github.com/and161185/petflix/internal/config"
	"github.com/and161185/petflix/internal/errs"
	"github.com/and161185/petflix/internal/service"
	"github.com/and161185/petflix/internal/session"
	"github.com/and161185/petflix/internal/tokenstore"
)

// app holds the wired client stack for one CLI invocation.
type app struct {
	cfg *config.Config
	log *zap.Logger

	tokens     tokenstore.Store
	closeStore func() error

	api       *apiclient.Client
	users     *service.UserServiceImpl
	videos    *service.VideoServiceImpl
	playlists *service.PlaylistServiceImpl
	notes     *service.NotificationServiceImpl
	sess      *session.Manager

	outMu  sync.Mutex
	out    io.Writer
	errOut io.Writer
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger, out, errOut io.Writer) (*app, error) {
	a := &app{cfg: cfg, log: log, out: out, errOut: errOut, closeStore: func() error { return nil }}

	if rc, ok := cfg.Redis(); ok {
		rs, err := tokenstore.NewRedisStoreFromConfig(ctx, rc)
		if err != nil {
			return nil, err
		}
		a.tokens, a.closeStore = rs, rs.Close
	} else {
		a.tokens = tokenstore.NewFileStore(cfg.ConfigDir)
	}

	api, err := apiclient.New(cfg.APIURL, a.tokens,
		apiclient.WithLogger(log),
		apiclient.WithRetryOptions(cfg.RetryOptions()),
		apiclient.WithUserAgent("petflix-cli/"+version),
	)
	if err != nil {
		_ = a.closeStore()
		return nil, err
	}
	a.api = api
	a.users = service.NewUserService(api)
	a.videos = service.NewVideoService(api)
	a.playlists = service.NewPlaylistService(api)
	a.notes = service.NewNotificationService(api)
	a.sess = session.NewManager(a.users, a.tokens,
		session.WithTTL(cfg.SessionTTL),
		session.WithPollInterval(cfg.PollInterval),
		session.WithLogger(log),
		session.WithAuthenticator(a.users),
	)
	return a, nil
}

func (a *app) Close() error {
	_ = a.sess.Close()
	return a.closeStore()
}

// requireToken fails fast for commands that need a session.
func (a *app) requireToken(ctx context.Context) error {
	tok, err := a.tokens.Load(ctx)
	if err != nil {
		return err
	}
	if tok == "" {
		return errs.ErrNoToken
	}
	return nil
}

func (a *app) printJSON(v any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func (a *app) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}
