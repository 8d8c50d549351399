// Command petflix is a CLI client for the petflix video-sharing API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/and161185/petflix/internal/apiclient"
	"github.com/and161185/petflix/internal/config"
	"github.com/and161185/petflix/internal/errs"
	"github.com/and161185/petflix/internal/observability"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage(w io.Writer) {
	fmt.Fprintf(w, `petflix CLI
Usage:
  petflix [-api URL] [-config-dir DIR] [-redis HOST:PORT] [-retries N] [-debug] <cmd> [args]

Commands:
  version
  register          -u <username> -e <email> -p <password>   (saves token)
  login             -e <email> -p <password>                 (saves token)
  logout
  whoami            [-refresh]
  user              -id <user id>
  follow|unfollow   -id <user id>
  profile           [-username <name>] [-bio <text>] [-avatar <url>]
  recent|feed|trending [-page N] [-limit N]
  search            -q <query> [-page N] [-limit N]
  video             -id <video id>
  share             -url <youtube url> [-title T] [-desc D]
  like|unlike       -id <video id>
  repost|unrepost   -id <video id>
  playlists
  playlist          -id <playlist id>
  playlist-create   -name <name> [-desc D] [-public]
  playlist-add      -id <playlist id> -video <video id>
  playlist-rm       -id <playlist id> -video <video id>
  playlist-delete   -id <playlist id>
  notifications     [-page N] [-limit N]
  notifications-read [-id <notification id>]                 (all when -id is omitted)
  watch                                                     (session and unread changes until Ctrl-C)
`)
}

// main resolves configuration, wires the client stack and dispatches the subcommand.
func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if len(cfg.Args) < 1 {
		usage(os.Stderr)
		os.Exit(2)
	}

	logger, err := observability.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Env, version); err != nil {
		logger.Warn("sentry init failed", zap.Error(err))
	}
	defer observability.FlushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, os.Stdout, os.Stderr)
	if err != nil {
		fail(err)
	}
	defer a.Close()

	if err := run(ctx, a, cfg.Args); err != nil {
		if errors.Is(err, errUsage) {
			usage(os.Stderr)
			os.Exit(2)
		}
		observability.CaptureError(err, map[string]string{"cmd": cfg.Args[0]})
		observability.FlushSentry()
		_ = a.Close()
		fail(err)
	}
}

// fail prints err in a user-facing form and exits 1.
func fail(err error) {
	fmt.Fprintln(os.Stderr, describe(err))
	os.Exit(1)
}

func describe(err error) string {
	var ae *apiclient.APIError
	switch {
	case errors.As(err, &ae):
		return fmt.Sprintf("api error: status=%d msg=%s", ae.Status, ae.Message())
	case errors.Is(err, errs.ErrNoToken):
		return "not logged in: run `petflix login` first"
	}
	return err.Error()
}
