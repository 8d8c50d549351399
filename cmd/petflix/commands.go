package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/and161185/petflix/internal/command"
	"github.com/and161185/petflix/internal/model"
	"github.com/and161185/petflix/internal/notify"
	"github.com/and161185/petflix/internal/service"
	"github.com/and161185/petflix/internal/session"
)

var errUsage = errors.New("usage")

type handler func(ctx context.Context, a *app, args []string) error

type cmdSpec struct {
	run     handler
	auth    bool
	oneShot bool
}

var commands = map[string]cmdSpec{
	"version":            {run: cmdVersion},
	"register":           {run: cmdRegister, oneShot: true},
	"login":              {run: cmdLogin, oneShot: true},
	"logout":             {run: cmdLogout, oneShot: true},
	"whoami":             {run: cmdWhoami, oneShot: true},
	"user":               {run: cmdUser, oneShot: true},
	"follow":             {run: cmdFollow(true), auth: true, oneShot: true},
	"unfollow":           {run: cmdFollow(false), auth: true, oneShot: true},
	"profile":            {run: cmdProfile, auth: true, oneShot: true},
	"recent":             {run: cmdListing("recent"), oneShot: true},
	"feed":               {run: cmdListing("feed"), auth: true, oneShot: true},
	"trending":           {run: cmdListing("trending"), oneShot: true},
	"search":             {run: cmdSearch, oneShot: true},
	"video":              {run: cmdVideo, oneShot: true},
	"share":              {run: cmdShare, auth: true, oneShot: true},
	"like":               {run: cmdLike(true), auth: true, oneShot: true},
	"unlike":             {run: cmdLike(false), auth: true, oneShot: true},
	"repost":             {run: cmdRepost(true), auth: true, oneShot: true},
	"unrepost":           {run: cmdRepost(false), auth: true, oneShot: true},
	"playlists":          {run: cmdPlaylists, auth: true, oneShot: true},
	"playlist":           {run: cmdPlaylist, oneShot: true},
	"playlist-create":    {run: cmdPlaylistCreate, auth: true, oneShot: true},
	"playlist-add":       {run: cmdPlaylistVideo(true), auth: true, oneShot: true},
	"playlist-rm":        {run: cmdPlaylistVideo(false), auth: true, oneShot: true},
	"playlist-delete":    {run: cmdPlaylistDelete, auth: true, oneShot: true},
	"notifications":      {run: cmdNotifications, auth: true, oneShot: true},
	"notifications-read": {run: cmdNotificationsRead, auth: true, oneShot: true},
	"watch":              {run: cmdWatch},
}

// run dispatches args[0]. One-shot commands get the configured timeout.
func run(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	c, ok := commands[args[0]]
	if !ok {
		return errUsage
	}
	if c.oneShot {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}
	if c.auth {
		if err := a.requireToken(ctx); err != nil {
			return err
		}
	}
	return c.run(ctx, a, args[1:])
}

func newFlagSet(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

func need(fs *flag.FlagSet, names ...string) error {
	var missing []string
	for _, n := range names {
		if f := fs.Lookup(n); f == nil || strings.TrimSpace(f.Value.String()) == "" {
			missing = append(missing, "-"+n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: need %s", fs.Name(), strings.Join(missing, " "))
	}
	return nil
}

func pageFlags(fs *flag.FlagSet) *service.Page {
	p := &service.Page{}
	fs.IntVar(&p.Page, "page", 0, "page number")
	fs.IntVar(&p.Limit, "limit", 0, "page size")
	return p
}

// ---- session ----

func cmdVersion(_ context.Context, a *app, _ []string) error {
	a.printf("petflix %s (%s)\n", version, buildDate)
	return nil
}

type whoamiOut struct {
	State   string         `json:"state"`
	Profile *model.Profile `json:"profile,omitempty"`
}

func snapshotOut(s session.Snapshot) whoamiOut {
	return whoamiOut{State: s.State.String(), Profile: s.Profile}
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "register")
	u := fs.String("u", "", "username")
	e := fs.String("e", "", "email")
	p := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := need(fs, "u", "e", "p"); err != nil {
		return err
	}
	s, err := a.sess.Register(ctx, model.Registration{Username: *u, Email: *e, Password: *p})
	if err != nil {
		return err
	}
	a.printJSON(snapshotOut(s))
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "login")
	e := fs.String("e", "", "email")
	p := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := need(fs, "e", "p"); err != nil {
		return err
	}
	s, err := a.sess.Login(ctx, model.Credentials{Email: *e, Password: *p})
	if err != nil {
		return err
	}
	a.printJSON(snapshotOut(s))
	return nil
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.sess.Logout(ctx); err != nil {
		return err
	}
	a.printf("ok\n")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "whoami")
	refresh := fs.Bool("refresh", false, "force revalidation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	get := a.sess.Current
	if *refresh {
		get = a.sess.Refresh
	}
	s, err := get(ctx)
	if err != nil {
		return err
	}
	a.printJSON(snapshotOut(s))
	return nil
}

// ---- users ----

func cmdUser(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "user")
	id := fs.String("id", "", "user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := a.users.Get(ctx, *id)
	if err != nil {
		return err
	}
	a.printJSON(p)
	return nil
}

func cmdFollow(follow bool) handler {
	return func(ctx context.Context, a *app, args []string) error {
		fs := newFlagSet(a, "follow")
		id := fs.String("id", "", "user id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		call := a.users.Unfollow
		if follow {
			call = a.users.Follow
		}
		if err := call(ctx, *id); err != nil {
			return err
		}
		a.printf("ok\n")
		return nil
	}
}

func cmdProfile(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "profile")
	var upd model.ProfileUpdate
	fs.Func("username", "new username", func(v string) error { upd.Username = &v; return nil })
	fs.Func("bio", "new bio", func(v string) error { upd.Bio = &v; return nil })
	fs.Func("avatar", "new avatar url", func(v string) error { upd.AvatarURL = &v; return nil })
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := a.users.UpdateProfile(ctx, upd)
	if err != nil {
		return err
	}
	a.AuthChanged()
	a.printJSON(p)
	return nil
}

// AuthChanged tells the session cache the profile or login changed.
func (a *app) AuthChanged() { a.sess.AuthChanged() }

// ---- videos ----

func cmdListing(kind string) handler {
	return func(ctx context.Context, a *app, args []string) error {
		fs := newFlagSet(a, kind)
		p := pageFlags(fs)
		if err := fs.Parse(args); err != nil {
			return err
		}
		list := a.videos.Recent
		switch kind {
		case "feed":
			list = a.videos.Feed
		case "trending":
			list = a.videos.Trending
		}
		page, err := list(ctx, *p)
		if err != nil {
			return err
		}
		a.printJSON(page)
		return nil
	}
}

func cmdSearch(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "search")
	q := fs.String("q", "", "query")
	p := pageFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	page, err := a.videos.Search(ctx, *q, *p)
	if err != nil {
		return err
	}
	a.printJSON(page)
	return nil
}

func cmdVideo(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "video")
	id := fs.String("id", "", "video id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	v, err := a.videos.Get(ctx, *id)
	if err != nil {
		return err
	}
	a.printJSON(v)
	return nil
}

func cmdShare(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "share")
	var in model.VideoShare
	fs.StringVar(&in.YouTubeURL, "url", "", "youtube url")
	fs.StringVar(&in.Title, "title", "", "title")
	fs.StringVar(&in.Description, "desc", "", "description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	v, err := a.videos.Share(ctx, in)
	if err != nil {
		return err
	}
	a.printJSON(v)
	return nil
}

// cmdLike reads the current like state and toggles it only when it differs
// from the requested one.
func cmdLike(like bool) handler {
	return func(ctx context.Context, a *app, args []string) error {
		fs := newFlagSet(a, "like")
		id := fs.String("id", "", "video id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		st, err := a.videos.LikeStatus(ctx, *id)
		if err != nil {
			return err
		}
		if st.Liked != like {
			if err := command.LikeToggle(a.videos, *id, &st, nil).Execute(ctx); err != nil {
				return err
			}
		}
		a.printJSON(st)
		return nil
	}
}

func cmdRepost(repost bool) handler {
	return func(ctx context.Context, a *app, args []string) error {
		fs := newFlagSet(a, "repost")
		id := fs.String("id", "", "video id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		st := model.RepostState{Reposted: !repost}
		if err := command.RepostCommand(a.videos, *id, &st, nil).Execute(ctx); err != nil {
			return err
		}
		a.printJSON(st)
		return nil
	}
}

// ---- playlists ----

func cmdPlaylists(ctx context.Context, a *app, _ []string) error {
	list, err := a.playlists.List(ctx)
	if err != nil {
		return err
	}
	a.printJSON(list)
	return nil
}

func cmdPlaylist(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "playlist")
	id := fs.String("id", "", "playlist id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := a.playlists.Get(ctx, *id)
	if err != nil {
		return err
	}
	a.printJSON(p)
	return nil
}

func cmdPlaylistCreate(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "playlist-create")
	var d model.PlaylistDraft
	fs.StringVar(&d.Name, "name", "", "playlist name")
	fs.StringVar(&d.Description, "desc", "", "description")
	fs.BoolVar(&d.IsPublic, "public", false, "visible to everyone")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := a.playlists.Create(ctx, d)
	if err != nil {
		return err
	}
	a.printJSON(p)
	return nil
}

func cmdPlaylistVideo(add bool) handler {
	return func(ctx context.Context, a *app, args []string) error {
		fs := newFlagSet(a, "playlist-video")
		id := fs.String("id", "", "playlist id")
		video := fs.String("video", "", "video id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		call := a.playlists.RemoveVideo
		if add {
			call = a.playlists.AddVideo
		}
		if err := call(ctx, *id, *video); err != nil {
			return err
		}
		a.printf("ok\n")
		return nil
	}
}

func cmdPlaylistDelete(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "playlist-delete")
	id := fs.String("id", "", "playlist id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.playlists.Delete(ctx, *id); err != nil {
		return err
	}
	a.printf("ok\n")
	return nil
}

// ---- notifications ----

func cmdNotifications(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "notifications")
	p := pageFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	page, err := a.notes.List(ctx, *p)
	if err != nil {
		return err
	}
	a.printJSON(page)
	return nil
}

func cmdNotificationsRead(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "notifications-read")
	id := fs.String("id", "", "notification id (all when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var err error
	if *id == "" {
		err = a.notes.MarkAllRead(ctx)
	} else {
		err = a.notes.MarkRead(ctx, *id)
	}
	if err != nil {
		return err
	}
	a.printf("ok\n")
	return nil
}

// ---- watch ----

// cmdWatch runs the session manager and the unread poller until ctx ends.
func cmdWatch(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "watch")
	if err := fs.Parse(args); err != nil {
		return err
	}

	unsub := a.sess.Subscribe(func(s session.Snapshot) {
		name := ""
		if s.Profile != nil {
			name = s.Profile.Username
		}
		a.printf("session: %s %s\n", s.State, name)
	})
	defer unsub()

	poller := notify.NewPoller(a.notes,
		func(n int) { a.printf("unread: %d\n", n) },
		notify.WithInterval(a.cfg.NotifyInterval),
		notify.WithLogger(a.log),
		notify.WithActive(func() bool { return a.sess.Snapshot().Authenticated() }),
	)

	g, gctx := errgroup.WithContext(ctx)
	if err := a.sess.Start(gctx); err != nil {
		return err
	}
	g.Go(func() error {
		<-gctx.Done()
		return a.sess.Close()
	})
	g.Go(func() error { return poller.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
