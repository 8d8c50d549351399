// Package session keeps a process-wide, rate-limited view of the current user.
//
// A Manager memoizes the /users/me lookup for a TTL, coalesces concurrent
// revalidations into one network call, purges the stored token when the
// backend rejects it, and keeps the last known state on transient failures.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/and161185/petflix/internal/errs"
	"github.com/and161185/petflix/internal/model"
	"github.com/and161185/petflix/internal/tokenstore"
)

// Defaults.
const (
	DefaultTTL          = 30 * time.Second
	DefaultPollInterval = 60 * time.Second
)

// flightKey namespaces lookups by token so a changed token never joins a
// lookup that was sent with the previous one.
func flightKey(tok string) string { return "me:" + tok }

// ProfileFetcher resolves the profile behind the stored token.
type ProfileFetcher interface {
	Me(ctx context.Context) (*model.Profile, error)
}

// Authenticator exchanges credentials for a bearer token.
type Authenticator interface {
	Login(ctx context.Context, creds model.Credentials) (model.AuthResult, error)
	Register(ctx context.Context, reg model.Registration) (model.AuthResult, error)
}

type cacheEntry struct {
	profile   *model.Profile
	token     string
	fetchedAt time.Time
	valid     bool
}

// Manager owns the session cache. Create with NewManager, call Start to begin
// background validation and Close to stop.
type Manager struct {
	fetcher   ProfileFetcher
	auth      Authenticator
	tokens    tokenstore.Store
	ttl       time.Duration
	poll      time.Duration
	log       *zap.Logger
	now       func() time.Time
	rejection func(error) bool

	sf   singleflight.Group
	kick chan struct{}

	mu      sync.Mutex
	snap    Snapshot
	settled Snapshot
	entry   cacheEntry
	current string
	subs    map[int]func(Snapshot)
	nextSub int
	closed  bool
	started bool
	hadTok  bool

	notifyMu sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets how long a fetched profile is trusted without revalidation.
func WithTTL(d time.Duration) Option { return func(m *Manager) { m.ttl = d } }

// WithPollInterval sets how often token presence is checked.
func WithPollInterval(d time.Duration) Option { return func(m *Manager) { m.poll = d } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.log = l } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// WithAuthenticator enables Login and Register.
func WithAuthenticator(a Authenticator) Option { return func(m *Manager) { m.auth = a } }

// WithRejectionCheck overrides how identity-rejection errors are recognized.
// The default matches errs.ErrUnauthorized and errs.ErrNotFound.
func WithRejectionCheck(f func(error) bool) Option { return func(m *Manager) { m.rejection = f } }

// NewManager constructs a Manager in StateUnknown.
func NewManager(fetcher ProfileFetcher, tokens tokenstore.Store, opts ...Option) *Manager {
	m := &Manager{
		fetcher:   fetcher,
		tokens:    tokens,
		ttl:       DefaultTTL,
		poll:      DefaultPollInterval,
		log:       zap.NewNop(),
		now:       time.Now,
		rejection: isRejection,
		kick:      make(chan struct{}, 1),
		subs:      make(map[int]func(Snapshot)),
	}
	for _, o := range opts {
		o(m)
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	if m.poll <= 0 {
		m.poll = DefaultPollInterval
	}
	return m
}

func isRejection(err error) bool {
	return errors.Is(err, errs.ErrUnauthorized) || errors.Is(err, errs.ErrNotFound)
}

// Snapshot returns the current state without any I/O.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Current returns the session, serving a fresh cache entry without a network call.
func (m *Manager) Current(ctx context.Context) (Snapshot, error) {
	return m.get(ctx, false)
}

// Refresh forces revalidation against the backend.
func (m *Manager) Refresh(ctx context.Context) (Snapshot, error) {
	return m.get(ctx, true)
}

// AuthChanged signals that login state changed in this process. A forced
// revalidation runs on the background loop; the call never blocks.
func (m *Manager) AuthChanged() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Subscribe registers fn for every state or profile change. fn must not block.
func (m *Manager) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Manager) get(ctx context.Context, force bool) (Snapshot, error) {
	if m.isClosed() {
		return m.Snapshot(), errs.ErrClosed
	}

	tok, err := m.tokens.Load(ctx)
	if err != nil {
		return m.Snapshot(), fmt.Errorf("session: load token: %w", err)
	}
	if tok == "" {
		m.mu.Lock()
		m.entry = cacheEntry{}
		m.retireLocked()
		snap, changed := m.setLocked(Snapshot{State: StateAnonymous, CheckedAt: m.now()})
		m.mu.Unlock()
		if changed {
			m.notify(snap)
		}
		return snap, nil
	}

	m.mu.Lock()
	if m.entry.valid && m.entry.token != tok {
		m.entry = cacheEntry{}
	}
	if !force && m.entry.valid && m.now().Sub(m.entry.fetchedAt) < m.ttl {
		snap := Snapshot{State: StateAuthenticated, Profile: m.entry.profile, CheckedAt: m.entry.fetchedAt}
		m.mu.Unlock()
		return snap, nil
	}
	m.mu.Unlock()

	flightCtx := context.WithoutCancel(ctx)
	ch := m.sf.DoChan(flightKey(tok), func() (any, error) {
		return m.revalidate(flightCtx, tok)
	})
	select {
	case r := <-ch:
		snap, _ := r.Val.(Snapshot)
		return snap, r.Err
	case <-ctx.Done():
		return m.Snapshot(), ctx.Err()
	}
}

// revalidate performs the single network lookup behind a flight. Only the
// lookup for the most recently requested token may change the session; an
// overtaken lookup answers its own callers and is otherwise dropped.
func (m *Manager) revalidate(ctx context.Context, tok string) (Snapshot, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return m.Snapshot(), errs.ErrClosed
	}
	m.current = tok
	prev := m.settled
	checking, _ := m.setLocked(Snapshot{State: StateChecking, Profile: prev.Profile, CheckedAt: prev.CheckedAt})
	m.mu.Unlock()
	m.notify(checking)

	profile, err := m.fetcher.Me(ctx)

	if err != nil && m.rejection(err) {
		if cerr := m.clearIfCurrent(ctx, tok); cerr != nil {
			m.log.Warn("session: failed to purge rejected token", zap.Error(cerr))
		}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return prev, errs.ErrClosed
	}

	var (
		snap   Snapshot
		outErr error
		latest = m.current == tok
	)
	switch {
	case err == nil:
		now := m.now()
		snap = Snapshot{State: StateAuthenticated, Profile: profile, CheckedAt: now}
		if latest {
			m.entry = cacheEntry{profile: profile, token: tok, fetchedAt: now, valid: true}
		}
	case m.rejection(err):
		snap = Snapshot{State: StateAnonymous, CheckedAt: m.now()}
		if latest {
			m.entry = cacheEntry{}
			m.log.Info("session: token rejected, signed out", zap.Error(err))
		}
	default:
		snap = prev
		outErr = fmt.Errorf("session: revalidate: %w", err)
		m.log.Debug("session: revalidation failed, keeping last known state",
			zap.Stringer("state", prev.State), zap.Error(err))
	}
	if !latest {
		m.mu.Unlock()
		return snap, outErr
	}
	snap, _ = m.setLocked(snap)
	m.mu.Unlock()

	m.notify(snap)
	return snap, outErr
}

// retireLocked stops the in-flight lookup, if any, from changing the session
// and lets the next read start a fresh one.
func (m *Manager) retireLocked() {
	if m.current != "" {
		m.sf.Forget(flightKey(m.current))
		m.current = ""
	}
}

// clearIfCurrent removes tok from storage unless it was replaced meanwhile.
func (m *Manager) clearIfCurrent(ctx context.Context, tok string) error {
	cur, err := m.tokens.Load(ctx)
	if err != nil {
		return err
	}
	if cur != tok {
		return nil
	}
	return m.tokens.Clear(ctx)
}

// setLocked replaces the snapshot and reports whether anything visible changed.
// settled tracks the last snapshot that was not Checking.
func (m *Manager) setLocked(s Snapshot) (Snapshot, bool) {
	changed := m.snap.State != s.State || !sameProfile(m.snap.Profile, s.Profile)
	m.snap = s
	if s.State != StateChecking {
		m.settled = s
	}
	return s, changed
}

func (m *Manager) notify(s Snapshot) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	fns := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Login authenticates, stores the token and revalidates.
func (m *Manager) Login(ctx context.Context, creds model.Credentials) (Snapshot, error) {
	if m.auth == nil {
		return m.Snapshot(), errors.New("session: no authenticator configured")
	}
	res, err := m.auth.Login(ctx, creds)
	if err != nil {
		return m.Snapshot(), err
	}
	return m.adopt(ctx, res.Token)
}

// Register creates an account, stores the token and revalidates.
func (m *Manager) Register(ctx context.Context, reg model.Registration) (Snapshot, error) {
	if m.auth == nil {
		return m.Snapshot(), errors.New("session: no authenticator configured")
	}
	res, err := m.auth.Register(ctx, reg)
	if err != nil {
		return m.Snapshot(), err
	}
	return m.adopt(ctx, res.Token)
}

func (m *Manager) adopt(ctx context.Context, token string) (Snapshot, error) {
	if token == "" {
		return m.Snapshot(), errors.New("session: backend returned an empty token")
	}
	if err := m.tokens.Save(ctx, token); err != nil {
		return m.Snapshot(), fmt.Errorf("session: save token: %w", err)
	}
	return m.Refresh(ctx)
}

// Logout drops the stored token and the cached profile.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.tokens.Clear(ctx); err != nil {
		return fmt.Errorf("session: clear token: %w", err)
	}
	m.mu.Lock()
	m.entry = cacheEntry{}
	m.retireLocked()
	snap, changed := m.setLocked(Snapshot{State: StateAnonymous, CheckedAt: m.now()})
	m.mu.Unlock()
	if changed {
		m.notify(snap)
	}
	return nil
}

// Start runs the initial validation and the background loop: in-process auth
// signals, store change signals and token-presence polling. It returns
// immediately.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errs.ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return errors.New("session: already started")
	}
	m.started = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	var changes <-chan struct{}
	if w, ok := m.tokens.(tokenstore.Watcher); ok {
		ch, err := w.Watch(ctx)
		if err != nil {
			m.log.Warn("session: store watch unavailable", zap.Error(err))
		} else {
			changes = ch
		}
	}

	m.wg.Add(1)
	go m.loop(ctx, changes)
	return nil
}

func (m *Manager) loop(ctx context.Context, changes <-chan struct{}) {
	defer m.wg.Done()

	m.recordPresence(ctx)
	m.check(ctx, false)

	t := time.NewTicker(m.poll)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.kick:
			m.check(ctx, true)
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			m.check(ctx, false)
		case <-t.C:
			if m.presenceChanged(ctx) {
				m.check(ctx, true)
			}
		}
	}
}

func (m *Manager) check(ctx context.Context, force bool) {
	if _, err := m.get(ctx, force); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, errs.ErrClosed) {
		m.log.Debug("session: background check failed", zap.Error(err))
	}
}

func (m *Manager) recordPresence(ctx context.Context) {
	tok, err := m.tokens.Load(ctx)
	if err != nil {
		return
	}
	m.mu.Lock()
	m.hadTok = tok != ""
	m.mu.Unlock()
}

// presenceChanged reports whether a token appeared or disappeared since the last poll.
func (m *Manager) presenceChanged(ctx context.Context) bool {
	tok, err := m.tokens.Load(ctx)
	if err != nil {
		m.log.Debug("session: poll failed", zap.Error(err))
		return false
	}
	has := tok != ""
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := has != m.hadTok
	m.hadTok = has
	return changed
}

// Close stops background work. In-flight lookups are not cancelled but their
// results are discarded.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	return nil
}
