// Package notify polls the notification inbox for the unread badge.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is the inbox poll period.
const DefaultInterval = 30 * time.Second

// Counter returns the number of unread notifications.
type Counter interface {
	UnreadCount(ctx context.Context) (int, error)
}

// Poller calls Counter on an interval and reports changes. Failures are logged
// at debug level and otherwise ignored.
type Poller struct {
	src      Counter
	interval time.Duration
	active   func() bool
	onChange func(int)
	log      *zap.Logger

	mu   sync.Mutex
	last int
	seen bool
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the poll period.
func WithInterval(d time.Duration) Option { return func(p *Poller) { p.interval = d } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(p *Poller) { p.log = l } }

// WithActive makes the poller skip ticks while active reports false, for
// example while nobody is signed in.
func WithActive(active func() bool) Option { return func(p *Poller) { p.active = active } }

// NewPoller constructs a Poller. onChange receives every new unread count,
// including the first one observed.
func NewPoller(src Counter, onChange func(int), opts ...Option) *Poller {
	p := &Poller{
		src:      src,
		interval: DefaultInterval,
		active:   func() bool { return true },
		onChange: onChange,
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	return p
}

// Last returns the last observed count and whether one has been observed.
func (p *Poller) Last() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.seen
}

// Poll performs a single check.
func (p *Poller) Poll(ctx context.Context) {
	if !p.active() {
		return
	}
	n, err := p.src.UnreadCount(ctx)
	if err != nil {
		p.log.Debug("notify: unread count failed", zap.Error(err))
		return
	}

	p.mu.Lock()
	changed := !p.seen || n != p.last
	p.last, p.seen = n, true
	p.mu.Unlock()

	if changed && p.onChange != nil {
		p.onChange(n)
	}
}

// Run polls immediately and then on every tick until ctx is done. It always
// returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	p.Poll(ctx)

	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.Poll(ctx)
		}
	}
}
