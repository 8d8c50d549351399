package tokenstore

import (
	"context"
	"sync"
)

// MemoryStore keeps the token in process memory and notifies watchers on
// every change.
type MemoryStore struct {
	mu       sync.Mutex
	token    string
	watchers map[chan struct{}]struct{}
}

// NewMemoryStore returns a store preloaded with token (may be empty).
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token, watchers: make(map[chan struct{}]struct{})}
}

// Load returns the current token.
func (s *MemoryStore) Load(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

// Save replaces the token.
func (s *MemoryStore) Save(_ context.Context, token string) error {
	s.set(token)
	return nil
}

// Clear removes the token.
func (s *MemoryStore) Clear(context.Context) error {
	s.set("")
	return nil
}

func (s *MemoryStore) set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == token {
		return
	}
	s.token = token
	for ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watch delivers a signal after each change until ctx is done.
func (s *MemoryStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}
