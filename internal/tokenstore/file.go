package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultWatchInterval is how often FileStore.Watch inspects the token file.
const DefaultWatchInterval = 2 * time.Second

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// DefaultDir returns $XDG_CONFIG_HOME/petflix, falling back to ~/.config/petflix.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "petflix")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "petflix")
}

// FileStore keeps the token in <dir>/token.json.
type FileStore struct {
	mu         sync.Mutex
	dir        string
	now        func() time.Time
	watchEvery time.Duration
}

// NewFileStore constructs a file-backed store; an empty dir means DefaultDir().
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = DefaultDir()
	}
	return &FileStore{dir: dir, now: time.Now, watchEvery: DefaultWatchInterval}
}

// Path returns the token file location.
func (s *FileStore) Path() string { return filepath.Join(s.dir, "token.json") }

// Load returns the stored token. Expired JWTs load as absent.
func (s *FileStore) Load(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("tokenstore: read: %w", err)
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", fmt.Errorf("tokenstore: decode: %w", err)
	}
	if tf.AccessToken == "" {
		return "", nil
	}
	if !tf.ExpiresAt.IsZero() && s.now().After(tf.ExpiresAt) {
		return "", nil
	}
	return tf.AccessToken, nil
}

// Save writes the token, replacing any previous one.
func (s *FileStore) Save(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("tokenstore: mkdir: %w", err)
	}
	tf := tokenFile{AccessToken: token}
	if exp, ok := TokenExpiry(token); ok {
		tf.ExpiresAt = exp
	}
	b, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenstore: encode: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "token-*.json")
	if err != nil {
		return fmt.Errorf("tokenstore: create: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: write: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenstore: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		return fmt.Errorf("tokenstore: rename: %w", err)
	}
	return nil
}

// Clear removes the token file.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("tokenstore: remove: %w", err)
	}
	return nil
}

type fileStamp struct {
	exists bool
	mod    time.Time
	size   int64
}

func (a fileStamp) equal(b fileStamp) bool {
	return a.exists == b.exists && a.size == b.size && a.mod.Equal(b.mod)
}

func (s *FileStore) stamp() fileStamp {
	fi, err := os.Stat(s.Path())
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{exists: true, mod: fi.ModTime(), size: fi.Size()}
}

// Watch signals when the token file is written or removed by any process.
// The file's metadata is checked every watch interval.
func (s *FileStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	out := make(chan struct{}, 1)
	last := s.stamp()

	go func() {
		defer close(out)
		t := time.NewTicker(s.watchEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				cur := s.stamp()
				if cur.equal(last) {
					continue
				}
				last = cur
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
