// Package command implements optimistic toggles: local state is updated first
// and restored if the backend call fails.
package command

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/and161185/petflix/internal/model"
)

// Toggle is a single optimistic mutation.
type Toggle struct {
	// Apply updates local state before the request is sent.
	Apply func()
	// Rollback restores local state after a failed Commit.
	Rollback func()
	// Commit performs the backend call.
	Commit func(ctx context.Context) error
}

// Execute applies, commits and rolls back on failure. The commit error is returned.
func (t Toggle) Execute(ctx context.Context) error {
	if t.Commit == nil {
		return errors.New("command: nil commit")
	}
	if t.Apply != nil {
		t.Apply()
	}
	if err := t.Commit(ctx); err != nil {
		if t.Rollback != nil {
			t.Rollback()
		}
		return err
	}
	return nil
}

// Liker is the subset of the video service used by like toggles.
type Liker interface {
	Like(ctx context.Context, id string) (*model.LikeState, error)
	Unlike(ctx context.Context, id string) (*model.LikeState, error)
}

// Reposter is the subset of the video service used by repost toggles.
type Reposter interface {
	Repost(ctx context.Context, id string) (*model.RepostState, error)
	Unrepost(ctx context.Context, id string) (*model.RepostState, error)
}

// LikeToggle flips *st: liked videos are unliked and vice versa. On success
// *st is replaced with the server's answer when the response carried one and
// otherwise keeps the optimistic value; on failure it is restored. mu guards
// st and may be nil.
func LikeToggle(videos Liker, videoID string, st *model.LikeState, mu sync.Locker) Toggle {
	lock, unlock := guard(mu)
	var prev model.LikeState
	var want bool
	return Toggle{
		Apply: func() {
			lock()
			defer unlock()
			prev = *st
			want = !st.Liked
			st.Liked = want
			if want {
				st.LikeCount++
			} else if st.LikeCount > 0 {
				st.LikeCount--
			}
		},
		Rollback: func() {
			lock()
			defer unlock()
			*st = prev
		},
		Commit: func(ctx context.Context) error {
			call := videos.Unlike
			if want {
				call = videos.Like
			}
			got, err := call(ctx, videoID)
			if err != nil {
				return fmt.Errorf("command: like %s: %w", videoID, err)
			}
			if got != nil {
				lock()
				*st = *got
				unlock()
			}
			return nil
		},
	}
}

// RepostCommand flips the repost state of a video the same way LikeToggle does.
func RepostCommand(videos Reposter, videoID string, st *model.RepostState, mu sync.Locker) Toggle {
	lock, unlock := guard(mu)
	var prev model.RepostState
	var want bool
	return Toggle{
		Apply: func() {
			lock()
			defer unlock()
			prev = *st
			want = !st.Reposted
			st.Reposted = want
			if want {
				st.RepostCount++
			} else if st.RepostCount > 0 {
				st.RepostCount--
			}
		},
		Rollback: func() {
			lock()
			defer unlock()
			*st = prev
		},
		Commit: func(ctx context.Context) error {
			call := videos.Unrepost
			if want {
				call = videos.Repost
			}
			got, err := call(ctx, videoID)
			if err != nil {
				return fmt.Errorf("command: repost %s: %w", videoID, err)
			}
			if got != nil {
				lock()
				*st = *got
				unlock()
			}
			return nil
		},
	}
}

func guard(mu sync.Locker) (func(), func()) {
	if mu == nil {
		return func() {}, func() {}
	}
	return mu.Lock, mu.Unlock
}
