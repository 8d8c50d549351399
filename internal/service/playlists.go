package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/and161185/petflix/internal/apiclient"
	"github.com/and161185/petflix/internal/errs"
	"github.com/and161185/petflix/internal/model"
)

// PlaylistService defines playlist CRUD for the current user.
type PlaylistService interface {
	List(ctx context.Context) ([]model.Playlist, error)
	Get(ctx context.Context, id string) (*model.Playlist, error)
	Create(ctx context.Context, d model.PlaylistDraft) (*model.Playlist, error)
	Delete(ctx context.Context, id string) error
	AddVideo(ctx context.Context, playlistID, videoID string) error
	RemoveVideo(ctx context.Context, playlistID, videoID string) error
}

type PlaylistServiceImpl struct {
	api Requester
}

// NewPlaylistService constructs PlaylistService over api.
func NewPlaylistService(api Requester) *PlaylistServiceImpl {
	return &PlaylistServiceImpl{api: api}
}

type playlistList struct {
	Playlists []model.Playlist `json:"playlists"`
}

func (s *PlaylistServiceImpl) List(ctx context.Context) ([]model.Playlist, error) {
	var out playlistList
	if err := s.api.Get(ctx, endpoint("playlists"), &out); err != nil {
		return nil, err
	}
	if out.Playlists == nil {
		return []model.Playlist{}, nil
	}
	return out.Playlists, nil
}

func (s *PlaylistServiceImpl) Get(ctx context.Context, id string) (*model.Playlist, error) {
	if err := requireID("playlist", id); err != nil {
		return nil, err
	}
	var p model.Playlist
	if err := s.api.Get(ctx, endpoint("playlists", id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create is sent once: a retried POST could create a duplicate playlist.
func (s *PlaylistServiceImpl) Create(ctx context.Context, d model.PlaylistDraft) (*model.Playlist, error) {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return nil, fmt.Errorf("%w: empty playlist name", errs.ErrValidation)
	}
	var p model.Playlist
	if err := s.api.Post(ctx, endpoint("playlists"), d, &p, apiclient.NoRetry()); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PlaylistServiceImpl) Delete(ctx context.Context, id string) error {
	if err := requireID("playlist", id); err != nil {
		return err
	}
	return s.api.Delete(ctx, endpoint("playlists", id), nil)
}

type playlistVideo struct {
	VideoID string `json:"video_id"`
}

func (s *PlaylistServiceImpl) AddVideo(ctx context.Context, playlistID, videoID string) error {
	if err := requireID("playlist", playlistID); err != nil {
		return err
	}
	if err := requireID("video", videoID); err != nil {
		return err
	}
	return s.api.Post(ctx, endpoint("playlists", playlistID, "videos"), playlistVideo{VideoID: videoID}, nil)
}

func (s *PlaylistServiceImpl) RemoveVideo(ctx context.Context, playlistID, videoID string) error {
	if err := requireID("playlist", playlistID); err != nil {
		return err
	}
	if err := requireID("video", videoID); err != nil {
		return err
	}
	return s.api.Delete(ctx, endpoint("playlists", playlistID, "videos", videoID), nil)
}
