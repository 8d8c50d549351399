package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/and161185/petflix/internal/apiclient"
	"github.com/and161185/petflix/internal/errs"
	"github.com/and161185/petflix/internal/model"
)

// VideoService defines listing and engagement operations over shared videos.
type VideoService interface {
	Recent(ctx context.Context, p Page) (model.VideoPage, error)
	Search(ctx context.Context, query string, p Page) (model.VideoPage, error)
	// Feed lists videos from followed users; requires a session.
	Feed(ctx context.Context, p Page) (model.VideoPage, error)
	Trending(ctx context.Context, p Page) (model.VideoPage, error)
	Get(ctx context.Context, id string) (*model.Video, error)
	// Share posts a new YouTube video.
	Share(ctx context.Context, in model.VideoShare) (*model.Video, error)
	LikeStatus(ctx context.Context, id string) (model.LikeState, error)
	// Like and the other mutations return nil state on an empty response.
	Like(ctx context.Context, id string) (*model.LikeState, error)
	Unlike(ctx context.Context, id string) (*model.LikeState, error)
	Repost(ctx context.Context, id string) (*model.RepostState, error)
	Unrepost(ctx context.Context, id string) (*model.RepostState, error)
}

type VideoServiceImpl struct {
	api Requester
}

// NewVideoService constructs VideoService over api.
func NewVideoService(api Requester) *VideoServiceImpl {
	return &VideoServiceImpl{api: api}
}

func (s *VideoServiceImpl) list(ctx context.Context, name string, q url.Values) (model.VideoPage, error) {
	var out model.VideoPage
	if err := s.api.Get(ctx, withQuery(endpoint("videos", name), q), &out); err != nil {
		return model.VideoPage{}, err
	}
	if out.Videos == nil {
		out.Videos = []model.Video{}
	}
	return out, nil
}

func (s *VideoServiceImpl) Recent(ctx context.Context, p Page) (model.VideoPage, error) {
	return s.list(ctx, "recent", p.values())
}

// Search rejects blank queries without a network call.
func (s *VideoServiceImpl) Search(ctx context.Context, query string, p Page) (model.VideoPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return model.VideoPage{}, fmt.Errorf("%w: empty search query", errs.ErrValidation)
	}
	v := p.values()
	v.Set("q", query)
	return s.list(ctx, "search", v)
}

func (s *VideoServiceImpl) Feed(ctx context.Context, p Page) (model.VideoPage, error) {
	return s.list(ctx, "feed", p.values())
}

func (s *VideoServiceImpl) Trending(ctx context.Context, p Page) (model.VideoPage, error) {
	return s.list(ctx, "trending", p.values())
}

func (s *VideoServiceImpl) Get(ctx context.Context, id string) (*model.Video, error) {
	if err := requireID("video", id); err != nil {
		return nil, err
	}
	var v model.Video
	if err := s.api.Get(ctx, endpoint("videos", id), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *VideoServiceImpl) Share(ctx context.Context, in model.VideoShare) (*model.Video, error) {
	if strings.TrimSpace(in.YouTubeURL) == "" {
		return nil, fmt.Errorf("%w: empty youtube url", errs.ErrValidation)
	}
	var v model.Video
	if err := s.api.Post(ctx, endpoint("videos"), in, &v, apiclient.NoRetry()); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *VideoServiceImpl) LikeStatus(ctx context.Context, id string) (model.LikeState, error) {
	var st model.LikeState
	if err := requireID("video", id); err != nil {
		return st, err
	}
	err := s.api.Get(ctx, endpoint("videos", id, "like"), &st)
	return st, err
}

func (s *VideoServiceImpl) Like(ctx context.Context, id string) (*model.LikeState, error) {
	if err := requireID("video", id); err != nil {
		return nil, err
	}
	var st *model.LikeState
	if err := s.api.Post(ctx, endpoint("videos", id, "like"), nil, &st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *VideoServiceImpl) Unlike(ctx context.Context, id string) (*model.LikeState, error) {
	if err := requireID("video", id); err != nil {
		return nil, err
	}
	var st *model.LikeState
	if err := s.api.Delete(ctx, endpoint("videos", id, "like"), &st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *VideoServiceImpl) Repost(ctx context.Context, id string) (*model.RepostState, error) {
	if err := requireID("video", id); err != nil {
		return nil, err
	}
	var st *model.RepostState
	if err := s.api.Post(ctx, endpoint("videos", id, "repost"), nil, &st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *VideoServiceImpl) Unrepost(ctx context.Context, id string) (*model.RepostState, error) {
	if err := requireID("video", id); err != nil {
		return nil, err
	}
	var st *model.RepostState
	if err := s.api.Delete(ctx, endpoint("videos", id, "repost"), &st); err != nil {
		return nil, err
	}
	return st, nil
}
