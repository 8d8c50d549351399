package service

import (
	"context"

	"github.com/and161185/petflix/internal/model"
)

// NotificationService defines inbox operations.
type NotificationService interface {
	List(ctx context.Context, p Page) (model.NotificationPage, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
}

type NotificationServiceImpl struct {
	api Requester
}

// NewNotificationService constructs NotificationService over api.
func NewNotificationService(api Requester) *NotificationServiceImpl {
	return &NotificationServiceImpl{api: api}
}

func (s *NotificationServiceImpl) List(ctx context.Context, p Page) (model.NotificationPage, error) {
	var out model.NotificationPage
	if err := s.api.Get(ctx, withQuery(endpoint("notifications"), p.values()), &out); err != nil {
		return model.NotificationPage{}, err
	}
	if out.Notifications == nil {
		out.Notifications = []model.Notification{}
	}
	return out, nil
}

type unreadCount struct {
	Count int `json:"count"`
}

func (s *NotificationServiceImpl) UnreadCount(ctx context.Context) (int, error) {
	var out unreadCount
	if err := s.api.Get(ctx, endpoint("notifications", "unread-count"), &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (s *NotificationServiceImpl) MarkRead(ctx context.Context, id string) error {
	if err := requireID("notification", id); err != nil {
		return err
	}
	return s.api.Put(ctx, endpoint("notifications", id, "read"), nil, nil)
}

func (s *NotificationServiceImpl) MarkAllRead(ctx context.Context) error {
	return s.api.Put(ctx, endpoint("notifications", "read-all"), nil, nil)
}
