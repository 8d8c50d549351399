package service

import (
	"context"
	"fmt"

	"github.com/and161185/petflix/internal/apiclient"
	"github.com/and161185/petflix/internal/errs"
	"github.com/and161185/petflix/internal/model"
)

// UserService defines account and profile operations.
type UserService interface {
	// Me resolves the profile behind the stored token.
	Me(ctx context.Context) (*model.Profile, error)
	// Login exchanges credentials for a bearer token.
	Login(ctx context.Context, creds model.Credentials) (model.AuthResult, error)
	// Register creates an account and returns a bearer token.
	Register(ctx context.Context, reg model.Registration) (model.AuthResult, error)
	// Get returns a public profile.
	Get(ctx context.Context, id string) (*model.Profile, error)
	// UpdateProfile edits the current user's profile.
	UpdateProfile(ctx context.Context, upd model.ProfileUpdate) (*model.Profile, error)
	Follow(ctx context.Context, id string) error
	Unfollow(ctx context.Context, id string) error
}

type UserServiceImpl struct {
	api Requester
}

// NewUserService constructs UserService over api.
func NewUserService(api Requester) *UserServiceImpl {
	return &UserServiceImpl{api: api}
}

// Me calls GET /users/me. 401 and 404 surface as errs.ErrUnauthorized and
// errs.ErrNotFound through *apiclient.APIError.
func (s *UserServiceImpl) Me(ctx context.Context) (*model.Profile, error) {
	var p model.Profile
	if err := s.api.Get(ctx, endpoint("users", "me"), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Login validates input and posts credentials.
func (s *UserServiceImpl) Login(ctx context.Context, creds model.Credentials) (model.AuthResult, error) {
	if creds.Email == "" || creds.Password == "" {
		return model.AuthResult{}, fmt.Errorf("%w: empty email/password", errs.ErrValidation)
	}
	var res model.AuthResult
	if err := s.api.Post(ctx, endpoint("users", "login"), creds, &res); err != nil {
		return model.AuthResult{}, err
	}
	return res, nil
}

// Register is sent once: a retried POST could create the account twice.
func (s *UserServiceImpl) Register(ctx context.Context, reg model.Registration) (model.AuthResult, error) {
	if reg.Username == "" || reg.Email == "" || reg.Password == "" {
		return model.AuthResult{}, fmt.Errorf("%w: empty username/email/password", errs.ErrValidation)
	}
	var res model.AuthResult
	if err := s.api.Post(ctx, endpoint("users", "register"), reg, &res, apiclient.NoRetry()); err != nil {
		return model.AuthResult{}, err
	}
	return res, nil
}

func (s *UserServiceImpl) Get(ctx context.Context, id string) (*model.Profile, error) {
	if err := requireID("user", id); err != nil {
		return nil, err
	}
	var p model.Profile
	if err := s.api.Get(ctx, endpoint("users", id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *UserServiceImpl) UpdateProfile(ctx context.Context, upd model.ProfileUpdate) (*model.Profile, error) {
	if upd.Username != nil && *upd.Username == "" {
		return nil, fmt.Errorf("%w: empty username", errs.ErrValidation)
	}
	var p model.Profile
	if err := s.api.Put(ctx, endpoint("users", "me"), upd, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *UserServiceImpl) Follow(ctx context.Context, id string) error {
	if err := requireID("user", id); err != nil {
		return err
	}
	return s.api.Post(ctx, endpoint("users", id, "follow"), nil, nil)
}

func (s *UserServiceImpl) Unfollow(ctx context.Context, id string) error {
	if err := requireID("user", id); err != nil {
		return err
	}
	return s.api.Delete(ctx, endpoint("users", id, "follow"), nil)
}
