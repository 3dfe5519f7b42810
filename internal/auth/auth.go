// Package auth implements login, signup, logout and the guard that protects
// commands needing a session.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/comigor/folio-go/internal/errs"
	"github.com/comigor/folio-go/internal/logger"
	"github.com/comigor/folio-go/internal/model"
	"github.com/comigor/folio-go/internal/session"
)

// Gateway is the subset of the API client used for authentication.
type Gateway interface {
	Login(ctx context.Context, email, password string) (string, error)
	Signup(ctx context.Context, name, email, password string) (string, error)
	CurrentUser(ctx context.Context) (*model.Profile, error)
}

// SessionStore holds the token and profile.
type SessionStore interface {
	SetToken(token string) error
	Clear() error
	Restore(ctx context.Context, f session.ProfileFetcher) (*model.Profile, error)
}

// Signup is the sign-up form.
type Signup struct {
	Name     string
	Email    string
	Password string
	Confirm  string
}

// Service ties the gateway to the session store.
type Service struct {
	gw    Gateway
	store SessionStore
}

// NewService creates a new Service
func NewService(gw Gateway, store SessionStore) *Service {
	return &Service{gw: gw, store: store}
}

// Login stores the token on success. On failure nothing is persisted.
func (s *Service) Login(ctx context.Context, email, password string) error {
	token, err := s.gw.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		logger.L.Warn("login failed", "email", email, "error", err)
		return &errs.AuthError{Message: messageOr(err, "Invalid email or password"), Err: err}
	}
	if token == "" {
		return &errs.AuthError{Message: "Invalid email or password"}
	}
	return s.store.SetToken(token)
}

// Signup checks the password confirmation locally, then creates the account
// and stores its token.
func (s *Service) Signup(ctx context.Context, in Signup) error {
	if in.Password != in.Confirm {
		return errs.Invalid("password", "Passwords do not match")
	}
	token, err := s.gw.Signup(ctx, strings.TrimSpace(in.Name), strings.TrimSpace(in.Email), in.Password)
	if err != nil {
		logger.L.Warn("signup failed", "email", in.Email, "error", err)
		return &errs.AuthError{Message: messageOr(err, "Failed to create account"), Err: err}
	}
	return s.store.SetToken(token)
}

// Logout forgets the profile and purges the token.
func (s *Service) Logout() error {
	return s.store.Clear()
}

// Require is the guard for protected commands. It fails with ErrNoSession
// when no token is stored, and with an AuthError (after purging the token)
// when the stored token no longer resolves to a profile.
func (s *Service) Require(ctx context.Context) (*model.Profile, error) {
	return s.store.Restore(ctx, s.gw)
}

// messageOr prefers the server message carried by a RequestError.
func messageOr(err error, fallback string) string {
	var re *errs.RequestError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	return fallback
}
