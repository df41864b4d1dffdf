// Package services composes repository operations into the account, friend
// and gallery workflows exposed by the server.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/socialserver/backend/internal/auth"
	"github.com/socialserver/backend/internal/logging"
	"github.com/socialserver/backend/internal/models"
	"github.com/socialserver/backend/internal/params"
	"github.com/socialserver/backend/internal/repositories"
)

// UserStore is the subset of the user repository the account workflows use.
type UserStore interface {
	Register(ctx context.Context, p params.Params) (models.User, error)
	GetUser(ctx context.Context, filter params.Params) (models.User, bool, error)
	RotateToken(ctx context.Context, id string) (string, error)
	ChangePassword(ctx context.Context, id, password string, resetToken bool) (models.User, error)
	CheckToken(ctx context.Context, token, id string) (bool, error)
}

// AttemptLimiter throttles login attempts per username.
type AttemptLimiter interface {
	Allow(key string) bool
}

// Accounts handles registration, login and session management. Passwords are
// hashed here before the user repository stores them.
type Accounts struct {
	users   UserStore
	hasher  auth.Hasher
	limiter AttemptLimiter
}

// NewAccounts constructs the account workflows. A nil limiter disables login
// throttling.
func NewAccounts(users UserStore, hasher auth.Hasher, limiter AttemptLimiter) *Accounts {
	return &Accounts{users: users, hasher: hasher, limiter: limiter}
}

// Register creates a user with a hashed password.
func (a *Accounts) Register(ctx context.Context, username, password string) (models.User, error) {
	if strings.TrimSpace(password) == "" {
		return models.User{}, repositories.ErrMissingParams
	}
	hashed, err := a.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := a.users.Register(ctx, params.Params{
		models.FieldUsername: username,
		models.FieldPassword: hashed,
	})
	if err != nil {
		return models.User{}, err
	}
	logging.FromContext(ctx).Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login verifies the credentials and returns the user, whose token is the
// current session token.
func (a *Accounts) Login(ctx context.Context, username, password string) (models.User, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return models.User{}, repositories.ErrMissingParams
	}
	if a.limiter != nil && !a.limiter.Allow(username) {
		logging.FromContext(ctx).Warn("login throttled", "username", username)
		return models.User{}, ErrTooManyAttempts
	}

	user, found, err := a.users.GetUser(ctx, params.Params{models.FieldUsername: username})
	if err != nil {
		return models.User{}, err
	}
	if !found {
		return models.User{}, ErrInvalidCredentials
	}

	if err := a.hasher.Compare(user.Password, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, fmt.Errorf("compare password: %w", err)
	}
	return user, nil
}

// ResetSessions invalidates every session of the user and returns the new token.
func (a *Accounts) ResetSessions(ctx context.Context, id string) (string, error) {
	return a.users.RotateToken(ctx, id)
}

// ChangePassword stores a new hashed password, rotating the session token when
// resetSessions is set.
func (a *Accounts) ChangePassword(ctx context.Context, id, password string, resetSessions bool) (models.User, error) {
	if strings.TrimSpace(password) == "" {
		return models.User{}, repositories.ErrMissingParams
	}
	hashed, err := a.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	return a.users.ChangePassword(ctx, id, hashed, resetSessions)
}

// Authenticate succeeds when token is the user's current session token.
func (a *Accounts) Authenticate(ctx context.Context, id, token string) error {
	ok, err := a.users.CheckToken(ctx, token, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAuthenticated
	}
	return nil
}
