package services

import "github.com/socialserver/backend/internal/apperrors"

var (
	// ErrInvalidCredentials indicates an unknown username or a wrong password.
	ErrInvalidCredentials = apperrors.Semantics("invalid credentials")
	// ErrTooManyAttempts indicates the username exhausted its login attempts.
	ErrTooManyAttempts = apperrors.Semantics("too many attempts")
	// ErrNotAuthenticated indicates a session token that is not current.
	ErrNotAuthenticated = apperrors.Semantics("not authenticated")
	// ErrEmptyUpload indicates an image upload without content.
	ErrEmptyUpload = apperrors.Argument("empty upload")
)
