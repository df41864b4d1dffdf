package db

import (
	"errors"

	"github.com/socialserver/backend/internal/apperrors"
)

var (
	// ErrNotConnected indicates an operation was attempted without an open store connection.
	ErrNotConnected = apperrors.Database("not connected to database", nil)
	// ErrDuplicate indicates a write would violate a unique index of the collection.
	ErrDuplicate = errors.New("duplicate key")
)
