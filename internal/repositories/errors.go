package repositories

import "github.com/socialserver/backend/internal/apperrors"

var (
	// ErrInvalidParamSet indicates registration received a field other than username and password.
	ErrInvalidParamSet = apperrors.Argument("invalid parameter set")
	// ErrMissingParams indicates a required field is absent or blank.
	ErrMissingParams = apperrors.Argument("missing parameters")
	// ErrNoParams indicates a lookup filter was empty after sanitizing.
	ErrNoParams = apperrors.Argument("no parameters given")
	// ErrInvalidID indicates a malformed identifier.
	ErrInvalidID = apperrors.Argument("invalid id")
	// ErrInvalidIDs indicates an identifier sequence contains a malformed element.
	ErrInvalidIDs = apperrors.Argument("invalid id sequence")
	// ErrEmptySearchTerm indicates a blank username search term.
	ErrEmptySearchTerm = apperrors.Argument("empty search term")
	// ErrDuplicateIDs indicates a friendship was requested between a user and themselves.
	ErrDuplicateIDs = apperrors.Argument("duplicate ids")
	// ErrUnknownFriend indicates one side of a friendship does not exist.
	ErrUnknownFriend = apperrors.Argument("no such user")
	// ErrAlreadyFriends indicates the friendship already exists.
	ErrAlreadyFriends = apperrors.Argument("already friends")
	// ErrEmptyMessage indicates blank message text.
	ErrEmptyMessage = apperrors.Argument("empty message")
	// ErrInvalidName indicates a blank image name.
	ErrInvalidName = apperrors.Argument("invalid name")

	// ErrUsernameTaken indicates another user already registered the username.
	ErrUsernameTaken = apperrors.Semantics("username taken")
	// ErrNoDocumentUpdated indicates an update matched no user.
	ErrNoDocumentUpdated = apperrors.Semantics("no document updated")
	// ErrNoSuchUser indicates a referenced user does not exist.
	ErrNoSuchUser = apperrors.Semantics("no such user")
)
