package services

import (
	"context"

	"github.com/socialserver/backend/internal/models"
)

// FriendshipStore is the subset of the friendship repository Friends uses.
type FriendshipStore interface {
	ListFriendships(ctx context.Context, id string) ([]models.Friendship, error)
}

// UserLister resolves user records by id.
type UserLister interface {
	GetManyByID(ctx context.Context, userIDs []string) ([]models.User, error)
}

// Friends resolves friend lists to user records.
type Friends struct {
	friendships FriendshipStore
	users       UserLister
}

// NewFriends constructs the friend workflows.
func NewFriends(friendships FriendshipStore, users UserLister) *Friends {
	return &Friends{friendships: friendships, users: users}
}

// List returns the users befriended with id. Friendships whose other party no
// longer exists are skipped.
func (f *Friends) List(ctx context.Context, id string) ([]models.User, error) {
	friendships, err := f.friendships.ListFriendships(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(friendships) == 0 {
		return []models.User{}, nil
	}

	others := make([]string, 0, len(friendships))
	for _, friendship := range friendships {
		others = append(others, friendship.Other(id))
	}
	return f.users.GetManyByID(ctx, others)
}
