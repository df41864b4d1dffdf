package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/socialserver/backend/internal/db"
	"github.com/socialserver/backend/internal/ids"
	"github.com/socialserver/backend/internal/logging"
	"github.com/socialserver/backend/internal/models"
)

// Canonicalize orders a pair of user ids so that first <= second.
func Canonicalize(a, b string) (first, second string) {
	if a > b {
		return b, a
	}
	return a, b
}

// Friendships persists the symmetric friend relation, one document per pair.
type Friendships struct {
	conn       Connection
	collection string
	users      UserFinder
}

// NewFriendships constructs a Friendships repository over the named collection.
func NewFriendships(conn Connection, collection string, users UserFinder) *Friendships {
	return &Friendships{conn: conn, collection: collection, users: users}
}

// CheckIfFriends reports whether a and b are friends. Both users must exist.
func (r *Friendships) CheckIfFriends(ctx context.Context, a, b string) (friends bool, err error) {
	ctx, span := logging.StartSpan(ctx, "friendships.check")
	defer func() { span.End(err) }()

	coll, err := r.conn.Collection(r.collection)
	if err != nil {
		return false, err
	}
	if !ids.Valid(a) || !ids.Valid(b) {
		return false, ErrInvalidID
	}
	first, second := Canonicalize(a, b)

	users, err := r.users.GetManyByID(ctx, []string{first, second})
	if err != nil {
		return false, err
	}
	if len(distinctUsers(users)) != len(distinct(first, second)) {
		return false, ErrUnknownFriend
	}

	var friendship models.Friendship
	found, err := coll.FindOne(ctx, pairFilter(first, second), &friendship)
	if err != nil {
		return false, fmt.Errorf("find friendship: %w", err)
	}
	return found, nil
}

// NewFriendship records a friendship between two distinct existing users.
func (r *Friendships) NewFriendship(ctx context.Context, a, b string) (friendship models.Friendship, err error) {
	ctx, span := logging.StartSpan(ctx, "friendships.create")
	defer func() { span.End(err) }()

	coll, err := r.conn.Collection(r.collection)
	if err != nil {
		return models.Friendship{}, err
	}
	if !ids.Valid(a) || !ids.Valid(b) {
		return models.Friendship{}, ErrInvalidID
	}
	if a == b {
		return models.Friendship{}, ErrDuplicateIDs
	}
	first, second := Canonicalize(a, b)

	friends, err := r.CheckIfFriends(ctx, first, second)
	if err != nil {
		return models.Friendship{}, err
	}
	if friends {
		return models.Friendship{}, ErrAlreadyFriends
	}

	friendship = models.Friendship{ID: newID(), First: first, Second: second}
	if err := coll.InsertOne(ctx, friendship.ID, friendship); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return models.Friendship{}, ErrAlreadyFriends
		}
		return models.Friendship{}, fmt.Errorf("insert friendship: %w", err)
	}
	return friendship, nil
}

// Unfriend removes the friendship between a and b, reporting whether one existed.
func (r *Friendships) Unfriend(ctx context.Context, a, b string) (removed bool, err error) {
	ctx, span := logging.StartSpan(ctx, "friendships.delete")
	defer func() { span.End(err) }()

	coll, err := r.conn.Collection(r.collection)
	if err != nil {
		return false, err
	}
	if !ids.Valid(a) || !ids.Valid(b) {
		return false, ErrInvalidID
	}
	first, second := Canonicalize(a, b)

	n, err := coll.DeleteOne(ctx, pairFilter(first, second))
	if err != nil {
		return false, fmt.Errorf("delete friendship: %w", err)
	}
	return n > 0, nil
}

// ListFriendships returns every friendship the user takes part in.
func (r *Friendships) ListFriendships(ctx context.Context, id string) (friendships []models.Friendship, err error) {
	ctx, span := logging.StartSpan(ctx, "friendships.list")
	defer func() { span.End(err) }()

	coll, err := r.conn.Collection(r.collection)
	if err != nil {
		return nil, err
	}
	if !ids.Valid(id) {
		return nil, ErrInvalidID
	}

	filter := db.Filter{}.Or(db.Eq(models.FieldFirst, id), db.Eq(models.FieldSecond, id))
	if err := coll.Find(ctx, filter, &friendships); err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	return friendships, nil
}

func pairFilter(first, second string) db.Filter {
	return db.Where(db.Eq(models.FieldFirst, first), db.Eq(models.FieldSecond, second))
}

func distinct(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func distinctUsers(users []models.User) map[string]struct{} {
	set := make(map[string]struct{}, len(users))
	for _, u := range users {
		set[u.ID] = struct{}{}
	}
	return set
}
