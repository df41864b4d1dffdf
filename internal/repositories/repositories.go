// Package repositories enforces the domain invariants for users, friendships,
// messages and images on top of the document store.
//
// Every operation is a short pipeline: check the store connection, validate the
// input, check preconditions against the store, write, and re-read where the
// result is needed. Prechecks and writes are separate round-trips; uniqueness
// of usernames and friendship pairs is additionally enforced by unique indexes
// declared in Specs, and violations map back to the same errors the
// prechecks return.
package repositories

import (
	"context"
	"time"

	"github.com/socialserver/backend/internal/config"
	"github.com/socialserver/backend/internal/db"
	"github.com/socialserver/backend/internal/ids"
	"github.com/socialserver/backend/internal/models"
)

// Connection vends collection handles and fails with db.ErrNotConnected when the
// store is disconnected. *db.Manager satisfies it.
type Connection interface {
	Collection(name string) (db.Collection, error)
}

// TokenGenerator produces random session tokens of a requested length.
type TokenGenerator interface {
	Generate(ctx context.Context, length int) (string, error)
}

// UserFinder resolves users for the repositories that reference them.
type UserFinder interface {
	GetManyByID(ctx context.Context, userIDs []string) ([]models.User, error)
	GetByID(ctx context.Context, id string) (models.User, bool, error)
}

// Specs declares the collections and unique indexes the repositories depend on.
func Specs(c config.Collections) []db.CollectionSpec {
	return []db.CollectionSpec{
		{Name: c.Accounts, Unique: [][]string{{models.FieldUsername}}},
		{Name: c.Friendships, Unique: [][]string{{models.FieldFirst, models.FieldSecond}}},
		{Name: c.Messages},
		{Name: c.Images},
	}
}

// Config configures a repository Set.
type Config struct {
	Collections config.Collections
	TokenLength int
	// Now overrides the server clock; nil means time.Now.
	Now func() time.Time
}

// Set groups the repositories sharing one connection.
type Set struct {
	Users       *Users
	Friendships *Friendships
	Messages    *Messages
	Images      *Images
}

// New wires every repository onto conn.
func New(conn Connection, tokens TokenGenerator, cfg Config) Set {
	clock := NewClock(cfg.Now)
	users := NewUsers(conn, cfg.Collections.Accounts, tokens, cfg.TokenLength)
	return Set{
		Users:       users,
		Friendships: NewFriendships(conn, cfg.Collections.Friendships, users),
		Messages:    NewMessages(conn, cfg.Collections.Messages, users, clock),
		Images:      NewImages(conn, cfg.Collections.Images, users, clock),
	}
}

var newID = ids.New
