// Package db owns the connection to the document store and the per-collection
// handles shared by the repositories.
package db

import "context"

// Driver opens connections to a document store.
type Driver interface {
	Open(ctx context.Context) (Conn, error)
}

// Conn is an open store connection.
type Conn interface {
	// EnsureCollection creates the collection and its unique indexes when missing.
	EnsureCollection(ctx context.Context, spec CollectionSpec) error
	// Collection returns a handle for the named collection.
	Collection(name string) Collection
	Close()
}

// CollectionSpec declares a collection and the field sets that must be unique
// across its documents.
type CollectionSpec struct {
	Name   string
	Unique [][]string
}

// Collection stores JSON documents keyed by a string primary key. Documents are
// encoded with encoding/json; decoded results are written into out the same way.
type Collection interface {
	Name() string
	// InsertOne stores doc under id. A unique index violation yields ErrDuplicate.
	InsertOne(ctx context.Context, id string, doc any) error
	// FindOne decodes the first matching document into out and reports whether
	// one was found.
	FindOne(ctx context.Context, filter Filter, out any) (bool, error)
	// Find decodes every matching document into out, which must point to a slice.
	Find(ctx context.Context, filter Filter, out any, opts ...FindOption) error
	// UpdateOne merges set into the first matching document and returns the
	// number of documents matched.
	UpdateOne(ctx context.Context, filter Filter, set map[string]any) (int64, error)
	// DeleteOne removes the first matching document and returns the number removed.
	DeleteOne(ctx context.Context, filter Filter) (int64, error)
}
