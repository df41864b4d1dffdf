package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/socialserver/backend/internal/db"
	"github.com/socialserver/backend/internal/ids"
	"github.com/socialserver/backend/internal/logging"
	"github.com/socialserver/backend/internal/models"
)

// Images indexes which user owns which stored image file. The bytes live in
// object storage.
type Images struct {
	conn       Connection
	collection string
	users      UserFinder
	clock      *Clock
}

// NewImages constructs an Images repository over the named collection.
func NewImages(conn Connection, collection string, users UserFinder, clock *Clock) *Images {
	if clock == nil {
		clock = NewClock(nil)
	}
	return &Images{conn: conn, collection: collection, users: users, clock: clock}
}

// Add records that owner uploaded the file stored under name.
func (r *Images) Add(ctx context.Context, owner, name string) (image models.Image, err error) {
	ctx, span := logging.StartSpan(ctx, "images.add")
	defer func() { span.End(err) }()

	coll, err := r.conn.Collection(r.collection)
	if err != nil {
		return models.Image{}, err
	}
	if !ids.Valid(owner) {
		return models.Image{}, ErrInvalidID
	}
	if strings.TrimSpace(name) == "" {
		return models.Image{}, ErrInvalidName
	}

	_, found, err := r.users.GetByID(ctx, owner)
	if err != nil {
		return models.Image{}, err
	}
	if !found {
		return models.Image{}, ErrNoSuchUser
	}

	image = models.Image{
		ID:    newID(),
		Owner: owner,
		Name:  name,
		Time:  r.clock.Millis(),
	}
	if err := coll.InsertOne(ctx, image.ID, image); err != nil {
		return models.Image{}, fmt.Errorf("insert image: %w", err)
	}
	return image, nil
}

// List returns every image owned by owner.
func (r *Images) List(ctx context.Context, owner string) (images []models.Image, err error) {
	ctx, span := logging.StartSpan(ctx, "images.list")
	defer func() { span.End(err) }()

	coll, err := r.conn.Collection(r.collection)
	if err != nil {
		return nil, err
	}
	if !ids.Valid(owner) {
		return nil, ErrInvalidID
	}

	if err := coll.Find(ctx, db.Where(db.Eq(models.FieldOwner, owner)), &images); err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return images, nil
}
