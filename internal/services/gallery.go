package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/socialserver/backend/internal/ids"
	"github.com/socialserver/backend/internal/logging"
	"github.com/socialserver/backend/internal/models"
)

// ObjectStorage persists uploaded image bytes under a name and returns where
// they can be fetched.
type ObjectStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// ImageStore is the subset of the image repository Gallery uses.
type ImageStore interface {
	Add(ctx context.Context, owner, name string) (models.Image, error)
	List(ctx context.Context, owner string) ([]models.Image, error)
}

// Upload is the result of storing an image.
type Upload struct {
	Image    models.Image
	Location string
}

// Gallery stores image bytes and indexes them by owner.
type Gallery struct {
	storage ObjectStorage
	images  ImageStore
	newName func() string
}

// NewGallery constructs the gallery workflows.
func NewGallery(storage ObjectStorage, images ImageStore) *Gallery {
	return &Gallery{storage: storage, images: images, newName: ids.New}
}

// Upload writes the image under a generated name keeping the original
// extension, then records it for owner. Stored bytes are left in place when
// recording fails.
func (g *Gallery) Upload(ctx context.Context, owner, filename string, r io.Reader) (Upload, error) {
	if r == nil {
		return Upload{}, ErrEmptyUpload
	}

	name := g.newName() + strings.ToLower(filepath.Ext(filename))
	location, err := g.storage.Save(ctx, name, r)
	if err != nil {
		return Upload{}, fmt.Errorf("store image: %w", err)
	}

	image, err := g.images.Add(ctx, owner, name)
	if err != nil {
		logging.FromContext(ctx).Warn("image stored without metadata", "name", name, "error", err)
		return Upload{}, err
	}
	return Upload{Image: image, Location: location}, nil
}

// List returns the images owned by owner.
func (g *Gallery) List(ctx context.Context, owner string) ([]models.Image, error) {
	return g.images.List(ctx, owner)
}
