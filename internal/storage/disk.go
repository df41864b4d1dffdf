package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DiskStorage stores images as files in a directory, the layout a static file
// server can expose directly.
type DiskStorage struct {
	dir     string
	baseURL string
}

// NewDiskStorage creates dir when missing. Locations returned by Save are
// baseURL/name, or the file path when baseURL is empty.
func NewDiskStorage(dir, baseURL string) (*DiskStorage, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("disk storage: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("disk storage: create %s: %w", dir, err)
	}
	return &DiskStorage{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Save writes the image atomically: bytes go to a temporary file that is
// renamed into place once complete.
func (s *DiskStorage) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	name = strings.Trim(name, "/")
	if name == "" {
		return "", ErrEmptyName
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("disk storage: invalid name %q", name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("disk storage: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("disk storage: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("disk storage: close %s: %w", name, err)
	}

	target := filepath.Join(s.dir, name)
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("disk storage: rename %s: %w", name, err)
	}

	if s.baseURL == "" {
		return target, nil
	}
	return s.baseURL + "/" + name, nil
}
