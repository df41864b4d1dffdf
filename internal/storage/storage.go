package storage

import (
	"errors"
	"mime"
	"path"
)

// ErrEmptyName indicates an object name that is empty after trimming slashes.
var ErrEmptyName = errors.New("storage: empty object name")

func contentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
