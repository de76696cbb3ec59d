package events

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Archive.Get for a missing object.
var ErrNotFound = errors.New("archived document not found")

// Archive is a write-once object store for event documents.
type Archive interface {
	// Name identifies the archive in logs and CLI output.
	Name() string

	// Put stores size bytes read from r under key.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get writes the object stored under key to w.
	Get(ctx context.Context, key string, w io.Writer) error
}
