// Package storage defines the Backend interface for deck object storage.
package storage

import (
	"context"
	"io"

	"github.com/chartdeck/chartdeck/internal/protocol"
)

// Backend is the interface for deck storage backends. Objects are keyed
// "<folder>/<ticker>/<name>.json"; a folder is the top-level key segment.
type Backend interface {
	// ListFolders enumerates folders together with their file descriptors.
	ListFolders(ctx context.Context) ([]protocol.Folder, error)

	// GetObject retrieves an object by key.
	GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error)

	// PutObject uploads content to the given key.
	PutObject(ctx context.Context, key string, body io.Reader, size int64) error

	// ObjectExists checks if an object exists at the given key.
	ObjectExists(ctx context.Context, key string) (bool, error)

	// Type returns the backend type identifier ("s3", "local").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}
