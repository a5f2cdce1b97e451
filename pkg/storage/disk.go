// Package storage stores uploaded files on the local filesystem or an
// S3-compatible bucket (AWS S3, MinIO, R2).
//
//	disk, err := storage.Open(storage.FromConfig())
//	err = disk.Put(ctx, "shops/abc.png", r, "image/png")
//	url := disk.URL("shops/abc.png")
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get for a missing object.
var ErrNotFound = errors.New("storage: not found")

// Disk is implemented by every driver.
type Disk interface {
	// Put writes r to path, replacing any existing object.
	Put(ctx context.Context, path string, r io.Reader, contentType string) error
	Get(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	// Delete is a no-op for a missing object.
	Delete(ctx context.Context, path string) error
	// URL is the public address of path.
	URL(path string) string
}
