package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Package storage contains the artifact store used by the analysis pipeline.
// Artifacts (uploaded images and generated audio) are addressed by bare
// filename; the filename itself is the only index that exists.

// ErrNotExist is returned by Open when no artifact with the given name exists.
var ErrNotExist = errors.New("artifact does not exist")

// SaveOptions define optional parameters for storing artifacts.
// Size should be the exact number of bytes if known; set to -1 if unknown.
type SaveOptions struct {
	Size        int64
	ContentType string
}

// ObjectInfo contains basic information about a stored artifact.
type ObjectInfo struct {
	Name        string
	Size        int64
	ContentType string
	ModTime     time.Time
}

// Storage is the artifact store interface. Implementations must be safe for
// concurrent use; callers guarantee name uniqueness by generating fresh IDs.
type Storage interface {
	// Save stores the reader's content under the given name, overwriting any
	// existing artifact with that name.
	Save(ctx context.Context, name string, r io.Reader, opt SaveOptions) (ObjectInfo, error)
	// Open returns the artifact's content as a streaming reader alongside its
	// info, or ErrNotExist.
	Open(ctx context.Context, name string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an artifact by name. Deleting a missing artifact is not
	// an error.
	Delete(ctx context.Context, name string) error
	// Healthcheck reports whether the backing store is reachable and writable.
	Healthcheck(ctx context.Context) error
}
