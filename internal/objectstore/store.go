// Package objectstore provides an abstraction layer for object storage
// backends. The interface is kept to exactly the two operations the model
// ingester exercises: Get, to stream a vocab/embedding package's files back
// out, and Put, for WriteModelPackage to stage those files in tests and
// tooling. It is not a general-purpose bucket client.
package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// Common errors returned by ObjectStore implementations.
var (
	ErrNotFound     = errors.New("object not found")
	ErrAccessDenied = errors.New("access denied")
)

// ObjectAttrs contains metadata about a stored object.
type ObjectAttrs struct {
	// Key is the full object key (path) in the bucket.
	Key string
	// Size is the object size in bytes.
	Size int64
	// ETag is the object's entity tag (typically an MD5 hash).
	ETag string
	// LastModified is when the object was last updated.
	LastModified time.Time
	// ContentType is the MIME type if set.
	ContentType string
}

// PutOptions configures Put operation behavior.
type PutOptions struct {
	// ContentType sets the MIME type of the object.
	ContentType string
	// Metadata contains custom key-value pairs to store with the object.
	Metadata map[string]string
}

// ObjectStore is the object storage operations a vocab/embedding package
// source needs. Implementations must be safe for concurrent use.
type ObjectStore interface {
	// Get retrieves an object by key. The caller must close the returned reader.
	// Returns ErrNotFound if the object does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectAttrs, error)

	// Put stores an object with the given key. The reader is fully consumed.
	// Returns the ETag of the stored object.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (etag string, err error)
}
