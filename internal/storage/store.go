package storage

import (
	"context"
	"io"
)

// ObjectStore is the object storage collaborator: audio clips, embeddings,
// and result documents all live behind it, keyed by string object keys under
// a single bucket.
type ObjectStore interface {
	// PutFile uploads a local file to the given key.
	PutFile(ctx context.Context, key, localPath, contentType string) error

	// Put uploads a reader of known size to the given key.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error

	// GetFile downloads the object at key to a local path.
	GetFile(ctx context.Context, key, localPath string) error

	// Get returns an object's full contents.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns all object keys under the prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// RemovePrefix deletes every object under the prefix. Used to overwrite a
	// reprocessed interview's clips wholesale rather than merging.
	RemovePrefix(ctx context.Context, prefix string) error
}
