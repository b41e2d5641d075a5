package blob

import (
	"context"
	"io"
)

// PutResult is the outcome of a successful upload. URL is what clients get
// served; DeletionKey addresses the stored object for later purges and is
// persisted alongside the owning item.
type PutResult struct {
	URL         string
	DeletionKey string
}

// Store is the media blob store the write path uploads to and purges from.
// The page cache layer never touches it.
type Store interface {
	Put(ctx context.Context, r io.Reader, size int64, hint, contentType string) (PutResult, error)
	Delete(ctx context.Context, deletionKey string) error
}
