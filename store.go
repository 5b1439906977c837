package zarr

import (
	"context"
	"io"
)

// Store is the opaque key -> byte-blob surface the engine consumes. The
// engine never parses keys, and chunk keys are built only by ChunkKey
// (chunkkey.go). Keys are slash-separated strings rooted under an array's
// path prefix.
//
// Implementations must make Put atomic enough that a concurrent Get sees
// either the old or the new full value, never a torn one (stage-then-rename
// for file-backed stores is the usual trick). Delete must remove the key
// and anything stored beneath it when the store is hierarchical.
type Store interface {
	// Get returns a reader for key's value, or (nil, false, nil) if the key
	// is absent. The returned reader must be closed by the caller.
	Get(ctx context.Context, key string) (io.ReadCloser, bool, error)

	// Put returns a writer that overwrites key's value when closed.
	Put(ctx context.Context, key string) (io.WriteCloser, error)

	// Delete removes key and, for hierarchical stores, everything beneath
	// it. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
