package zarr

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// BlobStore adapts a gocloud.dev/blob.Bucket to Store, opening a bucket
// straight from a URL (file://, s3://, gs://, azblob://). The engine only
// ever talks to the Store interface, so any URL scheme gocloud.dev/blob
// registers a driver for becomes a usable backend for free.
type BlobStore struct {
	bucket *blob.Bucket
}

// NewBlobStore opens the bucket at path (a gocloud.dev/blob URL) and wraps
// it as a Store.
func NewBlobStore(ctx context.Context, path string) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: open bucket %q: %v", ErrStoreError, path, err)
	}
	return &BlobStore{bucket: bucket}, nil
}

// NewBlobStoreFromBucket wraps an already-open bucket as a Store.
func NewBlobStoreFromBucket(bucket *blob.Bucket) *BlobStore {
	return &BlobStore{bucket: bucket}
}

func (s *BlobStore) Get(ctx context.Context, key string) (io.ReadCloser, bool, error) {
	r, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: get %q: %v", ErrStoreError, key, err)
	}
	return r, true, nil
}

func (s *BlobStore) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	w, err := s.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: put %q: %v", ErrStoreError, key, err)
	}
	return w, nil
}

// Delete removes key itself and, since blob buckets are flat key spaces
// with '/'-delimited prefixes by convention rather than real hierarchy,
// every key that has key+"/" as a prefix.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	// The bare root key ("") names no object of its own, only the prefix
	// beneath it; attempting to delete it would hit a bucket-specific error
	// rather than NotFound.
	if key != "" {
		if err := s.bucket.Delete(ctx, key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
			return fmt.Errorf("%w: delete %q: %v", ErrStoreError, key, err)
		}
	}

	prefix := key
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	var toDelete []string
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: list %q: %v", ErrStoreError, prefix, err)
		}
		toDelete = append(toDelete, obj.Key)
	}
	for _, k := range toDelete {
		if err := s.bucket.Delete(ctx, k); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
			return fmt.Errorf("%w: delete %q: %v", ErrStoreError, k, err)
		}
	}
	return nil
}

// Close releases the underlying bucket.
func (s *BlobStore) Close() error {
	return s.bucket.Close()
}
