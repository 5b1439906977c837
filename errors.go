package zarr

import "errors"

// Sentinel error kinds, tested with errors.Is. Call sites wrap these with
// fmt.Errorf("...: %w", ...) to attach the key or dimensions that failed.
var (
	// ErrOpenFailed is returned when a header is missing, malformed, or
	// internally inconsistent (rank mismatches between shape and chunks).
	ErrOpenFailed = errors.New("zarr: open failed")

	// ErrOutOfRange is returned when a region's offset+shape exceeds the
	// array, or a call's rank disagrees with the array's rank.
	ErrOutOfRange = errors.New("zarr: region out of range")

	// ErrBufferMismatch is returned when a caller-supplied buffer's byte
	// length does not equal the product of the region shape times the
	// array's element size. Buffers are untyped bytes, so the element type
	// of a buffer is not checked beyond that length.
	ErrBufferMismatch = errors.New("zarr: buffer mismatch")

	// ErrCorruptChunk is returned when a decompressed chunk's byte length
	// does not equal chunks-volume * element-size.
	ErrCorruptChunk = errors.New("zarr: corrupt chunk")

	// ErrStoreError wraps any I/O failure surfaced by the underlying Store.
	ErrStoreError = errors.New("zarr: store error")
)
