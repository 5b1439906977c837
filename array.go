package zarr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

const headerName = ".zarray"

// Options configures Create and Open.
type Options struct {
	// DefaultNested is the layout used when creating an array, and the
	// fallback layout when an opened array's header omits the layout hint
	// and the open-time probe finds no chunks at all.
	DefaultNested bool
}

// Array orchestrates the codec, geometry, and chunk-key formatter over a
// Store, with per-chunk mutual exclusion.
type Array struct {
	store Store
	root  string

	shape     []int
	chunkDims []int
	dtype     DType
	fill      float64

	compressorCfg CompressorConfig
	nested        bool

	codec *codec
	locks sync.Map // chunk key string -> *sync.Mutex
}

func joinKey(root, name string) string {
	if root == "" {
		return name
	}
	return root + "/" + name
}

// Shape returns the array's logical shape. The returned slice must not be
// mutated.
func (a *Array) Shape() []int { return a.shape }

// Chunks returns the array's chunk dimensions. The returned slice must not
// be mutated.
func (a *Array) Chunks() []int { return a.chunkDims }

// DType returns the array's element dtype.
func (a *Array) DType() DType { return a.dtype }

// Nested reports whether this array's on-disk chunk keys use "/" (true) or
// "." (false) separators.
func (a *Array) Nested() bool { return a.nested }

func (a *Array) chunkKey(idx []int) string {
	return ChunkKey(a.root, idx, a.nested)
}

// lock acquires the mutex for key, creating it on first use, and returns a
// function that releases it.
func (a *Array) lock(key string) func() {
	v, _ := a.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Create writes a new array's header, after erasing any stale blob at the
// array's root key, and returns the engine ready for read/write.
func Create(ctx context.Context, store Store, root string, h *Header, opts Options) (*Array, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}

	if err := store.Delete(ctx, root); err != nil {
		return nil, fmt.Errorf("%w: clearing root %q: %v", ErrStoreError, root, err)
	}

	nested := opts.DefaultNested
	h.Nested = &nested

	w, err := store.Put(ctx, joinKey(root, headerName))
	if err != nil {
		return nil, fmt.Errorf("%w: opening header at %q: %v", ErrStoreError, root, err)
	}
	if err := h.WriteTo(w); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: closing header at %q: %v", ErrStoreError, root, err)
	}

	c, err := newCodec(store, h.Compressor, h.DType, h.DType.Order, h.FillValue, h.Chunks)
	if err != nil {
		return nil, err
	}

	return &Array{
		store:         store,
		root:          root,
		shape:         h.Shape,
		chunkDims:     h.Chunks,
		dtype:         h.DType,
		fill:          h.FillValue,
		compressorCfg: h.Compressor,
		nested:        nested,
		codec:         c,
	}, nil
}

// Open reads an existing array's header and, if the header omits the
// layout hint, probes for it.
func Open(ctx context.Context, store Store, root string, opts Options) (*Array, error) {
	key := joinKey(root, headerName)
	rc, present, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: reading header at %q: %v", ErrStoreError, key, err)
	}
	if !present {
		return nil, fmt.Errorf("%w: no header at %q", ErrOpenFailed, key)
	}
	h, err := LoadHeader(rc)
	rc.Close()
	if err != nil {
		return nil, err
	}

	var nested bool
	if h.Nested != nil {
		nested = *h.Nested
	} else {
		nested, err = probeLayout(ctx, store, root, h.Shape, h.Chunks, opts.DefaultNested)
		if err != nil {
			return nil, err
		}
	}

	c, err := newCodec(store, h.Compressor, h.DType, h.DType.Order, h.FillValue, h.Chunks)
	if err != nil {
		return nil, err
	}

	return &Array{
		store:         store,
		root:          root,
		shape:         h.Shape,
		chunkDims:     h.Chunks,
		dtype:         h.DType,
		fill:          h.FillValue,
		compressorCfg: h.Compressor,
		nested:        nested,
		codec:         c,
	}, nil
}

// probeLayout walks the chunk grid (cheaper than scanning element indices)
// trying both separator styles at each grid position, in row-major order,
// until one exists. If no chunk exists anywhere, it falls back to
// defaultNested and logs the ambiguity.
func probeLayout(ctx context.Context, store Store, root string, shape, chunkDims []int, defaultNested bool) (bool, error) {
	grid := GridShape(shape, chunkDims)
	rank := len(grid)
	idx := make([]int, rank)

	found := false
	result := false

	var walk func(dim int) error
	walk = func(dim int) error {
		if found {
			return nil
		}
		if dim == rank {
			for _, nested := range [2]bool{false, true} {
				key := ChunkKey(root, idx, nested)
				rc, present, err := store.Get(ctx, key)
				if err != nil {
					return fmt.Errorf("%w: probing %q: %v", ErrStoreError, key, err)
				}
				if present {
					rc.Close()
					result = nested
					found = true
					return nil
				}
			}
			return nil
		}
		for i := 0; i < grid[dim]; i++ {
			idx[dim] = i
			if err := walk(dim + 1); err != nil {
				return err
			}
			if found {
				return nil
			}
		}
		return nil
	}
	if err := walk(0); err != nil {
		return false, err
	}

	if !found {
		slog.Warn("layout probe found no chunks; falling back to default layout",
			"root", root, "default_nested", defaultNested)
		return defaultNested, nil
	}
	return result, nil
}

// WriteRegion writes buf, a flat host-order element buffer of length
// product(region.Shape)*elemSize, into region.
func (a *Array) WriteRegion(ctx context.Context, region Region, buf []byte) error {
	if err := region.validate(a.shape); err != nil {
		return err
	}
	elemSize := a.dtype.ElemSize()
	want := product(region.Shape) * elemSize
	if len(buf) != want {
		return fmt.Errorf("%w: write buffer is %d bytes, want %d", ErrBufferMismatch, len(buf), want)
	}

	if fastIdx, ok := isFastPath(a.chunkDims, region); ok {
		key := a.chunkKey(fastIdx)
		unlock := a.lock(key)
		defer unlock()
		return a.codec.write(ctx, key, buf)
	}

	regionStrides := strides(region.Shape)
	chunkStrides := strides(a.chunkDims)

	for _, idx := range enumerateChunkIndices(a.chunkDims, region) {
		if err := a.writePartialChunk(ctx, idx, region, buf, regionStrides, chunkStrides, elemSize); err != nil {
			return err
		}
	}
	return nil
}

func (a *Array) writePartialChunk(ctx context.Context, idx []int, region Region, buf []byte, regionStrides, chunkStrides []int, elemSize int) error {
	key := a.chunkKey(idx)
	unlock := a.lock(key)
	defer unlock()

	copyShape, chunkOffset, callerOffset, ok := chunkWindow(idx, a.chunkDims, a.shape, region)
	if !ok {
		return nil
	}

	chunk, err := a.codec.read(ctx, key)
	if err != nil {
		return err
	}
	copyND(chunk, chunkStrides, chunkOffset, buf, regionStrides, callerOffset, copyShape, elemSize)
	return a.codec.write(ctx, key, chunk)
}

// ReadRegion fills buf, a flat host-order element buffer of length
// product(region.Shape)*elemSize, with region's data. Reads do not take the
// per-chunk lock: each chunk is read with a single Get, so it is seen either
// before or after a concurrent write to it, but a concurrent write touching
// several chunks may be seen with some of them updated and others not.
func (a *Array) ReadRegion(ctx context.Context, region Region, buf []byte) error {
	if err := region.validate(a.shape); err != nil {
		return err
	}
	elemSize := a.dtype.ElemSize()
	want := product(region.Shape) * elemSize
	if len(buf) != want {
		return fmt.Errorf("%w: read buffer is %d bytes, want %d", ErrBufferMismatch, len(buf), want)
	}

	if fastIdx, ok := isFastPath(a.chunkDims, region); ok {
		chunk, err := a.codec.read(ctx, a.chunkKey(fastIdx))
		if err != nil {
			return err
		}
		copy(buf, chunk)
		return nil
	}

	regionStrides := strides(region.Shape)
	chunkStrides := strides(a.chunkDims)

	for _, idx := range enumerateChunkIndices(a.chunkDims, region) {
		copyShape, chunkOffset, callerOffset, ok := chunkWindow(idx, a.chunkDims, a.shape, region)
		if !ok {
			continue
		}
		chunk, err := a.codec.read(ctx, a.chunkKey(idx))
		if err != nil {
			return err
		}
		copyND(buf, regionStrides, callerOffset, chunk, chunkStrides, chunkOffset, copyShape, elemSize)
	}
	return nil
}

// Read reads the whole array.
func (a *Array) Read(ctx context.Context) ([]byte, error) {
	return a.ReadShape(ctx, a.shape)
}

// ReadShape reads a region of the given shape at the zero offset.
func (a *Array) ReadShape(ctx context.Context, shape []int) ([]byte, error) {
	offset := make([]int, len(shape))
	region := Region{Offset: offset, Shape: shape}
	buf := make([]byte, product(shape)*a.dtype.ElemSize())
	if err := a.ReadRegion(ctx, region, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteScalar materializes a buffer of region filled with fill, at the
// array's dtype, and writes it.
func (a *Array) WriteScalar(ctx context.Context, fill float64, region Region) error {
	buf := fillBuffer(a.dtype, fill, product(region.Shape))
	return a.WriteRegion(ctx, region, buf)
}

// WriteScalarFull fills the whole array with fill.
func (a *Array) WriteScalarFull(ctx context.Context, fill float64) error {
	offset := make([]int, len(a.shape))
	return a.WriteScalar(ctx, fill, Region{Offset: offset, Shape: a.shape})
}
