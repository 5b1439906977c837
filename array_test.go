package zarr

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeInt32(values []int32) []byte {
	out := make([]byte, len(values)*4)
	bo := hostOrder.binary()
	for i, v := range values {
		bo.PutUint32(out[i*4:], uint32(v))
	}
	return out
}

func decodeInt32(buf []byte) []int32 {
	bo := hostOrder.binary()
	out := make([]int32, len(buf)/4)
	for i := range out {
		out[i] = int32(bo.Uint32(buf[i*4:]))
	}
	return out
}

func encodeFloat32(values []float32) []byte {
	out := make([]byte, len(values)*4)
	bo := hostOrder.binary()
	for i, v := range values {
		bo.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func decodeFloat32(buf []byte) []float32 {
	bo := hostOrder.binary()
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(bo.Uint32(buf[i*4:]))
	}
	return out
}

// Writing a partial region only touches the chunks it overlaps; untouched
// chunks read back as the fill value.
func TestArrayWritePartialRegionFillsUntouchedChunks(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	h := &Header{Shape: []int{10}, Chunks: []int{3}, DType: DType{KindInt32, LittleEndian}, FillValue: -1}
	arr, err := Create(ctx, store, "", h, Options{})
	require.NoError(t, err)

	require.NoError(t, arr.WriteRegion(ctx, Region{Offset: []int{4}, Shape: []int{3}}, encodeInt32([]int32{7, 8, 9})))

	got, err := arr.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, []int32{-1, -1, -1, -1, 7, 8, 9, -1, -1, -1}, decodeInt32(got))

	_, ok1 := store.data[ChunkKey("", []int{1}, false)]
	_, ok2 := store.data[ChunkKey("", []int{2}, false)]
	require.True(t, ok1)
	require.True(t, ok2)
}

// A region spanning all four chunks of a 2D array writes all four chunk
// keys.
func TestArrayWriteRegionAcrossAllChunks2D(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	h := &Header{Shape: []int{4, 4}, Chunks: []int{2, 2}, DType: DType{KindFloat32, LittleEndian}}
	arr, err := Create(ctx, store, "", h, Options{})
	require.NoError(t, err)

	require.NoError(t, arr.WriteRegion(ctx, Region{Offset: []int{1, 1}, Shape: []int{2, 2}}, encodeFloat32([]float32{1, 0, 0, 1})))

	got, err := arr.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, []float32{
		0, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 0,
	}, decodeFloat32(got))

	for _, key := range []string{"0.0", "0.1", "1.0", "1.1"} {
		_, ok := store.data[key]
		require.True(t, ok, "expected key %q", key)
	}
}

// A region equal to a single, chunk-aligned chunk takes the fast path and
// writes exactly one chunk key.
func TestArrayWriteWholeChunkFastPath(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	h := &Header{Shape: []int{5, 5}, Chunks: []int{5, 5}, DType: DType{KindFloat32, LittleEndian}}
	arr, err := Create(ctx, store, "", h, Options{})
	require.NoError(t, err)

	buf := make([]byte, 25*4)
	require.NoError(t, arr.WriteRegion(ctx, Region{Offset: []int{0, 0}, Shape: []int{5, 5}}, buf))

	require.Len(t, store.data, 2) // .zarray + the single chunk "0.0"
	_, ok := store.data["0.0"]
	require.True(t, ok)
}

// A nested-layout array stores chunk keys with "/" separators, never "."
func TestArrayNestedLayoutUsesSlashSeparatedKeys(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	h := &Header{Shape: []int{2, 2}, Chunks: []int{1, 1}, DType: DType{KindFloat32, LittleEndian}}
	arr, err := Create(ctx, store, "", h, Options{DefaultNested: true})
	require.NoError(t, err)

	for _, off := range [][]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}} {
		require.NoError(t, arr.WriteRegion(ctx, Region{Offset: off, Shape: []int{1, 1}}, encodeFloat32([]float32{1})))
	}

	for _, key := range []string{"0/0", "0/1", "1/0", "1/1"} {
		_, ok := store.data[key]
		require.True(t, ok, "expected nested key %q", key)
	}
	for _, key := range []string{"0.0", "0.1", "1.0", "1.1"} {
		_, ok := store.data[key]
		require.False(t, ok, "unexpected flat key %q", key)
	}
}

// Opening an array whose header omits the layout hint probes the chunk
// grid and detects a nested layout from a chunk already stored at "0/0".
func TestArrayOpenProbesLayoutWhenHintMissing(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	h := &Header{Shape: []int{2, 2}, Chunks: []int{2, 2}, DType: DType{KindFloat32, LittleEndian}}
	w, err := store.Put(ctx, ".zarray")
	require.NoError(t, err)
	require.NoError(t, h.WriteTo(w)) // Nested is nil: header omits the hint
	require.NoError(t, w.Close())

	w2, err := store.Put(ctx, "0/0")
	require.NoError(t, err)
	_, err = w2.Write(encodeFloat32([]float32{1, 2, 3, 4}))
	require.NoError(t, err)
	require.NoError(t, w2.Close())

	arr, err := Open(ctx, store, "", Options{DefaultNested: false})
	require.NoError(t, err)
	require.True(t, arr.Nested())

	got, err := arr.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3, 4}, decodeFloat32(got))
}

// A ramp written across many chunks reads back correctly both as a whole
// and as an offset slice that crosses chunk boundaries.
func TestArrayRampSliceAcrossChunks(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	h := &Header{
		Shape: []int{1000}, Chunks: []int{100},
		DType:      DType{KindInt32, LittleEndian},
		Compressor: CompressorConfig{"id": "zlib"},
	}
	arr, err := Create(ctx, store, "", h, Options{})
	require.NoError(t, err)

	ramp := make([]int32, 1000)
	for i := range ramp {
		ramp[i] = int32(i)
	}
	require.NoError(t, arr.WriteRegion(ctx, Region{Offset: []int{0}, Shape: []int{1000}}, encodeInt32(ramp)))

	got, err := arr.ReadShape(ctx, []int{500})
	require.NoError(t, err)
	// offset=[250] via a second read
	buf := make([]byte, 500*4)
	require.NoError(t, arr.ReadRegion(ctx, Region{Offset: []int{250}, Shape: []int{500}}, buf))

	want := make([]int32, 500)
	for i := range want {
		want[i] = int32(250 + i)
	}
	require.Equal(t, want, decodeInt32(buf))
	require.Len(t, got, 2000) // ReadShape defaults offset 0, sanity check length
}

// Chunk independence: writing disjoint regions leaves the first untouched.
func TestArrayChunkIndependence(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	h := &Header{Shape: []int{10}, Chunks: []int{2}, DType: DType{KindInt32, LittleEndian}}
	arr, err := Create(ctx, store, "", h, Options{})
	require.NoError(t, err)

	require.NoError(t, arr.WriteRegion(ctx, Region{Offset: []int{0}, Shape: []int{2}}, encodeInt32([]int32{1, 2})))
	require.NoError(t, arr.WriteRegion(ctx, Region{Offset: []int{8}, Shape: []int{2}}, encodeInt32([]int32{9, 10})))

	got, err := arr.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, []int32{1, 2, 0, 0, 0, 0, 0, 0, 9, 10}, decodeInt32(got))
}

// Partial edge chunks: shape not a multiple of chunks never exposes padding.
func TestArrayPartialEdgeChunk(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	h := &Header{Shape: []int{5}, Chunks: []int{3}, DType: DType{KindInt32, LittleEndian}, FillValue: -1}
	arr, err := Create(ctx, store, "", h, Options{})
	require.NoError(t, err)

	require.NoError(t, arr.WriteRegion(ctx, Region{Offset: []int{0}, Shape: []int{5}}, encodeInt32([]int32{1, 2, 3, 4, 5})))

	got, err := arr.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, []int32{1, 2, 3, 4, 5}, decodeInt32(got))
}

func TestArrayFillOnMiss(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	h := &Header{Shape: []int{4}, Chunks: []int{2}, DType: DType{KindFloat32, LittleEndian}, FillValue: 42}
	arr, err := Create(ctx, store, "", h, Options{})
	require.NoError(t, err)

	got, err := arr.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, []float32{42, 42, 42, 42}, decodeFloat32(got))
}

func TestArrayOutOfRangeAndBufferMismatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	h := &Header{Shape: []int{4}, Chunks: []int{2}, DType: DType{KindFloat32, LittleEndian}}
	arr, err := Create(ctx, store, "", h, Options{})
	require.NoError(t, err)

	err = arr.WriteRegion(ctx, Region{Offset: []int{3}, Shape: []int{2}}, make([]byte, 8))
	require.ErrorIs(t, err, ErrOutOfRange)

	err = arr.WriteRegion(ctx, Region{Offset: []int{0}, Shape: []int{2}}, make([]byte, 4))
	require.ErrorIs(t, err, ErrBufferMismatch)
}

func TestArrayByteOrderRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	h := &Header{Shape: []int{4}, Chunks: []int{4}, DType: DType{KindFloat32, BigEndian}}
	arr, err := Create(ctx, store, "", h, Options{})
	require.NoError(t, err)

	values := []float32{1.5, -2.25, 3, 0}
	require.NoError(t, arr.WriteRegion(ctx, Region{Offset: []int{0}, Shape: []int{4}}, encodeFloat32(values)))

	reopened, err := Open(ctx, store, "", Options{})
	require.NoError(t, err)
	got, err := reopened.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, values, decodeFloat32(got))
}
