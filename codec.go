package zarr

import (
	"bytes"
	"context"
	"fmt"
	"io"

	blosc "github.com/mrjoshuak/go-blosc"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Compressor is the invertible byte-blob transform applied per chunk.
type Compressor interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// identityCompressor is the "none" compressor: it returns its input slice
// unchanged, without copying.
type identityCompressor struct{}

func (identityCompressor) Encode(data []byte) ([]byte, error) { return data, nil }
func (identityCompressor) Decode(data []byte) ([]byte, error) { return data, nil }

type zstdCompressor struct {
	level zstd.EncoderLevel
}

func (c zstdCompressor) Encode(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(c.level))
	if err != nil {
		return nil, fmt.Errorf("%w: zstd encoder: %v", ErrStoreError, err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func (c zstdCompressor) Decode(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd decoder: %v", ErrStoreError, err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd decode: %v", ErrStoreError, err)
	}
	return out, nil
}

type zlibCompressor struct {
	level int
}

func (c zlibCompressor) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("%w: zlib writer: %v", ErrStoreError, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("%w: zlib write: %v", ErrStoreError, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: zlib close: %v", ErrStoreError, err)
	}
	return buf.Bytes(), nil
}

func (c zlibCompressor) Decode(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: zlib reader: %v", ErrStoreError, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: zlib decode: %v", ErrStoreError, err)
	}
	return out, nil
}

// bloscCompressor wraps github.com/mrjoshuak/go-blosc for full encode+decode
// round trips.
type bloscCompressor struct {
	clevel   int
	shuffle  int
	typesize int
	cname    string
}

func (c bloscCompressor) Encode(data []byte) ([]byte, error) {
	out, err := blosc.Compress(c.clevel, c.shuffle, c.typesize, data, c.cname)
	if err != nil {
		return nil, fmt.Errorf("%w: blosc compress: %v", ErrStoreError, err)
	}
	return out, nil
}

func (c bloscCompressor) Decode(data []byte) ([]byte, error) {
	out, err := blosc.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("%w: blosc decompress: %v", ErrStoreError, err)
	}
	return out, nil
}

// buildCompressor resolves a CompressorConfig into a Compressor by looking
// up its id in a small registry; an unknown id fails open. typesize is the
// dtype's element size, needed by blosc's shuffle.
func buildCompressor(cfg CompressorConfig, typesize int) (Compressor, error) {
	id := cfg.ID()
	switch id {
	case "", "none":
		return identityCompressor{}, nil
	case "zstd":
		level := zstd.SpeedDefault
		if lv, ok := intParam(cfg, "clevel"); ok {
			level = zstd.EncoderLevel(lv)
		}
		return zstdCompressor{level: level}, nil
	case "zlib", "gzip":
		level := zlib.DefaultCompression
		if lv, ok := intParam(cfg, "clevel"); ok {
			level = lv
		}
		return zlibCompressor{level: level}, nil
	case "blosc":
		clevel := 5
		if lv, ok := intParam(cfg, "clevel"); ok {
			clevel = lv
		}
		shuffle := 1
		if sh, ok := intParam(cfg, "shuffle"); ok {
			shuffle = sh
		}
		cname := "lz4"
		if v, ok := cfg["cname"].(string); ok && v != "" {
			cname = v
		}
		return bloscCompressor{clevel: clevel, shuffle: shuffle, typesize: typesize, cname: cname}, nil
	default:
		return nil, fmt.Errorf("%w: unknown compressor id %q", ErrOpenFailed, id)
	}
}

func intParam(cfg CompressorConfig, key string) (int, bool) {
	v, ok := cfg[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

// codec is one per open array: it owns the compressor and knows how to
// fill a missing chunk, decode a stored blob into a host-order element
// buffer, and encode a host-order element buffer back into a stored blob.
type codec struct {
	store      Store
	compressor Compressor
	dtype      DType
	order      ByteOrder
	chunkElems int
	fill       float64
}

func newCodec(store Store, cfg CompressorConfig, dtype DType, order ByteOrder, fill float64, chunkDims []int) (*codec, error) {
	comp, err := buildCompressor(cfg, dtype.ElemSize())
	if err != nil {
		return nil, err
	}
	return &codec{
		store:      store,
		compressor: comp,
		dtype:      dtype,
		order:      order,
		chunkElems: product(chunkDims),
		fill:       fill,
	}, nil
}

// read fetches and decodes key into a full chunk buffer in host byte order,
// or synthesizes a fill buffer if key is absent.
func (c *codec) read(ctx context.Context, key string) ([]byte, error) {
	rc, present, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: read chunk %q: %v", ErrStoreError, key, err)
	}
	if !present {
		return fillBuffer(c.dtype, c.fill, c.chunkElems), nil
	}
	defer rc.Close()

	blob, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read chunk %q: %v", ErrStoreError, key, err)
	}

	decoded, err := c.compressor.Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk %q: %v", ErrStoreError, key, err)
	}

	elemSize := c.dtype.ElemSize()
	want := c.chunkElems * elemSize
	if len(decoded) != want {
		return nil, fmt.Errorf("%w: chunk %q: decoded %d bytes, want %d", ErrCorruptChunk, key, len(decoded), want)
	}

	if c.order != hostOrder {
		swapped := make([]byte, len(decoded))
		copy(swapped, decoded)
		swapBuffer(swapped, elemSize)
		return swapped, nil
	}
	return decoded, nil
}

// write byte-serializes a full, host-order chunk buffer into the array's
// configured byte order, compresses it, and stores it.
func (c *codec) write(ctx context.Context, key string, chunk []byte) error {
	elemSize := c.dtype.ElemSize()
	want := c.chunkElems * elemSize
	if len(chunk) != want {
		return fmt.Errorf("%w: chunk %q: buffer is %d bytes, want %d", ErrBufferMismatch, key, len(chunk), want)
	}

	serialized := chunk
	if c.order != hostOrder {
		serialized = make([]byte, len(chunk))
		copy(serialized, chunk)
		swapBuffer(serialized, elemSize)
	}

	blob, err := c.compressor.Encode(serialized)
	if err != nil {
		return fmt.Errorf("%w: chunk %q: %v", ErrStoreError, key, err)
	}

	w, err := c.store.Put(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: put chunk %q: %v", ErrStoreError, key, err)
	}
	if _, err := w.Write(blob); err != nil {
		w.Close()
		return fmt.Errorf("%w: write chunk %q: %v", ErrStoreError, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: close chunk %q: %v", ErrStoreError, key, err)
	}
	return nil
}
