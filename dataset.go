package zarr

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Dataset reads an array in sequential batches along its leading dimension,
// returning each batch as a gomlx tensor, the way an ML training loop pulls
// minibatches from a large on-disk array without loading it whole. It is
// built on Array.ReadRegion, so it gets the engine's geometry, codec
// registry, and layout detection for free instead of duplicating them.
type Dataset struct {
	array        *Array
	CurrentIndex int
}

// NewDataset opens the array at root and wraps it as a Dataset.
func NewDataset(ctx context.Context, store Store, root string, opts Options) (*Dataset, error) {
	a, err := Open(ctx, store, root, opts)
	if err != nil {
		return nil, err
	}
	return &Dataset{array: a}, nil
}

// Array exposes the underlying array, e.g. for callers that want random
// access alongside sequential batching.
func (d *Dataset) Array() *Array { return d.array }

// NextBatch reads the next batchSize rows along dimension 0. It returns
// io.EOF once the leading dimension is exhausted. The final batch may be
// shorter than batchSize if the leading dimension doesn't divide evenly.
func (d *Dataset) NextBatch(ctx context.Context, batchSize int) (*tensors.Tensor, error) {
	shape := d.array.Shape()
	if d.CurrentIndex >= shape[0] {
		return nil, io.EOF
	}

	start := d.CurrentIndex
	end := start + batchSize
	if end > shape[0] {
		end = shape[0]
	}

	batchShape := make([]int, len(shape))
	batchShape[0] = end - start
	copy(batchShape[1:], shape[1:])

	offset := make([]int, len(shape))
	offset[0] = start

	buf := make([]byte, product(batchShape)*d.array.dtype.ElemSize())
	if err := d.array.ReadRegion(ctx, Region{Offset: offset, Shape: batchShape}, buf); err != nil {
		return nil, err
	}

	t, err := tensorFromBuffer(d.array.dtype, buf, batchShape)
	if err != nil {
		return nil, err
	}

	d.CurrentIndex = end
	return t, nil
}

// tensorFromBuffer decodes a host-order element buffer into the Go slice
// type matching dtype's Kind and wraps it as a gomlx tensor.
func tensorFromBuffer(dtype DType, buf []byte, shape []int) (*tensors.Tensor, error) {
	n := product(shape)
	bo := hostOrder.binary()

	switch dtype.Kind {
	case KindFloat32:
		v := make([]float32, n)
		for i := 0; i < n; i++ {
			v[i] = math.Float32frombits(bo.Uint32(buf[i*4:]))
		}
		return tensors.FromFlatDataAndDimensions(v, shape...), nil
	case KindFloat64:
		v := make([]float64, n)
		for i := 0; i < n; i++ {
			v[i] = math.Float64frombits(bo.Uint64(buf[i*8:]))
		}
		return tensors.FromFlatDataAndDimensions(v, shape...), nil
	case KindInt32:
		v := make([]int32, n)
		for i := 0; i < n; i++ {
			v[i] = int32(bo.Uint32(buf[i*4:]))
		}
		return tensors.FromFlatDataAndDimensions(v, shape...), nil
	case KindInt64:
		v := make([]int64, n)
		for i := 0; i < n; i++ {
			v[i] = int64(bo.Uint64(buf[i*8:]))
		}
		return tensors.FromFlatDataAndDimensions(v, shape...), nil
	case KindInt8:
		v := make([]int8, n)
		for i := 0; i < n; i++ {
			v[i] = int8(buf[i])
		}
		return tensors.FromFlatDataAndDimensions(v, shape...), nil
	case KindUint8:
		v := make([]uint8, n)
		copy(v, buf[:n])
		return tensors.FromFlatDataAndDimensions(v, shape...), nil
	case KindInt16:
		v := make([]int16, n)
		for i := 0; i < n; i++ {
			v[i] = int16(bo.Uint16(buf[i*2:]))
		}
		return tensors.FromFlatDataAndDimensions(v, shape...), nil
	case KindUint16:
		v := make([]uint16, n)
		for i := 0; i < n; i++ {
			v[i] = bo.Uint16(buf[i*2:])
		}
		return tensors.FromFlatDataAndDimensions(v, shape...), nil
	case KindUint32:
		v := make([]uint32, n)
		for i := 0; i < n; i++ {
			v[i] = bo.Uint32(buf[i*4:])
		}
		return tensors.FromFlatDataAndDimensions(v, shape...), nil
	case KindUint64:
		v := make([]uint64, n)
		for i := 0; i < n; i++ {
			v[i] = bo.Uint64(buf[i*8:])
		}
		return tensors.FromFlatDataAndDimensions(v, shape...), nil
	default:
		return nil, fmt.Errorf("%w: unsupported dtype kind for tensor conversion", ErrBufferMismatch)
	}
}
