package zarr

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Kind is the tagged enumeration of primitive numeric kinds the engine
// supports. The rest of the engine is generic over element size in bytes;
// only this file and dataset.go's tensor conversion know the per-kind
// encoding.
type Kind int

const (
	KindInt8 Kind = iota
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
)

// ByteOrder is the on-disk byte order for multi-byte elements.
type ByteOrder int

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

func (o ByteOrder) binary() binary.ByteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// hostOrder is the byte order this process's architecture uses natively.
// Element buffers handed to/from callers are always in this order; codec.go
// swaps to/from the array's configured ByteOrder at the store boundary.
var hostOrder = func() ByteOrder {
	if binary.NativeEndian.Uint16([]byte{1, 0}) == 1 {
		return LittleEndian
	}
	return BigEndian
}()

// DType is the array descriptor's dtype field: a Kind plus the byte order it
// is serialized in on disk.
type DType struct {
	Kind  Kind
	Order ByteOrder
}

// ElemSize returns the dtype's element size in bytes.
func (d DType) ElemSize() int {
	switch d.Kind {
	case KindInt8, KindUint8:
		return 1
	case KindInt16, KindUint16:
		return 2
	case KindInt32, KindUint32, KindFloat32:
		return 4
	case KindInt64, KindUint64, KindFloat64:
		return 8
	default:
		return 0
	}
}

// String renders the zarr v2 dtype code, e.g. "<f4", ">i2", "|u1".
func (d DType) String() string {
	endian := "<"
	if d.ElemSize() == 1 {
		endian = "|"
	} else if d.Order == BigEndian {
		endian = ">"
	}
	var kind byte
	switch d.Kind {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		kind = 'i'
	case KindUint8, KindUint16, KindUint32, KindUint64:
		kind = 'u'
	case KindFloat32, KindFloat64:
		kind = 'f'
	}
	return fmt.Sprintf("%s%c%d", endian, kind, d.ElemSize())
}

// ParseDType parses a numpy/zarr-style dtype string such as "<f4", ">i2",
// "|u1" into a DType. Both byte orders are accepted; single-byte kinds are
// order-agnostic and normalize to "|".
func ParseDType(s string) (DType, error) {
	if len(s) < 3 {
		return DType{}, fmt.Errorf("%w: invalid dtype %q", ErrOpenFailed, s)
	}
	endian := s[0]
	kindCh := s[1]
	size := 0
	if _, err := fmt.Sscanf(s[2:], "%d", &size); err != nil {
		return DType{}, fmt.Errorf("%w: invalid size in dtype %q", ErrOpenFailed, s)
	}

	order := LittleEndian
	switch endian {
	case '<':
		order = LittleEndian
	case '>':
		order = BigEndian
	case '|':
		order = LittleEndian // single-byte kinds are order-agnostic
	default:
		return DType{}, fmt.Errorf("%w: invalid byte-order marker in dtype %q", ErrOpenFailed, s)
	}

	var kind Kind
	switch kindCh {
	case 'i':
		switch size {
		case 1:
			kind = KindInt8
		case 2:
			kind = KindInt16
		case 4:
			kind = KindInt32
		case 8:
			kind = KindInt64
		default:
			return DType{}, fmt.Errorf("%w: unsupported int size in dtype %q", ErrOpenFailed, s)
		}
	case 'u':
		switch size {
		case 1:
			kind = KindUint8
		case 2:
			kind = KindUint16
		case 4:
			kind = KindUint32
		case 8:
			kind = KindUint64
		default:
			return DType{}, fmt.Errorf("%w: unsupported uint size in dtype %q", ErrOpenFailed, s)
		}
	case 'f':
		switch size {
		case 4:
			kind = KindFloat32
		case 8:
			kind = KindFloat64
		default:
			return DType{}, fmt.Errorf("%w: unsupported float size in dtype %q", ErrOpenFailed, s)
		}
	default:
		return DType{}, fmt.Errorf("%w: unsupported dtype kind %q in %q", ErrOpenFailed, string(kindCh), s)
	}

	return DType{Kind: kind, Order: order}, nil
}

// swapBuffer reverses byte order in place for every elemSize-wide element of
// buf, used when the array's configured ByteOrder differs from hostOrder.
func swapBuffer(buf []byte, elemSize int) {
	if elemSize <= 1 {
		return
	}
	for off := 0; off+elemSize <= len(buf); off += elemSize {
		lo, hi := off, off+elemSize-1
		for lo < hi {
			buf[lo], buf[hi] = buf[hi], buf[lo]
			lo++
			hi--
		}
	}
}

// fillElement encodes fill into a single elemSize-byte slice in hostOrder,
// the representation element buffers use before codec.go swaps to disk
// order.
func fillElement(d DType, fill float64) []byte {
	out := make([]byte, d.ElemSize())
	bo := hostOrder.binary()
	switch d.Kind {
	case KindInt8:
		out[0] = byte(int8(fill))
	case KindUint8:
		out[0] = byte(uint8(fill))
	case KindInt16:
		bo.PutUint16(out, uint16(int16(fill)))
	case KindUint16:
		bo.PutUint16(out, uint16(fill))
	case KindInt32:
		bo.PutUint32(out, uint32(int32(fill)))
	case KindUint32:
		bo.PutUint32(out, uint32(fill))
	case KindInt64:
		bo.PutUint64(out, uint64(int64(fill)))
	case KindUint64:
		bo.PutUint64(out, uint64(fill))
	case KindFloat32:
		bo.PutUint32(out, math.Float32bits(float32(fill)))
	case KindFloat64:
		bo.PutUint64(out, math.Float64bits(fill))
	}
	return out
}

// fillBuffer returns a buffer of n elements, each encoding fill in
// hostOrder.
func fillBuffer(d DType, fill float64, n int) []byte {
	elem := fillElement(d, fill)
	out := make([]byte, len(elem)*n)
	for i := 0; i < n; i++ {
		copy(out[i*len(elem):], elem)
	}
	return out
}
