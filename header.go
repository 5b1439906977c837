package zarr

import (
	"encoding/json"
	"fmt"
	"io"
)

// CompressorConfig is the compressor's id plus an opaque parameter bag.
// Keeping it as a map, rather than a fixed struct of known fields, lets
// unknown compressor parameters round-trip untouched through headers this
// code doesn't fully understand.
type CompressorConfig map[string]interface{}

// ID returns the "id" field, or "" if absent.
func (c CompressorConfig) ID() string {
	if c == nil {
		return ""
	}
	if v, ok := c["id"].(string); ok {
		return v
	}
	return ""
}

// rawHeader is the wire format of the .zarray JSON document.
type rawHeader struct {
	ZarrFormat         int              `json:"zarr_format"`
	Shape              []int            `json:"shape"`
	Chunks             []int            `json:"chunks"`
	DType              string           `json:"dtype"`
	FillValue          *float64         `json:"fill_value"`
	Compressor         CompressorConfig `json:"compressor"`
	Order              string           `json:"order"`
	Filters            json.RawMessage  `json:"filters,omitempty"`
	DimensionSeparator *string          `json:"dimension_separator,omitempty"`
}

// Header is the parsed, engine-facing array descriptor.
type Header struct {
	Shape      []int
	Chunks     []int
	DType      DType
	FillValue  float64
	Compressor CompressorConfig // nil means the identity ("none") compressor
	Nested     *bool            // nil == absent: layout must be probed at open
}

// Validate checks structural invariants on the header itself: rank
// agreement between shape and chunks, and that no chunk dimension exceeds
// its corresponding shape dimension.
func (h *Header) Validate() error {
	if len(h.Shape) == 0 {
		return fmt.Errorf("%w: rank must be >= 1", ErrOpenFailed)
	}
	if len(h.Shape) != len(h.Chunks) {
		return fmt.Errorf("%w: shape rank %d != chunks rank %d", ErrOpenFailed, len(h.Shape), len(h.Chunks))
	}
	for i := range h.Shape {
		if h.Shape[i] <= 0 {
			return fmt.Errorf("%w: shape[%d]=%d must be positive", ErrOpenFailed, i, h.Shape[i])
		}
		if h.Chunks[i] <= 0 {
			return fmt.Errorf("%w: chunks[%d]=%d must be positive", ErrOpenFailed, i, h.Chunks[i])
		}
		if h.Chunks[i] > h.Shape[i] {
			return fmt.Errorf("%w: chunks[%d]=%d exceeds shape[%d]=%d", ErrOpenFailed, i, h.Chunks[i], i, h.Shape[i])
		}
	}
	return nil
}

// LoadHeader reads and parses a .zarray document.
func LoadHeader(r io.Reader) (*Header, error) {
	var raw rawHeader
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode header: %v", ErrOpenFailed, err)
	}
	if raw.ZarrFormat != 2 {
		return nil, fmt.Errorf("%w: unsupported zarr_format %d, expected 2", ErrOpenFailed, raw.ZarrFormat)
	}
	if raw.Order != "" && raw.Order != "C" {
		return nil, fmt.Errorf("%w: unsupported order %q, only \"C\" is supported", ErrOpenFailed, raw.Order)
	}

	dtype, err := ParseDType(raw.DType)
	if err != nil {
		return nil, err
	}

	var fill float64
	if raw.FillValue != nil {
		fill = *raw.FillValue
	}

	var nested *bool
	if raw.DimensionSeparator != nil {
		v := *raw.DimensionSeparator == "/"
		nested = &v
	}

	h := &Header{
		Shape:      raw.Shape,
		Chunks:     raw.Chunks,
		DType:      dtype,
		FillValue:  fill,
		Compressor: raw.Compressor,
		Nested:     nested,
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// WriteTo serializes the header as .zarray JSON.
func (h *Header) WriteTo(w io.Writer) error {
	raw := rawHeader{
		ZarrFormat: 2,
		Shape:      h.Shape,
		Chunks:     h.Chunks,
		DType:      h.DType.String(),
		Compressor: h.Compressor,
		Order:      "C",
	}
	fv := h.FillValue
	raw.FillValue = &fv
	if h.Nested != nil {
		sep := "."
		if *h.Nested {
			sep = "/"
		}
		raw.DimensionSeparator = &sep
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&raw); err != nil {
		return fmt.Errorf("%w: encode header: %v", ErrStoreError, err)
	}
	return nil
}

// GridShape returns, for each axis, ceil(shape[i]/chunks[i]): the number of
// chunks along that axis.
func GridShape(shape, chunks []int) []int {
	grid := make([]int, len(shape))
	for i := range shape {
		grid[i] = (shape[i] + chunks[i] - 1) / chunks[i]
	}
	return grid
}
