package zarr

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadHeader(t *testing.T) {
	mockJSON := `{
		"zarr_format": 2,
		"shape": [128, 128],
		"chunks": [64, 64],
		"dtype": "<f4",
		"compressor": null,
		"fill_value": 0.0,
		"order": "C"
	}`

	h, err := LoadHeader(strings.NewReader(mockJSON))
	require.NoError(t, err)
	require.Equal(t, []int{128, 128}, h.Shape)
	require.Equal(t, []int{64, 64}, h.Chunks)
	require.Equal(t, DType{KindFloat32, LittleEndian}, h.DType)
	require.Nil(t, h.Nested)
}

func TestLoadHeaderRejectsBadFormat(t *testing.T) {
	_, err := LoadHeader(strings.NewReader(`{"zarr_format": 1, "shape":[1], "chunks":[1], "dtype":"<f4"}`))
	require.ErrorIs(t, err, ErrOpenFailed)
}

func TestHeaderRoundTripPreservesUnknownCompressorParams(t *testing.T) {
	mockJSON := `{
		"zarr_format": 2,
		"shape": [10],
		"chunks": [3],
		"dtype": "<i4",
		"compressor": {"id":"blosc", "cname":"lz4", "clevel":5, "shuffle":1, "future_param": 42},
		"fill_value": -1,
		"order": "C",
		"dimension_separator": "/"
	}`

	h, err := LoadHeader(strings.NewReader(mockJSON))
	require.NoError(t, err)
	require.Equal(t, "blosc", h.Compressor.ID())
	require.EqualValues(t, 42, h.Compressor["future_param"])
	require.NotNil(t, h.Nested)
	require.True(t, *h.Nested)

	var buf bytes.Buffer
	require.NoError(t, h.WriteTo(&buf))

	h2, err := LoadHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, h.Compressor, h2.Compressor)
	require.Equal(t, h.Nested, h2.Nested)
	require.Equal(t, h.FillValue, h2.FillValue)
}

func TestHeaderValidate(t *testing.T) {
	h := &Header{Shape: []int{4, 4}, Chunks: []int{2}}
	require.ErrorIs(t, h.Validate(), ErrOpenFailed)

	h2 := &Header{Shape: []int{4}, Chunks: []int{8}}
	require.ErrorIs(t, h2.Validate(), ErrOpenFailed)
}
