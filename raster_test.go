package psd

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRaster(t *testing.T) {
	tests := []struct {
		name                        string
		width, height, bands, depth int
		layout                      Layout
		planes, stride              int
	}{
		{name: "banded 8", width: 3, height: 2, bands: 3, depth: 8, layout: LayoutBanded, planes: 3, stride: 3},
		{name: "interleaved 16", width: 3, height: 2, bands: 4, depth: 16, layout: LayoutInterleaved, planes: 1, stride: 24},
		{name: "bitmap forced banded", width: 10, height: 2, bands: 1, depth: 1, layout: LayoutInterleaved, planes: 1, stride: 2},
		{name: "float", width: 2, height: 1, bands: 1, depth: 32, layout: LayoutBanded, planes: 1, stride: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRaster(tt.width, tt.height, tt.bands, tt.depth, tt.layout)
			require.NoError(t, err)
			assert.Len(t, r.Pix, tt.planes)
			assert.Equal(t, tt.stride, r.Stride())
			for _, p := range r.Pix {
				assert.Len(t, p, tt.stride*tt.height)
			}
		})
	}

	_, err := NewRaster(1, 1, 1, 12, LayoutBanded)
	assert.Error(t, err)
	_, err = NewRaster(0, 1, 1, 8, LayoutBanded)
	assert.Error(t, err)
}

func TestRasterSamples(t *testing.T) {
	for _, layout := range []Layout{LayoutBanded, LayoutInterleaved} {
		t.Run(layout.String(), func(t *testing.T) {
			r, err := NewRaster(2, 2, 3, 16, layout)
			require.NoError(t, err)
			r.SetSample(1, 1, 2, 0xBEEF)
			r.SetSample(0, 1, 0, 0xffff)
			assert.Equal(t, uint32(0xBEEF), r.Sample(1, 1, 2))
			assert.Equal(t, uint32(0), r.Sample(1, 1, 1))
			assert.Equal(t, 1.0, r.Float(0, 1, 0))
		})
	}

	bits, err := NewRaster(10, 1, 1, 1, LayoutBanded)
	require.NoError(t, err)
	bits.SetSample(0, 0, 0, 1)
	bits.SetSample(9, 0, 0, 1)
	assert.Equal(t, []byte{0x80, 0x40}, bits.Pix[0])
	bits.SetSample(0, 0, 0, 0)
	assert.Equal(t, uint32(0), bits.Sample(0, 0, 0))
	assert.Equal(t, uint32(1), bits.Sample(9, 0, 0))

	floats, err := NewRaster(1, 1, 1, 32, LayoutBanded)
	require.NoError(t, err)
	floats.SetSample(0, 0, 0, math.Float32bits(0.25))
	assert.Equal(t, 0.25, floats.Float(0, 0, 0))
}

func TestInterleavedOrder(t *testing.T) {
	r, err := NewRaster(2, 1, 3, 8, LayoutInterleaved)
	require.NoError(t, err)
	for x := 0; x < 2; x++ {
		for b := 0; b < 3; b++ {
			r.SetSample(x, 0, b, uint32(10*x+b))
		}
	}
	assert.Equal(t, []byte{0, 1, 2, 10, 11, 12}, r.Pix[0])
}

func TestDecomposeAlpha(t *testing.T) {
	r, err := NewRaster(3, 1, 2, 8, LayoutBanded)
	require.NoError(t, err)
	copy(r.Pix[0], []byte{200, 99, 255})
	copy(r.Pix[1], []byte{255, 0, 128})

	decomposeAlpha(r)
	assert.InDelta(t, 200, r.Sample(0, 0, 0), 1)
	assert.Equal(t, uint32(0), r.Sample(1, 0, 0))
	assert.InDelta(t, 255, r.Sample(2, 0, 0), 1)
	assert.Equal(t, []byte{255, 0, 128}, r.Pix[1])

	deep, err := NewRaster(1, 1, 2, 16, LayoutBanded)
	require.NoError(t, err)
	deep.SetSample(0, 0, 0, 1234)
	decomposeAlpha(deep)
	assert.Equal(t, uint32(1234), deep.Sample(0, 0, 0))
}

func TestUnmatte(t *testing.T) {
	assert.Equal(t, uint8(255), unmatte(255, 0.5))
	assert.Equal(t, uint8(0), unmatte(64, 0.25))
	assert.Equal(t, uint8(0), unmatte(0, 0.2))
}
