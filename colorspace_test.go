package psd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rasterOf(t *testing.T, width, bands, depth int, samples ...uint32) *Raster {
	t.Helper()
	r, err := NewRaster(width, 1, bands, depth, LayoutBanded)
	require.NoError(t, err)
	for i, v := range samples {
		r.SetSample(i/bands, 0, i%bands, v)
	}
	return r
}

func pixel(r *Raster, x int) []uint32 {
	out := make([]uint32, r.Bands)
	for b := range out {
		out[b] = r.Sample(x, 0, b)
	}
	return out
}

func TestConvertRaster(t *testing.T) {
	gray, rgb, cmyk := DefaultColorSpace(ModelGray), DefaultColorSpace(ModelRGB), DefaultColorSpace(ModelCMYK)

	tests := []struct {
		name     string
		from, to ColorSpace
		bands    int
		alpha    bool
		in       []uint32
		want     []uint32
	}{
		{name: "gray to rgb", from: gray, to: rgb, bands: 1, in: []uint32{77}, want: []uint32{77, 77, 77}},
		{name: "gray alpha to rgb", from: gray, to: rgb, bands: 2, alpha: true, in: []uint32{77, 9}, want: []uint32{77, 77, 77, 9}},
		{name: "rgb to gray white", from: rgb, to: gray, bands: 3, in: []uint32{255, 255, 255}, want: []uint32{255}},
		{name: "rgb to cmyk red", from: rgb, to: cmyk, bands: 3, in: []uint32{255, 0, 0}, want: []uint32{0, 255, 255, 0}},
		{name: "rgb to cmyk black", from: rgb, to: cmyk, bands: 3, in: []uint32{0, 0, 0}, want: []uint32{0, 0, 0, 255}},
		{name: "cmyk to rgb", from: cmyk, to: rgb, bands: 4, in: []uint32{0, 255, 255, 0}, want: []uint32{255, 0, 0}},
		{name: "cmyk to gray", from: cmyk, to: gray, bands: 4, in: []uint32{0, 0, 0, 255}, want: []uint32{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := rasterOf(t, 1, tt.bands, 8, tt.in...)
			dst, w, err := convertRaster(src, tt.from, tt.to, tt.alpha)
			require.NoError(t, err)
			assert.Nil(t, w)
			assert.Equal(t, tt.want, pixel(dst, 0))
		})
	}
}

func TestConvertRasterSameSpace(t *testing.T) {
	src := rasterOf(t, 1, 3, 8, 1, 2, 3)
	rgb := DefaultColorSpace(ModelRGB)

	dst, w, err := convertRaster(src, rgb, rgb, false)
	require.NoError(t, err)
	assert.Nil(t, w)
	assert.Same(t, src, dst)

	profiled := NewColorSpace(ModelRGB, []byte("profile"))
	dst, w, err = convertRaster(src, profiled, rgb, false)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, int64(-1), w.Offset)
	assert.Same(t, src, dst)
}

func TestConvertRasterUnsupported(t *testing.T) {
	src := rasterOf(t, 1, 1, 8, 5)
	_, _, err := convertRaster(src, DefaultColorSpace(ModelIndexed), DefaultColorSpace(ModelRGB), false)
	assert.True(t, IsUnsupported(err))

	bits := rasterOf(t, 1, 1, 1, 1)
	_, _, err = convertRaster(bits, DefaultColorSpace(ModelGray), DefaultColorSpace(ModelRGB), false)
	assert.True(t, IsUnsupported(err))
}

func TestConvertRaster16(t *testing.T) {
	src := rasterOf(t, 1, 1, 16, 0x8000)
	dst, _, err := convertRaster(src, DefaultColorSpace(ModelGray), DefaultColorSpace(ModelRGB), false)
	require.NoError(t, err)
	assert.Equal(t, 16, dst.Depth)
	assert.Equal(t, []uint32{0x8000, 0x8000, 0x8000}, pixel(dst, 0))
}

func TestColorSpaceIdentity(t *testing.T) {
	a := NewColorSpace(ModelRGB, []byte("profile a"))
	b := NewColorSpace(ModelRGB, []byte("profile b"))

	assert.True(t, a.HasProfile())
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, NewColorSpace(ModelRGB, []byte("profile a")))
	assert.Equal(t, DefaultColorSpace(ModelRGB), NewColorSpace(ModelRGB, nil))
	assert.False(t, DefaultColorSpace(ModelCMYK).HasProfile())

	assert.Equal(t, "rgb", DefaultColorSpace(ModelRGB).String())
	assert.Contains(t, a.String(), "rgb/")
	assert.Equal(t, "ColorModel(9)", ColorModel(9).String())
}

func TestModelForMode(t *testing.T) {
	tests := map[ColorMode]ColorModel{
		ColorModeBitmap:       ModelGray,
		ColorModeGrayscale:    ModelGray,
		ColorModeDuotone:      ModelGray,
		ColorModeIndexedColor: ModelIndexed,
		ColorModeRGBColor:     ModelRGB,
		ColorModeCMYKColor:    ModelCMYK,
		ColorModeLabColor:     ModelUnknown,
	}
	for mode, want := range tests {
		assert.Equal(t, want, modelForMode(mode), mode.String())
	}
}
