package psd

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultImage(t *testing.T) {
	tests := []struct {
		name   string
		model  ColorModel
		bands  int
		depth  int
		alpha  bool
		in     []uint32
		assert func(t *testing.T, img image.Image)
	}{
		{
			name: "gray", model: ModelGray, bands: 1, depth: 8, in: []uint32{99},
			assert: func(t *testing.T, img image.Image) {
				require.IsType(t, &image.Gray{}, img)
				assert.Equal(t, color.Gray{Y: 99}, img.At(3, 4))
			},
		},
		{
			name: "gray alpha", model: ModelGray, bands: 2, depth: 8, alpha: true, in: []uint32{99, 50},
			assert: func(t *testing.T, img image.Image) {
				require.IsType(t, &image.NRGBA{}, img)
				assert.Equal(t, color.NRGBA{R: 99, G: 99, B: 99, A: 50}, img.At(3, 4))
			},
		},
		{
			name: "rgb", model: ModelRGB, bands: 3, depth: 8, in: []uint32{1, 2, 3},
			assert: func(t *testing.T, img image.Image) {
				require.IsType(t, &image.RGBA{}, img)
				assert.Equal(t, color.RGBA{R: 1, G: 2, B: 3, A: 255}, img.At(3, 4))
			},
		},
		{
			name: "rgb alpha", model: ModelRGB, bands: 4, depth: 8, alpha: true, in: []uint32{1, 2, 3, 4},
			assert: func(t *testing.T, img image.Image) {
				require.IsType(t, &image.NRGBA{}, img)
				assert.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 4}, img.At(3, 4))
			},
		},
		{
			name: "rgb 16", model: ModelRGB, bands: 3, depth: 16, in: []uint32{0xffff, 0, 0x8000},
			assert: func(t *testing.T, img image.Image) {
				require.IsType(t, &image.NRGBA64{}, img)
				assert.Equal(t, color.NRGBA64{R: 0xffff, G: 0, B: 0x8000, A: 0xffff}, img.At(3, 4))
			},
		},
		{
			name: "cmyk", model: ModelCMYK, bands: 4, depth: 8, in: []uint32{10, 20, 30, 40},
			assert: func(t *testing.T, img image.Image) {
				require.IsType(t, &image.CMYK{}, img)
				assert.Equal(t, color.CMYK{C: 10, M: 20, Y: 30, K: 40}, img.At(3, 4))
			},
		},
		{
			name: "cmyk alpha", model: ModelCMYK, bands: 5, depth: 8, alpha: true, in: []uint32{0, 255, 255, 0, 77},
			assert: func(t *testing.T, img image.Image) {
				require.IsType(t, &image.NRGBA{}, img)
				assert.Equal(t, color.NRGBA{R: 255, A: 77}, img.At(3, 4))
			},
		},
		{
			name: "bitmap", model: ModelGray, bands: 1, depth: 1, in: []uint32{1},
			assert: func(t *testing.T, img image.Image) {
				require.IsType(t, &image.Paletted{}, img)
				assert.Equal(t, color.White, img.At(3, 4))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &Result{
				Raster:     rasterOf(t, 1, tt.bands, tt.depth, tt.in...),
				Layout:     RawLayout{HasAlpha: tt.alpha},
				ColorSpace: DefaultColorSpace(tt.model),
				Origin:     image.Pt(3, 4),
			}
			img, err := res.Image()
			require.NoError(t, err)
			assert.Equal(t, image.Rect(3, 4, 4, 5), img.Bounds())
			tt.assert(t, img)
		})
	}
}

func TestResultImageUnsupported(t *testing.T) {
	res := &Result{Raster: rasterOf(t, 1, 1, 8, 0), ColorSpace: DefaultColorSpace(ModelUnknown)}
	_, err := res.Image()
	assert.True(t, IsUnsupported(err))
}

func TestPaletteOf256(t *testing.T) {
	res := &Result{Palette: color.Palette{color.White}}
	p := res.paletteOf256()
	require.Len(t, p, 256)
	assert.Equal(t, color.White, p[0])
	assert.Equal(t, color.Black, p[255])
}
