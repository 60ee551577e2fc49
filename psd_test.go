package psd

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempDoc(t *testing.T, d testDoc) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.psd")
	require.NoError(t, os.WriteFile(path, d.bytes(), 0o644))
	return path
}

func TestNew(t *testing.T) {
	path := writeTempDoc(t, rgbDoc(2, 2, sequence(4, 1), sequence(4, 5), sequence(4, 9)))

	psd, err := New(path)
	require.NoError(t, err)
	assert.NotNil(t, psd)
	defer psd.Close()

	header, err := psd.Header()
	require.NoError(t, err)
	assert.Equal(t, 2, header.Width())
}

func TestNewBadFilename(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	path := writeTempDoc(t, rgbDoc(2, 2, sequence(4, 1), sequence(4, 5), sequence(4, 9)))

	var mode string
	err := Open(path, func(psd *PSD) error {
		h, err := psd.Header()
		if err != nil {
			return err
		}
		mode = h.ModeName()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "RGBColor", mode)
}

func TestDecodeCompositeRaw(t *testing.T) {
	r, g, b := sequence(4, 1), sequence(4, 5), sequence(4, 9)
	psd := rgbDoc(2, 2, r, g, b).open(t)

	res, err := psd.Decode(context.Background(), 0, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Raster)
	assert.False(t, res.Aborted)
	assert.Equal(t, 2, res.Raster.Width)
	assert.Equal(t, 2, res.Raster.Height)
	assert.Equal(t, 3, res.Raster.Bands)
	assert.Equal(t, [][]byte{r, g, b}, res.Raster.Pix)
	assert.Equal(t, ModelRGB, res.ColorSpace.Model)
	assert.Equal(t, image.Point{}, res.Origin)

	res, err = psd.Decode(context.Background(), 0, &DecodeOptions{Layout: LayoutInterleaved})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{1, 5, 9, 2, 6, 10, 3, 7, 11, 4, 8, 12}}, res.Raster.Pix)
}

func TestDecodeCompositeRLE(t *testing.T) {
	planes := [][]byte{
		{7, 7, 7, 7, 1, 2, 3, 4},
		{9, 9, 9, 9, 9, 9, 9, 9},
		{1, 2, 3, 3, 3, 3, 2, 1},
	}
	d := rgbDoc(4, 2)
	d.channels = 3
	d.imageData = rleImageData(4, false, planes...)

	res, err := d.open(t).Decode(context.Background(), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, planes, res.Raster.Pix)
}

func TestDecodeRegionSubsample(t *testing.T) {
	planes := [][]byte{sequence(16, 0), sequence(16, 100), sequence(16, 200)}
	raw := rgbDoc(4, 4, planes...)
	rle := rgbDoc(4, 4)
	rle.channels = 3
	rle.imageData = rleImageData(4, false, planes...)

	opts := &DecodeOptions{Region: image.Rect(1, 1, 4, 4), XSubsample: 2, YSubsample: 2}
	for name, d := range map[string]testDoc{"raw": raw, "rle": rle} {
		t.Run(name, func(t *testing.T) {
			res, err := d.open(t).Decode(context.Background(), 0, opts)
			require.NoError(t, err)
			assert.Equal(t, image.Pt(1, 1), res.Origin)
			assert.Equal(t, [][]byte{
				{5, 7, 13, 15},
				{105, 107, 113, 115},
				{205, 207, 213, 215},
			}, res.Raster.Pix)
		})
	}
}

func TestDecodeRegionClipped(t *testing.T) {
	psd := rgbDoc(4, 4, sequence(16, 0), sequence(16, 0), sequence(16, 0)).open(t)

	res, err := psd.Decode(context.Background(), 0, &DecodeOptions{Region: image.Rect(2, 3, 10, 10)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Raster.Width)
	assert.Equal(t, 1, res.Raster.Height)
	assert.Equal(t, []byte{14, 15}, res.Raster.Pix[0])

	_, err = psd.Decode(context.Background(), 0, &DecodeOptions{Region: image.Rect(5, 5, 8, 8)})
	assert.Error(t, err)
}

func TestDecodeCancel(t *testing.T) {
	psd := rgbDoc(2, 3, sequence(6, 1), sequence(6, 11), sequence(6, 21)).open(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls int
	res, err := psd.Decode(ctx, 0, &DecodeOptions{Progress: func(float64) {
		calls++
		cancel()
	}})
	require.NoError(t, err)
	assert.True(t, res.Aborted)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []byte{1, 2, 0, 0, 0, 0}, res.Raster.Pix[0])
}

func TestDecodeProgress(t *testing.T) {
	psd := rgbDoc(1, 2, []byte{1, 2}, []byte{3, 4}, []byte{5, 6}).open(t)

	var got []float64
	_, err := psd.Decode(context.Background(), 0, &DecodeOptions{Progress: func(p float64) {
		got = append(got, p)
	}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 1.0 / 6, 1.0 / 3, 0.5, 2.0 / 3, 5.0 / 6}, got, 1e-9)
}

func TestDecodeIndexOutOfBounds(t *testing.T) {
	psd := rgbDoc(2, 2, sequence(4, 1), sequence(4, 5), sequence(4, 9)).open(t)

	n, err := psd.NumImages()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for _, i := range []int{-1, 1, 5} {
		_, err := psd.Decode(context.Background(), i, nil)
		assert.True(t, errors.Is(err, ErrIndexOutOfBounds), "index %d: %v", i, err)
	}
	_, err = psd.Width(3)
	assert.ErrorIs(t, err, ErrIndexOutOfBounds)
}

func TestDecodeCMYKInverted(t *testing.T) {
	stored := [][]byte{{255, 0}, {200, 55}, {0, 128}, {250, 5}}
	d := testDoc{channels: 4, width: 2, height: 1, depth: 8, mode: ColorModeCMYKColor, imageData: rawImageData(stored...)}

	res, err := d.open(t).Decode(context.Background(), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{0, 255}, {55, 200}, {255, 127}, {5, 250}}, res.Raster.Pix)

	rgb := DefaultColorSpace(ModelRGB)
	res, err = d.open(t).Decode(context.Background(), 0, &DecodeOptions{ColorSpace: &rgb})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Raster.Bands)
	assert.Equal(t, ModelRGB, res.ColorSpace.Model)
	// c=0 m=55 y=255 k=5: r=250, g=(200/255)*250, b=0
	assert.Equal(t, uint32(250), res.Raster.Sample(0, 0, 0))
	assert.InDelta(t, 196, res.Raster.Sample(0, 0, 1), 1)
	assert.Equal(t, uint32(0), res.Raster.Sample(0, 0, 2))
}

func TestDecodeBitmap(t *testing.T) {
	d := testDoc{
		channels:  1,
		width:     10,
		height:    2,
		depth:     1,
		mode:      ColorModeBitmap,
		imageData: rawImageData([]byte{0xA0, 0x40, 0xFF, 0xC0}),
	}

	res, err := d.open(t).Decode(context.Background(), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x5F, 0xBF, 0x00, 0x3F}, res.Raster.Pix[0])
	assert.Equal(t, uint32(0), res.Raster.Sample(0, 0, 0))
	assert.Equal(t, uint32(1), res.Raster.Sample(1, 0, 0))

	res, err = d.open(t).Decode(context.Background(), 0, &DecodeOptions{XSubsample: 3})
	require.NoError(t, err)
	require.Equal(t, 4, res.Raster.Width)
	var got []uint32
	for x := 0; x < 4; x++ {
		got = append(got, res.Raster.Sample(x, 0, 0))
	}
	assert.Equal(t, []uint32{0, 1, 1, 0}, got)
}

func TestDecodeCompositeAlpha(t *testing.T) {
	// Red at half coverage matted against white, then a transparent pixel.
	d := rgbDoc(2, 1, []byte{255, 40}, []byte{128, 40}, []byte{128, 40}, []byte{128, 0})

	res, err := d.open(t).Decode(context.Background(), 0, nil)
	require.NoError(t, err)
	require.Equal(t, 4, res.Raster.Bands)
	assert.True(t, res.Layout.HasAlpha)

	px := res.Raster
	assert.InDelta(t, 255, px.Sample(0, 0, 0), 1)
	assert.InDelta(t, 0, px.Sample(0, 0, 1), 2)
	assert.InDelta(t, 0, px.Sample(0, 0, 2), 2)
	assert.Equal(t, uint32(128), px.Sample(0, 0, 3))
	for b := 0; b < 4; b++ {
		assert.Equal(t, uint32(0), px.Sample(1, 0, b))
	}
}

func layeredDoc() testDoc {
	layer := testLayer{
		top: 1, left: 2, bottom: 3, right: 4,
		channels: []testChannel{
			rawChannel(ChannelUserMask, []byte{9, 9, 9, 9}),
			rawChannel(ChannelTransparency, []byte{255, 128, 64, 0}),
			rawChannel(0, []byte{1, 2, 3, 4}),
			rleChannel(1, 2, []byte{5, 5, 6, 7}),
			rawChannel(2, []byte{8, 9, 10, 11}),
		},
		opacity: 200,
		name:    "Layer 1",
	}
	empty := testLayer{opacity: 255, name: "Empty"}

	d := rgbDoc(4, 4, sequence(16, 0), sequence(16, 0), sequence(16, 0))
	d.layers = layerSection(2, []testLayer{layer, empty}, nil)
	return d
}

func TestDecodeLayer(t *testing.T) {
	psd := layeredDoc().open(t)

	n, err := psd.NumImages()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	w, err := psd.Width(1)
	require.NoError(t, err)
	assert.Equal(t, 2, w)

	res, err := psd.Decode(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(2, 1), res.Origin)
	assert.True(t, res.Layout.HasAlpha)
	assert.Equal(t, [][]byte{
		{1, 2, 3, 4},
		{5, 5, 6, 7},
		{8, 9, 10, 11},
		{255, 128, 64, 0},
	}, res.Raster.Pix)

	res, err = psd.Decode(context.Background(), 1, &DecodeOptions{Region: image.Rect(1, 0, 2, 2)})
	require.NoError(t, err)
	assert.Equal(t, image.Pt(3, 1), res.Origin)
	assert.Equal(t, []byte{2, 4}, res.Raster.Pix[0])
	assert.Equal(t, []byte{128, 0}, res.Raster.Pix[3])

	composite, err := psd.Decode(context.Background(), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, sequence(16, 0), composite.Raster.Pix[0])
}

func TestDecodeEmptyLayer(t *testing.T) {
	psd := layeredDoc().open(t)

	w, err := psd.Width(2)
	require.NoError(t, err)
	assert.Equal(t, 0, w)

	res, err := psd.Decode(context.Background(), 2, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Raster)
	img, err := res.Image()
	require.NoError(t, err)
	assert.Nil(t, img)
}

// countingReader counts the reads that reach the underlying source.
type countingReader struct {
	rs    io.ReadSeeker
	reads int
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.reads++
	return c.rs.Read(p)
}

func (c *countingReader) Seek(offset int64, whence int) (int64, error) {
	return c.rs.Seek(offset, whence)
}

func TestMetadataMemoized(t *testing.T) {
	d := layeredDoc()
	d.resources = resourceBlock(ResourceVersionInfo, "", versionInfoData())
	src := &countingReader{rs: bytes.NewReader(d.bytes())}
	psd, err := NewDecoder(src)
	require.NoError(t, err)

	// Layers first: the resource section is only measured.
	layers, err := psd.Layers()
	require.NoError(t, err)
	assert.Len(t, layers, 2)
	assert.Nil(t, psd.resources)

	md, err := psd.Metadata()
	require.NoError(t, err)
	assert.Len(t, md.Resources.Resources, 1)
	assert.True(t, md.HasRealMergedData())

	reads := src.reads
	for i := 0; i < 3; i++ {
		_, err := psd.Metadata()
		require.NoError(t, err)
		_, err = psd.Header()
		require.NoError(t, err)
		_, err = psd.Layers()
		require.NoError(t, err)
		_, err = psd.Resources()
		require.NoError(t, err)
	}
	assert.Equal(t, reads, src.reads)
}

func TestWarningsLogged(t *testing.T) {
	d := rgbDoc(1, 1, []byte{1}, []byte{2}, []byte{3})
	d.resources = resourceBlock(ResourceEXIF1, "", []byte("XX\x00\x2a\x00\x00\x00\x08"))

	psd := d.open(t)
	require.NoError(t, psd.Parse())
	require.Len(t, psd.Warnings(), 1)
	assert.Equal(t, ResourceEXIF1, psd.Warnings()[0].ResourceID)
}
