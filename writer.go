package psd

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"io"
	"unicode/utf16"

	bst "github.com/mixcode/binarystruct"
)

// EncoderOptions control Encode and EncodeRaster.
type EncoderOptions struct {
	// Compression is CompressionRaw or CompressionRLE.
	Compression Compression

	// Palette is required for indexed documents. Missing entries up to 256
	// are written as black.
	Palette color.Palette

	// ICC is embedded as the ICC profile resource when not empty.
	ICC []byte
}

const writerName = "psd"

// Encode writes img as a flattened document. Paletted images become
// indexed documents, Gray and Gray16 grayscale, CMYK images CMYK and
// everything else RGB, with an alpha channel when the image is not opaque.
func Encode(w io.Writer, img image.Image, opts *EncoderOptions) error {
	if opts == nil {
		opts = &EncoderOptions{}
	}
	r, mode, palette, err := rasterFromImage(img)
	if err != nil {
		return err
	}
	if palette != nil {
		o := *opts
		o.Palette = palette
		opts = &o
	}
	return EncodeRaster(w, r, mode, opts)
}

// EncodeRaster writes a raster in the layout Decode produces for the
// composite of a document in the given mode. A document is written as PSB
// when a dimension exceeds the PSD limit or, with RLE, when a compressed
// scan line does not fit the 16-bit byte counts of PSD.
func EncodeRaster(w io.Writer, r *Raster, mode ColorMode, opts *EncoderOptions) error {
	if opts == nil {
		opts = &EncoderOptions{}
	}
	if r == nil {
		return fmt.Errorf("psd: nil raster")
	}
	if r.Bands > MaxChannels {
		return UnsupportedError(fmt.Sprintf("%d channels (maximum is %d)", r.Bands, MaxChannels))
	}
	layout, err := rawLayout(mode, r.Depth, r.Bands)
	if err != nil {
		return err
	}
	if layout.Bands() != r.Bands {
		return UnsupportedError(fmt.Sprintf("%d bands in %s mode", r.Bands, mode))
	}
	switch opts.Compression {
	case CompressionRaw, CompressionRLE:
	default:
		return UnsupportedError(fmt.Sprintf("writing %s compression", opts.Compression))
	}
	if mode == ColorModeIndexedColor && len(opts.Palette) == 0 {
		return fmt.Errorf("psd: indexed document needs a palette")
	}
	if len(opts.Palette) > 256 {
		return fmt.Errorf("psd: palette has %d entries, at most 256 allowed", len(opts.Palette))
	}

	big := r.Width > maxDimensionPSD || r.Height > maxDimensionPSD
	if r.Width > maxDimensionPSB || r.Height > maxDimensionPSB {
		return UnsupportedError(fmt.Sprintf("dimensions %dx%d", r.Width, r.Height))
	}

	e := &encoder{
		w:      bufio.NewWriter(w),
		r:      r,
		mode:   mode,
		layout: layout,
		big:    big,
		opts:   opts,
	}
	if opts.Compression == CompressionRLE {
		e.packImageData()
	}
	e.writeHeader()
	e.writeColorData()
	e.writeResources()
	e.writeLayerSection()
	e.writeImageData()
	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

type encoder struct {
	w      *bufio.Writer
	r      *Raster
	mode   ColorMode
	layout RawLayout
	big    bool
	opts   *EncoderOptions
	err    error

	// RLE image data, packed before the header is written.
	counts []uint32
	packed []byte
}

func (e *encoder) write(v interface{}) {
	if e.err != nil {
		return
	}
	e.err = binary.Write(e.w, binary.BigEndian, v)
}

func (e *encoder) writeHeader() {
	raw := rawHeader{
		Version:  VersionPSD,
		Channels: uint16(e.r.Bands),
		Rows:     uint32(e.r.Height),
		Cols:     uint32(e.r.Width),
		Depth:    uint16(e.r.Depth),
		Mode:     uint16(e.mode),
	}
	copy(raw.Signature[:], Signature)
	if e.big {
		raw.Version = VersionPSB
	}
	if e.err == nil {
		_, e.err = bst.Write(e.w, bst.BigEndian, &raw)
	}
}

func (e *encoder) writeColorData() {
	if e.mode != ColorModeIndexedColor {
		e.write(uint32(0))
		return
	}
	table := make([]byte, 3*256)
	for i, c := range e.opts.Palette {
		rgba := color.RGBAModel.Convert(c).(color.RGBA)
		table[i] = rgba.R
		table[256+i] = rgba.G
		table[512+i] = rgba.B
	}
	e.write(uint32(len(table)))
	e.write(table)
}

func (e *encoder) writeResources() {
	var blocks []byte
	blocks = appendResource(blocks, ResourceVersionInfo, versionInfoData())
	if len(e.opts.ICC) > 0 {
		blocks = appendResource(blocks, ResourceICCProfile, e.opts.ICC)
	}
	e.write(uint32(len(blocks)))
	e.write(blocks)
}

// appendResource appends one image resource block with an empty name.
func appendResource(dst []byte, id uint16, data []byte) []byte {
	dst = append(dst, "8BIM"...)
	dst = binary.BigEndian.AppendUint16(dst, id)
	dst = append(dst, 0, 0)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(data)))
	dst = append(dst, data...)
	if len(data)%2 == 1 {
		dst = append(dst, 0)
	}
	return dst
}

func versionInfoData() []byte {
	data := binary.BigEndian.AppendUint32(nil, 1)
	data = append(data, 1) // has real merged data
	data = appendUnicodeString(data, writerName)
	data = appendUnicodeString(data, writerName)
	return binary.BigEndian.AppendUint32(data, 1)
}

func appendUnicodeString(dst []byte, s string) []byte {
	units := append(utf16.Encode([]rune(s)), 0)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(units)))
	for _, u := range units {
		dst = binary.BigEndian.AppendUint16(dst, u)
	}
	return dst
}

func (e *encoder) writeLayerSection() {
	if e.big {
		e.write(uint64(0))
	} else {
		e.write(uint32(0))
	}
}

// packImageData compresses every scan line of the composite. A line longer
// than 0xFFFF bytes once packed switches the document to PSB.
func (e *encoder) packImageData() {
	r := e.r
	line := make([]byte, (r.Width*r.Depth+7)/8)
	e.counts = make([]uint32, 0, r.Bands*r.Height)
	for b := 0; b < r.Bands; b++ {
		for y := 0; y < r.Height; y++ {
			n := len(e.packed)
			e.packed = packBits(e.packed, e.fileRow(line, b, y))
			c := uint32(len(e.packed) - n)
			if c > 0xFFFF {
				e.big = true
			}
			e.counts = append(e.counts, c)
		}
	}
}

// writeImageData writes the composite channels.
func (e *encoder) writeImageData() {
	e.write(uint16(e.opts.Compression))
	r := e.r

	if e.opts.Compression == CompressionRaw {
		line := make([]byte, (r.Width*r.Depth+7)/8)
		for b := 0; b < r.Bands; b++ {
			for y := 0; y < r.Height; y++ {
				e.write(e.fileRow(line, b, y))
			}
		}
		return
	}

	for _, c := range e.counts {
		if e.big {
			e.write(c)
		} else {
			e.write(uint16(c))
		}
	}
	e.write(e.packed)
}

// fileRow fills line with row y of band b as stored on disk: bitmap bits
// and CMYK color samples are inverted, and 8-bit RGB colors with alpha are
// matted against white.
func (e *encoder) fileRow(line []byte, b, y int) []byte {
	r := e.r
	if r.Layout == LayoutBanded {
		copy(line, r.row(b, y))
	} else {
		bps := r.BytesPerSample()
		for x := 0; x < r.Width; x++ {
			_, o := r.offset(x, y, b)
			copy(line[x*bps:], r.Pix[0][o:o+bps])
		}
	}

	colorBand := b < e.layout.ColorBands
	switch {
	case r.Depth == 1, e.mode == ColorModeCMYKColor && colorBand:
		for i := range line {
			line[i] = ^line[i]
		}
	case e.mode == ColorModeRGBColor && r.Depth == 8 && e.layout.HasAlpha && colorBand:
		for x := 0; x < r.Width; x++ {
			a := r.Sample(x, y, r.Bands-1)
			line[x] = uint8((uint32(line[x])*a + 0xff*(0xff-a) + 0x7f) / 0xff)
		}
	}
	return line
}

// rasterFromImage converts an image into a banded raster and the mode to
// write it in.
func rasterFromImage(img image.Image) (*Raster, ColorMode, color.Palette, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, 0, nil, fmt.Errorf("psd: empty image")
	}

	switch src := img.(type) {
	case *image.Paletted:
		if len(src.Palette) == 0 || len(src.Palette) > 256 {
			return nil, 0, nil, UnsupportedError(fmt.Sprintf("palette of %d colors", len(src.Palette)))
		}
		r, _ := NewRaster(w, h, 1, 8, LayoutBanded)
		for y := 0; y < h; y++ {
			copy(r.row(0, y), src.Pix[y*src.Stride:y*src.Stride+w])
		}
		return r, ColorModeIndexedColor, src.Palette, nil

	case *image.Gray:
		r, _ := NewRaster(w, h, 1, 8, LayoutBanded)
		for y := 0; y < h; y++ {
			copy(r.row(0, y), src.Pix[y*src.Stride:y*src.Stride+w])
		}
		return r, ColorModeGrayscale, nil, nil

	case *image.Gray16:
		r, _ := NewRaster(w, h, 1, 16, LayoutBanded)
		for y := 0; y < h; y++ {
			copy(r.row(0, y), src.Pix[y*src.Stride:y*src.Stride+2*w])
		}
		return r, ColorModeGrayscale, nil, nil

	case *image.CMYK:
		r, _ := NewRaster(w, h, 4, 8, LayoutBanded)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				o := y*src.Stride + x*4
				for c := 0; c < 4; c++ {
					r.SetSample(x, y, c, uint32(src.Pix[o+c]))
				}
			}
		}
		return r, ColorModeCMYKColor, nil, nil

	case *image.RGBA64, *image.NRGBA64:
		bands := 3
		if !isOpaque(img) {
			bands = 4
		}
		r, _ := NewRaster(w, h, bands, 16, LayoutBanded)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
				r.SetSample(x, y, 0, uint32(c.R))
				r.SetSample(x, y, 1, uint32(c.G))
				r.SetSample(x, y, 2, uint32(c.B))
				if bands == 4 {
					r.SetSample(x, y, 3, uint32(c.A))
				}
			}
		}
		return r, ColorModeRGBColor, nil, nil
	}

	bands := 3
	if !isOpaque(img) {
		bands = 4
	}
	r, _ := NewRaster(w, h, bands, 8, LayoutBanded)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			r.SetSample(x, y, 0, uint32(c.R))
			r.SetSample(x, y, 1, uint32(c.G))
			r.SetSample(x, y, 2, uint32(c.B))
			if bands == 4 {
				r.SetSample(x, y, 3, uint32(c.A))
			}
		}
	}
	return r, ColorModeRGBColor, nil, nil
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return false
			}
		}
	}
	return true
}
