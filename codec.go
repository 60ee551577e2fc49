package psd

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
)

func init() {
	image.RegisterFormat("psd", Signature, Decode, DecodeConfig)
}

func readSeeker(r io.Reader) (io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to buffer document: %w", err)
	}
	return bytes.NewReader(data), nil
}

// Decode reads the composite image of a PSD or PSB document.
func Decode(r io.Reader) (image.Image, error) {
	rs, err := readSeeker(r)
	if err != nil {
		return nil, err
	}
	p, err := NewDecoder(rs)
	if err != nil {
		return nil, err
	}
	res, err := p.Decode(context.Background(), 0, nil)
	if err != nil {
		return nil, err
	}
	if res.Raster == nil {
		return nil, formatErrorf(14, "document has no pixels (%dx%d)", p.header.Width(), p.header.Height())
	}
	return res.Image()
}

// DecodeConfig returns the dimensions and color model of the composite
// without reading past the header.
func DecodeConfig(r io.Reader) (image.Config, error) {
	rs, err := readSeeker(r)
	if err != nil {
		return image.Config{}, err
	}
	p, err := NewDecoder(rs)
	if err != nil {
		return image.Config{}, err
	}
	layout, err := p.RawLayout(0)
	if err != nil {
		return image.Config{}, err
	}
	cfg := image.Config{Width: p.header.Width(), Height: p.header.Height()}

	switch {
	case layout.Mode == ColorModeBitmap:
		cfg.ColorModel = bitmapPalette
	case layout.Mode == ColorModeIndexedColor:
		res := &Result{Palette: p.colorData.Palette()}
		cfg.ColorModel = res.paletteOf256()
	case layout.Depth != 8:
		cfg.ColorModel = color.NRGBA64Model
	case layout.Model() == ModelGray && !layout.HasAlpha:
		cfg.ColorModel = color.GrayModel
	case layout.Model() == ModelCMYK && !layout.HasAlpha:
		cfg.ColorModel = color.CMYKModel
	case layout.Model() == ModelRGB && !layout.HasAlpha:
		cfg.ColorModel = color.RGBAModel
	default:
		cfg.ColorModel = color.NRGBAModel
	}
	return cfg, nil
}
