package psd

import (
	"fmt"
	"image"
	"image/color"
)

var bitmapPalette = color.Palette{color.Black, color.White}

// Image projects the decoded raster onto the closest image package type:
//
//	bitmap           *image.Paletted (black and white)
//	indexed          *image.Paletted
//	gray 8/16        *image.Gray, *image.Gray16
//	rgb 8            *image.RGBA, or *image.NRGBA with alpha
//	cmyk 8           *image.CMYK, or *image.NRGBA with alpha
//	anything deeper  *image.NRGBA64
//
// The image bounds are the layer's placement in the document. It returns
// nil for an empty layer.
func (r *Result) Image() (image.Image, error) {
	if r.Raster == nil {
		return nil, nil
	}
	src := r.Raster
	rect := image.Rect(0, 0, src.Width, src.Height).Add(r.Origin)
	alpha := r.Layout.HasAlpha

	switch r.ColorSpace.Model {
	case ModelIndexed:
		img := image.NewPaletted(rect, r.paletteOf256())
		fill8(src, img.Pix, img.Stride, 1)
		return img, nil

	case ModelGray:
		switch {
		case src.Depth == 1:
			img := image.NewPaletted(rect, bitmapPalette)
			for y := 0; y < src.Height; y++ {
				for x := 0; x < src.Width; x++ {
					img.Pix[y*img.Stride+x] = uint8(src.Sample(x, y, 0))
				}
			}
			return img, nil
		case src.Depth == 8 && !alpha:
			img := image.NewGray(rect)
			fill8(src, img.Pix, img.Stride, 1)
			return img, nil
		case src.Depth == 16 && !alpha:
			img := image.NewGray16(rect)
			fill16(src, img.Pix, img.Stride, 1)
			return img, nil
		case src.Depth == 8:
			img := image.NewNRGBA(rect)
			for y := 0; y < src.Height; y++ {
				for x := 0; x < src.Width; x++ {
					v := uint8(src.Sample(x, y, 0))
					img.SetNRGBA(x+rect.Min.X, y+rect.Min.Y, color.NRGBA{R: v, G: v, B: v, A: uint8(src.Sample(x, y, 1))})
				}
			}
			return img, nil
		}
		return toNRGBA64(src, rect, func(x, y int) (r, g, b, a float64) {
			v := src.Float(x, y, 0)
			a = 1
			if alpha {
				a = src.Float(x, y, 1)
			}
			return v, v, v, a
		}), nil

	case ModelRGB:
		switch {
		case src.Depth == 8 && !alpha:
			img := image.NewRGBA(rect)
			fill8(src, img.Pix, img.Stride, 4)
			for i := 3; i < len(img.Pix); i += 4 {
				img.Pix[i] = 0xff
			}
			return img, nil
		case src.Depth == 8:
			img := image.NewNRGBA(rect)
			fill8(src, img.Pix, img.Stride, 4)
			return img, nil
		}
		return toNRGBA64(src, rect, func(x, y int) (r, g, b, a float64) {
			a = 1
			if alpha {
				a = src.Float(x, y, 3)
			}
			return src.Float(x, y, 0), src.Float(x, y, 1), src.Float(x, y, 2), a
		}), nil

	case ModelCMYK:
		switch {
		case src.Depth == 8 && !alpha:
			img := image.NewCMYK(rect)
			fill8(src, img.Pix, img.Stride, 4)
			return img, nil
		case src.Depth == 8:
			img := image.NewNRGBA(rect)
			for y := 0; y < src.Height; y++ {
				for x := 0; x < src.Width; x++ {
					c := cmykToNRGBA(uint8(src.Sample(x, y, 0)), uint8(src.Sample(x, y, 1)),
						uint8(src.Sample(x, y, 2)), uint8(src.Sample(x, y, 3)), uint8(src.Sample(x, y, 4)))
					img.SetNRGBA(x+rect.Min.X, y+rect.Min.Y, c)
				}
			}
			return img, nil
		}
		return toNRGBA64(src, rect, func(x, y int) (r, g, b, a float64) {
			k := 1 - src.Float(x, y, 3)
			a = 1
			if alpha {
				a = src.Float(x, y, 4)
			}
			return (1 - src.Float(x, y, 0)) * k, (1 - src.Float(x, y, 1)) * k, (1 - src.Float(x, y, 2)) * k, a
		}), nil
	}
	return nil, UnsupportedError(fmt.Sprintf("image projection of %s samples", r.ColorSpace.Model))
}

// fill8 copies the first n bands of an 8-bit raster into pixel rows with n
// samples per pixel.
func fill8(src *Raster, pix []byte, stride, n int) {
	for y := 0; y < src.Height; y++ {
		row := pix[y*stride:]
		for x := 0; x < src.Width; x++ {
			for b := 0; b < n && b < src.Bands; b++ {
				row[x*n+b] = uint8(src.Sample(x, y, b))
			}
		}
	}
}

func fill16(src *Raster, pix []byte, stride, n int) {
	for y := 0; y < src.Height; y++ {
		row := pix[y*stride:]
		for x := 0; x < src.Width; x++ {
			for b := 0; b < n && b < src.Bands; b++ {
				v := src.Sample(x, y, b)
				row[(x*n+b)*2] = uint8(v >> 8)
				row[(x*n+b)*2+1] = uint8(v)
			}
		}
	}
}

func toNRGBA64(src *Raster, rect image.Rectangle, at func(x, y int) (r, g, b, a float64)) *image.NRGBA64 {
	img := image.NewNRGBA64(rect)
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			r, g, b, a := at(x, y)
			img.SetNRGBA64(x+rect.Min.X, y+rect.Min.Y, color.NRGBA64{
				R: uint16(clamp01(r)*0xffff + 0.5),
				G: uint16(clamp01(g)*0xffff + 0.5),
				B: uint16(clamp01(b)*0xffff + 0.5),
				A: uint16(clamp01(a)*0xffff + 0.5),
			})
		}
	}
	return img
}

// paletteOf256 pads the document palette so every byte is a valid index.
func (r *Result) paletteOf256() color.Palette {
	p := make(color.Palette, 256)
	copy(p, r.Palette)
	for i := len(r.Palette); i < len(p); i++ {
		p[i] = color.Black
	}
	return p
}
