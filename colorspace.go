package psd

import (
	"encoding/hex"
	"fmt"
	"image/color"

	"golang.org/x/crypto/blake2b"
)

// ColorModel is the family of a color space.
type ColorModel int

const (
	ModelUnknown ColorModel = iota
	ModelGray
	ModelRGB
	ModelCMYK
	ModelIndexed
)

var colorModelNames = map[ColorModel]string{
	ModelUnknown: "unknown",
	ModelGray:    "gray",
	ModelRGB:     "rgb",
	ModelCMYK:    "cmyk",
	ModelIndexed: "indexed",
}

func (m ColorModel) String() string {
	if name, ok := colorModelNames[m]; ok {
		return name
	}
	return fmt.Sprintf("ColorModel(%d)", int(m))
}

// components is the number of color bands, alpha excluded.
func (m ColorModel) components() int {
	switch m {
	case ModelRGB:
		return 3
	case ModelCMYK:
		return 4
	default:
		return 1
	}
}

// ColorSpace identifies a color space by model and embedded profile. Two
// values are the same color space only when both fields are equal; a zero
// Profile stands for the model's default space.
type ColorSpace struct {
	Model   ColorModel
	Profile [blake2b.Size256]byte
}

// DefaultColorSpace returns the profile-less space of a model.
func DefaultColorSpace(m ColorModel) ColorSpace {
	return ColorSpace{Model: m}
}

// NewColorSpace identifies a color space by the digest of its ICC profile.
func NewColorSpace(m ColorModel, icc []byte) ColorSpace {
	cs := ColorSpace{Model: m}
	if len(icc) > 0 {
		cs.Profile = blake2b.Sum256(icc)
	}
	return cs
}

// HasProfile reports whether the space came from an embedded profile.
func (cs ColorSpace) HasProfile() bool {
	return cs.Profile != [blake2b.Size256]byte{}
}

func (cs ColorSpace) String() string {
	if !cs.HasProfile() {
		return cs.Model.String()
	}
	return cs.Model.String() + "/" + hex.EncodeToString(cs.Profile[:8])
}

// modelForMode maps a document color mode to the model of its raster.
func modelForMode(m ColorMode) ColorModel {
	switch m {
	case ColorModeBitmap, ColorModeGrayscale, ColorModeDuotone:
		return ModelGray
	case ColorModeIndexedColor:
		return ModelIndexed
	case ColorModeRGBColor:
		return ModelRGB
	case ColorModeCMYKColor:
		return ModelCMYK
	default:
		return ModelUnknown
	}
}

// convertRaster converts src from one color space to another. An alpha
// band, when present, is the last band and is copied unchanged. Spaces of
// the same model but different profiles pass through untouched and yield
// a warning. The returned raster is src itself when nothing changes.
func convertRaster(src *Raster, from, to ColorSpace, alpha bool) (*Raster, *Warning, error) {
	if from == to {
		return src, nil, nil
	}
	if from.Model == to.Model {
		return src, &Warning{
			Offset:  -1,
			Message: fmt.Sprintf("profile conversion from %s to %s is not supported, samples left unchanged", from, to),
		}, nil
	}
	if src.Depth != 8 && src.Depth != 16 {
		return nil, nil, UnsupportedError(fmt.Sprintf("color conversion of %d-bit samples", src.Depth))
	}
	convert, ok := converters[[2]ColorModel{from.Model, to.Model}]
	if !ok {
		return nil, nil, UnsupportedError(fmt.Sprintf("color conversion from %s to %s", from.Model, to.Model))
	}

	bands := to.Model.components()
	if alpha {
		bands++
	}
	dst, err := NewRaster(src.Width, src.Height, bands, src.Depth, src.Layout)
	if err != nil {
		return nil, nil, err
	}

	scale := float64(src.maxSample())
	in := make([]float64, from.Model.components())
	out := make([]float64, to.Model.components())
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			for b := range in {
				in[b] = float64(src.Sample(x, y, b)) / scale
			}
			convert(in, out)
			for b, v := range out {
				dst.SetSample(x, y, b, uint32(clamp01(v)*scale+0.5))
			}
			if alpha {
				dst.SetSample(x, y, bands-1, src.Sample(x, y, src.Bands-1))
			}
		}
	}
	return dst, nil, nil
}

// converters operate on normalised components.
var converters = map[[2]ColorModel]func(in, out []float64){
	{ModelCMYK, ModelRGB}: func(in, out []float64) {
		k := 1 - in[3]
		out[0] = (1 - in[0]) * k
		out[1] = (1 - in[1]) * k
		out[2] = (1 - in[2]) * k
	},
	{ModelRGB, ModelCMYK}: func(in, out []float64) {
		w := max(in[0], in[1], in[2])
		if w == 0 {
			out[0], out[1], out[2], out[3] = 0, 0, 0, 1
			return
		}
		out[0] = (w - in[0]) / w
		out[1] = (w - in[1]) / w
		out[2] = (w - in[2]) / w
		out[3] = 1 - w
	},
	{ModelGray, ModelRGB}: func(in, out []float64) {
		out[0], out[1], out[2] = in[0], in[0], in[0]
	},
	{ModelRGB, ModelGray}: func(in, out []float64) {
		// Same weights as color.GrayModel.
		out[0] = (19595*in[0] + 38470*in[1] + 7471*in[2]) / 65536
	},
	{ModelCMYK, ModelGray}: func(in, out []float64) {
		k := 1 - in[3]
		r, g, b := (1-in[0])*k, (1-in[1])*k, (1-in[2])*k
		out[0] = (19595*r + 38470*g + 7471*b) / 65536
	},
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// cmykToNRGBA converts one 8-bit CMYK pixel the way image/color does.
func cmykToNRGBA(c, m, y, k, a uint8) color.NRGBA {
	r, g, b := color.CMYKToRGB(c, m, y, k)
	return color.NRGBA{R: r, G: g, B: b, A: a}
}
