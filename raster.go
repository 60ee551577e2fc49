package psd

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Layout selects how a Raster stores its bands.
type Layout int

const (
	// LayoutBanded keeps one plane per band.
	LayoutBanded Layout = iota
	// LayoutInterleaved keeps the samples of a pixel together in a single
	// plane.
	LayoutInterleaved
)

func (l Layout) String() string {
	if l == LayoutInterleaved {
		return "interleaved"
	}
	return "banded"
}

// Raster holds decoded samples in the file's native big-endian encoding.
// 1-bit rasters pack eight pixels per byte, most significant bit first,
// with rows padded to a whole byte; a set bit is white. 32-bit samples are
// IEEE 754 floats.
type Raster struct {
	Width  int
	Height int
	Bands  int
	Depth  int
	Layout Layout

	// Pix has one plane per band when banded and a single plane when
	// interleaved.
	Pix [][]byte
}

// NewRaster allocates a zeroed raster. 1-bit rasters are always banded.
func NewRaster(width, height, bands, depth int, layout Layout) (*Raster, error) {
	switch depth {
	case 1, 8, 16, 32:
	default:
		return nil, fmt.Errorf("invalid raster depth %d", depth)
	}
	if width <= 0 || height <= 0 || bands <= 0 {
		return nil, fmt.Errorf("invalid raster size %dx%dx%d", width, height, bands)
	}
	if depth == 1 {
		layout = LayoutBanded
	}
	r := &Raster{Width: width, Height: height, Bands: bands, Depth: depth, Layout: layout}
	planes := bands
	if layout == LayoutInterleaved {
		planes = 1
	}
	r.Pix = make([][]byte, planes)
	for i := range r.Pix {
		r.Pix[i] = make([]byte, r.Stride()*height)
	}
	return r, nil
}

// BytesPerSample is zero for 1-bit rasters.
func (r *Raster) BytesPerSample() int {
	return r.Depth / 8
}

// Stride is the byte length of one row of a plane.
func (r *Raster) Stride() int {
	if r.Depth == 1 {
		return (r.Width + 7) / 8
	}
	if r.Layout == LayoutInterleaved {
		return r.Width * r.Bands * r.BytesPerSample()
	}
	return r.Width * r.BytesPerSample()
}

// offset returns the plane and byte offset of a sample. For 1-bit rasters
// the offset is that of the byte holding the pixel.
func (r *Raster) offset(x, y, band int) (int, int) {
	if r.Depth == 1 {
		return band, y*r.Stride() + x/8
	}
	bps := r.BytesPerSample()
	if r.Layout == LayoutInterleaved {
		return 0, y*r.Stride() + (x*r.Bands+band)*bps
	}
	return band, y*r.Stride() + x*bps
}

// Sample returns the raw sample value at (x, y) in the given band. 32-bit
// samples are returned as float bits.
func (r *Raster) Sample(x, y, band int) uint32 {
	p, o := r.offset(x, y, band)
	pix := r.Pix[p]
	switch r.Depth {
	case 1:
		return uint32(pix[o]>>(7-uint(x%8))) & 1
	case 8:
		return uint32(pix[o])
	case 16:
		return uint32(binary.BigEndian.Uint16(pix[o:]))
	default:
		return binary.BigEndian.Uint32(pix[o:])
	}
}

// SetSample stores a raw sample value.
func (r *Raster) SetSample(x, y, band int, v uint32) {
	p, o := r.offset(x, y, band)
	pix := r.Pix[p]
	switch r.Depth {
	case 1:
		mask := byte(0x80) >> uint(x%8)
		if v != 0 {
			pix[o] |= mask
		} else {
			pix[o] &^= mask
		}
	case 8:
		pix[o] = uint8(v)
	case 16:
		binary.BigEndian.PutUint16(pix[o:], uint16(v))
	default:
		binary.BigEndian.PutUint32(pix[o:], v)
	}
}

// Float returns a sample normalised to [0, 1], or the stored float for
// 32-bit rasters.
func (r *Raster) Float(x, y, band int) float64 {
	v := r.Sample(x, y, band)
	switch r.Depth {
	case 1:
		return float64(v)
	case 8:
		return float64(v) / 0xff
	case 16:
		return float64(v) / 0xffff
	default:
		return float64(math.Float32frombits(v))
	}
}

// maxSample is the largest integer sample value, or zero for float rasters.
func (r *Raster) maxSample() uint32 {
	switch r.Depth {
	case 1:
		return 1
	case 8:
		return 0xff
	case 16:
		return 0xffff
	}
	return 0
}

// row returns the bytes of row y of a banded plane.
func (r *Raster) row(band, y int) []byte {
	s := r.Stride()
	return r.Pix[band][y*s : (y+1)*s]
}
