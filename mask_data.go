package psd

import (
	"fmt"
)

// Layer mask flag bits.
const (
	MaskRelativePosition = 1 << 0
	MaskDisabled         = 1 << 1
	MaskInvert           = 1 << 2
	MaskFromRender       = 1 << 3
	MaskHasParameters    = 1 << 4
)

// LayerMaskData is the optional mask record of a layer.
type LayerMaskData struct {
	Top, Left, Bottom, Right int32
	DefaultColor             uint8 // 0 or 255
	Flags                    uint8

	Parameters        uint8
	UserMaskDensity   uint8
	UserMaskFeather   float64
	VectorMaskDensity uint8
	VectorMaskFeather float64

	// The 36-byte form repeats flags, background and rectangle for the
	// real user mask.
	RealFlags        uint8
	RealDefaultColor uint8
	RealTop          int32
	RealLeft         int32
	RealBottom       int32
	RealRight        int32
}

// Disabled reports whether the mask is switched off.
func (m *LayerMaskData) Disabled() bool {
	return m.Flags&MaskDisabled != 0
}

// parseLayerMaskData reads a mask record of the given size. f is bounded to
// the record so a stray parameter block cannot read past it.
func parseLayerMaskData(f *File, size int) (*LayerMaskData, error) {
	m := &LayerMaskData{}
	var err error
	readInt := func(dst *int32) {
		if err == nil {
			*dst, err = f.ReadInt32()
		}
	}
	readByte := func(dst *uint8) {
		if err == nil {
			*dst, err = f.ReadByte()
		}
	}

	readInt(&m.Top)
	readInt(&m.Left)
	readInt(&m.Bottom)
	readInt(&m.Right)
	readByte(&m.DefaultColor)
	readByte(&m.Flags)
	left := size - 18

	if err == nil && m.Flags&MaskHasParameters != 0 {
		readByte(&m.Parameters)
		left--
		if m.Parameters&0x01 != 0 {
			readByte(&m.UserMaskDensity)
			left--
		}
		if m.Parameters&0x02 != 0 && err == nil {
			m.UserMaskFeather, err = f.ReadFloat64()
			left -= 8
		}
		if m.Parameters&0x04 != 0 {
			readByte(&m.VectorMaskDensity)
			left--
		}
		if m.Parameters&0x08 != 0 && err == nil {
			m.VectorMaskFeather, err = f.ReadFloat64()
			left -= 8
		}
	}

	if size > 20 {
		if left >= 2 {
			readByte(&m.RealFlags)
			readByte(&m.RealDefaultColor)
			left -= 2
		}
		if left >= 16 {
			readInt(&m.RealTop)
			readInt(&m.RealLeft)
			readInt(&m.RealBottom)
			readInt(&m.RealRight)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read layer mask data: %w", err)
	}
	return m, nil
}
