package psd

import (
	"fmt"
	"image/color"
)

// ColorData holds the color mode data section of an indexed document: a
// palette stored as three consecutive planes of red, green and blue.
type ColorData struct {
	Raw []byte
}

// Len is the number of palette entries.
func (c *ColorData) Len() int {
	return len(c.Raw) / 3
}

// Palette projects the planar table onto a color.Palette.
func (c *ColorData) Palette() color.Palette {
	n := c.Len()
	p := make(color.Palette, n)
	for i := 0; i < n; i++ {
		p[i] = color.RGBA{R: c.Raw[i], G: c.Raw[n+i], B: c.Raw[2*n+i], A: 0xff}
	}
	return p
}

// parseColorData reads the color mode data section. Only indexed documents
// keep it; duotone specs and the like are skipped.
func parseColorData(f *File, h *Header) (*ColorData, error) {
	pos, err := f.Tell()
	if err != nil {
		return nil, err
	}
	length, err := f.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("failed to read color data length: %w", err)
	}

	if h.Mode != ColorModeIndexedColor {
		if err := f.Skip(int64(length)); err != nil {
			return nil, fmt.Errorf("failed to skip color data: %w", err)
		}
		return nil, nil
	}

	if length == 0 || length%3 != 0 {
		return nil, formatErrorf(pos, "indexed color data length %d is not a positive multiple of 3", length)
	}
	raw, err := f.ReadBytes(int64(length))
	if err != nil {
		return nil, fmt.Errorf("failed to read color data: %w", err)
	}
	return &ColorData{Raw: raw}, nil
}
