package psd

import (
	"bytes"
	"fmt"

	bst "github.com/mixcode/binarystruct"
)

// Signature is the magic at offset 0 of every PSD and PSB file.
const Signature = "8BPS"

// Header represents the PSD file header
type Header struct {
	Sig      string
	Version  uint16
	Channels uint16
	Rows     uint32
	Cols     uint32
	Depth    uint16
	Mode     ColorMode
}

// ColorMode is the document color mode stored in the header.
type ColorMode uint16

// Color modes
const (
	ColorModeBitmap       ColorMode = 0
	ColorModeGrayscale    ColorMode = 1
	ColorModeIndexedColor ColorMode = 2
	ColorModeRGBColor     ColorMode = 3
	ColorModeCMYKColor    ColorMode = 4
	ColorModeMultichannel ColorMode = 7
	ColorModeDuotone      ColorMode = 8
	ColorModeLabColor     ColorMode = 9
)

var colorModeNames = map[ColorMode]string{
	ColorModeBitmap:       "Bitmap",
	ColorModeGrayscale:    "GrayScale",
	ColorModeIndexedColor: "IndexedColor",
	ColorModeRGBColor:     "RGBColor",
	ColorModeCMYKColor:    "CMYKColor",
	ColorModeMultichannel: "Multichannel",
	ColorModeDuotone:      "Duotone",
	ColorModeLabColor:     "LabColor",
}

func (m ColorMode) String() string {
	if name, ok := colorModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint16(m))
}

const (
	// VersionPSD marks a regular document.
	VersionPSD = 1
	// VersionPSB marks a large document format file.
	VersionPSB = 2

	// MaxChannels is the largest channel count a document may declare.
	MaxChannels = 56

	maxDimensionPSD = 30000
	maxDimensionPSB = 300000

	headerSize = 26
)

// rawHeader mirrors the fixed 26-byte header record.
type rawHeader struct {
	Signature [4]byte
	Version   uint16
	Reserved  [6]byte
	Channels  uint16
	Rows      uint32
	Cols      uint32
	Depth     uint16
	Mode      uint16
}

// Width returns the width of the document
func (h *Header) Width() int {
	return int(h.Cols)
}

// Height returns the height of the document
func (h *Header) Height() int {
	return int(h.Rows)
}

// ModeName returns the human-readable color mode name
func (h *Header) ModeName() string {
	return h.Mode.String()
}

// IsBig returns true if this is a PSB (large document format)
func (h *Header) IsBig() bool {
	return h.Version == VersionPSB
}

// IsRGB returns true if the color mode is RGB
func (h *Header) IsRGB() bool {
	return h.Mode == ColorModeRGBColor
}

// IsCMYK returns true if the color mode is CMYK
func (h *Header) IsCMYK() bool {
	return h.Mode == ColorModeCMYKColor
}

// MaxDimension is the nominal size limit for the document's format.
func (h *Header) MaxDimension() int {
	if h.IsBig() {
		return maxDimensionPSB
	}
	return maxDimensionPSD
}

// HasValidDimensions reports whether width and height are within the
// nominal limit. Oversized documents are still decodable.
func (h *Header) HasValidDimensions() bool {
	max := h.MaxDimension()
	return h.Width() <= max && h.Height() <= max
}

// parseHeader reads and validates the header. Validation failures abort
// before any byte past the header is consumed.
func parseHeader(f *File) (*Header, []Warning, error) {
	var raw rawHeader
	if _, err := bst.Read(f, bst.BigEndian, &raw); err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	if !bytes.Equal(raw.Signature[:], []byte(Signature)) {
		return nil, nil, formatErrorf(0, "not a PSD file: expected signature %q, got %q (% x)", Signature, raw.Signature[:], raw.Signature[:])
	}
	if raw.Version != VersionPSD && raw.Version != VersionPSB {
		return nil, nil, formatErrorf(4, "unknown version %d, expected %d (PSD) or %d (PSB)", raw.Version, VersionPSD, VersionPSB)
	}
	if raw.Channels == 0 {
		return nil, nil, formatErrorf(12, "channel count must be between 1 and %d, got 0", MaxChannels)
	}
	if raw.Channels > MaxChannels {
		return nil, nil, UnsupportedError(fmt.Sprintf("%d channels (maximum is %d)", raw.Channels, MaxChannels))
	}
	switch raw.Depth {
	case 1, 8, 16, 32:
	default:
		return nil, nil, formatErrorf(22, "bit depth must be 1, 8, 16 or 32, got %d", raw.Depth)
	}
	mode := ColorMode(raw.Mode)
	if _, ok := colorModeNames[mode]; !ok {
		return nil, nil, formatErrorf(24, "unknown color mode %d", raw.Mode)
	}

	h := &Header{
		Sig:      string(raw.Signature[:]),
		Version:  raw.Version,
		Channels: raw.Channels,
		Rows:     raw.Rows,
		Cols:     raw.Cols,
		Depth:    raw.Depth,
		Mode:     mode,
	}
	f.big = h.IsBig()

	var warnings []Warning
	if !h.HasValidDimensions() {
		warnings = append(warnings, Warning{
			Offset:  14,
			Message: fmt.Sprintf("dimensions %dx%d exceed the %d pixel limit", h.Width(), h.Height(), h.MaxDimension()),
		})
	}
	return h, warnings, nil
}
