package psd

import (
	"bytes"
	"fmt"

	bst "github.com/mixcode/binarystruct"
)

const iccHeaderSize = 128

// ICCHeader is the fixed part of an ICC profile.
type ICCHeader struct {
	Size       uint32
	CMM        string
	Version    uint32
	Class      string // "mntr", "prtr", "scnr", ...
	ColorSpace string // "RGB ", "CMYK", "GRAY", ...
	PCS        string
}

// ICCProfile is resource 0x040F, the embedded color profile.
type ICCProfile struct {
	ResourceBlock
	Header ICCHeader
	Data   []byte
}

type rawICCHeader struct {
	Size       uint32
	CMM        [4]byte
	Version    uint32
	Class      [4]byte
	ColorSpace [4]byte
	PCS        [4]byte
	Created    [12]byte
	Magic      [4]byte
}

func decodeICCProfile(block ResourceBlock, f *File) (Resource, error) {
	data, err := f.ReadBytes(block.Length)
	if err != nil {
		return nil, fmt.Errorf("failed to read ICC profile: %w", err)
	}
	header, err := parseICCHeader(data)
	if err != nil {
		return nil, err
	}
	return &ICCProfile{ResourceBlock: block, Header: header, Data: data}, nil
}

func parseICCHeader(data []byte) (ICCHeader, error) {
	if len(data) < iccHeaderSize {
		return ICCHeader{}, fmt.Errorf("ICC profile too short: %d bytes", len(data))
	}
	var raw rawICCHeader
	if _, err := bst.Read(bytes.NewReader(data), bst.BigEndian, &raw); err != nil {
		return ICCHeader{}, err
	}
	if string(raw.Magic[:]) != "acsp" {
		return ICCHeader{}, fmt.Errorf("invalid ICC signature %q", raw.Magic[:])
	}
	return ICCHeader{
		Size:       raw.Size,
		CMM:        string(raw.CMM[:]),
		Version:    raw.Version,
		Class:      string(raw.Class[:]),
		ColorSpace: string(raw.ColorSpace[:]),
		PCS:        string(raw.PCS[:]),
	}, nil
}

// ColorModel maps the profile's data color space to a ColorModel.
func (h ICCHeader) ColorModel() ColorModel {
	switch h.ColorSpace {
	case "RGB ":
		return ModelRGB
	case "CMYK":
		return ModelCMYK
	case "GRAY":
		return ModelGray
	default:
		return ModelUnknown
	}
}
