package psd

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/bep/imagemeta"
)

// EXIFData is resource 0x0422: a TIFF structure holding EXIF tags.
type EXIFData struct {
	ResourceBlock
	ByteOrder binary.ByteOrder
	Tags      map[string]interface{}
	Data      []byte
}

// Tag returns a decoded tag value by name, such as "Software".
func (e *EXIFData) Tag(name string) (interface{}, bool) {
	v, ok := e.Tags[name]
	return v, ok
}

func decodeEXIF(block ResourceBlock, f *File) (Resource, error) {
	data, err := f.ReadBytes(block.Length)
	if err != nil {
		return nil, fmt.Errorf("failed to read EXIF data: %w", err)
	}
	order, err := tiffByteOrder(data)
	if err != nil {
		return nil, err
	}

	res := &EXIFData{ResourceBlock: block, ByteOrder: order, Data: data, Tags: map[string]interface{}{}}
	_, err = imagemeta.Decode(imagemeta.Options{
		R:           bytes.NewReader(data),
		ImageFormat: imagemeta.TIFF,
		Sources:     imagemeta.EXIF,
		HandleTag: func(ti imagemeta.TagInfo) error {
			res.Tags[ti.Tag] = ti.Value
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF tags: %w", err)
	}
	return res, nil
}

// tiffByteOrder validates the 8-byte TIFF header and returns its byte order.
func tiffByteOrder(data []byte) (binary.ByteOrder, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("EXIF data too short: %d bytes", len(data))
	}
	var order binary.ByteOrder
	switch string(data[:2]) {
	case "MM":
		order = binary.BigEndian
	case "II":
		order = binary.LittleEndian
	default:
		return nil, fmt.Errorf("invalid TIFF byte order %q", data[:2])
	}
	if magic := order.Uint16(data[2:]); magic != 42 {
		return nil, fmt.Errorf("invalid TIFF magic %d", magic)
	}
	if offset := order.Uint32(data[4:]); offset < 8 || int(offset) >= len(data) {
		return nil, fmt.Errorf("invalid TIFF IFD offset %d", offset)
	}
	return order, nil
}
