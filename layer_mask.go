package psd

import (
	"fmt"

	bst "github.com/mixcode/binarystruct"
)

// Global layer mask kinds.
const (
	GlobalMaskSelected  = 0
	GlobalMaskProtected = 1
	GlobalMaskPerLayer  = 128
)

const globalMaskRecordSize = 13

// GlobalLayerMask is the optional overlay record that follows the layer
// records. A nil *GlobalLayerMask means the document has none.
type GlobalLayerMask struct {
	ColorSpace uint16
	Colors     [4]uint16
	Opacity    uint16 // 0..100
	Kind       uint8
}

// LayerMaskSection is the parsed layer and mask information section.
type LayerMaskSection struct {
	Layers []*LayerInfo

	// LayerCount is the signed count as stored. A negative value means the
	// first extra channel of the composite holds its transparency.
	LayerCount int16
	GlobalMask *GlobalLayerMask

	// Start is the offset of the section length field.
	Start  int64
	Length int64

	// LayersDataStart is where the channel image data of the first layer
	// begins.
	LayersDataStart int64
	ImageDataStart  int64

	dataOffsets []int64
}

// HasAlpha reports whether the composite carries a merged transparency
// channel.
func (s *LayerMaskSection) HasAlpha() bool {
	return s.LayerCount < 0
}

// layerDataOffset returns the offset of the channel data of layers[i].
func (s *LayerMaskSection) layerDataOffset(i int) int64 {
	return s.dataOffsets[i]
}

func parseLayerMaskSection(f *File) (*LayerMaskSection, error) {
	start, err := f.Tell()
	if err != nil {
		return nil, err
	}
	length, err := f.ReadLength()
	if err != nil {
		return nil, fmt.Errorf("failed to read layer and mask section length: %w", err)
	}
	s := &LayerMaskSection{
		Start:          start,
		Length:         length,
		ImageDataStart: start + f.lengthSize() + length,
	}
	if length == 0 {
		return s, nil
	}
	if s.ImageDataStart > f.Size() {
		return nil, formatErrorf(start, "layer and mask section length %d exceeds file size", length)
	}

	if err := s.parseLayers(f); err != nil {
		return nil, err
	}
	if err := s.parseGlobalMask(f); err != nil {
		return nil, err
	}

	// Additional layer information at the end of the section is skipped.
	if err := f.SeekTo(s.ImageDataStart); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LayerMaskSection) parseLayers(f *File) error {
	pos, _ := f.Tell()
	infoLength, err := f.ReadLength()
	if err != nil {
		return fmt.Errorf("failed to read layer info length: %w", err)
	}
	infoStart, _ := f.Tell()
	infoEnd := infoStart + infoLength
	if infoEnd > s.ImageDataStart {
		return formatErrorf(pos, "layer info length %d overruns the layer and mask section", infoLength)
	}
	if infoLength == 0 {
		return nil
	}

	if s.LayerCount, err = f.ReadInt16(); err != nil {
		return fmt.Errorf("failed to read layer count: %w", err)
	}
	count := int(s.LayerCount)
	if count < 0 {
		count = -count
	}

	s.Layers = make([]*LayerInfo, count)
	for i := range s.Layers {
		layer, err := parseLayerRecord(f, i+1)
		if err != nil {
			return fmt.Errorf("failed to parse layer %d: %w", i+1, err)
		}
		s.Layers[i] = layer
	}

	if s.LayersDataStart, err = f.Tell(); err != nil {
		return err
	}
	s.dataOffsets = make([]int64, count)
	off := s.LayersDataStart
	for i, layer := range s.Layers {
		s.dataOffsets[i] = off
		off += layer.DataLength()
	}
	if off > infoEnd {
		return formatErrorf(s.LayersDataStart, "layer channel data (%d bytes) overruns layer info end at %d", off-s.LayersDataStart, infoEnd)
	}
	return f.SeekTo(infoEnd)
}

func (s *LayerMaskSection) parseGlobalMask(f *File) error {
	pos, err := f.Tell()
	if err != nil {
		return err
	}
	if s.ImageDataStart-pos < 4 {
		return nil
	}
	length, err := f.ReadUint32()
	if err != nil {
		return fmt.Errorf("failed to read global layer mask length: %w", err)
	}
	if length == 0 {
		return nil
	}
	if length < globalMaskRecordSize || pos+4+int64(length) > s.ImageDataStart {
		return formatErrorf(pos, "invalid global layer mask length %d", length)
	}
	sub, err := f.Section(int64(length))
	if err != nil {
		return err
	}
	var m GlobalLayerMask
	if _, err := bst.Read(sub, bst.BigEndian, &m); err != nil {
		return fmt.Errorf("failed to read global layer mask: %w", err)
	}
	s.GlobalMask = &m
	return f.Skip(int64(length))
}
