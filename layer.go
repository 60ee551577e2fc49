package psd

import (
	"fmt"
	"image"
	"strings"

	bst "github.com/mixcode/binarystruct"
)

// Channel ids with special meaning. Non-negative ids are color channels in
// mode order.
const (
	ChannelTransparency = -1
	ChannelUserMask     = -2
	ChannelRealUserMask = -3
)

// Clipping values of the blend mode record.
const (
	ClippingBase    = 0
	ClippingNonBase = 1
)

// Layer flag bits.
const (
	LayerFlagTransparencyProtected = 1 << 0
	LayerFlagHidden                = 1 << 1
	LayerFlagObsolete              = 1 << 2
	LayerFlagHasPixelInfo          = 1 << 3
	LayerFlagPixelDataIrrelevant   = 1 << 4
)

// ChannelInfo locates one channel's compressed data inside the layer data
// block. Length includes the 2-byte compression tag.
type ChannelInfo struct {
	ID     int16
	Length int64
}

// LayerBlendMode is the fixed 12-byte blend mode record.
type LayerBlendMode struct {
	Key      string
	Opacity  uint8
	Clipping uint8
	Flags    uint8
}

var blendModeNames = map[string]string{
	"pass": "pass_through",
	"norm": "normal",
	"diss": "dissolve",
	"dark": "darken",
	"mul ": "multiply",
	"idiv": "color_burn",
	"lbrn": "linear_burn",
	"dkCl": "darker_color",
	"lite": "lighten",
	"scrn": "screen",
	"div ": "color_dodge",
	"lddg": "linear_dodge",
	"lgCl": "lighter_color",
	"over": "overlay",
	"sLit": "soft_light",
	"hLit": "hard_light",
	"vLit": "vivid_light",
	"lLit": "linear_light",
	"pLit": "pin_light",
	"hMix": "hard_mix",
	"diff": "difference",
	"smud": "exclusion",
	"fsub": "subtract",
	"fdiv": "divide",
	"hue ": "hue",
	"sat ": "saturation",
	"colr": "color",
	"lum ": "luminosity",
}

// ModeName returns a readable name for the blend mode key.
func (b LayerBlendMode) ModeName() string {
	if name, ok := blendModeNames[b.Key]; ok {
		return name
	}
	return strings.TrimSpace(b.Key)
}

// Visible reports whether the hidden flag is clear.
func (b LayerBlendMode) Visible() bool {
	return b.Flags&LayerFlagHidden == 0
}

// ChannelRange is one entry of the blending ranges table.
type ChannelRange struct {
	Name     string
	SrcBlack uint16
	SrcWhite uint16
	DstBlack uint16
	DstWhite uint16
}

// LayerInfo is a parsed layer record.
type LayerInfo struct {
	// Index is the image index of the layer: 1 for the first record.
	Index int

	Top, Left, Bottom, Right int32

	Channels    []ChannelInfo
	BlendMode   LayerBlendMode
	Mask        *LayerMaskData
	Ranges      []ChannelRange
	Name        string
	LayerID     int32
	FillOpacity uint8
	Divider     *SectionDividerInfo
	VectorMask  *VectorMaskInfo

	// Additional holds the raw tagged blocks found after the name, keyed
	// by their 4-character key.
	Additional map[string][]byte

	// Offset is where the record starts in the file.
	Offset int64
}

// Width returns the width of the layer
func (l *LayerInfo) Width() int {
	return int(l.Right) - int(l.Left)
}

// Height returns the height of the layer
func (l *LayerInfo) Height() int {
	return int(l.Bottom) - int(l.Top)
}

// Bounds returns the layer rectangle in document coordinates.
func (l *LayerInfo) Bounds() image.Rectangle {
	return image.Rect(int(l.Left), int(l.Top), int(l.Right), int(l.Bottom))
}

// IsEmpty reports whether the layer has no pixels.
func (l *LayerInfo) IsEmpty() bool {
	return l.Width() <= 0 || l.Height() <= 0
}

// Visible returns whether the layer is visible
func (l *LayerInfo) Visible() bool {
	return l.BlendMode.Visible()
}

// HasTransparency reports whether the layer stores a transparency channel.
func (l *LayerInfo) HasTransparency() bool {
	return l.channelIndex(ChannelTransparency) >= 0
}

// DataLength is the size of the layer's block of channel image data.
func (l *LayerInfo) DataLength() int64 {
	var n int64
	for _, c := range l.Channels {
		n += c.Length
	}
	return n
}

func (l *LayerInfo) channelIndex(id int16) int {
	for i, c := range l.Channels {
		if c.ID == id {
			return i
		}
	}
	return -1
}

type rawLayerRecord struct {
	Top      int32
	Left     int32
	Bottom   int32
	Right    int32
	Channels uint16
}

type rawBlendRecord struct {
	Signature [4]byte
	Key       [4]byte
	Opacity   uint8
	Clipping  uint8
	Flags     uint8
	Filler    uint8
}

// parseLayerRecord reads one layer record and leaves f at the next one.
func parseLayerRecord(f *File, index int) (*LayerInfo, error) {
	start, err := f.Tell()
	if err != nil {
		return nil, err
	}

	var rec rawLayerRecord
	if _, err := bst.Read(f, bst.BigEndian, &rec); err != nil {
		return nil, fmt.Errorf("failed to read layer rectangle: %w", err)
	}
	l := &LayerInfo{
		Index:       index,
		Offset:      start,
		Top:         rec.Top,
		Left:        rec.Left,
		Bottom:      rec.Bottom,
		Right:       rec.Right,
		FillOpacity: 255,
	}

	l.Channels = make([]ChannelInfo, rec.Channels)
	for i := range l.Channels {
		id, err := f.ReadInt16()
		if err != nil {
			return nil, fmt.Errorf("failed to read channel %d id: %w", i, err)
		}
		length, err := f.ReadLength()
		if err != nil {
			return nil, fmt.Errorf("failed to read channel %d length: %w", i, err)
		}
		l.Channels[i] = ChannelInfo{ID: id, Length: length}
	}

	blendPos, _ := f.Tell()
	var blend rawBlendRecord
	if _, err := bst.Read(f, bst.BigEndian, &blend); err != nil {
		return nil, fmt.Errorf("failed to read blend mode record: %w", err)
	}
	if string(blend.Signature[:]) != "8BIM" {
		return nil, formatErrorf(blendPos, "invalid blend mode signature %q", blend.Signature[:])
	}
	l.BlendMode = LayerBlendMode{
		Key:      string(blend.Key[:]),
		Opacity:  blend.Opacity,
		Clipping: blend.Clipping,
		Flags:    blend.Flags,
	}

	if err := l.parseExtraData(f); err != nil {
		return nil, err
	}
	return l, nil
}

// parseExtraData reads the mask, blending ranges and name, then consumes
// the rest of the extra data region as tagged blocks.
func (l *LayerInfo) parseExtraData(f *File) error {
	extraSize, err := f.ReadUint32()
	if err != nil {
		return fmt.Errorf("failed to read extra data size: %w", err)
	}
	extraStart, err := f.Tell()
	if err != nil {
		return err
	}

	maskSize, err := f.ReadUint32()
	if err != nil {
		return fmt.Errorf("failed to read mask data size: %w", err)
	}
	switch maskSize {
	case 0:
	case 20, 36:
		sub, err := f.Section(int64(maskSize))
		if err != nil {
			return fmt.Errorf("failed to read mask data: %w", err)
		}
		if l.Mask, err = parseLayerMaskData(sub, int(maskSize)); err != nil {
			return err
		}
		if err := f.Skip(int64(maskSize)); err != nil {
			return err
		}
	default:
		return formatErrorf(extraStart, "invalid layer mask data size %d", maskSize)
	}

	rangesPos, _ := f.Tell()
	rangesSize, err := f.ReadUint32()
	if err != nil {
		return fmt.Errorf("failed to read blending ranges size: %w", err)
	}
	if rangesSize%8 != 0 {
		return formatErrorf(rangesPos, "blending ranges size %d is not a multiple of 8", rangesSize)
	}
	l.Ranges = make([]ChannelRange, rangesSize/8)
	for i := range l.Ranges {
		var r [4]uint16
		for j := range r {
			if r[j], err = f.ReadUint16(); err != nil {
				return fmt.Errorf("failed to read blending range %d: %w", i, err)
			}
		}
		name := "Gray"
		if i > 0 {
			name = fmt.Sprintf("Channel %d", i-1)
		}
		l.Ranges[i] = ChannelRange{Name: name, SrcBlack: r[0], SrcWhite: r[1], DstBlack: r[2], DstWhite: r[3]}
	}

	name, nameSize, err := f.ReadPascalString(4)
	if err != nil {
		return fmt.Errorf("failed to read layer name: %w", err)
	}
	l.Name = name

	remainder, err := extraDataRemainder(extraSize, maskSize, rangesSize, nameSize)
	if err != nil {
		return err
	}
	end := extraStart + int64(extraSize)
	if remainder > 0 {
		sub, err := f.Section(remainder)
		if err != nil {
			return fmt.Errorf("failed to read additional layer information: %w", err)
		}
		base, _ := f.Tell()
		if err := l.parseAdditional(sub, base); err != nil {
			return err
		}
	}
	return f.SeekTo(end)
}

// extraDataRemainder returns the bytes of a layer's extra data region left
// after the mask record, the blending ranges and the padded name. Each of
// the two size fields accounts for 4 bytes.
func extraDataRemainder(extraSize, maskSize, rangesSize uint32, nameSize int) (int64, error) {
	skip := int64(extraSize) - int64(maskSize) - 4 - int64(rangesSize) - 4 - int64(nameSize)
	if skip < 0 {
		return 0, formatErrorf(-1, "layer extra data size %d too small for mask %d, ranges %d and name %d",
			extraSize, maskSize, rangesSize, nameSize)
	}
	return skip, nil
}
