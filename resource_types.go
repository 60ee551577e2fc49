package psd

import (
	"fmt"
	"io"

	bst "github.com/mixcode/binarystruct"
)

// ResolutionUnit is the unit of a ResolutionInfo density.
type ResolutionUnit uint16

const (
	UnitPixelsPerInch ResolutionUnit = 1
	UnitPixelsPerCM   ResolutionUnit = 2
)

func (u ResolutionUnit) String() string {
	switch u {
	case UnitPixelsPerInch:
		return "pixels/inch"
	case UnitPixelsPerCM:
		return "pixels/cm"
	default:
		return fmt.Sprintf("unit(%d)", uint16(u))
	}
}

// ResolutionInfo is resource 0x03ED. Densities are stored as 16.16 fixed
// point numbers.
type ResolutionInfo struct {
	ResourceBlock
	HRes       float64
	HResUnit   ResolutionUnit
	WidthUnit  uint16
	VRes       float64
	VResUnit   ResolutionUnit
	HeightUnit uint16
}

type rawResolutionInfo struct {
	HRes       uint32
	HResUnit   uint16
	WidthUnit  uint16
	VRes       uint32
	VResUnit   uint16
	HeightUnit uint16
}

func decodeResolutionInfo(block ResourceBlock, f *File) (Resource, error) {
	var raw rawResolutionInfo
	if _, err := bst.Read(f, bst.BigEndian, &raw); err != nil {
		return nil, fmt.Errorf("failed to read resolution info: %w", err)
	}
	return &ResolutionInfo{
		ResourceBlock: block,
		HRes:          float64(raw.HRes) / 65536,
		HResUnit:      ResolutionUnit(raw.HResUnit),
		WidthUnit:     raw.WidthUnit,
		VRes:          float64(raw.VRes) / 65536,
		VResUnit:      ResolutionUnit(raw.VResUnit),
		HeightUnit:    raw.HeightUnit,
	}, nil
}

// AlphaChannelNames is resource 0x03EE: pascal names of the extra channels.
type AlphaChannelNames struct {
	ResourceBlock
	Names []string
}

func decodeAlphaChannelNames(block ResourceBlock, f *File) (Resource, error) {
	res := &AlphaChannelNames{ResourceBlock: block}
	for {
		left, err := f.Remaining()
		if err != nil {
			return nil, err
		}
		if left <= 0 {
			break
		}
		name, _, err := f.ReadPascalString(1)
		if err != nil {
			return nil, fmt.Errorf("failed to read alpha channel name %d: %w", len(res.Names), err)
		}
		res.Names = append(res.Names, name)
	}
	return res, nil
}

// UnicodeAlphaNames is resource 0x0415.
type UnicodeAlphaNames struct {
	ResourceBlock
	Names []string
}

func decodeUnicodeAlphaNames(block ResourceBlock, f *File) (Resource, error) {
	res := &UnicodeAlphaNames{ResourceBlock: block}
	for {
		left, err := f.Remaining()
		if err != nil {
			return nil, err
		}
		if left < 4 {
			break
		}
		name, err := f.ReadUnicodeString()
		if err != nil {
			return nil, fmt.Errorf("failed to read unicode alpha name %d: %w", len(res.Names), err)
		}
		res.Names = append(res.Names, name)
	}
	return res, nil
}

// ChannelDisplay describes how one extra channel is displayed.
type ChannelDisplay struct {
	ColorSpace int16
	Color      [4]uint16
	Opacity    int16 // 0..100
	Kind       uint8 // 0 selected, 1 protected, 2 spot
	Padding    uint8
}

// DisplayInfo is resource 0x03EF.
type DisplayInfo struct {
	ResourceBlock
	Channels []ChannelDisplay
}

const channelDisplaySize = 14

func decodeDisplayInfo(block ResourceBlock, f *File) (Resource, error) {
	res := &DisplayInfo{ResourceBlock: block}
	n := block.Length / channelDisplaySize
	for i := int64(0); i < n; i++ {
		var cd ChannelDisplay
		if _, err := bst.Read(f, bst.BigEndian, &cd); err != nil {
			return nil, fmt.Errorf("failed to read display info %d: %w", i, err)
		}
		if cd.Opacity < 0 || cd.Opacity > 100 {
			return nil, fmt.Errorf("display info %d: opacity %d out of range", i, cd.Opacity)
		}
		res.Channels = append(res.Channels, cd)
	}
	return res, nil
}

// PrintFlags is resource 0x03F3.
type PrintFlags struct {
	ResourceBlock
	Labels           bool
	CropMarks        bool
	ColorBars        bool
	RegistrationMark bool
	Negative         bool
	Flip             bool
	Interpolate      bool
	Caption          bool
	PrintFlags       bool
}

func decodePrintFlags(block ResourceBlock, f *File) (Resource, error) {
	res := &PrintFlags{ResourceBlock: block}
	flags := []*bool{
		&res.Labels, &res.CropMarks, &res.ColorBars, &res.RegistrationMark,
		&res.Negative, &res.Flip, &res.Interpolate, &res.Caption, &res.PrintFlags,
	}
	for i, flag := range flags {
		b, err := f.ReadByte()
		if err == io.ErrUnexpectedEOF && i >= 8 {
			// Older writers stop after the caption flag.
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read print flag %d: %w", i, err)
		}
		*flag = b != 0
	}
	return res, nil
}

// PrintFlagsInformation is resource 0x2710.
type PrintFlagsInformation struct {
	ResourceBlock
	Version         uint16
	CenterCropMarks bool
	BleedWidth      uint32
	BleedScale      uint16
}

func decodePrintFlagsInformation(block ResourceBlock, f *File) (Resource, error) {
	var raw struct {
		Version    uint16
		CropMarks  uint8
		Reserved   uint8
		BleedWidth uint32
		BleedScale uint16
	}
	if _, err := bst.Read(f, bst.BigEndian, &raw); err != nil {
		return nil, fmt.Errorf("failed to read print flags information: %w", err)
	}
	return &PrintFlagsInformation{
		ResourceBlock:   block,
		Version:         raw.Version,
		CenterCropMarks: raw.CropMarks != 0,
		BleedWidth:      raw.BleedWidth,
		BleedScale:      raw.BleedScale,
	}, nil
}

// VersionInfo is resource 0x0421.
type VersionInfo struct {
	ResourceBlock
	Version           uint32
	HasRealMergedData bool
	Writer            string
	Reader            string
	FileVersion       uint32
}

func decodeVersionInfo(block ResourceBlock, f *File) (Resource, error) {
	res := &VersionInfo{ResourceBlock: block}
	var err error
	if res.Version, err = f.ReadUint32(); err != nil {
		return nil, fmt.Errorf("failed to read version: %w", err)
	}
	merged, err := f.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("failed to read merged data flag: %w", err)
	}
	res.HasRealMergedData = merged != 0
	if res.Writer, err = f.ReadUnicodeString(); err != nil {
		return nil, fmt.Errorf("failed to read writer name: %w", err)
	}
	if res.Reader, err = f.ReadUnicodeString(); err != nil {
		return nil, fmt.Errorf("failed to read reader name: %w", err)
	}
	if res.FileVersion, err = f.ReadUint32(); err != nil {
		return nil, fmt.Errorf("failed to read file version: %w", err)
	}
	return res, nil
}

// Guide represents a guide in the PSD
type Guide struct {
	Position     int32 // 27.5 fixed point document coordinate
	IsHorizontal bool
}

// GridGuides is resource 0x0408.
type GridGuides struct {
	ResourceBlock
	Version    uint32
	GridCycleH uint32
	GridCycleV uint32
	Guides     []Guide
}

func decodeGridGuides(block ResourceBlock, f *File) (Resource, error) {
	var raw struct {
		Version uint32
		CycleH  uint32
		CycleV  uint32
		Count   uint32
	}
	if _, err := bst.Read(f, bst.BigEndian, &raw); err != nil {
		return nil, fmt.Errorf("failed to read grid info: %w", err)
	}
	if int64(raw.Count)*5 > f.Size()-16 {
		return nil, fmt.Errorf("guide count %d exceeds resource size", raw.Count)
	}
	res := &GridGuides{ResourceBlock: block, Version: raw.Version, GridCycleH: raw.CycleH, GridCycleV: raw.CycleV}
	res.Guides = make([]Guide, raw.Count)
	for i := range res.Guides {
		pos, err := f.ReadInt32()
		if err != nil {
			return nil, err
		}
		dir, err := f.ReadByte()
		if err != nil {
			return nil, err
		}
		res.Guides[i] = Guide{Position: pos, IsHorizontal: dir == 0}
	}
	return res, nil
}

// Rectangle represents a bounding box
type Rectangle struct {
	Top    int32
	Left   int32
	Bottom int32
	Right  int32
}

// Slice represents a slice in the PSD
type Slice struct {
	ID                int32
	GroupID           int32
	Origin            int32
	AssociatedLayerID int32
	Name              string
	Type              int32
	Bounds            Rectangle
	URL               string
	Target            string
	Message           string
	Alt               string
	CellTextIsHTML    bool
	CellText          string
	HorizontalAlign   int32
	VerticalAlign     int32
}

// Slices is resource 0x041A. Version 6 is a binary layout, versions 7 and 8
// wrap a descriptor.
type Slices struct {
	ResourceBlock
	Version int32
	Bounds  Rectangle
	Name    string
	Slices  []Slice
}

func decodeSlices(block ResourceBlock, f *File) (Resource, error) {
	res := &Slices{ResourceBlock: block}
	var err error
	if res.Version, err = f.ReadInt32(); err != nil {
		return nil, err
	}
	if res.Version != 6 {
		if _, err := f.ReadUint32(); err != nil { // descriptor version
			return nil, err
		}
		desc, err := parseDescriptor(f)
		if err != nil {
			return nil, fmt.Errorf("failed to parse slices descriptor: %w", err)
		}
		res.Bounds = desc.rect("bounds")
		res.Name = desc.str("baseName")
		for _, item := range desc.list("slices") {
			if d, ok := item.(Descriptor); ok {
				res.Slices = append(res.Slices, sliceFromDescriptor(d))
			}
		}
		return res, nil
	}

	if _, err := bst.Read(f, bst.BigEndian, &res.Bounds); err != nil {
		return nil, err
	}
	if res.Name, err = f.ReadUnicodeString(); err != nil {
		return nil, err
	}
	count, err := f.ReadUint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		s, err := readSliceV6(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read slice %d: %w", i, err)
		}
		res.Slices = append(res.Slices, s)
	}
	return res, nil
}

func readSliceV6(f *File) (Slice, error) {
	var s Slice
	var err error
	read := func(dst *int32) {
		if err == nil {
			*dst, err = f.ReadInt32()
		}
	}
	readStr := func(dst *string) {
		if err == nil {
			*dst, err = f.ReadUnicodeString()
		}
	}
	read(&s.ID)
	read(&s.GroupID)
	read(&s.Origin)
	if s.Origin == 1 {
		read(&s.AssociatedLayerID)
	}
	readStr(&s.Name)
	read(&s.Type)
	read(&s.Bounds.Left)
	read(&s.Bounds.Top)
	read(&s.Bounds.Right)
	read(&s.Bounds.Bottom)
	readStr(&s.URL)
	readStr(&s.Target)
	readStr(&s.Message)
	readStr(&s.Alt)
	if err == nil {
		var html byte
		html, err = f.ReadByte()
		s.CellTextIsHTML = html != 0
	}
	readStr(&s.CellText)
	read(&s.HorizontalAlign)
	read(&s.VerticalAlign)
	if err == nil {
		err = f.Skip(4) // ARGB color
	}
	return s, err
}

func sliceFromDescriptor(d Descriptor) Slice {
	return Slice{
		ID:              d.num("sliceID"),
		GroupID:         d.num("groupID"),
		Origin:          d.num("origin"),
		Type:            d.num("Type"),
		Bounds:          d.rect("bounds"),
		URL:             d.str("url"),
		Message:         d.str("Msge"),
		Alt:             d.str("altTag"),
		CellText:        d.str("cellText"),
		CellTextIsHTML:  d.flag("cellTextIsHTML"),
		HorizontalAlign: d.num("horzAlign"),
		VerticalAlign:   d.num("vertAlign"),
	}
}

// LayerComp represents a layer comp
type LayerComp struct {
	ID      int32
	Name    string
	Comment string
}

// LayerComps is resource 0x0429.
type LayerComps struct {
	ResourceBlock
	Comps []LayerComp
}

func decodeLayerComps(block ResourceBlock, f *File) (Resource, error) {
	version, err := f.ReadUint32()
	if err != nil {
		return nil, err
	}
	if version != 16 {
		return nil, fmt.Errorf("unsupported layer comps descriptor version %d", version)
	}
	desc, err := parseDescriptor(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse layer comps descriptor: %w", err)
	}
	res := &LayerComps{ResourceBlock: block}
	for _, item := range desc.list("list") {
		if d, ok := item.(Descriptor); ok {
			res.Comps = append(res.Comps, LayerComp{
				ID:      d.num("compID"),
				Name:    d.str("Nm  "),
				Comment: d.str("comment"),
			})
		}
	}
	return res, nil
}
