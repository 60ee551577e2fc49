package psd

import (
	"bytes"
	"fmt"
)

// Additional layer information keys decoded into LayerInfo fields.
const (
	LayerInfoUnicodeName     = "luni"
	LayerInfoLayerID         = "lyid"
	LayerInfoFillOpacity     = "iOpa"
	LayerInfoSectionDivider  = "lsct"
	LayerInfoSectionDivider2 = "lsdk"
	LayerInfoVectorMask      = "vmsk"
	LayerInfoVectorMask2     = "vsms"
)

// Keys whose block length is 8 bytes wide in PSB documents.
var bigLengthKeys = map[string]bool{
	"LMsk": true, "Lr16": true, "Lr32": true, "Layr": true,
	"Mt16": true, "Mt32": true, "Mtrn": true, "Alph": true,
	"FMsk": true, "lnk2": true, "FEid": true, "FXid": true,
	"PxSD": true,
}

// parseAdditional walks the tagged blocks in f. base is the absolute file
// offset of f's first byte, used for error offsets. Blocks with an unknown
// signature end the walk; the caller always re-seeks past the region.
func (l *LayerInfo) parseAdditional(f *File, base int64) error {
	for {
		pos, err := f.Tell()
		if err != nil {
			return err
		}
		if f.Size()-pos < 12 {
			return nil
		}
		sig, err := f.ReadString(4)
		if err != nil {
			return err
		}
		if sig != "8BIM" && sig != "8B64" {
			return nil
		}
		key, err := f.ReadString(4)
		if err != nil {
			return err
		}
		var length int64
		if f.big && bigLengthKeys[key] {
			length, err = f.ReadLength()
		} else {
			var n uint32
			n, err = f.ReadUint32()
			length = int64(n)
		}
		if err != nil {
			return err
		}
		data, err := f.ReadBytes(length)
		if err != nil {
			// Truncated trailing block; keep what was decoded so far.
			return nil
		}
		if l.Additional == nil {
			l.Additional = make(map[string][]byte)
		}
		l.Additional[key] = data

		if err := l.decodeAdditional(key, data, base+pos); err != nil {
			return err
		}

		if pad := length % 4; pad != 0 {
			if remaining, _ := f.Remaining(); remaining < 4-pad {
				return nil
			}
			if err := f.Skip(4 - pad); err != nil {
				return err
			}
		}
	}
}

func (l *LayerInfo) decodeAdditional(key string, data []byte, offset int64) error {
	switch key {
	case LayerInfoUnicodeName:
		name, err := parseUnicodeName(data)
		if err != nil {
			return fmt.Errorf("failed to read unicode layer name: %w", err)
		}
		if name != "" {
			l.Name = name
		}
	case LayerInfoLayerID:
		if len(data) != 4 {
			return formatErrorf(offset, "layer id block has length %d, expected 4", len(data))
		}
		l.LayerID = int32(uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3]))
	case LayerInfoFillOpacity:
		if len(data) > 0 {
			l.FillOpacity = data[0]
		}
	case LayerInfoSectionDivider, LayerInfoSectionDivider2:
		// lsct wins when both are present.
		if l.Divider == nil || key == LayerInfoSectionDivider {
			l.Divider = parseSectionDivider(data)
		}
	case LayerInfoVectorMask, LayerInfoVectorMask2:
		l.VectorMask = parseVectorMask(data)
	}
	return nil
}

func bytesFile(data []byte) *File {
	f, _ := newFile(bytes.NewReader(data))
	return f
}

func parseUnicodeName(data []byte) (string, error) {
	return bytesFile(data).ReadUnicodeString()
}

// SectionDividerType represents layer section divider types
type SectionDividerType int32

const (
	SectionDividerOther         SectionDividerType = 0
	SectionDividerOpenFolder    SectionDividerType = 1
	SectionDividerClosedFolder  SectionDividerType = 2
	SectionDividerBoundingStart SectionDividerType = 3 // Folder end marker
)

// SectionDividerInfo contains section divider information
type SectionDividerInfo struct {
	Type      SectionDividerType
	BlendMode string
	SubType   int32
}

func parseSectionDivider(data []byte) *SectionDividerInfo {
	f := bytesFile(data)
	info := &SectionDividerInfo{}

	t, err := f.ReadInt32()
	if err != nil {
		return info
	}
	info.Type = SectionDividerType(t)

	if len(data) >= 12 {
		if sig, _ := f.ReadString(4); sig == "8BIM" {
			info.BlendMode, _ = f.ReadString(4)
		}
	}
	if len(data) >= 16 {
		info.SubType, _ = f.ReadInt32()
	}
	return info
}

// VectorMaskInfo contains vector mask information
type VectorMaskInfo struct {
	Version  uint32
	Flags    uint32
	PathData []byte
}

// Inverted reports whether the vector mask is inverted.
func (v *VectorMaskInfo) Inverted() bool {
	return v.Flags&0x01 != 0
}

func parseVectorMask(data []byte) *VectorMaskInfo {
	info := &VectorMaskInfo{}
	if len(data) < 8 {
		return info
	}
	f := bytesFile(data)
	info.Version, _ = f.ReadUint32()
	info.Flags, _ = f.ReadUint32()
	info.PathData = data[8:]
	return info
}

// IsGroup reports whether the layer opens a group.
func (l *LayerInfo) IsGroup() bool {
	return l.Divider != nil &&
		(l.Divider.Type == SectionDividerOpenFolder || l.Divider.Type == SectionDividerClosedFolder)
}

// IsGroupEnd reports whether the layer is the hidden marker closing a group.
func (l *LayerInfo) IsGroupEnd() bool {
	return l.Divider != nil && l.Divider.Type == SectionDividerBoundingStart
}

// IsFolderOpen checks if this is an open folder
func (l *LayerInfo) IsFolderOpen() bool {
	return l.Divider != nil && l.Divider.Type == SectionDividerOpenFolder
}

// String returns a string representation of SectionDividerType
func (s SectionDividerType) String() string {
	switch s {
	case SectionDividerOther:
		return "other"
	case SectionDividerOpenFolder:
		return "open folder"
	case SectionDividerClosedFolder:
		return "closed folder"
	case SectionDividerBoundingStart:
		return "bounding section divider"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}
