package psd

import (
	"fmt"
)

// Metadata aggregates everything parsed ahead of the pixel data.
type Metadata struct {
	Header     *Header
	ColorData  *ColorData
	Resources  *ResourceSection
	Layers     []*LayerInfo
	LayerCount int16
	GlobalMask *GlobalLayerMask

	ResourcesStart int64
	LayersStart    int64
	ImageDataStart int64

	Warnings []Warning
}

// Metadata parses every section up to the image data. Resource decoder
// failures are reported in Warnings unless WithStrictResources was given.
func (p *PSD) Metadata() (*Metadata, error) {
	if err := p.Parse(); err != nil {
		return nil, err
	}
	return &Metadata{
		Header:         p.header,
		ColorData:      p.colorData,
		Resources:      p.resources,
		Layers:         p.layers.Layers,
		LayerCount:     p.layers.LayerCount,
		GlobalMask:     p.layers.GlobalMask,
		ResourcesStart: p.resourcesStart,
		LayersStart:    p.layersStart,
		ImageDataStart: p.imageDataStart,
		Warnings:       append([]Warning(nil), p.warnings...),
	}, nil
}

// Tree returns the layer tree structure
func (m *Metadata) Tree() *Node {
	return buildTree(m.Layers, m.Header.Width(), m.Header.Height())
}

// Tree parses the layers and returns their group hierarchy.
func (p *PSD) Tree() (*Node, error) {
	layers, err := p.Layers()
	if err != nil {
		return nil, err
	}
	return buildTree(layers, p.header.Width(), p.header.Height()), nil
}

// HasRealMergedData reports the flag of the version info resource. The
// composite is still exposed as image 0 when it is false.
func (m *Metadata) HasRealMergedData() bool {
	if m.Resources == nil {
		return true
	}
	if v, ok := m.Resources.Get(ResourceVersionInfo).(*VersionInfo); ok {
		return v.HasRealMergedData
	}
	return true
}

// Resolution returns the horizontal and vertical density in pixels per
// inch, or false when the document has no resolution info.
func (m *Metadata) Resolution() (float64, float64, bool) {
	if m.Resources == nil {
		return 0, 0, false
	}
	info, ok := m.Resources.Get(ResourceResolutionInfo).(*ResolutionInfo)
	if !ok {
		return 0, 0, false
	}
	h, v := info.HRes, info.VRes
	if info.HResUnit == UnitPixelsPerCM {
		h *= 2.54
	}
	if info.VResUnit == UnitPixelsPerCM {
		v *= 2.54
	}
	return h, v, true
}

// Summary flattens the metadata into maps and slices of plain values,
// suitable for JSON, YAML and plist encoders.
func (m *Metadata) Summary() map[string]interface{} {
	h := m.Header
	out := map[string]interface{}{
		"version":              int(h.Version),
		"mode":                 h.ModeName(),
		"width":                h.Width(),
		"height":               h.Height(),
		"depth":                int(h.Depth),
		"channels":             int(h.Channels),
		"layer_count":          len(m.Layers),
		"has_alpha":            m.LayerCount < 0,
		"has_real_merged_data": m.HasRealMergedData(),
		"offsets": map[string]interface{}{
			"resources":  m.ResourcesStart,
			"layers":     m.LayersStart,
			"image_data": m.ImageDataStart,
		},
	}
	if m.ColorData != nil {
		out["palette_size"] = m.ColorData.Len()
	}
	if hr, vr, ok := m.Resolution(); ok {
		out["resolution"] = map[string]interface{}{"horizontal": hr, "vertical": vr}
	}
	if m.GlobalMask != nil {
		out["global_mask"] = map[string]interface{}{
			"color_space": int(m.GlobalMask.ColorSpace),
			"opacity":     int(m.GlobalMask.Opacity),
			"kind":        int(m.GlobalMask.Kind),
		}
	}

	if m.Resources != nil {
		resources := make([]map[string]interface{}, 0, len(m.Resources.Resources))
		for _, res := range m.Resources.Resources {
			b := res.Block()
			entry := map[string]interface{}{
				"id":     fmt.Sprintf("0x%04X", b.ID),
				"type":   resourceTypeName(res),
				"length": b.Length,
			}
			if b.Name != "" {
				entry["name"] = b.Name
			}
			resources = append(resources, entry)
		}
		out["resources"] = resources
	}
	out["tree"] = m.Tree().ToMap()

	if len(m.Warnings) > 0 {
		warnings := make([]string, len(m.Warnings))
		for i, w := range m.Warnings {
			warnings[i] = w.String()
		}
		out["warnings"] = warnings
	}
	return out
}

func resourceTypeName(res Resource) string {
	switch res.(type) {
	case *ResolutionInfo:
		return "resolution_info"
	case *AlphaChannelNames:
		return "alpha_channel_names"
	case *UnicodeAlphaNames:
		return "unicode_alpha_names"
	case *DisplayInfo:
		return "display_info"
	case *PrintFlags:
		return "print_flags"
	case *PrintFlagsInformation:
		return "print_flags_information"
	case *IPTCData:
		return "iptc"
	case *GridGuides:
		return "grid_guides"
	case *Thumbnail:
		return "thumbnail"
	case *ICCProfile:
		return "icc_profile"
	case *Slices:
		return "slices"
	case *VersionInfo:
		return "version_info"
	case *EXIFData:
		return "exif"
	case *XMPData:
		return "xmp"
	case *LayerComps:
		return "layer_comps"
	default:
		return "raw"
	}
}
