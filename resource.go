package psd

import (
	"fmt"

	"go.uber.org/zap"
)

// Image resource IDs with dedicated decoders.
const (
	ResourceResolutionInfo        uint16 = 0x03ED
	ResourceAlphaChannelNames     uint16 = 0x03EE
	ResourceDisplayInfo           uint16 = 0x03EF
	ResourcePrintFlags            uint16 = 0x03F3
	ResourceIPTC                  uint16 = 0x0404
	ResourceGridGuides            uint16 = 0x0408
	ResourceThumbnailPS4          uint16 = 0x0409
	ResourceThumbnail             uint16 = 0x040C
	ResourceICCProfile            uint16 = 0x040F
	ResourceUnicodeAlphaNames     uint16 = 0x0415
	ResourceSlices                uint16 = 0x041A
	ResourceVersionInfo           uint16 = 0x0421
	ResourceEXIF1                 uint16 = 0x0422
	ResourceXMP                   uint16 = 0x0424
	ResourceLayerComps            uint16 = 0x0429
	ResourcePrintFlagsInformation uint16 = 0x2710
)

// Resource block signatures. Framing depends on them, so anything else is
// a format error.
var resourceSignatures = map[string]bool{
	"8BIM": true,
	"MeSa": true,
	"AgHg": true,
	"PHUT": true,
	"DCSR": true,
}

// Resource is one decoded image resource block. Every variant embeds
// ResourceBlock.
type Resource interface {
	Block() *ResourceBlock
}

// ResourceBlock carries the framing shared by every resource.
type ResourceBlock struct {
	Signature string
	ID        uint16
	Name      string
	Offset    int64 // payload position
	Length    int64 // declared payload length
}

// Block returns the framing of the resource.
func (b *ResourceBlock) Block() *ResourceBlock {
	return b
}

// RawResource is kept for unknown IDs and for blocks whose decoder failed.
type RawResource struct {
	ResourceBlock
	Data []byte
}

// ResourceDecoder decodes one payload. f is bounded to the declared
// payload length and positioned at its start.
type ResourceDecoder func(block ResourceBlock, f *File) (Resource, error)

func defaultResourceDecoders() map[uint16]ResourceDecoder {
	return map[uint16]ResourceDecoder{
		ResourceResolutionInfo:        decodeResolutionInfo,
		ResourceAlphaChannelNames:     decodeAlphaChannelNames,
		ResourceDisplayInfo:           decodeDisplayInfo,
		ResourcePrintFlags:            decodePrintFlags,
		ResourceIPTC:                  decodeIPTC,
		ResourceGridGuides:            decodeGridGuides,
		ResourceThumbnailPS4:          decodeThumbnail,
		ResourceThumbnail:             decodeThumbnail,
		ResourceICCProfile:            decodeICCProfile,
		ResourceUnicodeAlphaNames:     decodeUnicodeAlphaNames,
		ResourceSlices:                decodeSlices,
		ResourceVersionInfo:           decodeVersionInfo,
		ResourceEXIF1:                 decodeEXIF,
		ResourceXMP:                   decodeXMP,
		ResourceLayerComps:            decodeLayerComps,
		ResourcePrintFlagsInformation: decodePrintFlagsInformation,
	}
}

// ResourceSection represents the image resources section
type ResourceSection struct {
	Resources []Resource
	Start     int64 // offset of the section length field
	End       int64
}

// Get returns the first resource with the given ID, or nil.
func (r *ResourceSection) Get(id uint16) Resource {
	for _, res := range r.Resources {
		if res.Block().ID == id {
			return res
		}
	}
	return nil
}

// All returns every resource with the given ID in file order.
func (r *ResourceSection) All(id uint16) []Resource {
	var out []Resource
	for _, res := range r.Resources {
		if res.Block().ID == id {
			out = append(out, res)
		}
	}
	return out
}

type resourceParser struct {
	f        *File
	decoders map[uint16]ResourceDecoder
	strict   bool
	log      *zap.Logger
	warnings []Warning
}

// parse reads the section at the current position. Decoder failures are
// fatal in strict mode and warnings otherwise.
func (p *resourceParser) parse() (*ResourceSection, error) {
	start, err := p.f.Tell()
	if err != nil {
		return nil, err
	}
	length, err := p.f.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("failed to read resources length: %w", err)
	}

	section := &ResourceSection{Start: start, End: start + 4 + int64(length)}
	for {
		pos, err := p.f.Tell()
		if err != nil {
			return nil, err
		}
		if pos >= section.End {
			break
		}
		res, err := p.parseResource(pos)
		if err != nil {
			return nil, err
		}
		section.Resources = append(section.Resources, res)
	}

	pos, err := p.f.Tell()
	if err != nil {
		return nil, err
	}
	if pos != section.End {
		return nil, formatErrorf(pos, "corrupt document: image resources end at %d, expected %d", pos, section.End)
	}
	return section, nil
}

func (p *resourceParser) parseResource(pos int64) (Resource, error) {
	sig, err := p.f.ReadString(4)
	if err != nil {
		return nil, fmt.Errorf("failed to read resource signature: %w", err)
	}
	if !resourceSignatures[sig] {
		return nil, formatErrorf(pos, "unrecognized image resource signature %q (% x)", sig, []byte(sig))
	}

	id, err := p.f.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("failed to read resource id: %w", err)
	}
	name, _, err := p.f.ReadPascalString(2)
	if err != nil {
		return nil, fmt.Errorf("failed to read name of resource 0x%04X: %w", id, err)
	}
	size, err := p.f.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("failed to read size of resource 0x%04X: %w", id, err)
	}
	dataStart, err := p.f.Tell()
	if err != nil {
		return nil, err
	}

	if int64(size) > p.f.Size()-dataStart {
		return nil, formatErrorf(dataStart, "resource 0x%04X declares %d bytes, only %d remain", id, size, p.f.Size()-dataStart)
	}

	block := ResourceBlock{Signature: sig, ID: id, Name: name, Offset: dataStart, Length: int64(size)}
	res, err := p.decode(block)
	if err != nil {
		if p.strict {
			return nil, fmt.Errorf("failed to decode resource 0x%04X: %w", id, err)
		}
		p.warnings = append(p.warnings, Warning{
			Offset:     dataStart,
			ResourceID: id,
			Message:    "failed to decode resource, keeping raw bytes",
			Err:        err,
		})
		p.log.Warn("resource decode failed", zap.Uint16("id", id), zap.Int64("offset", dataStart), zap.Error(err))
		if res, err = p.raw(block); err != nil {
			return nil, err
		}
	}

	end := dataStart + int64(size)
	if size%2 != 0 {
		end++
	}
	if err := p.f.SeekTo(end); err != nil {
		return nil, fmt.Errorf("failed to seek past resource 0x%04X: %w", id, err)
	}
	return res, nil
}

func (p *resourceParser) decode(block ResourceBlock) (Resource, error) {
	sub, err := p.f.Section(block.Length)
	if err != nil {
		return nil, err
	}
	dec, ok := p.decoders[block.ID]
	if !ok {
		return decodeRaw(block, sub)
	}
	return dec(block, sub)
}

func (p *resourceParser) raw(block ResourceBlock) (Resource, error) {
	sub, err := p.f.Section(block.Length)
	if err != nil {
		return nil, err
	}
	return decodeRaw(block, sub)
}

func decodeRaw(block ResourceBlock, f *File) (Resource, error) {
	data, err := f.ReadBytes(block.Length)
	if err != nil {
		return nil, err
	}
	return &RawResource{ResourceBlock: block, Data: data}, nil
}
