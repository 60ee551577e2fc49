package psd

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// testDoc assembles a document section by section.
type testDoc struct {
	version   uint16
	channels  uint16
	width     uint32
	height    uint32
	depth     uint16
	mode      ColorMode
	colorData []byte
	resources []byte // image resource blocks
	layers    []byte // layer and mask section without its length field
	imageData []byte // compression tag onwards
}

func (d testDoc) bytes() []byte {
	version := d.version
	if version == 0 {
		version = VersionPSD
	}
	buf := new(bytes.Buffer)
	buf.WriteString(Signature)
	binary.Write(buf, binary.BigEndian, version)
	buf.Write(make([]byte, 6))
	binary.Write(buf, binary.BigEndian, d.channels)
	binary.Write(buf, binary.BigEndian, d.height)
	binary.Write(buf, binary.BigEndian, d.width)
	binary.Write(buf, binary.BigEndian, d.depth)
	binary.Write(buf, binary.BigEndian, uint16(d.mode))

	binary.Write(buf, binary.BigEndian, uint32(len(d.colorData)))
	buf.Write(d.colorData)
	binary.Write(buf, binary.BigEndian, uint32(len(d.resources)))
	buf.Write(d.resources)
	if version == VersionPSB {
		binary.Write(buf, binary.BigEndian, uint64(len(d.layers)))
	} else {
		binary.Write(buf, binary.BigEndian, uint32(len(d.layers)))
	}
	buf.Write(d.layers)
	buf.Write(d.imageData)
	return buf.Bytes()
}

func (d testDoc) open(t *testing.T, opts ...Option) *PSD {
	t.Helper()
	p, err := NewDecoder(bytes.NewReader(d.bytes()), opts...)
	require.NoError(t, err)
	return p
}

// rgbDoc is a raw 8-bit RGB document with the given planes.
func rgbDoc(width, height int, planes ...[]byte) testDoc {
	return testDoc{
		channels:  uint16(len(planes)),
		width:     uint32(width),
		height:    uint32(height),
		depth:     8,
		mode:      ColorModeRGBColor,
		imageData: rawImageData(planes...),
	}
}

func resourceBlock(id uint16, name string, data []byte) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString("8BIM")
	binary.Write(buf, binary.BigEndian, id)
	buf.Write(pascalString(name, 2))
	binary.Write(buf, binary.BigEndian, uint32(len(data)))
	buf.Write(data)
	if len(data)%2 == 1 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func pascalString(s string, align int) []byte {
	out := append([]byte{byte(len(s))}, s...)
	for len(out)%align != 0 {
		out = append(out, 0)
	}
	return out
}

func rawImageData(planes ...[]byte) []byte {
	out := []byte{0, 0}
	for _, p := range planes {
		out = append(out, p...)
	}
	return out
}

// rleImageData compresses every row of every plane with one shared byte
// count table, as the composite stores them.
func rleImageData(rowBytes int, big bool, planes ...[]byte) []byte {
	var counts, data []byte
	for _, p := range planes {
		for y := 0; y+rowBytes <= len(p); y += rowBytes {
			n := len(data)
			data = packBits(data, p[y:y+rowBytes])
			if big {
				counts = binary.BigEndian.AppendUint32(counts, uint32(len(data)-n))
			} else {
				counts = binary.BigEndian.AppendUint16(counts, uint16(len(data)-n))
			}
		}
	}
	out := []byte{0, 1}
	out = append(out, counts...)
	return append(out, data...)
}

type testChannel struct {
	id   int16
	data []byte // compression tag included
}

func rawChannel(id int16, data []byte) testChannel {
	return testChannel{id: id, data: append([]byte{0, 0}, data...)}
}

func rleChannel(id int16, rowBytes int, data []byte) testChannel {
	return testChannel{id: id, data: rleImageData(rowBytes, false, data)}
}

type testLayer struct {
	top, left, bottom, right int32

	channels []testChannel
	key      string
	opacity  uint8
	flags    uint8
	mask     []byte
	ranges   []byte
	name     string
	blocks   []byte // additional tagged blocks
}

func (l testLayer) record() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, []int32{l.top, l.left, l.bottom, l.right})
	binary.Write(buf, binary.BigEndian, uint16(len(l.channels)))
	for _, c := range l.channels {
		binary.Write(buf, binary.BigEndian, c.id)
		binary.Write(buf, binary.BigEndian, uint32(len(c.data)))
	}
	key := l.key
	if key == "" {
		key = "norm"
	}
	buf.WriteString("8BIM")
	buf.WriteString(key)
	buf.Write([]byte{l.opacity, 0, l.flags, 0})

	extra := new(bytes.Buffer)
	binary.Write(extra, binary.BigEndian, uint32(len(l.mask)))
	extra.Write(l.mask)
	binary.Write(extra, binary.BigEndian, uint32(len(l.ranges)))
	extra.Write(l.ranges)
	extra.Write(pascalString(l.name, 4))
	extra.Write(l.blocks)

	binary.Write(buf, binary.BigEndian, uint32(extra.Len()))
	buf.Write(extra.Bytes())
	return buf.Bytes()
}

// layerSection builds the body of a layer and mask section holding the
// given records and their channel data.
func layerSection(count int16, layers []testLayer, globalMask []byte) []byte {
	info := new(bytes.Buffer)
	binary.Write(info, binary.BigEndian, count)
	for _, l := range layers {
		info.Write(l.record())
	}
	for _, l := range layers {
		for _, c := range l.channels {
			info.Write(c.data)
		}
	}

	body := new(bytes.Buffer)
	binary.Write(body, binary.BigEndian, uint32(info.Len()))
	body.Write(info.Bytes())
	binary.Write(body, binary.BigEndian, uint32(len(globalMask)))
	body.Write(globalMask)
	return body.Bytes()
}

func taggedBlock(key string, data []byte) []byte {
	out := append([]byte("8BIM"), key...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(data)))
	out = append(out, data...)
	return append(out, make([]byte, (4-len(data)%4)%4)...)
}

func unicodeBytes(s string) []byte {
	buf := new(bytes.Buffer)
	runes := []rune(s)
	binary.Write(buf, binary.BigEndian, uint32(len(runes)))
	for _, r := range runes {
		binary.Write(buf, binary.BigEndian, uint16(r))
	}
	return buf.Bytes()
}

func sequence(n int, start byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = start + byte(i)
	}
	return out
}
