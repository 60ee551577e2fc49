package psd

import (
	"encoding/binary"
	"fmt"
)

// IPTCRecord is one IIM dataset.
type IPTCRecord struct {
	Record  uint8
	Dataset uint8
	Value   []byte
}

// Common IIM application record datasets (record 2).
const (
	IPTCObjectName    = 5
	IPTCKeywords      = 25
	IPTCByline        = 80
	IPTCCity          = 90
	IPTCHeadline      = 105
	IPTCCredit        = 110
	IPTCCopyright     = 116
	IPTCCaption       = 120
	iptcTagMarker     = 0x1C
	iptcApplicationID = 2
)

// IPTCData is resource 0x0404.
type IPTCData struct {
	ResourceBlock
	Records []IPTCRecord
	Data    []byte
}

// Strings returns every application record value for a dataset.
func (d *IPTCData) Strings(dataset uint8) []string {
	var out []string
	for _, r := range d.Records {
		if r.Record == iptcApplicationID && r.Dataset == dataset {
			out = append(out, string(r.Value))
		}
	}
	return out
}

func decodeIPTC(block ResourceBlock, f *File) (Resource, error) {
	data, err := f.ReadBytes(block.Length)
	if err != nil {
		return nil, fmt.Errorf("failed to read IPTC data: %w", err)
	}
	res := &IPTCData{ResourceBlock: block, Data: data}

	for pos := 0; pos < len(data); {
		if data[pos] == 0 {
			// Trailing padding.
			break
		}
		if data[pos] != iptcTagMarker {
			return nil, fmt.Errorf("invalid IPTC tag marker 0x%02x at %d", data[pos], pos)
		}
		if pos+5 > len(data) {
			return nil, fmt.Errorf("truncated IPTC dataset header at %d", pos)
		}
		rec := IPTCRecord{Record: data[pos+1], Dataset: data[pos+2]}
		length := int(binary.BigEndian.Uint16(data[pos+3:]))
		pos += 5
		if length&0x8000 != 0 {
			// Extended dataset: the low bits give the size of the length field.
			n := length & 0x7fff
			if n > 4 || pos+n > len(data) {
				return nil, fmt.Errorf("invalid extended IPTC length at %d", pos)
			}
			length = 0
			for _, b := range data[pos : pos+n] {
				length = length<<8 | int(b)
			}
			pos += n
		}
		if length < 0 || pos+length > len(data) {
			return nil, fmt.Errorf("IPTC dataset %d:%d overruns data", rec.Record, rec.Dataset)
		}
		rec.Value = data[pos : pos+length]
		res.Records = append(res.Records, rec)
		pos += length
	}
	return res, nil
}
