package psd

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const rdfNamespace = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"

// XMPData is resource 0x0424. Properties flattens the simple values found
// on rdf:Description elements, keyed by "namespace local".
type XMPData struct {
	ResourceBlock
	Packet     []byte
	Properties map[string]string
}

// Property looks a value up by namespace URI and local name.
func (x *XMPData) Property(namespace, name string) (string, bool) {
	v, ok := x.Properties[namespace+" "+name]
	return v, ok
}

func decodeXMP(block ResourceBlock, f *File) (Resource, error) {
	packet, err := f.ReadBytes(block.Length)
	if err != nil {
		return nil, fmt.Errorf("failed to read XMP packet: %w", err)
	}
	props, err := parseXMPProperties(packet)
	if err != nil {
		return nil, err
	}
	return &XMPData{ResourceBlock: block, Packet: packet, Properties: props}, nil
}

func parseXMPProperties(packet []byte) (map[string]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(bytes.TrimRight(packet, "\x00")))
	props := map[string]string{}

	var stack []xml.Name
	var text strings.Builder
	inDescription := func() bool {
		return len(stack) >= 2 && stack[len(stack)-2].Space == rdfNamespace && stack[len(stack)-2].Local == "Description"
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed XMP packet: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name)
			text.Reset()
			if t.Name.Space == rdfNamespace && t.Name.Local == "Description" {
				for _, attr := range t.Attr {
					if attr.Name.Space == "xmlns" || attr.Name.Space == rdfNamespace || attr.Name.Space == "" {
						continue
					}
					props[attr.Name.Space+" "+attr.Name.Local] = attr.Value
				}
			}
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if inDescription() {
				if v := strings.TrimSpace(text.String()); v != "" {
					props[t.Name.Space+" "+t.Name.Local] = v
				}
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			text.Reset()
		}
	}
	return props, nil
}
