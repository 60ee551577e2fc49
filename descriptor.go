package psd

import (
	"fmt"
)

// Descriptor is a decoded action descriptor. The class is stored under the
// "class" key as a map with "name" and "id"; nested descriptors decode to
// Descriptor values.
type Descriptor map[string]interface{}

// Unit types
var unitTypes = map[string]string{
	"#Ang": "Angle",
	"#Rsl": "Density",
	"#Rlt": "Distance",
	"#Nne": "None",
	"#Prc": "Percent",
	"#Pxl": "Pixels",
	"#Mlm": "Millimeters",
	"#Pnt": "Points",
}

// UnitValue is a "UntF" or "UnFl" item.
type UnitValue struct {
	ID    string
	Unit  string
	Value float64
}

// Descriptors nest; this bounds the recursion on hostile input.
const maxDescriptorDepth = 32

type descriptorReader struct {
	f     *File
	depth int
}

// parseDescriptor reads a class followed by its key/value items.
func parseDescriptor(f *File) (Descriptor, error) {
	d := &descriptorReader{f: f}
	return d.descriptor()
}

func (d *descriptorReader) descriptor() (Descriptor, error) {
	d.depth++
	defer func() { d.depth-- }()
	if d.depth > maxDescriptorDepth {
		return nil, fmt.Errorf("descriptor nesting deeper than %d", maxDescriptorDepth)
	}

	class, err := d.class()
	if err != nil {
		return nil, fmt.Errorf("failed to parse class: %w", err)
	}
	count, err := d.f.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("failed to read num items: %w", err)
	}

	result := Descriptor{"class": class}
	for i := uint32(0); i < count; i++ {
		key, err := d.id()
		if err != nil {
			return nil, fmt.Errorf("failed to parse key %d: %w", i, err)
		}
		value, err := d.item("")
		if err != nil {
			return nil, fmt.Errorf("failed to parse value for key %s: %w", key, err)
		}
		result[key] = value
	}
	return result, nil
}

func (d *descriptorReader) class() (map[string]interface{}, error) {
	name, err := d.f.ReadUnicodeString()
	if err != nil {
		return nil, err
	}
	id, err := d.id()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"name": name, "id": id}, nil
}

// id reads a length-prefixed key; a zero length means a 4-byte code.
func (d *descriptorReader) id() (string, error) {
	length, err := d.f.ReadUint32()
	if err != nil {
		return "", err
	}
	if length == 0 {
		length = 4
	}
	return d.f.ReadString(int(length))
}

func (d *descriptorReader) item(itemType string) (interface{}, error) {
	if itemType == "" {
		t, err := d.f.ReadString(4)
		if err != nil {
			return nil, err
		}
		itemType = t
	}

	switch itemType {
	case "bool":
		b, err := d.f.ReadByte()
		return b != 0, err
	case "type", "GlbC":
		return d.class()
	case "Objc", "GlbO":
		return d.descriptor()
	case "doub":
		return d.f.ReadFloat64()
	case "enum":
		typeID, err := d.id()
		if err != nil {
			return nil, fmt.Errorf("failed to parse enum type: %w", err)
		}
		valueID, err := d.id()
		if err != nil {
			return nil, fmt.Errorf("failed to parse enum value: %w", err)
		}
		return map[string]interface{}{"type": typeID, "value": valueID}, nil
	case "alis", "tdta":
		length, err := d.f.ReadUint32()
		if err != nil {
			return nil, err
		}
		return d.f.ReadBytes(int64(length))
	case "long":
		return d.f.ReadInt32()
	case "comp":
		return d.f.ReadInt64()
	case "VlLs":
		return d.list()
	case "obj ":
		return d.reference()
	case "TEXT":
		return d.f.ReadUnicodeString()
	case "UntF":
		return d.unit(false)
	case "UnFl":
		return d.unit(true)
	default:
		return nil, fmt.Errorf("unknown descriptor type: %q", itemType)
	}
}

func (d *descriptorReader) list() ([]interface{}, error) {
	count, err := d.f.ReadUint32()
	if err != nil {
		return nil, err
	}
	left, err := d.f.Remaining()
	if err != nil {
		return nil, err
	}
	if int64(count) > left {
		return nil, fmt.Errorf("list of %d items exceeds remaining %d bytes", count, left)
	}
	items := make([]interface{}, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := d.item("")
		if err != nil {
			return nil, fmt.Errorf("failed to parse list item %d: %w", i, err)
		}
		items = append(items, v)
	}
	return items, nil
}

func (d *descriptorReader) reference() ([]map[string]interface{}, error) {
	count, err := d.f.ReadUint32()
	if err != nil {
		return nil, err
	}
	var items []map[string]interface{}
	for i := uint32(0); i < count; i++ {
		refType, err := d.f.ReadString(4)
		if err != nil {
			return nil, err
		}
		var value interface{}
		switch refType {
		case "prop":
			var class map[string]interface{}
			if class, err = d.class(); err == nil {
				var id string
				id, err = d.id()
				value = map[string]interface{}{"class": class, "id": id}
			}
		case "Clss":
			value, err = d.class()
		case "Enmr":
			var class map[string]interface{}
			if class, err = d.class(); err == nil {
				var typeID, valueID string
				if typeID, err = d.id(); err == nil {
					valueID, err = d.id()
				}
				value = map[string]interface{}{"class": class, "type": typeID, "value": valueID}
			}
		case "Idnt", "indx", "rele":
			value, err = d.f.ReadInt32()
		case "name":
			value, err = d.f.ReadUnicodeString()
		default:
			return nil, fmt.Errorf("unknown reference type: %q", refType)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse reference item %d: %w", i, err)
		}
		items = append(items, map[string]interface{}{"type": refType, "value": value})
	}
	return items, nil
}

func (d *descriptorReader) unit(single bool) (UnitValue, error) {
	id, err := d.f.ReadString(4)
	if err != nil {
		return UnitValue{}, err
	}
	var v float64
	if single {
		var f32 float32
		f32, err = d.f.ReadFloat32()
		v = float64(f32)
	} else {
		v, err = d.f.ReadFloat64()
	}
	if err != nil {
		return UnitValue{}, err
	}
	unit, ok := unitTypes[id]
	if !ok {
		unit = "Unknown"
	}
	return UnitValue{ID: id, Unit: unit, Value: v}, nil
}

func (d Descriptor) str(key string) string {
	s, _ := d[key].(string)
	return s
}

func (d Descriptor) num(key string) int32 {
	v, _ := d[key].(int32)
	return v
}

func (d Descriptor) flag(key string) bool {
	v, _ := d[key].(bool)
	return v
}

func (d Descriptor) list(key string) []interface{} {
	v, _ := d[key].([]interface{})
	return v
}

func (d Descriptor) rect(key string) Rectangle {
	m, ok := d[key].(Descriptor)
	if !ok {
		return Rectangle{}
	}
	return Rectangle{
		Top:    m.num("Top "),
		Left:   m.num("Left"),
		Bottom: m.num("Btom"),
		Right:  m.num("Rght"),
	}
}
