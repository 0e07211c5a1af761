// Package property implements the 12-byte property TLV carried in
// GetProp/SetProp message bodies, plus the type-tag value coercions the
// catalogue drives. Grounded on the teacher's fixed-header codec shape
// (internal/message) applied to the shorter, un-checksummed element
// layout spec.md §4.3 describes.
package property

import (
	"encoding/binary"
	"fmt"

	"github.com/acpgo/acp/internal/acperr"
	"github.com/acpgo/acp/internal/catalogue"
)

const elementHeaderSize = 12

// ErrFlag marks the value as a 4-byte big-endian peer error code rather
// than a real value.
const ErrFlag uint32 = 1

// Property is one typed attribute of the device.
type Property struct {
	Name  [4]byte
	Flags uint32
	Value []byte
}

// New constructs a Property from a tag and pre-encoded wire value,
// rejecting unknown tags and validator failures per spec.md §3's
// construction invariant.
func New(tag string, value []byte) (Property, error) {
	if tag == "\x00\x00\x00\x00" {
		return Sentinel(), nil
	}
	entry, ok := catalogue.Lookup(tag)
	if !ok {
		return Property{}, &acperr.Validation{Tag: tag, Reason: "unknown tag"}
	}
	if entry.Validator != nil && !entry.Validator.Valid(value) {
		return Property{}, &acperr.Validation{Tag: tag, Reason: "validator rejected encoded value"}
	}
	var name [4]byte
	copy(name[:], tag)
	return Property{Name: name, Value: value}, nil
}

// Empty constructs a zero-valued property element for the tag, used to
// compose GetProp request bodies (spec.md §4.7: "empty-valued property
// elements with the requested tags").
func Empty(tag string) (Property, error) {
	if _, ok := catalogue.Lookup(tag); !ok {
		return Property{}, &acperr.Validation{Tag: tag, Reason: "unknown tag"}
	}
	var name [4]byte
	copy(name[:], tag)
	return Property{Name: name}, nil
}

// Sentinel returns the four-NUL end-of-list marker.
func Sentinel() Property {
	return Property{Name: [4]byte{}, Flags: 0, Value: []byte{0, 0, 0, 0}}
}

// IsSentinel reports whether p is the end-of-list marker. Per the
// documented read tolerance, both the four-NUL-value form this client
// emits and a zero-length-body form are accepted.
func (p Property) IsSentinel() bool {
	return p.Name == [4]byte{}
}

// Tag returns the 4-character tag as a string.
func (p Property) Tag() string { return string(p.Name[:]) }

// IsError reports whether flags&1 is set (value is a peer error code).
func (p Property) IsError() bool { return p.Flags&ErrFlag != 0 }

// Err returns the bound property error if IsError, else nil.
func (p Property) Err() error {
	if !p.IsError() {
		return nil
	}
	var code int32
	if len(p.Value) >= 4 {
		code = int32(binary.BigEndian.Uint32(p.Value))
	}
	return &acperr.Property{Tag: p.Tag(), Code: code}
}

// Compose serialises the 12-byte TLV header followed by Value.
func (p Property) Compose() []byte {
	out := make([]byte, elementHeaderSize+len(p.Value))
	copy(out[0:4], p.Name[:])
	binary.BigEndian.PutUint32(out[4:8], p.Flags)
	binary.BigEndian.PutUint32(out[8:12], uint32(len(p.Value)))
	copy(out[12:], p.Value)
	return out
}

// Parse reads one property element from the head of buf, returning the
// element and the number of bytes consumed.
func Parse(buf []byte) (Property, int, error) {
	if len(buf) < elementHeaderSize {
		return Property{}, 0, &acperr.Framing{Field: "property header length", Want: fmt.Sprintf(">= %d", elementHeaderSize), Got: len(buf)}
	}
	var name [4]byte
	copy(name[:], buf[0:4])
	flags := binary.BigEndian.Uint32(buf[4:8])
	size := binary.BigEndian.Uint32(buf[8:12])
	if name == [4]byte{} {
		// Tag-only sentinel accepted on read even though this client
		// always emits the four-NUL value form.
		if size == 0 {
			return Sentinel(), elementHeaderSize, nil
		}
	}
	total := elementHeaderSize + int(size)
	if len(buf) < total {
		return Property{}, 0, &acperr.Framing{Field: "property value length", Want: size, Got: len(buf) - elementHeaderSize}
	}
	return Property{Name: name, Flags: flags, Value: append([]byte(nil), buf[elementHeaderSize:total]...)}, total, nil
}

// ComposeList serialises a sequence of properties followed by the
// terminator sentinel.
func ComposeList(props []Property) []byte {
	var out []byte
	for _, p := range props {
		out = append(out, p.Compose()...)
	}
	out = append(out, Sentinel().Compose()...)
	return out
}

// ParseList reads properties from buf until the terminator sentinel,
// stopping (and surfacing the bound error) at the first element with
// flags&1 set, per spec.md §4.7.
func ParseList(buf []byte) ([]Property, error) {
	var out []Property
	pos := 0
	for {
		if pos >= len(buf) {
			return out, &acperr.Framing{Field: "property list", Want: "terminator", Got: "end of buffer"}
		}
		p, n, err := Parse(buf[pos:])
		if err != nil {
			return out, err
		}
		pos += n
		if p.IsSentinel() {
			return out, nil
		}
		if p.IsError() {
			out = append(out, p)
			return out, p.Err()
		}
		out = append(out, p)
	}
}
