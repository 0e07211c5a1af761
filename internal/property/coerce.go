package property

import (
	"fmt"
	"net"
	"strings"

	"github.com/acpgo/acp/internal/acperr"
	"github.com/acpgo/acp/internal/catalogue"
	"github.com/acpgo/acp/internal/cflplist"
)

// coercedKind is the typed sum the catalogue type tag selects between,
// replacing a runtime type-switch with a compile-time-checked set of
// constructors (spec.md §9, "Duck-typed value coercions").
type coercedKind int

const (
	kindInteger coercedKind = iota
	kindText
	kindBytes
)

func kindFor(t catalogue.TypeTag) coercedKind {
	switch t {
	case catalogue.TypeU8, catalogue.TypeU16, catalogue.TypeU32, catalogue.TypeUi8, catalogue.TypeBoo, catalogue.TypeDec:
		return kindInteger
	case catalogue.TypeStr, catalogue.TypeUID:
		return kindText
	default:
		return kindBytes
	}
}

// NewInt encodes an integer-typed property value for tag at the
// catalogue's canonical width (1, 2, or 4 bytes for u8/u16/u32, 1 byte
// for boo/ui8/dec) and constructs the Property.
func NewInt(tag string, v int64) (Property, error) {
	entry, ok := catalogue.Lookup(tag)
	if !ok {
		return Property{}, &acperr.Validation{Tag: tag, Reason: "unknown tag"}
	}
	if kindFor(entry.Type) != kindInteger {
		return Property{}, &acperr.Validation{Tag: tag, Reason: fmt.Sprintf("tag is not integer-typed (%s)", entry.Type)}
	}
	width := integerWidth(entry.Type)
	buf := make([]byte, width)
	putUint(buf, uint64(v))
	return New(tag, buf)
}

func integerWidth(t catalogue.TypeTag) int {
	switch t {
	case catalogue.TypeU16:
		return 2
	case catalogue.TypeU32:
		return 4
	default:
		return 1
	}
}

func putUint(buf []byte, v uint64) {
	for i := range buf {
		shift := 8 * (len(buf) - 1 - i)
		buf[i] = byte(v >> shift)
	}
}

// Int decodes an integer-typed property's big-endian value.
func (p Property) Int() (int64, error) {
	entry, ok := catalogue.Lookup(p.Tag())
	if !ok || kindFor(entry.Type) != kindInteger {
		return 0, &acperr.Validation{Tag: p.Tag(), Reason: "not integer-typed"}
	}
	var v uint64
	for _, b := range p.Value {
		v = v<<8 | uint64(b)
	}
	return int64(v), nil
}

// NewText encodes a text-typed (str/uid) property value.
func NewText(tag, v string) (Property, error) {
	entry, ok := catalogue.Lookup(tag)
	if !ok {
		return Property{}, &acperr.Validation{Tag: tag, Reason: "unknown tag"}
	}
	if kindFor(entry.Type) != kindText {
		return Property{}, &acperr.Validation{Tag: tag, Reason: fmt.Sprintf("tag is not text-typed (%s)", entry.Type)}
	}
	return New(tag, []byte(v))
}

// Text decodes a text-typed property's value.
func (p Property) Text() (string, error) {
	entry, ok := catalogue.Lookup(p.Tag())
	if !ok || kindFor(entry.Type) != kindText {
		return "", &acperr.Validation{Tag: p.Tag(), Reason: "not text-typed"}
	}
	return string(p.Value), nil
}

// NewMAC encodes a mac-typed property value, accepting either raw 6
// bytes or "aa:bb:cc:dd:ee:ff" text.
func NewMAC(tag string, mac string) (Property, error) {
	entry, ok := catalogue.Lookup(tag)
	if !ok || entry.Type != catalogue.TypeMac {
		return Property{}, &acperr.Validation{Tag: tag, Reason: "not mac-typed"}
	}
	if len(mac) == 6 {
		return New(tag, []byte(mac))
	}
	hw, err := net.ParseMAC(mac)
	if err != nil || len(hw) != 6 {
		return Property{}, &acperr.Validation{Tag: tag, Reason: "invalid mac address"}
	}
	return New(tag, hw)
}

// MAC formats a mac-typed property value as "aa:bb:cc:dd:ee:ff".
func (p Property) MAC() (string, error) {
	entry, ok := catalogue.Lookup(p.Tag())
	if !ok || entry.Type != catalogue.TypeMac {
		return "", &acperr.Validation{Tag: p.Tag(), Reason: "not mac-typed"}
	}
	if len(p.Value) != 6 {
		return "", &acperr.Validation{Tag: p.Tag(), Reason: "mac value is not 6 bytes"}
	}
	return net.HardwareAddr(p.Value).String(), nil
}

// NewCFB encodes a cfb-typed property as a CFLBinaryPList tree.
func NewCFB(tag string, v cflplist.Value) (Property, error) {
	entry, ok := catalogue.Lookup(tag)
	if !ok || entry.Type != catalogue.TypeCfb {
		return Property{}, &acperr.Validation{Tag: tag, Reason: "not cfb-typed"}
	}
	b, err := cflplist.Compose(v)
	if err != nil {
		return Property{}, err
	}
	return New(tag, b)
}

// CFB decodes a cfb-typed property's CFLBinaryPList tree.
func (p Property) CFB() (cflplist.Value, error) {
	entry, ok := catalogue.Lookup(p.Tag())
	if !ok || entry.Type != catalogue.TypeCfb {
		return cflplist.Value{}, &acperr.Validation{Tag: p.Tag(), Reason: "not cfb-typed"}
	}
	return cflplist.Parse(p.Value)
}

// NewHex encodes a hex-typed property from a hex-digit string.
func NewHex(tag, hex string) (Property, error) {
	hex = strings.TrimPrefix(hex, "0x")
	b, err := hexDecode(hex)
	if err != nil {
		return Property{}, &acperr.Validation{Tag: tag, Reason: "invalid hex text"}
	}
	return New(tag, b)
}

// Hex formats a hex-typed property as lowercase hex digits.
func (p Property) Hex() string {
	return hexEncode(p.Value)
}

func hexDecode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex string")
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, err := hexDigit(s[2*i])
		if err != nil {
			return nil, err
		}
		lo, err := hexDigit(s[2*i+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexDigit(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex digit %q", c)
	}
}

const hexDigits = "0123456789abcdef"

func hexEncode(b []byte) string {
	out := make([]byte, 2*len(b))
	for i, by := range b {
		out[2*i] = hexDigits[by>>4]
		out[2*i+1] = hexDigits[by&0x0f]
	}
	return string(out)
}

// NewIP4 encodes an ip4-typed property from dotted-quad text.
func NewIP4(tag, addr string) (Property, error) {
	entry, ok := catalogue.Lookup(tag)
	if !ok || entry.Type != catalogue.TypeIP4 {
		return Property{}, &acperr.Validation{Tag: tag, Reason: "not ip4-typed"}
	}
	ip := net.ParseIP(addr).To4()
	if ip == nil {
		return Property{}, &acperr.Validation{Tag: tag, Reason: "invalid ipv4 address"}
	}
	return New(tag, ip)
}

// IP4 formats an ip4-typed property as dotted-quad text.
func (p Property) IP4() (string, error) {
	entry, ok := catalogue.Lookup(p.Tag())
	if !ok || entry.Type != catalogue.TypeIP4 {
		return "", &acperr.Validation{Tag: p.Tag(), Reason: "not ip4-typed"}
	}
	if len(p.Value) != 4 {
		return "", &acperr.Validation{Tag: p.Tag(), Reason: "ip4 value is not 4 bytes"}
	}
	return net.IP(p.Value).String(), nil
}

// NewIP6 encodes an ip6-typed property from text.
func NewIP6(tag, addr string) (Property, error) {
	entry, ok := catalogue.Lookup(tag)
	if !ok || entry.Type != catalogue.TypeIP6 {
		return Property{}, &acperr.Validation{Tag: tag, Reason: "not ip6-typed"}
	}
	ip := net.ParseIP(addr).To16()
	if ip == nil {
		return Property{}, &acperr.Validation{Tag: tag, Reason: "invalid ipv6 address"}
	}
	return New(tag, ip)
}

// IP6 formats an ip6-typed property as text.
func (p Property) IP6() (string, error) {
	entry, ok := catalogue.Lookup(p.Tag())
	if !ok || entry.Type != catalogue.TypeIP6 {
		return "", &acperr.Validation{Tag: p.Tag(), Reason: "not ip6-typed"}
	}
	if len(p.Value) != 16 {
		return "", &acperr.Validation{Tag: p.Tag(), Reason: "ip6 value is not 16 bytes"}
	}
	return net.IP(p.Value).String(), nil
}
