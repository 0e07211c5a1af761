package cflplist

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
	"unicode/utf16"

	"github.com/acpgo/acp/internal/keystream"
)

// Parse deserialises a complete CFLBinaryPList blob. The leading byte is
// XOR-unmasked (XOR is self-inverse, so this mirrors Compose exactly)
// before any tag is interpreted. The whole input must be consumed by
// exactly one value; trailing bytes are an error.
func Parse(data []byte) (Value, error) {
	if len(data) == 0 {
		return Value{}, fmt.Errorf("cflplist: parse: empty input")
	}
	buf := append([]byte(nil), data...)
	keystream.MaskPrefix(buf[:1])
	v, n, err := parseInner(buf)
	if err != nil {
		return Value{}, err
	}
	if n != len(buf) {
		return Value{}, fmt.Errorf("cflplist: parse: %d trailing bytes", len(buf)-n)
	}
	return v, nil
}

// parseInner reads one value from the head of buf, returning the value
// and the number of bytes consumed.
func parseInner(buf []byte) (Value, int, error) {
	if len(buf) == 0 {
		return Value{}, 0, fmt.Errorf("cflplist: parse: unexpected end of input")
	}
	tag := buf[0]
	switch {
	case tag == tagNull:
		return Null(), 1, nil
	case tag == tagFalse:
		return Bool(false), 1, nil
	case tag == tagTrue:
		return Bool(true), 1, nil
	case tag >= tagIntBase && tag <= tagIntBase+3:
		return parseInt(buf, tag-tagIntBase)
	case tag == tagReal32:
		return parseReal32(buf)
	case tag == tagReal64:
		return parseReal64(buf)
	case tag == tagDate:
		return parseDate(buf)
	case tag == tagData:
		return parseData(buf)
	case tag == tagStringASCII:
		return parseStringASCII(buf)
	case tag == tagStringUTF16:
		return parseStringUTF16(buf)
	case tag == tagArray:
		return parseArray(buf)
	case tag == tagDict:
		return parseDict(buf)
	default:
		return Value{}, 0, fmt.Errorf("cflplist: parse: unknown tag 0x%02x", tag)
	}
}

func parseInt(buf []byte, k byte) (Value, int, error) {
	width := 1 << k
	if len(buf) < 1+width {
		return Value{}, 0, fmt.Errorf("cflplist: parse: short int body")
	}
	var v uint64
	for i := 0; i < width; i++ {
		v = v<<8 | uint64(buf[1+i])
	}
	// Narrower-than-8-byte widths are unsigned by construction: the
	// composer widens before the sign bit would be ambiguous. At width 8
	// the full int64 range round-trips via the bit pattern directly.
	return Int(int64(v)), 1 + width, nil
}

func parseReal32(buf []byte) (Value, int, error) {
	if len(buf) < 5 {
		return Value{}, 0, fmt.Errorf("cflplist: parse: short real32")
	}
	bits := binary.BigEndian.Uint32(buf[1:5])
	return Real32(math.Float32frombits(bits)), 5, nil
}

func parseReal64(buf []byte) (Value, int, error) {
	if len(buf) < 9 {
		return Value{}, 0, fmt.Errorf("cflplist: parse: short real64")
	}
	bits := binary.BigEndian.Uint64(buf[1:9])
	return Real64(math.Float64frombits(bits)), 9, nil
}

func parseDate(buf []byte) (Value, int, error) {
	if len(buf) < 9 {
		return Value{}, 0, fmt.Errorf("cflplist: parse: short date")
	}
	bits := binary.BigEndian.Uint64(buf[1:9])
	secs := math.Float64frombits(bits)
	t := epoch.Add(time.Duration(secs * float64(time.Second)))
	return Date(t), 9, nil
}

// readSize reads the size-of-size declarator at buf[1] and the size
// value that follows, returning the decoded size and total header bytes
// consumed (tag + declarator + size bytes).
func readSize(buf []byte) (size int, headerLen int, err error) {
	if len(buf) < 2 {
		return 0, 0, fmt.Errorf("cflplist: parse: missing size declarator")
	}
	decl := buf[1]
	if decl < sizeSizeBase || decl > sizeSizeBase+3 {
		return 0, 0, fmt.Errorf("cflplist: parse: bad size declarator 0x%02x", decl)
	}
	k := decl - sizeSizeBase
	width := 1 << k
	if len(buf) < 2+width {
		return 0, 0, fmt.Errorf("cflplist: parse: short size field")
	}
	var v uint64
	for i := 0; i < width; i++ {
		v = v<<8 | uint64(buf[2+i])
	}
	return int(v), 2 + width, nil
}

func parseData(buf []byte) (Value, int, error) {
	n, hdr, err := readSize(buf)
	if err != nil {
		return Value{}, 0, err
	}
	if len(buf) < hdr+n {
		return Value{}, 0, fmt.Errorf("cflplist: parse: short data body")
	}
	return Data(buf[hdr : hdr+n]), hdr + n, nil
}

func parseStringASCII(buf []byte) (Value, int, error) {
	n, hdr, err := readSize(buf)
	if err != nil {
		return Value{}, 0, err
	}
	if len(buf) < hdr+n {
		return Value{}, 0, fmt.Errorf("cflplist: parse: short ascii string body")
	}
	return StringAs(string(buf[hdr:hdr+n]), EncodingASCII), hdr + n, nil
}

func parseStringUTF16(buf []byte) (Value, int, error) {
	units, hdr, err := readSize(buf)
	if err != nil {
		return Value{}, 0, err
	}
	byteLen := 2 * units
	if len(buf) < hdr+byteLen {
		return Value{}, 0, fmt.Errorf("cflplist: parse: short utf16 string body")
	}
	codeunits := make([]uint16, units)
	for i := 0; i < units; i++ {
		codeunits[i] = binary.BigEndian.Uint16(buf[hdr+2*i:])
	}
	runes := utf16.Decode(codeunits)
	return StringAs(string(runes), EncodingUTF16BE), hdr + byteLen, nil
}

func parseArray(buf []byte) (Value, int, error) {
	pos := 1
	var elems []Value
	for {
		if pos >= len(buf) {
			return Value{}, 0, fmt.Errorf("cflplist: parse: unterminated array")
		}
		if buf[pos] == tagNull {
			pos++
			break
		}
		v, n, err := parseInner(buf[pos:])
		if err != nil {
			return Value{}, 0, err
		}
		elems = append(elems, v)
		pos += n
	}
	return Array(elems...), pos, nil
}

func parseDict(buf []byte) (Value, int, error) {
	pos := 1
	var entries []DictEntry
	for {
		if pos >= len(buf) {
			return Value{}, 0, fmt.Errorf("cflplist: parse: unterminated dict")
		}
		if buf[pos] == tagNull {
			pos++
			break
		}
		kv, n, err := parseInner(buf[pos:])
		if err != nil {
			return Value{}, 0, err
		}
		if kv.Kind() != KindString {
			return Value{}, 0, fmt.Errorf("cflplist: parse: dict key is not a string")
		}
		pos += n
		if pos >= len(buf) {
			return Value{}, 0, fmt.Errorf("cflplist: parse: dict missing value for key %q", kv.AsString())
		}
		vv, n2, err := parseInner(buf[pos:])
		if err != nil {
			return Value{}, 0, err
		}
		pos += n2
		entries = append(entries, DictEntry{Key: kv.AsString(), Value: vv})
	}
	return Dict(entries...), pos, nil
}
