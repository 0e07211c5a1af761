package cflplist

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"

	"github.com/acpgo/acp/internal/keystream"
)

const (
	tagNull       = 0x00
	tagFalse      = 0x08
	tagTrue       = 0x09
	tagIntBase    = 0x10 // + k, k in 0..3, width = 2^k bytes
	tagReal32     = 0x22
	tagReal64     = 0x23
	tagDate       = 0x33
	tagData       = 0x4f
	tagStringASCII = 0x5f
	tagStringUTF16 = 0x6f
	tagArray      = 0xaf
	tagDict       = 0xdf
	sizeSizeBase  = 0x10 // + k declares a following 2^k-byte big-endian size
)

// Compose serialises v to its wire representation. Only the leading byte
// of the returned blob is XOR-masked by the keystream (per the worked
// dict example in the protocol notes); everything that follows — size
// declarators, lengths, and payload bytes — is written unmasked.
func Compose(v Value) ([]byte, error) {
	buf, err := composeInner(v)
	if err != nil {
		return nil, err
	}
	if len(buf) > 0 {
		keystream.MaskPrefix(buf[:1])
	}
	return buf, nil
}

func composeInner(v Value) ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte{tagNull}, nil
	case KindBool:
		if v.boolVal {
			return []byte{tagTrue}, nil
		}
		return []byte{tagFalse}, nil
	case KindInt:
		return composeInt(v.intVal), nil
	case KindReal:
		return composeReal(v), nil
	case KindDate:
		return composeDate(v), nil
	case KindData:
		return composeSized(tagData, v.dataVal), nil
	case KindString:
		return composeString(v)
	case KindArray:
		return composeArray(v.arrayVal)
	case KindDict:
		return composeDict(v.dictVal)
	default:
		return nil, fmt.Errorf("cflplist: compose: unknown kind %d", v.kind)
	}
}

// widthForUnsigned returns the smallest power-of-two byte width in
// {1,2,4,8} whose top bit stays clear for v, so a decoder can never
// confuse the value for a signed quantity. Values needing the full 8
// bytes accept the theoretical ambiguity; int64 cannot exceed it anyway.
func widthForUnsigned(v uint64) int {
	for _, w := range []int{1, 2, 4, 8} {
		if w == 8 {
			return 8
		}
		limit := uint64(1) << uint(8*w-1)
		if v < limit {
			return w
		}
	}
	return 8
}

// widthForSigned returns the smallest power-of-two byte width in
// {1,2,4,8} that represents v as a two's-complement signed integer.
func widthForSigned(v int64) int {
	for _, w := range []int{1, 2, 4, 8} {
		if w == 8 {
			return 8
		}
		bits := uint(8 * w)
		min := -(int64(1) << (bits - 1))
		max := (int64(1) << (bits - 1)) - 1
		if v >= min && v <= max {
			return w
		}
	}
	return 8
}

func widthToK(w int) int {
	switch w {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	default:
		return 3
	}
}

func composeInt(v int64) []byte {
	var width int
	// Narrow widths decode as unsigned, so a negative value is written at
	// the full 8 bytes, where its two's-complement bit pattern round-trips.
	if v < 0 {
		width = 8
	} else {
		width = widthForUnsigned(uint64(v))
	}
	k := widthToK(width)
	out := make([]byte, 1+width)
	out[0] = byte(tagIntBase + k)
	putBigEndian(out[1:], uint64(v), width)
	return out
}

func putBigEndian(dst []byte, v uint64, width int) {
	for i := 0; i < width; i++ {
		dst[width-1-i] = byte(v >> (8 * i))
	}
}

func composeReal(v Value) []byte {
	if v.real64 {
		out := make([]byte, 9)
		out[0] = tagReal64
		binary.BigEndian.PutUint64(out[1:], math.Float64bits(v.realVal))
		return out
	}
	out := make([]byte, 5)
	out[0] = tagReal32
	binary.BigEndian.PutUint32(out[1:], math.Float32bits(float32(v.realVal)))
	return out
}

func composeDate(v Value) []byte {
	out := make([]byte, 9)
	out[0] = tagDate
	secs := v.dateVal.Sub(epoch).Seconds()
	binary.BigEndian.PutUint64(out[1:], math.Float64bits(secs))
	return out
}

// composeSized writes tag, a size-of-size declarator, the size itself,
// and the raw bytes, used by Data and the two String encodings.
func composeSized(tag byte, payload []byte) []byte {
	n := len(payload)
	width := widthForUnsigned(uint64(n))
	k := widthToK(width)
	out := make([]byte, 0, 2+width+n)
	out = append(out, tag, byte(sizeSizeBase+k))
	sizeBuf := make([]byte, width)
	putBigEndian(sizeBuf, uint64(n), width)
	out = append(out, sizeBuf...)
	out = append(out, payload...)
	return out
}

func composeString(v Value) ([]byte, error) {
	enc := v.strEnc
	if enc == EncodingAuto {
		enc = EncodingASCII
		for _, r := range v.strVal {
			if r > 0x7f {
				enc = EncodingUTF16BE
				break
			}
		}
	}
	if enc == EncodingASCII {
		return composeSized(tagStringASCII, []byte(v.strVal)), nil
	}
	units := utf16.Encode([]rune(v.strVal))
	payload := make([]byte, 2*len(units))
	for i, u := range units {
		binary.BigEndian.PutUint16(payload[2*i:], u)
	}
	return composeSizedCount(tagStringUTF16, len(units), payload), nil
}

// composeSizedCount is composeSized but the declared size is a caller
// supplied element/codeunit count rather than len(payload) (used where
// the unit size on the wire is wider than one byte, as for UTF-16BE).
func composeSizedCount(tag byte, count int, payload []byte) []byte {
	width := widthForUnsigned(uint64(count))
	k := widthToK(width)
	out := make([]byte, 0, 2+width+len(payload))
	out = append(out, tag, byte(sizeSizeBase+k))
	sizeBuf := make([]byte, width)
	putBigEndian(sizeBuf, uint64(count), width)
	out = append(out, sizeBuf...)
	out = append(out, payload...)
	return out
}

func composeArray(elems []Value) ([]byte, error) {
	out := []byte{tagArray}
	for _, e := range elems {
		b, err := composeInner(e)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	out = append(out, tagNull) // terminator
	return out, nil
}

func composeDict(entries []DictEntry) ([]byte, error) {
	out := []byte{tagDict}
	for _, e := range entries {
		kb, err := composeInner(String(e.Key))
		if err != nil {
			return nil, err
		}
		vb, err := composeInner(e.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, kb...)
		out = append(out, vb...)
	}
	out = append(out, tagNull)
	return out, nil
}
