// Package cflplist implements the CFLBinaryPList binary property-list
// dialect carried in ACP message and property bodies: a tagged tree of
// null, bool, int, real, date, data, and (ASCII or UTF-16BE) string
// scalars plus array/dict collections, with the leading byte of every
// composed blob XOR-masked by the shared keystream.
package cflplist

import "time"

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindReal
	KindDate
	KindData
	KindString
	KindArray
	KindDict
)

// StringEncoding selects the wire string tag a String value composes to.
type StringEncoding uint8

const (
	// EncodingAuto picks ASCII (0x5f) when every rune is at most 0x7f,
	// otherwise UTF-16BE (0x6f). This is the canonical minimal encoding
	// the serializer chooses by default.
	EncodingAuto StringEncoding = iota
	EncodingASCII
	EncodingUTF16BE
)

// DictEntry is one key/value pair of a Dict, in wire order.
type DictEntry struct {
	Key   string
	Value Value
}

// Value is a CFLBinaryPList tree node. The zero Value is Null.
type Value struct {
	kind Kind

	boolVal   bool
	intVal    int64
	realVal   float64
	real64    bool // true selects f64 tag over f32 on compose
	dateVal   time.Time
	dataVal   []byte
	strVal    string
	strEnc    StringEncoding
	arrayVal  []Value
	dictVal   []DictEntry
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// Null returns the null variant.
func Null() Value { return Value{kind: KindNull} }

// Bool returns the bool variant.
func Bool(b bool) Value { return Value{kind: KindBool, boolVal: b} }

// Int returns the int variant carrying a signed 64-bit value; the
// composer writes a non-negative value at the smallest of the four
// supported widths (1/2/4/8 bytes) that keeps its top bit clear, and a
// negative value at 8 bytes.
func Int(i int64) Value { return Value{kind: KindInt, intVal: i} }

// Real32 returns the real variant that composes to the 4-byte (f32) tag.
func Real32(f float32) Value { return Value{kind: KindReal, realVal: float64(f), real64: false} }

// Real64 returns the real variant that composes to the 8-byte (f64) tag.
func Real64(f float64) Value { return Value{kind: KindReal, realVal: f, real64: true} }

// Date returns the date variant. Compose writes the offset from the
// epoch as f64 seconds, fraction included; Equal compares dates at
// whole-second precision.
func Date(t time.Time) Value { return Value{kind: KindDate, dateVal: t} }

// Data returns the data variant, copying b.
func Data(b []byte) Value {
	return Value{kind: KindData, dataVal: append([]byte(nil), b...)}
}

// String returns the string variant using the canonical minimal encoding.
func String(s string) Value { return Value{kind: KindString, strVal: s, strEnc: EncodingAuto} }

// StringAs returns the string variant forcing a specific wire encoding.
func StringAs(s string, enc StringEncoding) Value {
	return Value{kind: KindString, strVal: s, strEnc: enc}
}

// Array returns the array variant.
func Array(elems ...Value) Value { return Value{kind: KindArray, arrayVal: elems} }

// Dict returns the dict variant, preserving the given key order.
func Dict(entries ...DictEntry) Value { return Value{kind: KindDict, dictVal: entries} }

// DictOf is a convenience constructor for simple string/int dicts, used
// heavily by the SRP handshake and client façade for small control
// messages (e.g. {"state": 1}).
func DictOf(pairs map[string]Value, order []string) Value {
	entries := make([]DictEntry, 0, len(order))
	for _, k := range order {
		entries = append(entries, DictEntry{Key: k, Value: pairs[k]})
	}
	return Dict(entries...)
}

// AsBool, AsInt, ... accessors panic-free: they return the zero value for
// the wrong Kind. Callers that need strict typing should switch on Kind().

func (v Value) AsBool() bool         { return v.boolVal }
func (v Value) AsInt() int64         { return v.intVal }
func (v Value) AsReal() float64      { return v.realVal }
func (v Value) AsDate() time.Time    { return v.dateVal }
func (v Value) AsData() []byte       { return v.dataVal }
func (v Value) AsString() string     { return v.strVal }
func (v Value) AsArray() []Value     { return v.arrayVal }
func (v Value) AsDict() []DictEntry  { return v.dictVal }

// Get looks up a key in a Dict value; ok is false if v is not a Dict or
// the key is absent.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindDict {
		return Value{}, false
	}
	for _, e := range v.dictVal {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Equal reports deep structural equality, used by round-trip tests.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.boolVal == b.boolVal
	case KindInt:
		return a.intVal == b.intVal
	case KindReal:
		return a.realVal == b.realVal && a.real64 == b.real64
	case KindDate:
		return a.dateVal.Unix() == b.dateVal.Unix()
	case KindData:
		return string(a.dataVal) == string(b.dataVal)
	case KindString:
		return a.strVal == b.strVal
	case KindArray:
		if len(a.arrayVal) != len(b.arrayVal) {
			return false
		}
		for i := range a.arrayVal {
			if !Equal(a.arrayVal[i], b.arrayVal[i]) {
				return false
			}
		}
		return true
	case KindDict:
		if len(a.dictVal) != len(b.dictVal) {
			return false
		}
		for i := range a.dictVal {
			if a.dictVal[i].Key != b.dictVal[i].Key || !Equal(a.dictVal[i].Value, b.dictVal[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// epoch is the CFL date reference point, 2001-01-01 00:00:00 UTC.
var epoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
