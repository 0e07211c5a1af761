package cflplist

import (
	"testing"
	"time"

	"github.com/acpgo/acp/internal/keystream"
)

func roundTrip(t *testing.T, v Value) Value {
	b, err := Compose(v)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	got, err := Parse(b)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !Equal(v, got) {
		t.Fatalf("round trip mismatch: got %#v want %#v", got, v)
	}
	return got
}

func TestRoundTripScalars(t *testing.T) {
	roundTrip(t, Null())
	roundTrip(t, Bool(true))
	roundTrip(t, Bool(false))
	roundTrip(t, Int(0))
	roundTrip(t, Int(1))
	roundTrip(t, Int(-1))
	roundTrip(t, Int(256))
	roundTrip(t, Int(65537))
	roundTrip(t, Int(-65537))
	roundTrip(t, Int(1<<40))
	roundTrip(t, Real32(3.5))
	roundTrip(t, Real64(3.14159265))
	roundTrip(t, Data([]byte{0xde, 0xad, 0xbe, 0xef}))
	roundTrip(t, String("admin"))
	roundTrip(t, StringAs("héllo", EncodingUTF16BE))
}

func TestRoundTripDate(t *testing.T) {
	want := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	got := roundTrip(t, Date(want))
	if got.AsDate().Unix() != want.Unix() {
		t.Fatalf("date mismatch: got %v want %v", got.AsDate(), want)
	}
}

func TestRoundTripCollections(t *testing.T) {
	roundTrip(t, Array(Int(1), Int(2), String("three")))
	roundTrip(t, Dict(DictEntry{Key: "state", Value: Int(1)}))
	roundTrip(t, Dict(
		DictEntry{Key: "username", Value: String("admin")},
		DictEntry{Key: "nested", Value: Array(Int(1), Dict(DictEntry{Key: "a", Value: Bool(true)}))},
	))
}

func TestRoundTripNestedDepth(t *testing.T) {
	v := Int(7)
	for i := 0; i < 8; i++ {
		v = Array(v)
	}
	roundTrip(t, v)
}

// Int encoding widths follow the documented 2^k-byte rule: compose(1) is
// tag 0x10 + one byte, compose(256) is tag 0x11 + two bytes. The leading
// byte of every composed blob is keystream-masked, so only the body
// bytes are asserted directly; the tag byte is checked after unmasking
// it back with a second XOR pass (self-inverse).
func TestIntEncodingWidths(t *testing.T) {
	cases := []struct {
		v       int64
		wantTag byte
		wantLen int
	}{
		{1, 0x10, 2},
		{256, 0x11, 3},
		{65537, 0x12, 5}, // 4-byte width: tag 0x10+2, matching the 2^k-byte rule
	}
	for _, c := range cases {
		b, err := Compose(Int(c.v))
		if err != nil {
			t.Fatalf("compose(%d): %v", c.v, err)
		}
		if len(b) != c.wantLen {
			t.Fatalf("compose(%d) length = %d, want %d", c.v, len(b), c.wantLen)
		}
		unmasked := append([]byte(nil), b...)
		keystream.MaskPrefix(unmasked[:1]) // XOR is self-inverse
		if unmasked[0] != c.wantTag {
			t.Fatalf("compose(%d) tag = 0x%02x, want 0x%02x", c.v, unmasked[0], c.wantTag)
		}
	}
}
