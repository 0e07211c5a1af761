package property

import (
	"bytes"
	"testing"
)

func TestComposeParseRoundTrip(t *testing.T) {
	p, err := NewText("syAP", "bridge")
	if err != nil {
		t.Fatalf("NewText: %v", err)
	}
	b := p.Compose()
	got, n, err := Parse(b)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if n != len(b) {
		t.Fatalf("consumed %d, want %d", n, len(b))
	}
	if got.Tag() != "syAP" || !bytes.Equal(got.Value, p.Value) {
		t.Fatalf("mismatch: %+v vs %+v", got, p)
	}
}

func TestGetPropBodyLayout(t *testing.T) {
	p, err := Empty("syAP")
	if err != nil {
		t.Fatalf("Empty: %v", err)
	}
	got := p.Compose()
	want := []byte("syAP\x00\x00\x00\x00\x00\x00\x00\x00")
	if !bytes.Equal(got, want) {
		t.Fatalf("GetProp body = %x, want %x", got, want)
	}
}

func TestUnknownTagRejected(t *testing.T) {
	if _, err := New("zzzz", nil); err == nil {
		t.Fatalf("expected validation error for unknown tag")
	}
}

func TestValidatorRejectsOutOfRange(t *testing.T) {
	if _, err := NewInt("acRB", 7); err == nil {
		t.Fatalf("expected validator rejection for acRB=7")
	}
	if _, err := NewInt("acRB", 1); err != nil {
		t.Fatalf("NewInt acRB=1: %v", err)
	}
}

func TestSentinelRoundTrip(t *testing.T) {
	s := Sentinel()
	b := s.Compose()
	got, n, err := Parse(b)
	if err != nil {
		t.Fatalf("parse sentinel: %v", err)
	}
	if n != len(b) || !got.IsSentinel() {
		t.Fatalf("expected sentinel, got %+v", got)
	}
}

func TestTagOnlySentinelAccepted(t *testing.T) {
	buf := make([]byte, 12) // name/flags/size all zero, no value bytes
	got, n, err := Parse(buf)
	if err != nil {
		t.Fatalf("parse tag-only sentinel: %v", err)
	}
	if n != 12 || !got.IsSentinel() {
		t.Fatalf("expected sentinel, got %+v (n=%d)", got, n)
	}
}

func TestErrorFlagSurfacesPropertyError(t *testing.T) {
	p := Property{Name: [4]byte{'s', 'y', 'A', 'P'}, Flags: ErrFlag, Value: []byte{0, 0, 0, 5}}
	err := p.Err()
	if err == nil {
		t.Fatalf("expected property error")
	}
}

func TestParseListStopsAtSentinel(t *testing.T) {
	p1, _ := NewText("syAP", "bridge")
	p2, _ := NewText("syNm", "basestation")
	buf := ComposeList([]Property{p1, p2})
	got, err := ParseList(buf)
	if err != nil {
		t.Fatalf("parse list: %v", err)
	}
	if len(got) != 2 || got[0].Tag() != "syAP" || got[1].Tag() != "syNm" {
		t.Fatalf("unexpected list: %+v", got)
	}
}

func TestMACRoundTrip(t *testing.T) {
	p, err := NewMAC("raMA", "aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("NewMAC: %v", err)
	}
	s, err := p.MAC()
	if err != nil {
		t.Fatalf("MAC: %v", err)
	}
	if s != "aa:bb:cc:dd:ee:ff" {
		t.Fatalf("MAC() = %q", s)
	}
}
