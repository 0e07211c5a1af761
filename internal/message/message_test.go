package message

import (
	"bytes"
	"errors"
	"testing"

	"github.com/acpgo/acp/internal/acperr"
)

func TestMarshalParseRoundTrip(t *testing.T) {
	body := []byte("syAP\x00\x00\x00\x00\x00\x00\x00\x00")
	m := NewRequest(CmdGetProp, "admin", 4, body)

	b, err := m.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.HasPrefix(b, []byte(magic)) {
		t.Fatalf("composed bytes do not start with magic: %x", b[:4])
	}

	got, err := Parse(b)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Header.Command != CmdGetProp || got.Header.Flags != 4 {
		t.Fatalf("header mismatch: %+v", got.Header)
	}
	if !bytes.Equal(got.Body, body) {
		t.Fatalf("body mismatch: %x vs %x", got.Body, body)
	}
}

func TestEmptyBodyGetProp(t *testing.T) {
	m := NewRequest(CmdGetProp, "admin", 0, nil)
	b, err := m.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Parse(b)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Header.BodySize != 0 || got.Header.BodyChecksum != 1 {
		t.Fatalf("empty body header wrong: %+v", got.Header)
	}
}

func TestBadHeaderChecksum(t *testing.T) {
	m := NewRequest(CmdEcho, "admin", 0, nil)
	b, err := m.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b[5] ^= 0x01 // flip a bit inside the version field, header_checksum now stale
	_, err = Parse(b)
	if err == nil {
		t.Fatalf("expected framing error for tampered header")
	}
	var fe *acperr.Framing
	if !errors.As(err, &fe) {
		t.Fatalf("expected *acperr.Framing, got %T: %v", err, err)
	}
	if fe.Field != "header checksum" {
		t.Fatalf("expected header checksum error, got %q", fe.Field)
	}
}

func TestBadMagic(t *testing.T) {
	m := NewRequest(CmdEcho, "admin", 0, nil)
	b, err := m.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b[0] = 'x'
	if _, err := Parse(b); err == nil {
		t.Fatalf("expected framing error for bad magic")
	}
}

func TestStreamBodySizeRejectsAttachedBody(t *testing.T) {
	m := Message{Header: Header{Version: VersionCurrent, Command: CmdFlashPrimary, BodySize: StreamBodySize}, Body: []byte("x")}
	if _, err := m.Marshal(); err == nil {
		t.Fatalf("expected error marshaling stream frame with attached body")
	}
}

func TestParseHeaderThenVerifyBody(t *testing.T) {
	body := []byte("syAP\x00\x00\x00\x00\x00\x00\x00\x00")
	m := NewRequest(CmdGetProp, "admin", 4, body)
	b, err := m.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	hdr, err := ParseHeader(b[:HeaderSize])
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if hdr.Command != CmdGetProp || hdr.BodySize != int32(len(body)) {
		t.Fatalf("header mismatch: %+v", hdr)
	}
	if err := VerifyBody(hdr, b[HeaderSize:]); err != nil {
		t.Fatalf("VerifyBody: %v", err)
	}
	if err := VerifyBody(hdr, append([]byte(nil), body[:len(body)-1]...)); err == nil {
		t.Fatalf("expected VerifyBody to reject truncated body")
	}
}

func TestReturnRemaining(t *testing.T) {
	m1 := NewRequest(CmdEcho, "admin", 0, nil)
	b1, _ := m1.Marshal()
	m2 := NewRequest(CmdFeat, "admin", 0, nil)
	b2, _ := m2.Marshal()
	combined := append(append([]byte(nil), b1...), b2...)

	got, rest, err := ParseReturnRemaining(combined)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Header.Command != CmdEcho {
		t.Fatalf("expected echo, got %v", got.Header.Command)
	}
	if !bytes.Equal(rest, b2) {
		t.Fatalf("remaining bytes mismatch")
	}
}
