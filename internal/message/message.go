// Package message implements the ACP wire frame: a fixed 128-byte,
// big-endian header carrying Adler-32 checksums over itself and the
// variable-length body that follows it. Grounded on the fixed-header
// codec shape of the teacher's protocol.Header/Envelope pair, adapted to
// ACP's field layout and checksum placement.
package message

import (
	"encoding/binary"
	"fmt"

	"github.com/acpgo/acp/internal/acperr"
	"github.com/acpgo/acp/internal/adler32chk"
	"github.com/acpgo/acp/internal/keystream"
)

const (
	// HeaderSize is the fixed width of the message header in bytes.
	HeaderSize = 128
	magic      = "acpp"
)

// Command is one of the fixed ACP command codes.
type Command uint32

const (
	CmdEcho            Command = 0x01
	CmdFlashPrimary    Command = 0x03
	CmdFlashSecondary  Command = 0x05
	CmdFlashBootloader Command = 0x06
	CmdGetProp         Command = 0x14
	CmdSetProp         Command = 0x15
	CmdPerform         Command = 0x16
	CmdMonitor         Command = 0x18
	CmdRPC             Command = 0x19
	CmdAuth            Command = 0x1a
	CmdFeat            Command = 0x1b
)

func (c Command) String() string {
	switch c {
	case CmdEcho:
		return "Echo"
	case CmdFlashPrimary:
		return "FlashPrimary"
	case CmdFlashSecondary:
		return "FlashSecondary"
	case CmdFlashBootloader:
		return "FlashBootloader"
	case CmdGetProp:
		return "GetProp"
	case CmdSetProp:
		return "SetProp"
	case CmdPerform:
		return "Perform"
	case CmdMonitor:
		return "Monitor"
	case CmdRPC:
		return "RPC"
	case CmdAuth:
		return "Auth"
	case CmdFeat:
		return "Feat"
	default:
		return fmt.Sprintf("Command(0x%02x)", uint32(c))
	}
}

func knownCommand(c Command) bool {
	switch c {
	case CmdEcho, CmdFlashPrimary, CmdFlashSecondary, CmdFlashBootloader,
		CmdGetProp, CmdSetProp, CmdPerform, CmdMonitor, CmdRPC, CmdAuth, CmdFeat:
		return true
	}
	return false
}

// VersionCurrent is the only version this client ever transmits.
const VersionCurrent uint32 = 0x00030001

// versionLegacy is accepted on read for backward compatibility with
// older base stations, per the protocol's documented read tolerance.
const versionLegacy uint32 = 0x00000001

func knownVersion(v uint32) bool { return v == VersionCurrent || v == versionLegacy }

// StreamBodySize is the body_size sentinel meaning "open-ended stream
// frame, no body attached yet".
const StreamBodySize int32 = -1

// Header is the 128-byte fixed frame header.
type Header struct {
	Version        uint32
	Flags          uint32
	Unused         uint32
	Command        Command
	ErrorCode      int32
	Key            [32]byte
	BodySize       int32
	BodyChecksum   uint32
	HeaderChecksum uint32
}

// Message is one request or response frame.
type Message struct {
	Header Header
	Body   []byte
}

// NewRequest builds a request message with the password-derived key
// field and version fixed at VersionCurrent. The Feat command always
// derives its key from the empty password, per the wire spec.
func NewRequest(cmd Command, password string, flags uint32, body []byte) Message {
	pw := password
	if cmd == CmdFeat {
		pw = ""
	}
	m := Message{
		Header: Header{
			Version: VersionCurrent,
			Flags:   flags,
			Command: cmd,
			Key:     keystream.HeaderKey(pw),
		},
	}
	if body != nil {
		m.Body = body
		m.Header.BodySize = int32(len(body))
		m.Header.BodyChecksum = adler32chk.Checksum(body)
	} else {
		m.Header.BodySize = 0
		m.Header.BodyChecksum = 1
	}
	return m
}

// Marshal packs the 128-byte header followed by the body. The header
// checksum field is zeroed, the Adler-32 of the full 128 bytes is
// computed, and the header is re-emitted with that checksum in place.
func (m Message) Marshal() ([]byte, error) {
	if m.Body != nil {
		if int32(len(m.Body)) != m.Header.BodySize {
			return nil, &acperr.Framing{Field: "body_size", Want: m.Header.BodySize, Got: len(m.Body)}
		}
		if m.Header.BodySize == StreamBodySize {
			return nil, &acperr.Framing{Field: "body_size", Want: "no body for stream frame", Got: "body attached"}
		}
	}
	hb := make([]byte, HeaderSize)
	copy(hb[0:4], magic)
	binary.BigEndian.PutUint32(hb[4:8], m.Header.Version)
	// hb[8:12] header checksum left zero for the checksum pass
	binary.BigEndian.PutUint32(hb[12:16], m.Header.BodyChecksum)
	binary.BigEndian.PutUint32(hb[16:20], uint32(m.Header.BodySize))
	binary.BigEndian.PutUint32(hb[20:24], m.Header.Flags)
	binary.BigEndian.PutUint32(hb[24:28], m.Header.Unused)
	binary.BigEndian.PutUint32(hb[28:32], uint32(m.Header.Command))
	binary.BigEndian.PutUint32(hb[32:36], uint32(m.Header.ErrorCode))
	copy(hb[48:80], m.Header.Key[:])

	checksum := adler32chk.Checksum(hb)
	binary.BigEndian.PutUint32(hb[8:12], checksum)

	out := make([]byte, 0, HeaderSize+len(m.Body))
	out = append(out, hb...)
	out = append(out, m.Body...)
	return out, nil
}

// Parse parses exactly one frame (header plus declared body) from buf.
// See ParseReturnRemaining to additionally recover trailing bytes beyond
// the frame.
func Parse(buf []byte) (Message, error) {
	m, _, err := ParseReturnRemaining(buf)
	return m, err
}

// ParseHeader parses the fixed 128-byte header alone, without consuming
// or validating any body. Used by the session transport, which reads the
// header and body as two separate socket reads (spec.md §4.6).
func ParseHeader(hb []byte) (Header, error) {
	if len(hb) < HeaderSize {
		return Header{}, &acperr.Framing{Field: "length", Want: fmt.Sprintf(">= %d", HeaderSize), Got: len(hb)}
	}
	hb = hb[:HeaderSize]
	if string(hb[0:4]) != magic {
		return Header{}, &acperr.Framing{Field: "magic", Want: magic, Got: string(hb[0:4])}
	}

	wantChecksum := binary.BigEndian.Uint32(hb[8:12])
	check := make([]byte, HeaderSize)
	copy(check, hb)
	binary.BigEndian.PutUint32(check[8:12], 0)
	if got := adler32chk.Checksum(check); got != wantChecksum {
		return Header{}, &acperr.Framing{Field: "header checksum", Want: wantChecksum, Got: got}
	}

	version := binary.BigEndian.Uint32(hb[4:8])
	if !knownVersion(version) {
		return Header{}, &acperr.Framing{Field: "version", Want: "0x00000001 or 0x00030001", Got: version}
	}

	bodyChecksum := binary.BigEndian.Uint32(hb[12:16])
	bodySize := int32(binary.BigEndian.Uint32(hb[16:20]))
	flags := binary.BigEndian.Uint32(hb[20:24])
	unused := binary.BigEndian.Uint32(hb[24:28])
	cmd := Command(binary.BigEndian.Uint32(hb[28:32]))
	errCode := int32(binary.BigEndian.Uint32(hb[32:36]))
	if !knownCommand(cmd) {
		return Header{}, &acperr.Framing{Field: "command", Want: "known command", Got: cmd}
	}
	if bodySize < StreamBodySize {
		return Header{}, &acperr.Framing{Field: "body_size", Want: ">= -1", Got: bodySize}
	}
	var key [32]byte
	copy(key[:], hb[48:80])

	return Header{
		Version:        version,
		Flags:          flags,
		Unused:         unused,
		Command:        cmd,
		ErrorCode:      errCode,
		Key:            key,
		BodySize:       bodySize,
		BodyChecksum:   bodyChecksum,
		HeaderChecksum: wantChecksum,
	}, nil
}

// VerifyBody checks body against the size and Adler-32 checksum declared
// in hdr.
func VerifyBody(hdr Header, body []byte) error {
	if int32(len(body)) != hdr.BodySize {
		return &acperr.Framing{Field: "body length", Want: hdr.BodySize, Got: len(body)}
	}
	if hdr.BodySize == 0 {
		if hdr.BodyChecksum != 1 {
			return &acperr.Framing{Field: "body checksum", Want: 1, Got: hdr.BodyChecksum}
		}
		return nil
	}
	if !adler32chk.VerifyChecksum(body, hdr.BodyChecksum) {
		return &acperr.Framing{Field: "body checksum", Want: hdr.BodyChecksum, Got: adler32chk.Checksum(body)}
	}
	return nil
}

// ParseReturnRemaining parses one frame from the head of buf and returns
// the tail of buf beyond 128+body_size bytes.
func ParseReturnRemaining(buf []byte) (Message, []byte, error) {
	h, err := ParseHeader(buf)
	if err != nil {
		return Message{}, nil, err
	}

	rest := buf[HeaderSize:]
	if h.BodySize == StreamBodySize {
		return Message{Header: h}, rest, nil
	}
	if int32(len(rest)) < h.BodySize {
		return Message{}, nil, &acperr.Framing{Field: "body length", Want: h.BodySize, Got: len(rest)}
	}
	body := rest[:h.BodySize]
	if err := VerifyBody(h, body); err != nil {
		return Message{}, nil, err
	}

	m := Message{Header: h}
	if h.BodySize > 0 {
		m.Body = append([]byte(nil), body...)
	}
	return m, rest[h.BodySize:], nil
}
