package session

import (
	"io"
	"time"

	"github.com/acpgo/acp/internal/acperr"
	"github.com/acpgo/acp/internal/message"
	"github.com/acpgo/acp/internal/srp"
)

// Handle is the exclusive session interface a queued closure receives
// (spec.md §4.6). It is only valid for the lifetime of the call that
// produced it; using it afterward has no defined behaviour.
type Handle struct {
	s *Session
}

// Send marshals and writes msg. If an encryption context is installed,
// the bytes are encrypted through the client→server keystream by the
// connection's write adapter immediately before the socket write.
func (h *Handle) Send(msg message.Message) error {
	raw, err := msg.Marshal()
	if err != nil {
		return err
	}
	if err := h.s.conn.SetWriteDeadline(time.Now().Add(h.s.readTimeout)); err != nil {
		return &acperr.Transport{Op: "send", Err: err}
	}
	if _, err := h.s.bw.Write(raw); err != nil {
		return &acperr.Transport{Op: "send", Err: err}
	}
	if err := h.s.bw.Flush(); err != nil {
		return &acperr.Transport{Op: "send", Err: err}
	}
	return nil
}

// Receive returns exactly size bytes — already decrypted through the
// server→client keystream when encryption is installed — or fails with
// TransportError on timeout or socket error (spec.md §4.6's
// receive(size) contract).
func (h *Handle) Receive(size int) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	if err := h.s.conn.SetReadDeadline(time.Now().Add(h.s.readTimeout)); err != nil {
		return nil, &acperr.Transport{Op: "receive", Err: err}
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(h.s.br, buf); err != nil {
		return nil, &acperr.Transport{Op: "receive", Err: err}
	}
	return buf, nil
}

// ReceiveWithTimeout is Receive with a caller-supplied timeout,
// overriding the session default (spec.md §4.6: "callers may override").
func (h *Handle) ReceiveWithTimeout(size int, timeout time.Duration) ([]byte, error) {
	saved := h.s.readTimeout
	h.s.readTimeout = timeout
	defer func() { h.s.readTimeout = saved }()
	return h.Receive(size)
}

// ReceiveMessageHeader reads and parses the fixed 128-byte header.
func (h *Handle) ReceiveMessageHeader() (message.Header, error) {
	raw, err := h.Receive(message.HeaderSize)
	if err != nil {
		return message.Header{}, err
	}
	return message.ParseHeader(raw)
}

// ReceiveMessage reads a full header plus its declared body. Callers
// expecting a stream frame (body_size == message.StreamBodySize) should
// use ReceiveMessageHeader and stream the body themselves.
func (h *Handle) ReceiveMessage() (message.Message, error) {
	hdr, err := h.ReceiveMessageHeader()
	if err != nil {
		return message.Message{}, err
	}
	if hdr.BodySize == message.StreamBodySize || hdr.BodySize == 0 {
		return message.Message{Header: hdr}, nil
	}
	body, err := h.Receive(int(hdr.BodySize))
	if err != nil {
		return message.Message{}, err
	}
	if err := message.VerifyBody(hdr, body); err != nil {
		return message.Message{}, err
	}
	return message.Message{Header: hdr, Body: body}, nil
}

// propertyElementHeaderSize mirrors internal/property's TLV header
// width; duplicated as a constant here to keep session free of a
// dependency on the property package (spec.md §6 exposes Session as an
// advanced-user primitive independent of the property codec).
const propertyElementHeaderSize = 12

// PropertyElementHeader is the decoded fixed portion of one property
// TLV: 4-byte tag, 4-byte flags, 4-byte size.
type PropertyElementHeader struct {
	Tag   [4]byte
	Flags uint32
	Size  uint32
}

// ReceivePropertyElementHeader reads the fixed 12-byte property TLV
// header, without its value bytes.
func (h *Handle) ReceivePropertyElementHeader() (PropertyElementHeader, error) {
	raw, err := h.Receive(propertyElementHeaderSize)
	if err != nil {
		return PropertyElementHeader{}, err
	}
	var eh PropertyElementHeader
	copy(eh.Tag[:], raw[0:4])
	eh.Flags = be32(raw[4:8])
	eh.Size = be32(raw[8:12])
	return eh, nil
}

// InstallEncryption enables AES-128-CTR session encryption from within a
// job that already holds the exclusive handle, e.g. immediately after
// the SRP handshake's S4 step (spec.md §4.5). It fails with
// EncryptionStateError if a context is already installed.
func (h *Handle) InstallEncryption(enc *srp.EncryptionContext) error {
	if h.s.enc != nil {
		return &acperr.EncryptionState{Reason: "encryption already installed for this session"}
	}
	h.s.enc = enc
	return nil
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
