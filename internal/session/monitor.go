package session

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/acpgo/acp/internal/cflplist"
)

// tryDeliverMonitorFrame inspects the buffer head for the "XE" sentinel
// during an idle window (spec.md §4.6/§9): only while no queued request
// is running does the session own the right to peek ahead. Returns
// delivered=true if a frame (monitor or an unrecognised drained byte)
// was consumed, so the loop should re-check the job queue promptly
// instead of immediately polling again.
func (s *Session) tryDeliverMonitorFrame(budget time.Duration) (delivered bool, err error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(budget)); err != nil {
		return false, err
	}
	prefix, err := s.br.Peek(2)
	if err != nil {
		if isTimeout(err) {
			return false, nil
		}
		if errors.Is(err, io.EOF) {
			return false, err
		}
		return false, err
	}

	if string(prefix) != monitorMagic {
		// Unrecognised prefix: drain one byte and let the caller retry,
		// per spec.md §4.6 ("any other unmatched prefix ... drains the
		// buffer").
		s.log.Warn("session: unrecognised unsolicited prefix", zap.Uint8("byte", prefix[0]))
		if _, err := s.br.Discard(1); err != nil {
			return false, err
		}
		return true, nil
	}

	if _, err := s.br.Discard(2); err != nil {
		return false, err
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
		return false, err
	}
	hdr := make([]byte, 8)
	if _, err := io.ReadFull(s.br, hdr); err != nil {
		return false, err
	}
	bodyLen := binary.BigEndian.Uint32(hdr[4:8])

	body := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(s.br, body); err != nil {
			return false, err
		}
	}

	val, perr := cflplist.Parse(body)
	if perr != nil {
		s.log.Warn("session: malformed monitor frame body", zap.Error(perr))
		return true, nil
	}

	select {
	case s.monitorCh <- MonitorEvent{Value: val}:
	default:
		s.log.Warn("session: monitor channel full, dropping event")
	}
	return true, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
