package session

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/acpgo/acp/internal/cflplist"
	"github.com/acpgo/acp/internal/message"
)

// listenOnce starts a one-shot TCP server on localhost and hands the
// accepted connection to serve in a new goroutine, returning the address
// to dial. Grounded on the teacher's habit of exercising transport code
// against a real net.Conn rather than a mock.
func listenOnce(t *testing.T, serve func(c net.Conn)) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	go func() {
		c, err := l.Accept()
		if err != nil {
			return
		}
		serve(c)
	}()
	return l.Addr().String()
}

func TestDialEchoExchange(t *testing.T) {
	addr := listenOnce(t, func(c net.Conn) {
		defer c.Close()
		buf := make([]byte, message.HeaderSize)
		if _, err := io.ReadFull(c, buf); err != nil {
			return
		}
		req, err := message.Parse(buf)
		if err != nil {
			return
		}
		resp := message.NewRequest(req.Header.Command, "admin", 0, nil)
		out, _ := resp.Marshal()
		c.Write(out)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := Dial(ctx, addr, "admin", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer s.Close()

	var gotCmd message.Command
	err = s.Enqueue(ctx, func(h *Handle) error {
		req := message.NewRequest(message.CmdEcho, s.Password(), 0, nil)
		if err := h.Send(req); err != nil {
			return err
		}
		hdr, err := h.ReceiveMessageHeader()
		if err != nil {
			return err
		}
		gotCmd = hdr.Command
		return nil
	})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if gotCmd != message.CmdEcho {
		t.Fatalf("expected echo reply, got %v", gotCmd)
	}
}

func TestMonitorFrameDeliveredWhileIdle(t *testing.T) {
	val := cflplist.DictOf(nil, nil)
	body, err := cflplist.Compose(val)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	addr := listenOnce(t, func(c net.Conn) {
		defer c.Close()
		frame := make([]byte, 0, 10+len(body))
		frame = append(frame, 'X', 'E')
		frame = append(frame, 0, 0, 0, 0) // magic (unchecked by client)
		lenBuf := make([]byte, 4)
		putBE32(lenBuf, uint32(len(body)))
		frame = append(frame, lenBuf...)
		frame = append(frame, body...)
		c.Write(frame)
		time.Sleep(500 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := Dial(ctx, addr, "admin", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer s.Close()

	select {
	case ev, ok := <-s.Monitor():
		if !ok {
			t.Fatalf("monitor channel closed unexpectedly")
		}
		if ev.Value.Kind() != cflplist.KindDict {
			t.Fatalf("expected dict monitor event, got %v", ev.Value.Kind())
		}
	case <-time.After(1500 * time.Millisecond):
		t.Fatalf("timed out waiting for monitor event")
	}
}

func TestEnqueueAfterCloseRejectsImmediately(t *testing.T) {
	addr := listenOnce(t, func(c net.Conn) { c.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := Dial(ctx, addr, "admin", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	s.Close()

	err = s.Enqueue(ctx, func(h *Handle) error { return nil })
	if err == nil {
		t.Fatalf("expected error enqueueing on a closed session")
	}
}

func putBE32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
