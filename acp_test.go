package acp

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/acpgo/acp/internal/cflplist"
	"github.com/acpgo/acp/internal/message"
	"github.com/acpgo/acp/internal/property"
)

// listenOnce starts a one-shot TCP server and hands the accepted
// connection to serve. Grounded on the same real-socket test style used
// in internal/session/session_test.go rather than mocking the transport.
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

func readRequest(c net.Conn) (message.Message, error) {
	hb := make([]byte, message.HeaderSize)
	if _, err := io.ReadFull(c, hb); err != nil {
		return message.Message{}, err
	}
	hdr, err := message.ParseHeader(hb)
	if err != nil {
		return message.Message{}, err
	}
	if hdr.BodySize <= 0 {
		return message.Message{Header: hdr}, nil
	}
	body := make([]byte, hdr.BodySize)
	if _, err := io.ReadFull(c, body); err != nil {
		return message.Message{}, err
	}
	return message.Message{Header: hdr, Body: body}, nil
}

func writeReply(c net.Conn, cmd message.Command, body []byte) error {
	resp := message.NewRequest(cmd, "admin", 0, body)
	out, err := resp.Marshal()
	if err != nil {
		return err
	}
	_, err = c.Write(out)
	return err
}

func TestGetPropertiesRoundTrip(t *testing.T) {
	addr := listenOnce(t, func(c net.Conn) {
		defer c.Close()
		req, err := readRequest(c)
		if err != nil || req.Header.Command != message.CmdGetProp {
			return
		}
		syNm, _ := property.New("syNm", []byte("base-station"))
		body := property.ComposeList([]property.Property{syNm})
		writeReply(c, message.CmdGetProp, body)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client := New(hostOf(addr), portOf(addr), "admin")
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	props, err := client.GetProperties(ctx, "syNm")
	if err != nil {
		t.Fatalf("get properties: %v", err)
	}
	if len(props) != 1 || props[0].Tag() != "syNm" || string(props[0].Value) != "base-station" {
		t.Fatalf("unexpected properties: %+v", props)
	}
}

func TestSetPropertiesRoundTrip(t *testing.T) {
	addr := listenOnce(t, func(c net.Conn) {
		defer c.Close()
		req, err := readRequest(c)
		if err != nil || req.Header.Command != message.CmdSetProp {
			return
		}
		writeReply(c, message.CmdSetProp, nil)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client := New(hostOf(addr), portOf(addr), "admin")
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	p, err := property.New("syNm", []byte("renamed"))
	if err != nil {
		t.Fatalf("property: %v", err)
	}
	if err := client.SetProperties(ctx, p); err != nil {
		t.Fatalf("set properties: %v", err)
	}
}

func TestRebootSendsOneShotTrigger(t *testing.T) {
	addr := listenOnce(t, func(c net.Conn) {
		defer c.Close()
		req, err := readRequest(c)
		if err != nil || req.Header.Command != message.CmdSetProp {
			return
		}
		props, err := property.ParseList(req.Body)
		if err != nil || len(props) != 1 || props[0].Tag() != "acRB" {
			return
		}
		if len(props[0].Value) != 1 || props[0].Value[0] != 0 {
			return
		}
		writeReply(c, message.CmdSetProp, nil)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client := New(hostOf(addr), portOf(addr), "admin")
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	if err := client.Reboot(ctx); err != nil {
		t.Fatalf("reboot: %v", err)
	}
}

func TestGetFeaturesParsesCFLReply(t *testing.T) {
	addr := listenOnce(t, func(c net.Conn) {
		defer c.Close()
		req, err := readRequest(c)
		if err != nil || req.Header.Command != message.CmdFeat {
			return
		}
		body, _ := cflplist.Compose(cflplist.DictOf(map[string]cflplist.Value{
			"supportsMonitor": cflplist.Bool(true),
		}, []string{"supportsMonitor"}))
		writeReply(c, message.CmdFeat, body)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client := New(hostOf(addr), portOf(addr), "admin")
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	val, err := client.GetFeatures(ctx)
	if err != nil {
		t.Fatalf("get features: %v", err)
	}
	got, ok := val.Get("supportsMonitor")
	if !ok || !got.AsBool() {
		t.Fatalf("expected supportsMonitor=true, got %+v", val)
	}
}

func hostOf(addr string) string {
	host, _, _ := net.SplitHostPort(addr)
	return host
}

func portOf(addr string) int {
	_, portStr, _ := net.SplitHostPort(addr)
	var port int
	for _, ch := range portStr {
		port = port*10 + int(ch-'0')
	}
	return port
}
