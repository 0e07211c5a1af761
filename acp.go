// Package acp is the library surface for the ACP client: a high-level
// façade over the lower internal/ codecs and the single-session request
// queue. Grounded on the shape of the teacher's cmd/ttmesh-client driver
// (dial, handshake, send/await-reply) collapsed into a reusable type
// rather than a one-shot main func.
package acp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/acpgo/acp/internal/acperr"
	"github.com/acpgo/acp/internal/cflplist"
	"github.com/acpgo/acp/internal/message"
	"github.com/acpgo/acp/internal/property"
	"github.com/acpgo/acp/internal/session"
	"github.com/acpgo/acp/internal/srp"
)

// Client is the high-level ACP client façade: connect, authenticate,
// and run the handful of operations the rest of this package's internal
// codecs exist to serve (spec.md §4.7).
type Client struct {
	host     string
	port     int
	password string

	dialTimeout time.Duration
	log         *zap.Logger

	mu   sync.Mutex
	sess *session.Session

	authMu     sync.Mutex
	authFuture *authFuture
}

// Option configures optional Client behaviour.
type Option func(*Client)

// WithLogger overrides the zap.Logger used for connection-lifecycle
// messages. Defaults to zap.L(), the global logger installed by
// internal/observability.Setup.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithDialTimeout overrides the TCP connect timeout. Defaults to 5s.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialTimeout = d }
}

// New constructs a Client for the given base station. The connection is
// not opened until Connect is called.
func New(host string, port int, password string, opts ...Option) *Client {
	c := &Client{
		host:        host,
		port:        port,
		password:    password,
		dialTimeout: 5 * time.Second,
		log:         zap.L(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens the TCP connection and starts the session's request
// queue. Calling Connect on an already-connected Client replaces the
// prior session.
func (c *Client) Connect(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()
	sess, err := session.Dial(dialCtx, fmt.Sprintf("%s:%d", c.host, c.port), c.password, c.log)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.sess = sess
	c.mu.Unlock()
	return nil
}

// Close terminates the underlying session, failing any exchange still
// in flight.
func (c *Client) Close() error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return nil
	}
	return sess.Close()
}

// Monitor returns the channel unsolicited server-pushed events are
// published on (spec.md §4.6).
func (c *Client) Monitor() <-chan session.MonitorEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Monitor()
}

func (c *Client) session() (*session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil, &acperr.Transport{Op: "session", Err: fmt.Errorf("not connected")}
	}
	return c.sess, nil
}

// authFuture is the shared in-flight promise concurrent Authenticate
// callers wait on, per spec.md §4.7's idempotency requirement.
type authFuture struct {
	done chan struct{}
	err  error
}

// Authenticate runs the SRP-6a handshake if no context is installed yet.
// Concurrent callers share one in-flight attempt; once it resolves, the
// promise is cleared so a later caller may retry after a failure
// (authentication failures do not terminate the connection).
func (c *Client) Authenticate(ctx context.Context) error {
	sess, err := c.session()
	if err != nil {
		return err
	}
	if sess.Encrypted() {
		return nil
	}

	c.authMu.Lock()
	f := c.authFuture
	if f == nil {
		f = &authFuture{done: make(chan struct{})}
		c.authFuture = f
		c.authMu.Unlock()
		go func() {
			f.err = c.runHandshake(sess)
			close(f.done)
			c.authMu.Lock()
			c.authFuture = nil
			c.authMu.Unlock()
		}()
	} else {
		c.authMu.Unlock()
	}

	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runHandshake drives the four-message SRP exchange (spec.md §4.5) as a
// single queued job, then installs the resulting encryption context
// before the handle is released, so the switch to AES-CTR is atomic
// with respect to any other queued exchange.
func (c *Client) runHandshake(sess *session.Session) error {
	return sess.Enqueue(context.Background(), func(h *session.Handle) error {
		client := srp.NewClient(c.password)

		s1, err := client.Start()
		if err != nil {
			return err
		}
		if err := sendAuthDict(h, sess.Password(), s1); err != nil {
			return err
		}
		s2, err := recvAuthDict(h)
		if err != nil {
			return err
		}
		if err := client.HandleChallenge(s2); err != nil {
			return err
		}

		s3, err := client.Prove()
		if err != nil {
			return err
		}
		if err := sendAuthDict(h, sess.Password(), s3); err != nil {
			return err
		}
		s4, err := recvAuthDict(h)
		if err != nil {
			return err
		}
		enc, err := client.Verify(s4)
		if err != nil {
			return err
		}
		return h.InstallEncryption(enc)
	})
}

func sendAuthDict(h *session.Handle, password string, v cflplist.Value) error {
	body, err := cflplist.Compose(v)
	if err != nil {
		return err
	}
	req := message.NewRequest(message.CmdAuth, password, 4, body)
	return h.Send(req)
}

func recvAuthDict(h *session.Handle) (cflplist.Value, error) {
	msg, err := h.ReceiveMessage()
	if err != nil {
		return cflplist.Value{}, err
	}
	if msg.Header.ErrorCode != 0 {
		return cflplist.Value{}, &acperr.Protocol{Command: uint32(msg.Header.Command), Code: msg.Header.ErrorCode}
	}
	return cflplist.Parse(msg.Body)
}

// GetProperties reads the named properties from the device. The
// outbound GetProp body is one empty-valued property element per tag,
// with no list terminator (spec.md §8 S3); the reply's declared
// body_size covers the populated elements plus the four-NUL terminator.
func (c *Client) GetProperties(ctx context.Context, tags ...string) ([]property.Property, error) {
	sess, err := c.session()
	if err != nil {
		return nil, err
	}
	reqProps := make([]property.Property, 0, len(tags))
	for _, tag := range tags {
		p, err := property.Empty(tag)
		if err != nil {
			return nil, err
		}
		reqProps = append(reqProps, p)
	}

	var out []property.Property
	err = sess.Enqueue(ctx, func(h *session.Handle) error {
		req := message.NewRequest(message.CmdGetProp, sess.Password(), 4, composeElements(reqProps))
		if err := h.Send(req); err != nil {
			return err
		}
		msg, err := h.ReceiveMessage()
		if err != nil {
			return err
		}
		if msg.Header.ErrorCode != 0 {
			return &acperr.Protocol{Command: uint32(msg.Header.Command), Code: msg.Header.ErrorCode}
		}
		props, perr := property.ParseList(msg.Body)
		out = props
		return perr
	})
	return out, err
}

// SetProperties writes the given properties to the device. The outbound
// SetProp body is the populated elements followed by the four-NUL
// terminator.
func (c *Client) SetProperties(ctx context.Context, props ...property.Property) error {
	sess, err := c.session()
	if err != nil {
		return err
	}
	return sess.Enqueue(ctx, func(h *session.Handle) error {
		req := message.NewRequest(message.CmdSetProp, sess.Password(), 0, property.ComposeList(props))
		if err := h.Send(req); err != nil {
			return err
		}
		msg, err := h.ReceiveMessage()
		if err != nil {
			return err
		}
		if msg.Header.ErrorCode != 0 {
			return &acperr.Protocol{Command: uint32(msg.Header.Command), Code: msg.Header.ErrorCode}
		}
		if len(msg.Body) == 0 {
			return nil
		}
		_, perr := property.ParseList(msg.Body)
		return perr
	})
}

// GetFeatures enumerates the device's feature set as a CFL tree. Per
// spec.md §4.2, the Feat command always derives its header key from the
// empty password, regardless of the session's configured password.
func (c *Client) GetFeatures(ctx context.Context) (cflplist.Value, error) {
	sess, err := c.session()
	if err != nil {
		return cflplist.Value{}, err
	}
	var out cflplist.Value
	err = sess.Enqueue(ctx, func(h *session.Handle) error {
		req := message.NewRequest(message.CmdFeat, sess.Password(), 0, nil)
		if err := h.Send(req); err != nil {
			return err
		}
		msg, err := h.ReceiveMessage()
		if err != nil {
			return err
		}
		if msg.Header.ErrorCode != 0 {
			return &acperr.Protocol{Command: uint32(msg.Header.Command), Code: msg.Header.ErrorCode}
		}
		val, perr := cflplist.Parse(msg.Body)
		out = val
		return perr
	})
	return out, err
}

// FlashPrimary writes a firmware image to the primary flash bank. The
// reply body is surfaced unparsed, per spec.md §4.7.
func (c *Client) FlashPrimary(ctx context.Context, image []byte) ([]byte, error) {
	sess, err := c.session()
	if err != nil {
		return nil, err
	}
	var out []byte
	err = sess.Enqueue(ctx, func(h *session.Handle) error {
		req := message.NewRequest(message.CmdFlashPrimary, sess.Password(), 0, image)
		if err := h.Send(req); err != nil {
			return err
		}
		msg, err := h.ReceiveMessage()
		if err != nil {
			return err
		}
		if msg.Header.ErrorCode != 0 {
			return &acperr.Protocol{Command: uint32(msg.Header.Command), Code: msg.Header.ErrorCode}
		}
		out = msg.Body
		return nil
	})
	return out, err
}

// Reboot sets the acRB reboot-trigger property to 0, per spec.md §4.7's
// literal setProperties([Property("acRB", 0)]).
func (c *Client) Reboot(ctx context.Context) error {
	p, err := property.New("acRB", []byte{0})
	if err != nil {
		return err
	}
	return c.SetProperties(ctx, p)
}

func composeElements(props []property.Property) []byte {
	var out []byte
	for _, p := range props {
		out = append(out, p.Compose()...)
	}
	return out
}
