// Package session owns the single TCP connection to a base station: one
// loop goroutine reads the socket, serialises queued request/response
// exchanges, and demultiplexes unsolicited "XE" monitor frames from
// queued-request replies. Grounded on the teacher's pkg/transport/tcp
// session (raw net.Conn plus bufio reader/writer under one goroutine)
// and the read-loop-dispatches-by-prefix shape of pkg/core/peering's
// HandleSession, adapted from length-prefixed/protobuf framing to ACP's
// fixed-header message codec and "XE"-prefixed monitor frames.
package session

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/acpgo/acp/internal/acperr"
	"github.com/acpgo/acp/internal/cflplist"
	"github.com/acpgo/acp/internal/srp"
)

// DefaultReadTimeout is the receive(size) default per spec.md §4.6.
const DefaultReadTimeout = 10 * time.Second

const monitorMagic = "XE"

// MonitorEvent is one unsolicited server-pushed frame, parsed as CFL.
type MonitorEvent struct {
	Value cflplist.Value
}

// Session owns one TCP connection and its request queue. The zero value
// is not usable; construct with Dial.
type Session struct {
	conn net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer

	password string

	jobCh  chan *pendingJob
	closed chan struct{}

	closeOnce sync.Once
	fatalErr  error

	enc *srp.EncryptionContext

	monitorCh chan MonitorEvent

	readTimeout time.Duration
	log         *zap.Logger
}

// Dial opens a TCP connection to addr and starts the session's run loop.
// password is retained only for header-key derivation (spec.md §3's
// "stored plaintext password" session attribute); it is never logged.
func Dial(ctx context.Context, addr, password string, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	d := &net.Dialer{}
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &acperr.Transport{Op: "dial", Err: err}
	}
	s := &Session{
		conn:        c,
		password:    password,
		jobCh:       make(chan *pendingJob),
		closed:      make(chan struct{}),
		monitorCh:   make(chan MonitorEvent, 32),
		readTimeout: DefaultReadTimeout,
		log:         log,
	}
	// br/bw wrap decrypt-on-read/encrypt-on-write adapters rather than the
	// raw connection, so that once InstallEncryption flips s.enc, every
	// byte crossing the socket in either direction passes through AES-CTR
	// exactly once and in order (spec.md §4.6's encryption boundary).
	s.br = bufio.NewReaderSize(connReader{s: s}, 64*1024)
	s.bw = bufio.NewWriterSize(connWriter{s: s}, 64*1024)
	go s.loop()
	return s, nil
}

// connReader decrypts inbound bytes through the session's server→client
// stream, if installed, the instant they leave the kernel socket buffer.
type connReader struct{ s *Session }

func (r connReader) Read(p []byte) (int, error) {
	n, err := r.s.conn.Read(p)
	if n > 0 && r.s.enc != nil {
		r.s.enc.DecryptInbound(p[:n], p[:n])
	}
	return n, err
}

// connWriter encrypts outbound bytes through the session's client→server
// stream, if installed, immediately before the socket write.
type connWriter struct{ s *Session }

func (w connWriter) Write(p []byte) (int, error) {
	if w.s.enc != nil {
		w.s.enc.EncryptOutbound(p, p)
	}
	return w.s.conn.Write(p)
}

// Password returns the session's stored plaintext password, used by the
// façade to derive per-message header keys (spec.md §4.2).
func (s *Session) Password() string { return s.password }

// Monitor returns the channel unsolicited frames are published on. The
// channel is closed when the session fails or is closed.
func (s *Session) Monitor() <-chan MonitorEvent { return s.monitorCh }

// Encrypted reports whether an encryption context is currently installed.
// The check runs as a queued job so it never races the loop goroutine's
// own reads of s.enc.
func (s *Session) Encrypted() bool {
	var got bool
	_ = s.Enqueue(context.Background(), func(h *Handle) error {
		got = s.enc != nil
		return nil
	})
	return got
}

// InstallEncryption enables AES-128-CTR session encryption as its own
// queued step. Callers that already hold a Handle (e.g. mid-handshake)
// should call Handle.InstallEncryption directly instead, since Enqueue
// from within a running job would deadlock against the single loop
// goroutine.
func (s *Session) InstallEncryption(ctx context.Context, enc *srp.EncryptionContext) error {
	return s.Enqueue(ctx, func(h *Handle) error {
		return h.InstallEncryption(enc)
	})
}

// Close terminates the connection and fails every pending and future
// queued exchange with a connection-lost signal (spec.md §5).
func (s *Session) Close() error {
	s.fail(&acperr.Transport{Op: "close", Err: errors.New("session closed by caller")})
	return s.conn.Close()
}

func (s *Session) fail(err error) {
	s.closeOnce.Do(func() {
		s.fatalErr = err
		close(s.closed)
		close(s.monitorCh)
	})
}

// Enqueue obtains the exclusive session handle: fn runs with sole
// ownership of the connection once prior queued work has finished, and
// the handle is invalidated when fn returns (spec.md §4.6). Enqueueing
// after the session has failed or been closed rejects immediately.
func (s *Session) Enqueue(ctx context.Context, fn func(h *Handle) error) error {
	pj := &pendingJob{fn: fn, done: make(chan error, 1)}
	select {
	case <-s.closed:
		return s.connectionLostErr()
	default:
	}
	select {
	case s.jobCh <- pj:
	case <-s.closed:
		return s.connectionLostErr()
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-pj.done:
		return err
	case <-s.closed:
		return s.connectionLostErr()
	}
}

func (s *Session) connectionLostErr() error {
	if s.fatalErr != nil {
		return s.fatalErr
	}
	return &acperr.Transport{Op: "enqueue", Err: errors.New("session not connected")}
}

type pendingJob struct {
	fn   func(h *Handle) error
	done chan error
}

// loop is the single goroutine that owns the connection, matching
// spec.md §4.6's single-threaded cooperative scheduling model: it
// alternates between running a queued exchange to completion and, while
// idle, polling the buffer head for unsolicited monitor frames.
func (s *Session) loop() {
	const idlePoll = 50 * time.Millisecond
	for {
		select {
		case pj := <-s.jobCh:
			s.runJob(pj)
			if s.fatalErr != nil {
				return
			}
			continue
		case <-s.closed:
			return
		default:
		}

		delivered, err := s.tryDeliverMonitorFrame(idlePoll)
		if err != nil {
			s.fail(&acperr.Transport{Op: "recv", Err: err})
			return
		}
		if !delivered {
			// Nothing arrived within the poll window; give the next
			// Enqueue call a chance to win the loop's attention instead
			// of spinning tight against an idle socket.
			select {
			case pj := <-s.jobCh:
				s.runJob(pj)
				if s.fatalErr != nil {
					return
				}
			case <-s.closed:
				return
			case <-time.After(time.Millisecond):
			}
		}
	}
}

func (s *Session) runJob(pj *pendingJob) {
	h := &Handle{s: s}
	err := pj.fn(h)
	pj.done <- err
	if isFatalTransport(err) {
		s.fail(err)
	}
}

func isFatalTransport(err error) bool {
	var te *acperr.Transport
	return errors.As(err, &te)
}
