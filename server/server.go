package server

import (
	stderrors "errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nczempin/httpd-go-uring/errors"
	"github.com/nczempin/httpd-go-uring/poller"
	"github.com/nczempin/httpd-go-uring/transport"
)

// ErrServerClosed is returned by Serve after Shutdown
var ErrServerClosed = stderrors.New("server closed")

var listenerToken = poller.Token{Slot: -1}

// acceptRetry is how long accepting stays paused after the process ran out of
// descriptors, unless a connection closes first
const acceptRetry = 100 * time.Millisecond

// Server is a single-goroutine HTTP/1.x server driven by epoll readiness.
// Every connection carries one request and one response, then is closed.
type Server struct {
	cfg      Config
	handler  Handler
	log      *log.Logger
	poller   *poller.Poller
	listener *transport.Listener

	conns  connTable
	events []poller.Event

	// zero while the listener is registered with the poller
	acceptPausedAt time.Time

	mu      sync.Mutex // guards closed against Shutdown
	closed  bool
	closing atomic.Bool
	live    atomic.Int64
}

// New binds the listener and creates the poller. Failing either is fatal.
func New(cfg Config, handler Handler) (*Server, error) {
	if handler == nil {
		return nil, errors.NewInvalidArgumentError("handler is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	var (
		l   *transport.Listener
		err error
	)
	if cfg.UnixPath != "" {
		l, err = transport.ListenUnix(cfg.UnixPath, cfg.Backlog)
	} else {
		l, err = transport.ListenTCP(cfg.Port, cfg.Backlog)
	}
	if err != nil {
		return nil, err
	}

	p, err := poller.New(cfg.MaxEvents)
	if err != nil {
		l.Close()
		return nil, err
	}
	if err := p.Add(l.Fd(), poller.Readable, listenerToken); err != nil {
		p.Close()
		l.Close()
		return nil, err
	}

	return &Server{
		cfg:      cfg,
		handler:  handler,
		log:      cfg.Logger,
		poller:   p,
		listener: l,
		events:   make([]poller.Event, 0, cfg.MaxEvents),
	}, nil
}

// Addr describes the bound address
func (s *Server) Addr() string {
	return s.listener.Addr()
}

// Port returns the bound TCP port
func (s *Server) Port() int {
	return s.listener.Port()
}

// ConnCount returns the number of connections in the table. Safe from any goroutine.
func (s *Server) ConnCount() int {
	return int(s.live.Load())
}

// Shutdown makes Serve close every connection and return. Safe from any goroutine.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.closing.Swap(true) {
		return nil
	}
	return s.poller.Wakeup()
}

// Serve runs the loop until Shutdown or a poller failure
func (s *Server) Serve() error {
	s.log.Printf("listening on %s (buffer %d bytes)", s.Addr(), s.cfg.BufferSize)

	for !s.closing.Load() {
		events, err := s.poller.Wait(s.events, s.waitTimeout())
		if err != nil {
			s.close()
			return err
		}
		s.events = events

		for _, ev := range events {
			switch ev.Token {
			case poller.WakeupToken:
			case listenerToken:
				s.acceptAll()
			default:
				s.dispatch(ev)
			}
		}
		if s.acceptPaused() && time.Since(s.acceptPausedAt) >= acceptRetry {
			s.resumeAccept()
		}
	}

	s.close()
	return ErrServerClosed
}

func (s *Server) acceptAll() {
	for {
		sock, err := s.listener.Accept()
		if err != nil {
			if !stderrors.Is(err, transport.ErrWouldBlock) {
				s.acceptFailed(err)
			}
			return
		}
		s.open(sock)
	}
}

// acceptFailed pauses accepting when descriptors ran out. The connection
// stays queued and the level-triggered listener would report it on every wait.
func (s *Server) acceptFailed(err error) {
	s.log.Printf("accept: %v", err)
	if !errors.IsTransport(err, errors.TransportErrorResourceExhausted) || s.acceptPaused() {
		return
	}
	if err := s.poller.Remove(s.listener.Fd()); err != nil {
		s.log.Printf("pause accept: %v", err)
		return
	}
	s.acceptPausedAt = time.Now()
}

func (s *Server) acceptPaused() bool {
	return !s.acceptPausedAt.IsZero()
}

func (s *Server) resumeAccept() {
	if err := s.poller.Add(s.listener.Fd(), poller.Readable, listenerToken); err != nil {
		s.log.Printf("resume accept: %v", err)
		return
	}
	s.acceptPausedAt = time.Time{}
}

// waitTimeout is -1 unless accepting is paused, then the time left until retry
func (s *Server) waitTimeout() int {
	if !s.acceptPaused() {
		return -1
	}
	left := acceptRetry - time.Since(s.acceptPausedAt)
	if left <= 0 {
		return 0
	}
	return int(left/time.Millisecond) + 1
}

func (s *Server) open(sock Socket) {
	c := newConn(sock, s.cfg.BufferSize)
	c.acc.SetMaxBody(s.cfg.MaxBodySize)
	c.tok = s.conns.insert(c)
	if err := s.poller.Add(sock.Fd(), poller.Readable, c.tok); err != nil {
		s.log.Printf("%s: register: %v", sock.Peer(), err)
		s.conns.remove(c.tok)
		sock.Close()
		return
	}
	s.live.Add(1)
}

func (s *Server) dispatch(ev poller.Event) {
	c := s.conns.lookup(ev.Token)
	if c == nil {
		return
	}

	switch c.state {
	case stateReading:
		ready, err := c.onReadable()
		if err != nil {
			s.logSocketError(c, err)
			s.closeConn(c)
			return
		}
		if !ready {
			return
		}
		if c.failure != nil {
			s.log.Printf("%s: %v", c.sock.Peer(), c.failure)
		}
		c.out = respond(c, s.handler).Serialize()
		c.state = stateWriting
		if err := s.poller.Modify(c.sock.Fd(), poller.Writable, c.tok); err != nil {
			s.log.Printf("%s: %v", c.sock.Peer(), err)
			s.closeConn(c)
		}

	case stateWriting:
		done, err := c.flush()
		if err != nil {
			s.logSocketError(c, err)
			s.closeConn(c)
			return
		}
		if done {
			s.linger(c)
		}

	case stateLingering:
		if c.discard() {
			s.closeConn(c)
		}
	}
}

// linger shuts the write side once the response is out and waits for the
// peer to hang up, so unread request bytes cannot turn the close into a reset
func (s *Server) linger(c *conn) {
	if err := c.sock.CloseWrite(); err != nil {
		s.logSocketError(c, err)
		s.closeConn(c)
		return
	}
	c.state = stateLingering
	if err := s.poller.Modify(c.sock.Fd(), poller.Readable, c.tok); err != nil {
		s.log.Printf("%s: %v", c.sock.Peer(), err)
		s.closeConn(c)
	}
}

func (s *Server) logSocketError(c *conn, err error) {
	// a peer leaving before its request is complete is routine
	if errors.IsTransport(err, errors.TransportErrorConnectionClosed) {
		return
	}
	s.log.Printf("%s: %v", c.sock.Peer(), err)
}

func (s *Server) closeConn(c *conn) {
	s.poller.Remove(c.sock.Fd())
	if err := c.sock.Close(); err != nil {
		s.log.Printf("%s: %v", c.sock.Peer(), err)
	}
	s.conns.remove(c.tok)
	s.live.Add(-1)

	if s.acceptPaused() {
		s.resumeAccept()
	}
}

func (s *Server) close() {
	if n := s.conns.len(); n > 0 {
		s.log.Printf("closing %d open connections", n)
	}
	s.conns.each(s.closeConn)
	if !s.acceptPaused() {
		s.poller.Remove(s.listener.Fd())
	}
	if err := s.listener.Close(); err != nil {
		s.log.Printf("close listener: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if err := s.poller.Close(); err != nil {
		s.log.Printf("close poller: %v", err)
	}
}
