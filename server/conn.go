package server

import (
	stderrors "errors"
	"fmt"

	"github.com/nczempin/httpd-go-uring/errors"
	"github.com/nczempin/httpd-go-uring/poller"
	"github.com/nczempin/httpd-go-uring/protocol"
	"github.com/nczempin/httpd-go-uring/transport"
)

// Socket is the non-blocking connection a conn reads from and writes to
type Socket interface {
	Fd() int
	Peer() string
	// Read and Write return transport.ErrWouldBlock when they cannot progress
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	// CloseWrite sends FIN while the read side stays open
	CloseWrite() error
	Close() error
}

type connState int

const (
	stateReading connState = iota
	stateWriting
	// response sent and write side shut; input is discarded until the peer closes
	stateLingering
)

// maxLingerBytes caps the input discarded after a response. A peer still
// sending past it is closed regardless.
const maxLingerBytes = 1 << 20

// conn is one accepted socket, used for exactly one request and response
type conn struct {
	sock  Socket
	tok   poller.Token
	state connState

	buf    []byte // fixed capacity, shared by the read and write side
	filled int    // unread request bytes at the front of buf

	acc     *protocol.Accumulator
	failure error // parse error to report instead of a handler page

	discarded int // bytes thrown away while lingering

	out        []byte // serialized response
	written    int    // bytes of out the socket has accepted
	chunkStart int    // unwritten part of the chunk loaded in buf
	chunkEnd   int
}

func newConn(sock Socket, bufferSize int) *conn {
	return &conn{
		sock:  sock,
		state: stateReading,
		buf:   make([]byte, bufferSize),
		acc:   protocol.NewAccumulator(),
	}
}

// onReadable performs one read and advances the parser. ready reports that
// the connection has something to answer: a complete request or a parse
// failure. A non-nil error means the socket is unusable.
func (c *conn) onReadable() (ready bool, err error) {
	n, err := c.sock.Read(c.buf[c.filled:])
	if err != nil {
		if stderrors.Is(err, transport.ErrWouldBlock) {
			return false, nil
		}
		return false, err
	}
	c.filled += n

	consumed, perr := c.acc.Advance(c.buf[:c.filled])
	c.filled = copy(c.buf, c.buf[consumed:c.filled])
	if perr != nil {
		c.failure = perr
		return true, nil
	}
	if c.acc.Done() {
		return true, nil
	}

	if c.filled == len(c.buf) {
		c.failure = errors.NewProtocolError(
			errors.ProtocolErrorLineTooLong,
			fmt.Sprintf("%s line exceeds the %d byte buffer", c.acc.Phase(), len(c.buf)),
		)
		return true, nil
	}
	return false, nil
}

// discard reads and drops whatever the peer still sends once the response is
// out. Closing a socket with unread input resets the connection, which can
// destroy the response in flight. done reports that the socket can be closed:
// the peer hung up, the socket failed, or maxLingerBytes were dropped.
func (c *conn) discard() (done bool) {
	for {
		n, err := c.sock.Read(c.buf)
		if err != nil {
			return !stderrors.Is(err, transport.ErrWouldBlock)
		}
		c.discarded += n
		if c.discarded >= maxLingerBytes {
			return true
		}
	}
}
