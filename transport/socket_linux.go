//go:build linux

package transport

import (
	stderrors "errors"
	"fmt"
	"net"
	"strconv"

	"github.com/nczempin/httpd-go-uring/errors"
	"golang.org/x/sys/unix"
)

// ErrWouldBlock is returned when a non-blocking operation cannot make progress yet
var ErrWouldBlock = stderrors.New("operation would block")

// Socket is an accepted, non-blocking connection
type Socket struct {
	fd   int
	peer string
}

// NewSocket wraps a connected fd and switches it to non-blocking mode
func NewSocket(fd int, peer string) (*Socket, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, errors.NewTransportError(
			errors.TransportErrorSocketCreateFailure,
			"failed to set non-blocking mode",
			err,
		)
	}
	return &Socket{fd: fd, peer: peer}, nil
}

// Fd returns the underlying descriptor
func (s *Socket) Fd() int {
	return s.fd
}

// Peer returns the remote address in host:port form, or the socket path for Unix peers
func (s *Socket) Peer() string {
	return s.peer
}

// Read performs one non-blocking read
func (s *Socket) Read(buf []byte) (int, error) {
	for {
		n, err := unix.Read(s.fd, buf)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, ErrWouldBlock
		case err == unix.ECONNRESET:
			return 0, errors.NewTransportError(
				errors.TransportErrorConnectionReset,
				"read failed",
				err,
			)
		case err != nil:
			return 0, errors.NewTransportError(
				errors.TransportErrorSocketReadFailure,
				"read failed",
				err,
			)
		case n == 0 && len(buf) > 0:
			return 0, errors.NewTransportError(
				errors.TransportErrorConnectionClosed,
				"connection closed by peer",
				nil,
			)
		}
		return n, nil
	}
}

// Write performs one non-blocking write and may accept only part of buf
func (s *Socket) Write(buf []byte) (int, error) {
	for {
		n, err := unix.SendmsgN(s.fd, buf, nil, nil, unix.MSG_NOSIGNAL)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, ErrWouldBlock
		case err == unix.EPIPE || err == unix.ECONNRESET:
			return 0, errors.NewTransportError(
				errors.TransportErrorConnectionReset,
				"write failed",
				err,
			)
		case err != nil:
			return 0, errors.NewTransportError(
				errors.TransportErrorSocketWriteFailure,
				"write failed",
				err,
			)
		}
		return n, nil
	}
}

// CloseWrite shuts down the sending side; the peer reads EOF after the
// bytes already written
func (s *Socket) CloseWrite() error {
	if err := unix.Shutdown(s.fd, unix.SHUT_WR); err != nil {
		return errors.NewTransportError(
			errors.TransportErrorSocketWriteFailure,
			"shutdown failed",
			err,
		)
	}
	return nil
}

// Close closes the connection
func (s *Socket) Close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	if err != nil {
		return errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"failed to close socket",
			err,
		)
	}
	return nil
}

func formatSockaddr(sa unix.Sockaddr) string {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(v.Addr[:]).String(), strconv.Itoa(v.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(v.Addr[:]).String(), strconv.Itoa(v.Port))
	case *unix.SockaddrUnix:
		if v.Name == "" {
			return "unix:@"
		}
		return "unix:" + v.Name
	default:
		return fmt.Sprintf("%T", sa)
	}
}
