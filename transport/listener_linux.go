//go:build linux

package transport

import (
	"fmt"
	"os"

	"github.com/nczempin/httpd-go-uring/errors"
	"golang.org/x/sys/unix"
)

// Listener is a non-blocking listening socket
type Listener struct {
	fd       int
	unixPath string
}

// ListenTCP binds 0.0.0.0:port. Port 0 picks a free port, see Port.
func ListenTCP(port, backlog int) (*Listener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, errors.NewTransportError(
			errors.TransportErrorSocketCreateFailure,
			"failed to create socket",
			err,
		)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, errors.NewTransportError(
			errors.TransportErrorSocketCreateFailure,
			"failed to set SO_REUSEADDR",
			err,
		)
	}

	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		unix.Close(fd)
		return nil, errors.NewTransportError(
			errors.TransportErrorBindFailure,
			fmt.Sprintf("failed to bind port %d", port),
			err,
		)
	}

	return listen(fd, backlog, "")
}

// ListenUnix binds a Unix domain socket at path, replacing a stale socket file
func ListenUnix(path string, backlog int) (*Listener, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, errors.NewTransportError(
			errors.TransportErrorSocketCreateFailure,
			"failed to create socket",
			err,
		)
	}

	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSocket != 0 {
		os.Remove(path)
	}

	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return nil, errors.NewTransportError(
			errors.TransportErrorBindFailure,
			fmt.Sprintf("failed to bind %s", path),
			err,
		)
	}

	return listen(fd, backlog, path)
}

func listen(fd, backlog int, unixPath string) (*Listener, error) {
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		if unixPath != "" {
			os.Remove(unixPath)
		}
		return nil, errors.NewTransportError(
			errors.TransportErrorListenFailure,
			"listen failed",
			err,
		)
	}
	return &Listener{fd: fd, unixPath: unixPath}, nil
}

// Fd returns the listening descriptor
func (l *Listener) Fd() int {
	return l.fd
}

// Addr describes the bound address
func (l *Listener) Addr() string {
	sa, err := unix.Getsockname(l.fd)
	if err != nil {
		return "?"
	}
	return formatSockaddr(sa)
}

// Port returns the bound TCP port, or 0 for Unix listeners
func (l *Listener) Port() int {
	sa, err := unix.Getsockname(l.fd)
	if err != nil {
		return 0
	}
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return v.Port
	case *unix.SockaddrInet6:
		return v.Port
	default:
		return 0
	}
}

// Accept takes one pending connection. ErrWouldBlock means the queue is empty.
func (l *Listener) Accept() (*Socket, error) {
	for {
		fd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch {
		case err == unix.EINTR || err == unix.ECONNABORTED:
			continue
		case err == unix.EAGAIN:
			return nil, ErrWouldBlock
		case err == unix.EMFILE || err == unix.ENFILE || err == unix.ENOBUFS || err == unix.ENOMEM:
			// the pending connection stays queued
			return nil, errors.NewTransportError(
				errors.TransportErrorResourceExhausted,
				"accept failed",
				err,
			)
		case err != nil:
			return nil, errors.NewTransportError(
				errors.TransportErrorAcceptFailure,
				"accept failed",
				err,
			)
		}

		peer := "unix:" + l.unixPath
		if sa != nil {
			if _, isUnix := sa.(*unix.SockaddrUnix); !isUnix {
				peer = formatSockaddr(sa)
			}
		}
		return &Socket{fd: fd, peer: peer}, nil
	}
}

// Close stops listening and removes the socket file of a Unix listener
func (l *Listener) Close() error {
	if l.fd < 0 {
		return nil
	}
	err := unix.Close(l.fd)
	l.fd = -1
	if l.unixPath != "" {
		os.Remove(l.unixPath)
	}
	if err != nil {
		return errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"failed to close listener",
			err,
		)
	}
	return nil
}
