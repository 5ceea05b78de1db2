package transport

import (
	stderrors "errors"
	"fmt"
	"net"
	"syscall"

	"github.com/iceber/iouring-go"
	"github.com/nczempin/httpd-go-uring/errors"
)

// UringTransport implements Transport over TCP or Unix sockets, with sends
// and receives submitted through github.com/iceber/iouring-go
type UringTransport struct {
	iour    *iouring.IOURing
	network string
	fd      int
	closed  bool
}

// NewUringTransport creates a transport for "tcp" or "unix"
func NewUringTransport(network string) (*UringTransport, error) {
	if network != NetworkTCP && network != NetworkUnix {
		return nil, errors.NewInvalidArgumentError(fmt.Sprintf("unsupported network %q", network))
	}

	// Create io_uring instance with queue depth of 32
	iour, err := iouring.New(32)
	if err != nil {
		return nil, errors.NewTransportError(
			errors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}

	return &UringTransport{
		iour:    iour,
		network: network,
		fd:      -1,
	}, nil
}

// Connect establishes the connection
func (t *UringTransport) Connect(host string, port int) error {
	if t.fd >= 0 {
		return errors.NewTransportError(
			errors.TransportErrorSocketConnectFailure,
			"already connected",
			nil,
		)
	}

	if t.network == NetworkUnix {
		return t.connectUnix(host)
	}
	return t.connectTCP(host, port)
}

func (t *UringTransport) connectTCP(host string, port int) error {
	addr := net.JoinHostPort(host, fmt.Sprint(port))
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return errors.NewTransportError(
			errors.TransportErrorDnsFailure,
			fmt.Sprintf("failed to resolve %s", addr),
			err,
		)
	}

	var sa syscall.Sockaddr
	domain := syscall.AF_INET
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		sa4 := &syscall.SockaddrInet4{Port: tcpAddr.Port}
		copy(sa4.Addr[:], ip4)
		sa = sa4
	} else {
		sa6 := &syscall.SockaddrInet6{Port: tcpAddr.Port}
		copy(sa6.Addr[:], tcpAddr.IP)
		sa = sa6
		domain = syscall.AF_INET6
	}

	fd, err := syscall.Socket(domain, syscall.SOCK_STREAM|syscall.SOCK_CLOEXEC, 0)
	if err != nil {
		return errors.NewTransportError(
			errors.TransportErrorSocketCreateFailure,
			"failed to create socket",
			err,
		)
	}

	// Small fragments must leave the client one by one
	if err := syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1); err != nil {
		syscall.Close(fd)
		return errors.NewTransportError(
			errors.TransportErrorSocketCreateFailure,
			"failed to set TCP_NODELAY",
			err,
		)
	}

	prepReq, err := iouring.Connect(fd, sa)
	if err != nil {
		syscall.Close(fd)
		return errors.NewTransportError(
			errors.TransportErrorSocketConnectFailure,
			"failed to prepare connect request",
			err,
		)
	}

	if _, err := t.complete(prepReq, "connect"); err != nil {
		syscall.Close(fd)
		if isSubmitError(err) {
			return err
		}
		return errors.NewTransportError(
			errors.TransportErrorSocketConnectFailure,
			fmt.Sprintf("failed to connect to %s", addr),
			err,
		)
	}

	t.fd = fd
	t.closed = false
	return nil
}

func (t *UringTransport) connectUnix(path string) error {
	fd, err := syscall.Socket(syscall.AF_UNIX, syscall.SOCK_STREAM|syscall.SOCK_CLOEXEC, 0)
	if err != nil {
		return errors.NewTransportError(
			errors.TransportErrorSocketCreateFailure,
			"failed to create socket",
			err,
		)
	}

	// Use blocking connect (io_uring connect support is limited)
	if err := syscall.Connect(fd, &syscall.SockaddrUnix{Name: path}); err != nil {
		syscall.Close(fd)
		return errors.NewTransportError(
			errors.TransportErrorSocketConnectFailure,
			fmt.Sprintf("failed to connect to %s", path),
			err,
		)
	}

	t.fd = fd
	t.closed = false
	return nil
}

// Write sends all of buf through the ring, resubmitting after short sends
func (t *UringTransport) Write(buf []byte) (int, error) {
	if err := t.checkOpen(errors.TransportErrorSocketWriteFailure); err != nil {
		return 0, err
	}

	totalWritten := 0
	for totalWritten < len(buf) {
		n, err := t.complete(iouring.Send(t.fd, buf[totalWritten:], syscall.MSG_NOSIGNAL), "write")
		if err != nil {
			if isSubmitError(err) {
				return totalWritten, err
			}
			code := errors.TransportErrorSocketWriteFailure
			if err == syscall.ECONNRESET || err == syscall.EPIPE {
				code = errors.TransportErrorConnectionReset
			}
			return totalWritten, errors.NewTransportError(code, "write failed", err)
		}

		if n <= 0 {
			return totalWritten, errors.NewTransportError(
				errors.TransportErrorConnectionClosed,
				"connection closed during write",
				nil,
			)
		}

		totalWritten += n
	}

	return totalWritten, nil
}

// Read receives data through the ring
func (t *UringTransport) Read(buf []byte) (int, error) {
	if err := t.checkOpen(errors.TransportErrorSocketReadFailure); err != nil {
		return 0, err
	}

	n, err := t.complete(iouring.Recv(t.fd, buf, 0), "read")
	if err != nil {
		if isSubmitError(err) {
			return 0, err
		}
		code := errors.TransportErrorSocketReadFailure
		if err == syscall.ECONNRESET {
			code = errors.TransportErrorConnectionReset
		}
		return 0, errors.NewTransportError(code, "read failed", err)
	}

	if n == 0 && len(buf) > 0 {
		return 0, errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"connection closed by peer",
			nil,
		)
	}

	return n, nil
}

// complete submits one request and waits for its completion. The ring
// reports a byte count, or a negated errno which is returned as a
// syscall.Errno. Submission failures come back as IoUringSubmit errors.
func (t *UringTransport) complete(prep iouring.PrepRequest, op string) (int, error) {
	ch := make(chan iouring.Result, 1)
	req, err := t.iour.SubmitRequest(prep, ch)
	if err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorIoUringSubmit,
			fmt.Sprintf("failed to submit %s request", op),
			err,
		)
	}
	<-ch

	res, err := req.GetRes()
	if err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorIoUringSubmit,
			fmt.Sprintf("%s request did not complete", op),
			err,
		)
	}
	if res < 0 {
		return 0, syscall.Errno(-res)
	}
	return res, nil
}

func isSubmitError(err error) bool {
	var httpErr *errors.HttpError
	return stderrors.As(err, &httpErr)
}

func (t *UringTransport) checkOpen(code errors.TransportError) error {
	if t.closed {
		return errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"connection closed",
			nil,
		)
	}
	if t.fd < 0 {
		return errors.NewTransportError(code, "not connected", nil)
	}
	return nil
}

// Close closes the connection; the ring stays usable for another Connect
func (t *UringTransport) Close() error {
	if t.fd < 0 {
		return nil
	}

	t.closed = true
	err := syscall.Close(t.fd)
	t.fd = -1
	if err != nil {
		return errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"failed to close socket",
			err,
		)
	}
	return nil
}

// Destroy cleans up resources including the io_uring instance
func (t *UringTransport) Destroy() {
	t.Close()
	if t.iour != nil {
		t.iour.Close()
		t.iour = nil
	}
}
