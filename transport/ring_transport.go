package transport

import (
	"fmt"
	"net"
	"os"
	"syscall"

	"github.com/godzie44/go-uring/uring"
	"github.com/nczempin/httpd-go-uring/errors"
)

// RingTransport implements Transport over TCP using github.com/godzie44/go-uring
type RingTransport struct {
	ring *uring.Ring
	fd   int
	file *os.File
}

// NewRingTransport creates a TCP transport backed by a go-uring ring
func NewRingTransport() (*RingTransport, error) {
	// Create io_uring instance with queue depth of 32
	ring, err := uring.New(32)
	if err != nil {
		return nil, errors.NewTransportError(
			errors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}

	return &RingTransport{
		ring: ring,
		fd:   -1,
	}, nil
}

// Connect establishes a TCP connection. The connect itself is a blocking syscall.
func (t *RingTransport) Connect(host string, port int) error {
	if t.fd >= 0 {
		return errors.NewTransportError(
			errors.TransportErrorSocketConnectFailure,
			"already connected",
			nil,
		)
	}

	addr := net.JoinHostPort(host, fmt.Sprint(port))
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return errors.NewTransportError(
			errors.TransportErrorDnsFailure,
			fmt.Sprintf("failed to resolve %s", addr),
			err,
		)
	}

	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_STREAM|syscall.SOCK_CLOEXEC, 0)
	if err != nil {
		return errors.NewTransportError(
			errors.TransportErrorSocketCreateFailure,
			"failed to create socket",
			err,
		)
	}

	sa := &syscall.SockaddrInet4{Port: tcpAddr.Port}
	copy(sa.Addr[:], tcpAddr.IP.To4())

	if err := syscall.Connect(fd, sa); err != nil {
		syscall.Close(fd)
		return errors.NewTransportError(
			errors.TransportErrorSocketConnectFailure,
			fmt.Sprintf("failed to connect to %s", addr),
			err,
		)
	}

	if err := syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1); err != nil {
		syscall.Close(fd)
		return errors.NewTransportError(
			errors.TransportErrorSocketCreateFailure,
			"failed to set TCP_NODELAY",
			err,
		)
	}

	t.fd = fd
	t.file = os.NewFile(uintptr(fd), "socket")
	return nil
}

// complete queues one operation, submits it and waits for its result
func (t *RingTransport) complete(op uring.Operation, code errors.TransportError) (int, error) {
	if err := t.ring.QueueSQE(op, 0, 0); err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorIoUringSubmit,
			"failed to queue request",
			err,
		)
	}

	if _, err := t.ring.Submit(); err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorIoUringSubmit,
			"failed to submit request",
			err,
		)
	}

	cqe, err := t.ring.WaitCQEvents(1)
	if err != nil {
		return 0, errors.NewTransportError(code, "failed to wait for completion", err)
	}

	if err := cqe.Error(); err != nil {
		t.ring.SeenCQE(cqe)
		if err == syscall.ECONNRESET || err == syscall.EPIPE {
			code = errors.TransportErrorConnectionReset
		}
		return 0, errors.NewTransportError(code, "operation failed", err)
	}

	n := int(cqe.Res)
	t.ring.SeenCQE(cqe)
	return n, nil
}

// Write sends all of buf, resubmitting the remainder after short writes
func (t *RingTransport) Write(buf []byte) (int, error) {
	if t.fd < 0 {
		return 0, errors.NewTransportError(
			errors.TransportErrorSocketWriteFailure,
			"not connected",
			nil,
		)
	}

	totalWritten := 0
	for totalWritten < len(buf) {
		// stream sockets ignore the offset
		n, err := t.complete(uring.Write(t.file.Fd(), buf[totalWritten:], 0), errors.TransportErrorSocketWriteFailure)
		if err != nil {
			return totalWritten, err
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

// Read receives data from the connection
func (t *RingTransport) Read(buf []byte) (int, error) {
	if t.fd < 0 {
		return 0, errors.NewTransportError(
			errors.TransportErrorSocketReadFailure,
			"not connected",
			nil,
		)
	}

	n, err := t.complete(uring.Read(t.file.Fd(), buf, 0), errors.TransportErrorSocketReadFailure)
	if err != nil {
		return 0, err
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

// Close closes the connection
func (t *RingTransport) Close() error {
	if t.fd < 0 {
		return nil
	}

	var err error
	if t.file != nil {
		err = t.file.Close()
		t.file = nil
	}
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
func (t *RingTransport) Destroy() {
	t.Close()
	if t.ring != nil {
		t.ring.Close()
		t.ring = nil
	}
}
