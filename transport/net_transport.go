package transport

import (
	stderrors "errors"
	"io"
	"net"
	"strconv"
	"syscall"

	"github.com/nczempin/httpd-go-uring/errors"
)

// NetTransport implements Transport over the runtime's net.Conn, for hosts
// where io_uring is not available
type NetTransport struct {
	network string
	conn    net.Conn
}

// NewNetTransport creates a transport for "tcp" or "unix"
func NewNetTransport(network string) (*NetTransport, error) {
	if network != NetworkTCP && network != NetworkUnix {
		return nil, errors.NewInvalidArgumentError("unsupported network " + network)
	}
	return &NetTransport{network: network}, nil
}

// Connect dials host:port, or the socket path in host for Unix
func (t *NetTransport) Connect(host string, port int) error {
	addr := host
	if t.network == NetworkTCP {
		addr = net.JoinHostPort(host, strconv.Itoa(port))
	}

	conn, err := net.Dial(t.network, addr)
	if err != nil {
		var dnsErr *net.DNSError
		if stderrors.As(err, &dnsErr) {
			return errors.NewTransportError(errors.TransportErrorDnsFailure, "failed to resolve "+host, err)
		}
		return errors.NewTransportError(errors.TransportErrorSocketConnectFailure, "failed to connect to "+addr, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			conn.Close()
			return errors.NewTransportError(errors.TransportErrorSocketCreateFailure, "failed to set TCP_NODELAY", err)
		}
	}

	t.conn = conn
	return nil
}

// Write sends all of buf
func (t *NetTransport) Write(buf []byte) (int, error) {
	if t.conn == nil {
		return 0, errors.NewTransportError(errors.TransportErrorSocketWriteFailure, "not connected", nil)
	}

	n, err := t.conn.Write(buf)
	if err != nil {
		if stderrors.Is(err, syscall.EPIPE) || stderrors.Is(err, syscall.ECONNRESET) {
			return n, errors.NewTransportError(errors.TransportErrorConnectionReset, "write failed", err)
		}
		return n, errors.NewTransportError(errors.TransportErrorSocketWriteFailure, "write failed", err)
	}
	return n, nil
}

// Read receives data from the connection
func (t *NetTransport) Read(buf []byte) (int, error) {
	if t.conn == nil {
		return 0, errors.NewTransportError(errors.TransportErrorSocketReadFailure, "not connected", nil)
	}

	n, err := t.conn.Read(buf)
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return n, errors.NewTransportError(errors.TransportErrorConnectionClosed, "connection closed by peer", err)
		}
		if stderrors.Is(err, syscall.ECONNRESET) {
			return n, errors.NewTransportError(errors.TransportErrorConnectionReset, "read failed", err)
		}
		return n, errors.NewTransportError(errors.TransportErrorSocketReadFailure, "read failed", err)
	}
	return n, nil
}

// Close closes the connection. Closing twice is a no-op.
func (t *NetTransport) Close() error {
	if t.conn == nil {
		return nil
	}

	err := t.conn.Close()
	t.conn = nil
	if err != nil {
		return errors.NewTransportError(errors.TransportErrorConnectionClosed, "failed to close connection", err)
	}
	return nil
}
