package transport

import "strings"

// Transport is the client side of a connection to the server. The probe
// client drives it; the server itself uses Listener and Socket.
type Transport interface {
	// Connect establishes a connection. For Unix transports host is the
	// socket path and port is ignored.
	Connect(host string, port int) error

	// Write sends all of buf
	// Returns the number of bytes written
	Write(buf []byte) (int, error)

	// Read receives data from the connection
	// Returns the number of bytes read
	Read(buf []byte) (int, error)

	// Close closes the connection
	Close() error
}

// Network names accepted by NewTransport
const (
	NetworkTCP     = "tcp"
	NetworkUnix    = "unix"
	NetworkTCPRing = "tcp-ring"
	NetworkTCPNet  = "tcp-net"
	NetworkUnixNet = "unix-net"
)

// Destroyer is implemented by transports that own an io_uring instance
type Destroyer interface {
	Destroy()
}

// NewTransport creates the client transport for network:
// "tcp" and "unix" use iouring-go, "tcp-ring" uses go-uring,
// "tcp-net" and "unix-net" use net.Conn.
func NewTransport(network string) (Transport, error) {
	switch network {
	case NetworkTCPRing:
		t, err := NewRingTransport()
		if err != nil {
			return nil, err
		}
		return t, nil
	case NetworkTCPNet, NetworkUnixNet:
		t, err := NewNetTransport(strings.TrimSuffix(network, "-net"))
		if err != nil {
			return nil, err
		}
		return t, nil
	}

	t, err := NewUringTransport(network)
	if err != nil {
		return nil, err
	}
	return t, nil
}
