package transport

import (
	stderrors "errors"
	"io"
	"net"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"

	"github.com/nczempin/httpd-go-uring/errors"
)

func setupTcpTestServer(t *testing.T, serverLogic func(net.Conn)) (string, int, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create test server: %v", err)
	}

	addr := listener.Addr().(*net.TCPAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		serverLogic(conn)
		conn.Close()
	}()

	cleanup := func() {
		listener.Close()
		<-done
	}

	return addr.IP.String(), addr.Port, cleanup
}

// newTestTransport skips the test when the kernel refuses to set up a ring
func newTestTransport(t *testing.T, network string) Transport {
	t.Helper()

	trans, err := NewTransport(network)
	if err != nil {
		if errors.IsTransport(err, errors.TransportErrorIoUringInit) {
			t.Skipf("io_uring unavailable: %v", err)
		}
		t.Fatalf("Failed to create %s transport: %v", network, err)
	}
	if d, ok := trans.(Destroyer); ok {
		t.Cleanup(d.Destroy)
	}
	return trans
}

func TestTransports_EchoRoundTrip(t *testing.T) {
	for _, network := range []string{NetworkTCP, NetworkTCPRing, NetworkTCPNet} {
		t.Run(network, func(t *testing.T) {
			host, port, cleanup := setupTcpTestServer(t, func(conn net.Conn) {
				buf := make([]byte, 64)
				n, _ := conn.Read(buf)
				conn.Write(buf[:n])
			})
			defer cleanup()

			trans := newTestTransport(t, network)
			if err := trans.Connect(host, port); err != nil {
				t.Fatalf("Connect failed: %v", err)
			}
			defer trans.Close()

			if n, err := trans.Write([]byte("ping")); err != nil || n != 4 {
				t.Fatalf("Write returned %d, %v", n, err)
			}

			buf := make([]byte, 64)
			n, err := trans.Read(buf)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if string(buf[:n]) != "ping" {
				t.Errorf("Expected ping, got %q", buf[:n])
			}
		})
	}
}

func TestTransports_ReadAfterServerClose(t *testing.T) {
	for _, network := range []string{NetworkTCP, NetworkTCPRing, NetworkTCPNet} {
		t.Run(network, func(t *testing.T) {
			host, port, cleanup := setupTcpTestServer(t, func(conn net.Conn) {})
			defer cleanup()

			trans := newTestTransport(t, network)
			if err := trans.Connect(host, port); err != nil {
				t.Fatalf("Connect failed: %v", err)
			}
			defer trans.Close()

			_, err := trans.Read(make([]byte, 16))
			if !errors.IsTransport(err, errors.TransportErrorConnectionClosed) {
				t.Errorf("Expected ConnectionClosed, got %v", err)
			}
		})
	}
}

func TestUringTransport_Unix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.sock")
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("Failed to listen on %s: %v", path, err)
	}
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		conn.Write(buf[:n])
	}()

	trans := newTestTransport(t, NetworkUnix)
	if err := trans.Connect(path, 0); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer trans.Close()

	trans.Write([]byte("over unix"))
	buf := make([]byte, 64)
	n, err := trans.Read(buf)
	if err != nil || string(buf[:n]) != "over unix" {
		t.Errorf("Expected echo, got %q (%v)", buf[:n], err)
	}
}

func TestUringTransport_NotConnected(t *testing.T) {
	trans := newTestTransport(t, NetworkTCP)

	if _, err := trans.Write([]byte("x")); !errors.IsTransport(err, errors.TransportErrorSocketWriteFailure) {
		t.Errorf("Expected SocketWriteFailure, got %v", err)
	}
	if _, err := trans.Read(make([]byte, 1)); !errors.IsTransport(err, errors.TransportErrorSocketReadFailure) {
		t.Errorf("Expected SocketReadFailure, got %v", err)
	}
}

func TestUringTransport_ConnectionRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	trans := newTestTransport(t, NetworkTCP)
	err = trans.Connect("127.0.0.1", port)
	if !errors.IsTransport(err, errors.TransportErrorSocketConnectFailure) {
		t.Errorf("Expected SocketConnectFailure, got %v", err)
	}
	if !stderrors.Is(err, syscall.ECONNREFUSED) {
		t.Errorf("Expected ECONNREFUSED from the ring, got %v", err)
	}
}

func TestUringTransport_ConnectReportsSuccess(t *testing.T) {
	host, port, cleanup := setupTcpTestServer(t, func(conn net.Conn) {})
	defer cleanup()

	trans := newTestTransport(t, NetworkTCP)
	if err := trans.Connect(host, port); err != nil {
		t.Fatalf("Connect to a listening port failed: %v", err)
	}
	defer trans.Close()
}

func TestUringTransport_LargeWriteCountsEveryByte(t *testing.T) {
	payload := make([]byte, 512*1024)
	for i := range payload {
		payload[i] = byte(i)
	}

	host, port, cleanup := setupTcpTestServer(t, func(conn net.Conn) {
		n, _ := io.CopyN(io.Discard, conn, int64(len(payload)))
		conn.Write([]byte(strconv.FormatInt(n, 10)))
	})
	defer cleanup()

	trans := newTestTransport(t, NetworkTCP)
	if err := trans.Connect(host, port); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer trans.Close()

	n, err := trans.Write(payload)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("Write reported %d bytes, want %d", n, len(payload))
	}

	buf := make([]byte, 32)
	got, err := trans.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if want := strconv.Itoa(len(payload)); string(buf[:got]) != want {
		t.Errorf("Server received %s bytes, want %s", buf[:got], want)
	}
}

func TestNewUringTransport_RejectsNetwork(t *testing.T) {
	if _, err := NewUringTransport("udp"); err == nil {
		t.Error("Expected error for udp")
	}
}
