package client

import (
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/nczempin/httpd-go-uring/errors"
	"github.com/nczempin/httpd-go-uring/protocol"
	"github.com/nczempin/httpd-go-uring/transport"
)

// setupTestServer creates a single-connection server running handler
func setupTestServer(t *testing.T, handler func(net.Conn)) (string, int, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create listener: %v", err)
	}

	addr := listener.Addr().(*net.TCPAddr)

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}()

	cleanup := func() {
		listener.Close()
	}

	return addr.IP.String(), addr.Port, cleanup
}

func newTestClient(t *testing.T, network string) (*HttpClient, *Probe) {
	t.Helper()

	trans, err := transport.NewTransport(network)
	if err != nil {
		if errors.IsTransport(err, errors.TransportErrorIoUringInit) {
			t.Skipf("io_uring unavailable: %v", err)
		}
		t.Fatalf("Failed to create transport: %v", err)
	}
	if d, ok := trans.(transport.Destroyer); ok {
		t.Cleanup(d.Destroy)
	}

	probe := NewProbe(trans)
	return NewHttpClient(probe), probe
}

// readRequest reads a request with no body up to and including the blank line
func readRequest(conn net.Conn) string {
	var got []byte
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		got = append(got, buf[:n]...)
		if err != nil || len(got) >= 4 && string(got[len(got)-4:]) == "\r\n\r\n" {
			return string(got)
		}
	}
}

func TestHttpClient_Get(t *testing.T) {
	for _, network := range []string{transport.NetworkTCP, transport.NetworkTCPRing} {
		t.Run(network, func(t *testing.T) {
			responseBody := "Hello, World!"
			response := fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s", len(responseBody), responseBody)

			received := make(chan string, 1)
			host, port, cleanup := setupTestServer(t, func(conn net.Conn) {
				received <- readRequest(conn)
				conn.Write([]byte(response))
			})
			defer cleanup()

			client, _ := newTestClient(t, network)
			if err := client.Connect(host, port); err != nil {
				t.Fatalf("Failed to connect: %v", err)
			}
			defer client.Disconnect()

			resp, err := client.Get("/test", map[string]string{"b": "2", "a": "1"}, protocol.HttpHeader{Key: "Host", Value: "localhost"})
			if err != nil {
				t.Fatalf("GET request failed: %v", err)
			}

			if got, want := <-received, "GET /test?a=1&b=2 HTTP/1.1\r\nHost: localhost\r\n\r\n"; got != want {
				t.Errorf("Server received %q, want %q", got, want)
			}
			if resp.StatusCode != 200 || resp.StatusMessage != "OK" {
				t.Errorf("Expected 200 OK, got %d %s", resp.StatusCode, resp.StatusMessage)
			}
			if string(resp.Body) != responseBody {
				t.Errorf("Expected body %q, got %q", responseBody, resp.Body)
			}
			if v, ok := resp.Header("connection"); !ok || v != "close" {
				t.Errorf("Expected Connection: close, got %q", v)
			}
		})
	}
}

func TestProbe_WritesFragments(t *testing.T) {
	reads := make(chan int, 64)
	host, port, cleanup := setupTestServer(t, func(conn net.Conn) {
		buf := make([]byte, 256)
		total := 0
		for total < len("GET / HTTP/1.1\r\n\r\n") {
			n, err := conn.Read(buf)
			if err != nil {
				break
			}
			reads <- n
			total += n
		}
		close(reads)
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"))
	})
	defer cleanup()

	client, probe := newTestClient(t, transport.NetworkTCP)
	if err := probe.SetFragment(3, 5*time.Millisecond); err != nil {
		t.Fatalf("SetFragment failed: %v", err)
	}
	if err := client.Connect(host, port); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer client.Disconnect()

	if _, err := client.Get("/", nil); err != nil {
		t.Fatalf("GET failed: %v", err)
	}

	count := 0
	for range reads {
		count++
	}
	if count < 2 {
		t.Errorf("Expected the request to arrive in several reads, got %d", count)
	}
}

func TestProbe_ReadsUntilClose(t *testing.T) {
	host, port, cleanup := setupTestServer(t, func(conn net.Conn) {
		readRequest(conn)
		conn.Write([]byte("HTTP/1.1 404 Not Found\r\nContent-Type: text/plain\r\n\r\nno such page"))
	})
	defer cleanup()

	client, _ := newTestClient(t, transport.NetworkTCP)
	if err := client.Connect(host, port); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer client.Disconnect()

	resp, err := client.Get("/missing", nil)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	if resp.StatusCode != 404 || string(resp.Body) != "no such page" || resp.ContentLength != -1 {
		t.Errorf("Unexpected response %+v", resp)
	}
}

func TestProbe_IncompleteResponse(t *testing.T) {
	host, port, cleanup := setupTestServer(t, func(conn net.Conn) {
		readRequest(conn)
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\nshort"))
	})
	defer cleanup()

	client, _ := newTestClient(t, transport.NetworkTCP)
	if err := client.Connect(host, port); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer client.Disconnect()

	_, err := client.Get("/", nil)
	if !errors.IsProtocol(err, errors.ProtocolErrorIncompleteResponse) {
		t.Errorf("Expected IncompleteResponse, got %v", err)
	}
}

func TestProbe_InvalidStatusLine(t *testing.T) {
	host, port, cleanup := setupTestServer(t, func(conn net.Conn) {
		readRequest(conn)
		io.WriteString(conn, "garbage\r\n\r\n")
	})
	defer cleanup()

	client, _ := newTestClient(t, transport.NetworkTCP)
	if err := client.Connect(host, port); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer client.Disconnect()

	_, err := client.Get("/", nil)
	if !errors.IsProtocol(err, errors.ProtocolErrorInvalidStatusLine) {
		t.Errorf("Expected InvalidStatusLine, got %v", err)
	}
}

func TestHttpClient_PostWithoutBody_ReturnsError(t *testing.T) {
	client, _ := newTestClient(t, transport.NetworkTCP)

	_, err := client.Post("/test", nil)
	if err == nil {
		t.Error("Expected error for POST request without body, got nil")
	}
}

func TestBuildRequest(t *testing.T) {
	raw, err := BuildRequest(&Request{
		Method:  "POST",
		Path:    "/submit",
		Headers: []protocol.HttpHeader{{Key: "Host", Value: "localhost"}},
		Body:    []byte("hello"),
	})
	if err != nil {
		t.Fatalf("BuildRequest failed: %v", err)
	}

	want := "POST /submit HTTP/1.1\r\nHost: localhost\r\nContent-Length: 5\r\n\r\nhello"
	if string(raw) != want {
		t.Errorf("BuildRequest() = %q, want %q", raw, want)
	}
}

func TestBuildRequest_KeepsExplicitContentLength(t *testing.T) {
	raw, err := BuildRequest(&Request{
		Method:  "POST",
		Path:    "/",
		Version: "HTTP/1.0",
		Headers: []protocol.HttpHeader{{Key: "content-length", Value: "3"}},
		Body:    []byte("abc"),
	})
	if err != nil {
		t.Fatalf("BuildRequest failed: %v", err)
	}

	want := "POST / HTTP/1.0\r\ncontent-length: 3\r\n\r\nabc"
	if string(raw) != want {
		t.Errorf("BuildRequest() = %q, want %q", raw, want)
	}
}

func TestBuildRequest_Invalid(t *testing.T) {
	if _, err := BuildRequest(&Request{Method: "", Path: "/"}); err == nil {
		t.Error("Expected error for empty method")
	}
	if _, err := BuildRequest(&Request{Method: "GET", Path: "relative"}); err == nil {
		t.Error("Expected error for relative path")
	}
}
