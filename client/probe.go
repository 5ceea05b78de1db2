package client

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nczempin/httpd-go-uring/errors"
	"github.com/nczempin/httpd-go-uring/protocol"
	"github.com/nczempin/httpd-go-uring/transport"
)

var headerSeparator = []byte("\r\n\r\n")

// Probe writes raw requests over a transport, optionally split into small
// fragments, and reads back a Connection: close response
type Probe struct {
	transport     transport.Transport
	fragment      int
	pause         time.Duration
	buffer        []byte
	headerSize    int
	contentLength int
}

// NewProbe creates a probe that writes each request in one piece
func NewProbe(t transport.Transport) *Probe {
	return &Probe{
		transport:     t,
		buffer:        make([]byte, 0, 1024),
		contentLength: -1,
	}
}

// SetFragment makes the probe write requests in chunks of size bytes with
// pause between chunks. A size of 0 writes requests whole.
func (p *Probe) SetFragment(size int, pause time.Duration) error {
	if size < 0 {
		return errors.NewInvalidArgumentError("fragment size must not be negative")
	}
	p.fragment = size
	p.pause = pause
	return nil
}

// Connect establishes a connection to the specified host and port
func (p *Probe) Connect(host string, port int) error {
	return p.transport.Connect(host, port)
}

// Disconnect closes the connection
func (p *Probe) Disconnect() error {
	return p.transport.Close()
}

// RoundTrip sends raw and returns the parsed response
func (p *Probe) RoundTrip(raw []byte) (*protocol.HttpResponse, error) {
	if err := p.writeFragments(raw); err != nil {
		return nil, err
	}

	if err := p.readFullResponse(); err != nil {
		return nil, err
	}

	return p.parseResponse()
}

func (p *Probe) writeFragments(raw []byte) error {
	if p.fragment == 0 {
		_, err := p.transport.Write(raw)
		return err
	}

	for off := 0; off < len(raw); off += p.fragment {
		end := min(off+p.fragment, len(raw))
		if _, err := p.transport.Write(raw[off:end]); err != nil {
			return err
		}
		if p.pause > 0 && end < len(raw) {
			time.Sleep(p.pause)
		}
	}
	return nil
}

// readFullResponse reads until the declared body is in or the server closes
func (p *Probe) readFullResponse() error {
	p.buffer = p.buffer[:0]
	p.headerSize = 0
	p.contentLength = -1

	readBuf := make([]byte, 1024)

	for {
		n, err := p.transport.Read(readBuf)
		if err != nil {
			if errors.IsTransport(err, errors.TransportErrorConnectionClosed) {
				if p.contentLength >= 0 && len(p.buffer) < p.headerSize+p.contentLength {
					return errors.NewProtocolError(
						errors.ProtocolErrorIncompleteResponse,
						"connection closed before complete response received",
					)
				}
				break
			}
			return err
		}

		p.buffer = append(p.buffer, readBuf[:n]...)

		if p.headerSize == 0 {
			if pos := bytes.Index(p.buffer, headerSeparator); pos >= 0 {
				p.headerSize = pos + len(headerSeparator)
				p.contentLength = parseContentLength(p.buffer[:p.headerSize])
			}
		}

		if p.contentLength >= 0 && len(p.buffer) >= p.headerSize+p.contentLength {
			break
		}
	}

	if p.headerSize == 0 {
		return errors.NewProtocolError(
			errors.ProtocolErrorInvalidStatusLine,
			fmt.Sprintf("no complete header block in %d bytes", len(p.buffer)),
		)
	}

	return nil
}

// parseContentLength extracts Content-Length from a header block
func parseContentLength(headersView []byte) int {
	lines := bytes.Split(headersView, []byte("\r\n"))
	for _, line := range lines[1:] { // Skip status line
		if len(line) == 0 {
			break
		}

		key, value, ok := bytes.Cut(line, []byte(":"))
		if ok && strings.EqualFold(string(key), "Content-Length") {
			if length, err := strconv.Atoi(strings.TrimSpace(string(value))); err == nil {
				return length
			}
		}
	}
	return -1
}

// parseResponse turns the buffer into a response that owns its bytes
func (p *Probe) parseResponse() (*protocol.HttpResponse, error) {
	headersBlock := p.buffer[:p.headerSize-len(headerSeparator)]
	lines := strings.Split(string(headersBlock), "\r\n")

	// Parse status line: "HTTP/1.1 200 OK"
	statusParts := strings.SplitN(lines[0], " ", 3)
	if len(statusParts) < 2 || !strings.HasPrefix(statusParts[0], "HTTP/") {
		return nil, errors.NewProtocolError(
			errors.ProtocolErrorInvalidStatusLine,
			fmt.Sprintf("invalid status line %q", lines[0]),
		)
	}

	statusCode, err := strconv.Atoi(statusParts[1])
	if err != nil {
		return nil, errors.NewProtocolError(
			errors.ProtocolErrorInvalidStatusLine,
			fmt.Sprintf("invalid status code: %s", statusParts[1]),
		)
	}

	resp := &protocol.HttpResponse{
		StatusCode:    statusCode,
		ContentLength: p.contentLength,
	}
	if len(statusParts) == 3 {
		resp.StatusMessage = statusParts[2]
	}

	for _, line := range lines[1:] {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, errors.NewProtocolError(
				errors.ProtocolErrorInvalidHeader,
				fmt.Sprintf("invalid header line %q", line),
			)
		}
		resp.Headers = append(resp.Headers, protocol.HttpHeader{
			Key:   key,
			Value: strings.TrimSpace(value),
		})
	}

	body := p.buffer[p.headerSize:]
	if p.contentLength >= 0 {
		body = body[:p.contentLength]
	}
	resp.Body = append([]byte(nil), body...)

	return resp, nil
}
