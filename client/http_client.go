package client

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nczempin/httpd-go-uring/errors"
	"github.com/nczempin/httpd-go-uring/protocol"
)

// Request describes a request for the probe to send. Method is sent as
// given, so tokens the server does not support can be exercised too.
type Request struct {
	Method  string
	Path    string
	Params  map[string]string
	Version string // defaults to HTTP/1.1
	Headers []protocol.HttpHeader
	Body    []byte
}

// HttpClient provides a high-level API over a Probe
type HttpClient struct {
	probe *Probe
}

// NewHttpClient creates a new HTTP client with the given probe
func NewHttpClient(probe *Probe) *HttpClient {
	return &HttpClient{
		probe: probe,
	}
}

// Connect establishes a connection to the specified host and port
func (c *HttpClient) Connect(host string, port int) error {
	return c.probe.Connect(host, port)
}

// Disconnect closes the connection
func (c *HttpClient) Disconnect() error {
	return c.probe.Disconnect()
}

// Get performs a GET request. The server closes every connection after
// responding, so each call needs its own Connect.
func (c *HttpClient) Get(path string, params map[string]string, headers ...protocol.HttpHeader) (*protocol.HttpResponse, error) {
	return c.Do(&Request{Method: "GET", Path: path, Params: params, Headers: headers})
}

// Post performs a POST request with a body
func (c *HttpClient) Post(path string, body []byte, headers ...protocol.HttpHeader) (*protocol.HttpResponse, error) {
	if len(body) == 0 {
		return nil, errors.NewInvalidArgumentError("POST request must have a body")
	}
	return c.Do(&Request{Method: "POST", Path: path, Headers: headers, Body: body})
}

// Do sends req and reads the response
func (c *HttpClient) Do(req *Request) (*protocol.HttpResponse, error) {
	raw, err := BuildRequest(req)
	if err != nil {
		return nil, err
	}
	return c.probe.RoundTrip(raw)
}

// BuildRequest formats req on the wire. Params are sorted by key so the
// output is stable. Content-Length is added when a body is present and the
// caller did not set one.
func BuildRequest(req *Request) ([]byte, error) {
	if req.Method == "" || strings.ContainsAny(req.Method, " \r\n") {
		return nil, errors.NewInvalidArgumentError(fmt.Sprintf("invalid method %q", req.Method))
	}
	if !strings.HasPrefix(req.Path, "/") {
		return nil, errors.NewInvalidArgumentError(fmt.Sprintf("path %q must start with /", req.Path))
	}

	version := req.Version
	if version == "" {
		version = "HTTP/1.1"
	}

	var b strings.Builder
	b.WriteString(req.Method)
	b.WriteByte(' ')
	b.WriteString(req.Path)
	if len(req.Params) > 0 {
		keys := make([]string, 0, len(req.Params))
		for k := range req.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i == 0 {
				b.WriteByte('?')
			} else {
				b.WriteByte('&')
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(req.Params[k])
		}
	}
	b.WriteByte(' ')
	b.WriteString(version)
	b.WriteString("\r\n")

	hasContentLength := false
	for _, header := range req.Headers {
		if strings.EqualFold(header.Key, "Content-Length") {
			hasContentLength = true
		}
		fmt.Fprintf(&b, "%s: %s\r\n", header.Key, header.Value)
	}
	if len(req.Body) > 0 && !hasContentLength {
		b.WriteString("Content-Length: ")
		b.WriteString(strconv.Itoa(len(req.Body)))
		b.WriteString("\r\n")
	}

	// Blank line
	b.WriteString("\r\n")
	b.Write(req.Body)

	return []byte(b.String()), nil
}
