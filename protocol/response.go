package protocol

import (
	"strconv"
	"strings"
)

const (
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeText = "text/plain; charset=utf-8"
)

// Page is what a request handler renders
type Page struct {
	ContentType string
	Body        []byte
}

// Response is a response ready to be serialized
type Response struct {
	StatusCode  int
	ContentType string
	Headers     []HttpHeader // sent after the fixed headers
	Body        []byte
}

// AllowHeader builds the Allow header for SupportedMethods
func AllowHeader() HttpHeader {
	names := make([]string, len(SupportedMethods))
	for i, m := range SupportedMethods {
		names[i] = m.String()
	}
	return HttpHeader{Key: "Allow", Value: strings.Join(names, ",")}
}

// Serialize renders the status line, headers, blank line and body.
// Content-Length is always the byte length of Body and the connection is always closed.
func (r *Response) Serialize() []byte {
	buf := make([]byte, 0, 128+len(r.Body))

	buf = append(buf, "HTTP/1.1 "...)
	buf = strconv.AppendInt(buf, int64(r.StatusCode), 10)
	buf = append(buf, ' ')
	buf = append(buf, StatusText(r.StatusCode)...)
	buf = append(buf, "\r\n"...)

	buf = appendHeader(buf, "Content-Type", r.ContentType)
	buf = appendHeader(buf, "Content-Length", strconv.Itoa(len(r.Body)))
	buf = appendHeader(buf, "Connection", "close")
	for _, h := range r.Headers {
		buf = appendHeader(buf, h.Key, h.Value)
	}

	buf = append(buf, "\r\n"...)
	return append(buf, r.Body...)
}

func appendHeader(buf []byte, key, value string) []byte {
	buf = append(buf, key...)
	buf = append(buf, ": "...)
	buf = append(buf, value...)
	return append(buf, "\r\n"...)
}
