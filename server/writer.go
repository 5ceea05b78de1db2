package server

import (
	stderrors "errors"
	"fmt"

	"github.com/nczempin/httpd-go-uring/protocol"
	"github.com/nczempin/httpd-go-uring/transport"
)

// respond picks the response for a connection whose request is complete or failed
func respond(c *conn, h Handler) *protocol.Response {
	if c.failure != nil {
		return errorResponse(protocol.StatusInternalServerError, c.failure.Error())
	}

	req, ok := c.acc.Request()
	if !ok {
		return errorResponse(protocol.StatusInternalServerError, "request is incomplete")
	}
	return selectResponse(req, h)
}

func selectResponse(req *protocol.Request, h Handler) *protocol.Response {
	if !req.Method.Known() {
		resp := errorResponse(protocol.StatusNotImplemented,
			fmt.Sprintf("method %s is not implemented", req.Token))
		resp.Headers = append(resp.Headers, protocol.AllowHeader())
		return resp
	}

	if req.Method.Safe() && req.Path == "/" && len(req.Params) == 0 && len(req.Body) == 0 {
		return pageResponse(h.StartPage())
	}

	page, ok := h.Render(req)
	if !ok {
		return errorResponse(protocol.StatusNotFound, fmt.Sprintf("%s not found", req.Path))
	}
	return pageResponse(page)
}

func pageResponse(page protocol.Page) *protocol.Response {
	contentType := page.ContentType
	if contentType == "" {
		contentType = protocol.ContentTypeHTML
	}
	return &protocol.Response{
		StatusCode:  protocol.StatusOK,
		ContentType: contentType,
		Body:        page.Body,
	}
}

func errorResponse(code int, description string) *protocol.Response {
	return &protocol.Response{
		StatusCode:  code,
		ContentType: protocol.ContentTypeText,
		Body:        []byte(description),
	}
}

// flush drains c.out through c.buf one buffer-sized chunk at a time. A chunk
// is written until the socket has taken all of it, short writes retrying
// only the remainder, before the next chunk is loaded. done is false when
// the socket stopped accepting bytes; offsets are kept for the next call.
func (c *conn) flush() (done bool, err error) {
	for c.written < len(c.out) {
		if c.chunkStart == c.chunkEnd {
			c.chunkStart = 0
			c.chunkEnd = copy(c.buf, c.out[c.written:])
		}

		n, err := c.sock.Write(c.buf[c.chunkStart:c.chunkEnd])
		if err != nil {
			if stderrors.Is(err, transport.ErrWouldBlock) {
				return false, nil
			}
			return false, err
		}
		c.chunkStart += n
		c.written += n
	}
	return true, nil
}
