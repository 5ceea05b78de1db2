package server

import "github.com/nczempin/httpd-go-uring/protocol"

// Handler turns completed requests into pages. The server calls it from the
// loop goroutine, so it must not block.
type Handler interface {
	// StartPage is served for a bare GET / without params or body
	StartPage() protocol.Page
	// Render serves every other request with a known method.
	// Returning false declines the request and the server answers 404.
	Render(req *protocol.Request) (protocol.Page, bool)
}
