// Package pages holds the default request handler: a fixed start page and an
// echo page that reflects requests carrying query parameters or a body.
package pages

import (
	"bytes"
	"html"
	"sort"

	"github.com/nczempin/httpd-go-uring/protocol"
)

const startPage = "<html><head><meta charset=\"utf-8\"/></head><body><h1>Привет от Habrahabr`а!..</h1></body></html>"

// Default is the handler used by cmd/httpd
type Default struct{}

// StartPage returns the canned greeting
func (Default) StartPage() protocol.Page {
	return protocol.Page{ContentType: protocol.ContentTypeHTML, Body: []byte(startPage)}
}

// Render echoes requests that carry params or a body and declines the rest
func (Default) Render(req *protocol.Request) (protocol.Page, bool) {
	if len(req.Params) == 0 && len(req.Body) == 0 {
		return protocol.Page{}, false
	}
	return protocol.Page{ContentType: protocol.ContentTypeHTML, Body: Echo(req)}, true
}

// Echo renders method, path, params, headers and body as an HTML page.
// Params and headers are listed in key order.
func Echo(req *protocol.Request) []byte {
	var b bytes.Buffer

	b.WriteString("<html><head><meta charset=\"utf-8\"/></head><body>\n")
	b.WriteString("<h1>")
	b.WriteString(html.EscapeString(req.Token))
	b.WriteByte(' ')
	b.WriteString(html.EscapeString(req.Path))
	b.WriteString("</h1>\n")

	writeTable(&b, "Params", req.Params)
	writeTable(&b, "Headers", req.Headers)

	if len(req.Body) > 0 {
		b.WriteString("<h2>Body</h2>\n<pre>")
		b.WriteString(html.EscapeString(string(req.Body)))
		b.WriteString("</pre>\n")
	}

	b.WriteString("</body></html>")
	return b.Bytes()
}

func writeTable(b *bytes.Buffer, title string, values map[string]string) {
	if len(values) == 0 {
		return
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteString("<h2>" + title + "</h2>\n<table>\n")
	for _, k := range keys {
		b.WriteString("<tr><td>")
		b.WriteString(html.EscapeString(k))
		b.WriteString("</td><td>")
		b.WriteString(html.EscapeString(values[k]))
		b.WriteString("</td></tr>\n")
	}
	b.WriteString("</table>\n")
}
