package pages

import (
	"strings"
	"testing"

	"github.com/nczempin/httpd-go-uring/protocol"
)

func TestDefault_StartPage(t *testing.T) {
	page := Default{}.StartPage()
	if page.ContentType != protocol.ContentTypeHTML {
		t.Errorf("Expected HTML content type, got %q", page.ContentType)
	}
	if !strings.Contains(string(page.Body), "Привет от Habrahabr`а!..") {
		t.Errorf("Unexpected start page %q", page.Body)
	}
}

func TestDefault_RenderDeclinesBareRequests(t *testing.T) {
	req := &protocol.Request{RequestLine: protocol.RequestLine{Method: protocol.MethodGet, Token: "GET", Path: "/missing"}}
	if _, ok := (Default{}).Render(req); ok {
		t.Error("Expected request without params or body to be declined")
	}
}

func TestDefault_RenderEchoesParams(t *testing.T) {
	req := &protocol.Request{
		RequestLine: protocol.RequestLine{
			Method: protocol.MethodGet,
			Token:  "GET",
			Path:   "/",
			Params: map[string]string{"b": "2", "a": "1"},
		},
		Headers: map[string]string{"Host": "localhost"},
	}

	page, ok := Default{}.Render(req)
	if !ok {
		t.Fatal("Expected request with params to be rendered")
	}

	body := string(page.Body)
	for _, want := range []string{"<h1>GET /</h1>", "<tr><td>a</td><td>1</td></tr>", "<tr><td>Host</td><td>localhost</td></tr>"} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected echo page to contain %q, got %q", want, body)
		}
	}
	if strings.Index(body, "<td>a</td>") > strings.Index(body, "<td>b</td>") {
		t.Errorf("Expected params in key order, got %q", body)
	}
}

func TestEcho_EscapesBody(t *testing.T) {
	req := &protocol.Request{
		RequestLine: protocol.RequestLine{Method: protocol.MethodPost, Token: "POST", Path: "/form"},
		Body:        []byte("<script>alert(1)</script>"),
	}

	body := string(Echo(req))
	if strings.Contains(body, "<script>") {
		t.Errorf("Expected body to be escaped, got %q", body)
	}
	if !strings.Contains(body, "&lt;script&gt;alert(1)&lt;/script&gt;") {
		t.Errorf("Expected escaped body in page, got %q", body)
	}
}
