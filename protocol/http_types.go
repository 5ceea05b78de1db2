package protocol

import "strings"

// Method represents HTTP request methods
type Method int

const (
	MethodUnset Method = iota
	MethodGet
	MethodPost
	// MethodUnknown is a well-formed method token outside the supported set
	MethodUnknown
)

// SupportedMethods lists the methods the server implements, in Allow header order
var SupportedMethods = []Method{MethodGet, MethodPost}

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	case MethodUnknown:
		return "UNKNOWN"
	default:
		return ""
	}
}

// Safe reports whether the method has no side effects
func (m Method) Safe() bool {
	return m == MethodGet
}

// Known reports whether the method is one of SupportedMethods
func (m Method) Known() bool {
	return m == MethodGet || m == MethodPost
}

func lookupMethod(token string) Method {
	switch token {
	case "GET":
		return MethodGet
	case "POST":
		return MethodPost
	default:
		return MethodUnknown
	}
}

// Phase is the stage of incremental request parsing
type Phase int

const (
	PhaseRequestLine Phase = iota
	PhaseHeaders
	PhaseBody
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseRequestLine:
		return "REQUEST_LINE"
	case PhaseHeaders:
		return "HEADERS"
	case PhaseBody:
		return "BODY"
	case PhaseDone:
		return "DONE"
	default:
		return "INVALID"
	}
}

// RequestLine holds what the first line of a request carries
type RequestLine struct {
	Method  Method
	Token   string // method token as received
	Path    string
	Params  map[string]string
	Version string
}

// Request is a fully received request
type Request struct {
	RequestLine
	Headers map[string]string
	Body    []byte
}

// Status codes the server emits
const (
	StatusOK                  = 200
	StatusNotFound            = 404
	StatusInternalServerError = 500
	StatusNotImplemented      = 501
)

// StatusText returns the reason phrase for a status code
func StatusText(code int) string {
	switch code {
	case StatusOK:
		return "OK"
	case StatusNotFound:
		return "Not Found"
	case StatusInternalServerError:
		return "Internal Server Error"
	case StatusNotImplemented:
		return "Not Implemented"
	default:
		return "Unknown"
	}
}

// HttpHeader represents an HTTP header key-value pair
type HttpHeader struct {
	Key   string
	Value string
}

// HttpResponse is a response as seen by the probe client
type HttpResponse struct {
	StatusCode    int
	StatusMessage string
	Headers       []HttpHeader
	Body          []byte
	ContentLength int
}

// Header returns the first value of the named header, compared case-insensitively
func (r *HttpResponse) Header(key string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Key, key) {
			return h.Value, true
		}
	}
	return "", false
}
