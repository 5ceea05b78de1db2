package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType int

const (
	ErrorNone ErrorType = iota
	ErrorTransport
	ErrorProtocol
	ErrorInvalidArgument
)

// TransportError represents socket and multiplexer errors
type TransportError int

const (
	TransportErrorNone TransportError = iota
	TransportErrorSocketCreateFailure
	TransportErrorSocketConnectFailure
	TransportErrorBindFailure
	TransportErrorListenFailure
	TransportErrorAcceptFailure
	TransportErrorSocketReadFailure
	TransportErrorSocketWriteFailure
	TransportErrorConnectionClosed
	TransportErrorConnectionReset
	TransportErrorDnsFailure
	TransportErrorPollerFailure
	TransportErrorIoUringInit
	TransportErrorIoUringSubmit
	TransportErrorResourceExhausted
)

func (e TransportError) String() string {
	switch e {
	case TransportErrorNone:
		return "none"
	case TransportErrorSocketCreateFailure:
		return "socket create failure"
	case TransportErrorSocketConnectFailure:
		return "socket connect failure"
	case TransportErrorBindFailure:
		return "bind failure"
	case TransportErrorListenFailure:
		return "listen failure"
	case TransportErrorAcceptFailure:
		return "accept failure"
	case TransportErrorSocketReadFailure:
		return "socket read failure"
	case TransportErrorSocketWriteFailure:
		return "socket write failure"
	case TransportErrorConnectionClosed:
		return "connection closed"
	case TransportErrorConnectionReset:
		return "connection reset by peer"
	case TransportErrorDnsFailure:
		return "dns failure"
	case TransportErrorPollerFailure:
		return "poller failure"
	case TransportErrorIoUringInit:
		return "io_uring init failure"
	case TransportErrorIoUringSubmit:
		return "io_uring submit failure"
	case TransportErrorResourceExhausted:
		return "resource exhausted"
	default:
		return fmt.Sprintf("transport error %d", int(e))
	}
}

// ProtocolError represents HTTP framing errors, on both the request and response side
type ProtocolError int

const (
	ProtocolErrorNone ProtocolError = iota
	ProtocolErrorMalformedRequestLine
	ProtocolErrorMalformedQueryString
	ProtocolErrorMalformedHeaderLine
	ProtocolErrorMalformedContentLength
	ProtocolErrorLineTooLong
	ProtocolErrorMessageTooLarge
	ProtocolErrorInvalidStatusLine
	ProtocolErrorInvalidHeader
	ProtocolErrorIncompleteResponse
)

func (e ProtocolError) String() string {
	switch e {
	case ProtocolErrorNone:
		return "none"
	case ProtocolErrorMalformedRequestLine:
		return "malformed request line"
	case ProtocolErrorMalformedQueryString:
		return "malformed query string"
	case ProtocolErrorMalformedHeaderLine:
		return "malformed header line"
	case ProtocolErrorMalformedContentLength:
		return "malformed content length"
	case ProtocolErrorLineTooLong:
		return "line too long"
	case ProtocolErrorMessageTooLarge:
		return "message too large"
	case ProtocolErrorInvalidStatusLine:
		return "invalid status line"
	case ProtocolErrorInvalidHeader:
		return "invalid header"
	case ProtocolErrorIncompleteResponse:
		return "incomplete response"
	default:
		return fmt.Sprintf("protocol error %d", int(e))
	}
}

// HttpError is the error type shared by the server, the transports and the probe client
type HttpError struct {
	Type          ErrorType
	TransportErr  TransportError
	ProtocolErr   ProtocolError
	Message       string
	UnderlyingErr error
}

// Error implements the error interface
func (e *HttpError) Error() string {
	if e == nil {
		return "no error"
	}

	var typeStr string
	switch e.Type {
	case ErrorTransport:
		typeStr = fmt.Sprintf("Transport error (%s)", e.TransportErr)
	case ErrorProtocol:
		typeStr = fmt.Sprintf("Protocol error (%s)", e.ProtocolErr)
	case ErrorInvalidArgument:
		typeStr = "Invalid argument"
	default:
		typeStr = "Unknown error"
	}

	if e.Message != "" {
		typeStr = fmt.Sprintf("%s: %s", typeStr, e.Message)
	}

	if e.UnderlyingErr != nil {
		return fmt.Sprintf("%s (caused by: %v)", typeStr, e.UnderlyingErr)
	}

	return typeStr
}

// Unwrap returns the underlying error for error chain support
func (e *HttpError) Unwrap() error {
	return e.UnderlyingErr
}

// NewTransportError creates a new transport error
func NewTransportError(err TransportError, message string, underlying error) *HttpError {
	return &HttpError{
		Type:          ErrorTransport,
		TransportErr:  err,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewProtocolError creates a new protocol error
func NewProtocolError(err ProtocolError, message string) *HttpError {
	return &HttpError{
		Type:        ErrorProtocol,
		ProtocolErr: err,
		Message:     message,
	}
}

// NewInvalidArgumentError creates a new invalid argument error
func NewInvalidArgumentError(message string) *HttpError {
	return &HttpError{
		Type:    ErrorInvalidArgument,
		Message: message,
	}
}

// IsTransport reports whether err carries the given transport error code
func IsTransport(err error, code TransportError) bool {
	var httpErr *HttpError
	if !stderrors.As(err, &httpErr) {
		return false
	}
	return httpErr.Type == ErrorTransport && httpErr.TransportErr == code
}

// IsProtocol reports whether err carries the given protocol error code
func IsProtocol(err error, code ProtocolError) bool {
	var httpErr *HttpError
	if !stderrors.As(err, &httpErr) {
		return false
	}
	return httpErr.Type == ErrorProtocol && httpErr.ProtocolErr == code
}
