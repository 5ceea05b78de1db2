package protocol

// Accumulator holds the partially parsed request of one connection.
//
// Fields are only reachable through accessors that check the phase, so the
// request line cannot be read before it is parsed and the body cannot be read
// before it is complete.
type Accumulator struct {
	phase    Phase
	line     RequestLine
	headers  map[string]string
	declared int // -1 when no Content-Length was sent
	body     []byte
	maxBody  int // 0 means no limit
}

// NewAccumulator creates an accumulator waiting for a request line
func NewAccumulator() *Accumulator {
	a := &Accumulator{}
	a.Clear()
	return a
}

// SetMaxBody bounds the Content-Length a request may declare. A larger
// declaration fails with ProtocolErrorMessageTooLarge before any body byte is
// buffered. n <= 0 removes the limit.
func (a *Accumulator) SetMaxBody(n int) {
	a.maxBody = max(n, 0)
}

// Phase returns the current parsing phase
func (a *Accumulator) Phase() Phase {
	return a.phase
}

// Done reports whether a complete request has been accumulated
func (a *Accumulator) Done() bool {
	return a.phase == PhaseDone
}

// RequestLine returns the parsed request line once the HEADERS phase is reached
func (a *Accumulator) RequestLine() (RequestLine, bool) {
	if a.phase == PhaseRequestLine {
		return RequestLine{}, false
	}
	return a.line, true
}

// Headers returns the parsed headers once the BODY phase is reached
func (a *Accumulator) Headers() (map[string]string, bool) {
	if a.phase < PhaseBody {
		return nil, false
	}
	return a.headers, true
}

// BodyLen returns how many body bytes have arrived so far
func (a *Accumulator) BodyLen() int {
	return len(a.body)
}

// Request returns the completed request, or false while bytes are still missing
func (a *Accumulator) Request() (*Request, bool) {
	if a.phase != PhaseDone {
		return nil, false
	}
	return &Request{
		RequestLine: a.line,
		Headers:     a.headers,
		Body:        a.body,
	}, true
}

// Clear resets the accumulator to wait for a new request line
func (a *Accumulator) Clear() {
	a.phase = PhaseRequestLine
	a.line = RequestLine{}
	a.headers = nil
	a.declared = -1
	a.body = nil
}
