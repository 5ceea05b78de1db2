package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nczempin/httpd-go-uring/errors"
)

const contentLengthKey = "Content-Length"

// Advance feeds the unread bytes of a connection buffer into the accumulator.
//
// Every complete line in buf is consumed, and in the BODY phase every byte up
// to the declared length. The returned count tells the caller how much of buf
// was used; the remainder is a partial line that must be offered again, at the
// front of buf, once more bytes arrive.
func (a *Accumulator) Advance(buf []byte) (int, error) {
	pos := 0
	for {
		switch a.phase {
		case PhaseRequestLine, PhaseHeaders:
			end, ok := ScanLine(buf[pos:])
			if !ok {
				return pos, nil
			}
			line := string(buf[pos : pos+end])
			pos += end + 2

			if a.phase == PhaseRequestLine {
				rl, err := ParseRequestLine(line)
				if err != nil {
					return pos, err
				}
				a.line = rl
				a.headers = make(map[string]string)
				a.phase = PhaseHeaders
				continue
			}

			if line == "" {
				declared, err := declaredLength(a.headers)
				if err != nil {
					return pos, err
				}
				if a.maxBody > 0 && declared > a.maxBody {
					return pos, errors.NewProtocolError(
						errors.ProtocolErrorMessageTooLarge,
						fmt.Sprintf("Content-Length %d exceeds the %d byte limit", declared, a.maxBody),
					)
				}
				a.declared = declared
				a.phase = PhaseBody
				continue
			}

			name, value, err := ParseHeaderLine(line)
			if err != nil {
				return pos, err
			}
			a.headers[name] = value

		case PhaseBody:
			if a.declared <= 0 {
				a.phase = PhaseDone
				continue
			}
			need := a.declared - len(a.body)
			avail := buf[pos:]
			if len(avail) > need {
				avail = avail[:need]
			}
			a.body = append(a.body, avail...)
			if len(a.body) == a.declared {
				a.phase = PhaseDone
			}
			return len(buf), nil

		case PhaseDone:
			// no pipelining: anything after a complete request is dropped
			return len(buf), nil
		}
	}
}

// ParseRequestLine splits "METHOD SP PATH[?QUERY] [QUERY2] [VERSION]".
func ParseRequestLine(line string) (RequestLine, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return RequestLine{}, errors.NewProtocolError(
			errors.ProtocolErrorMalformedRequestLine,
			fmt.Sprintf("expected method and path in %q", line),
		)
	}

	token := fields[0]
	if !isMethodToken(token) {
		return RequestLine{}, errors.NewProtocolError(
			errors.ProtocolErrorMalformedRequestLine,
			fmt.Sprintf("invalid method token %q", token),
		)
	}

	rl := RequestLine{
		Method: lookupMethod(token),
		Token:  token,
		Params: make(map[string]string),
	}

	path, query, hasQuery := strings.Cut(fields[1], "?")
	if path == "" {
		return RequestLine{}, errors.NewProtocolError(
			errors.ProtocolErrorMalformedRequestLine,
			fmt.Sprintf("empty path in %q", line),
		)
	}
	rl.Path = path
	if hasQuery {
		if err := parseQueryInto(rl.Params, query); err != nil {
			return RequestLine{}, err
		}
	}

	rest := fields[2:]
	// Legacy clients put a second query string between the target and the
	// version. Anything not starting with HTTP is taken as one.
	if len(rest) > 0 && !strings.HasPrefix(rest[0], "HTTP") {
		if err := parseQueryInto(rl.Params, strings.TrimPrefix(rest[0], "?")); err != nil {
			return RequestLine{}, err
		}
		rest = rest[1:]
	}
	if len(rest) > 0 {
		rl.Version = rest[0]
		rest = rest[1:]
	}
	if len(rest) > 0 {
		return RequestLine{}, errors.NewProtocolError(
			errors.ProtocolErrorMalformedRequestLine,
			fmt.Sprintf("unexpected token %q after version", rest[0]),
		)
	}

	return rl, nil
}

// ParseQuery parses '&'-separated key=value pairs. Keys and values are kept verbatim.
func ParseQuery(query string) (map[string]string, error) {
	params := make(map[string]string)
	if err := parseQueryInto(params, query); err != nil {
		return nil, err
	}
	return params, nil
}

func parseQueryInto(params map[string]string, query string) error {
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return errors.NewProtocolError(
				errors.ProtocolErrorMalformedQueryString,
				fmt.Sprintf("pair %q lacks '='", pair),
			)
		}
		params[key] = value
	}
	return nil
}

// ParseHeaderLine splits a header line on the first ": ".
func ParseHeaderLine(line string) (name, value string, err error) {
	name, value, ok := strings.Cut(line, ": ")
	if !ok || name == "" {
		return "", "", errors.NewProtocolError(
			errors.ProtocolErrorMalformedHeaderLine,
			fmt.Sprintf("header line %q lacks \": \"", line),
		)
	}
	return name, value, nil
}

// declaredLength returns the Content-Length value, or -1 when the header is absent.
func declaredLength(headers map[string]string) (int, error) {
	value, ok := headers[contentLengthKey]
	if !ok {
		for k, v := range headers {
			if strings.EqualFold(k, contentLengthKey) {
				value, ok = v, true
				break
			}
		}
	}
	if !ok {
		return -1, nil
	}

	n, err := strconv.ParseUint(strings.TrimSpace(value), 10, 31)
	if err != nil {
		return 0, &errors.HttpError{
			Type:          errors.ErrorProtocol,
			ProtocolErr:   errors.ProtocolErrorMalformedContentLength,
			Message:       fmt.Sprintf("invalid Content-Length %q", value),
			UnderlyingErr: err,
		}
	}
	return int(n), nil
}

func isMethodToken(token string) bool {
	if token == "" {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}
