package protocol

import "bytes"

// ScanLine looks for the first CRLF in buf. When found, buf[:end] is the line
// without its terminator and end+2 is the first byte after it.
func ScanLine(buf []byte) (end int, ok bool) {
	for i := 0; i < len(buf); {
		j := bytes.IndexByte(buf[i:], '\r')
		if j < 0 {
			return 0, false
		}
		i += j
		if i+1 >= len(buf) {
			// the '\n' may still be on its way
			return 0, false
		}
		if buf[i+1] == '\n' {
			return i, true
		}
		i++
	}
	return 0, false
}
