package protocol

import "testing"

func TestScanLine(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantEnd int
		wantOk  bool
	}{
		{"complete line", "GET / HTTP/1.1\r\nHost: x\r\n", 14, true},
		{"empty line", "\r\nbody", 0, true},
		{"no terminator", "GET / HTTP/1.1", 0, false},
		{"dangling CR", "GET /\r", 0, false},
		{"lone CR inside line", "a\rb\r\n", 3, true},
		{"lone LF is not a terminator", "a\nb", 0, false},
		{"empty buffer", "", 0, false},
		{"CR CR LF", "x\r\r\n", 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end, ok := ScanLine([]byte(tt.input))
			if ok != tt.wantOk || end != tt.wantEnd {
				t.Errorf("ScanLine(%q) = (%d, %v), want (%d, %v)", tt.input, end, ok, tt.wantEnd, tt.wantOk)
			}
		})
	}
}

func TestScanLine_DoesNotReadPastTerminator(t *testing.T) {
	buf := []byte("first\r\nsecond\r\n")
	end, ok := ScanLine(buf)
	if !ok {
		t.Fatal("Expected a line")
	}
	if got := string(buf[:end]); got != "first" {
		t.Errorf("Expected %q, got %q", "first", got)
	}

	next, ok := ScanLine(buf[end+2:])
	if !ok || string(buf[end+2:end+2+next]) != "second" {
		t.Errorf("Expected second line to start right after the terminator")
	}
}
