package server

import "github.com/nczempin/httpd-go-uring/poller"

type slot struct {
	gen  int32
	conn *conn
}

// connTable is an arena of connection slots. A slot index plus its
// generation forms the poller token, so an event that arrives for a slot
// already freed and reused in the same batch is recognized as stale.
type connTable struct {
	slots []slot
	free  []int32
	live  int
}

func (t *connTable) insert(c *conn) poller.Token {
	var idx int32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		idx = int32(len(t.slots))
		t.slots = append(t.slots, slot{})
	}

	s := &t.slots[idx]
	s.gen++
	s.conn = c
	t.live++
	return poller.Token{Slot: idx, Gen: s.gen}
}

func (t *connTable) lookup(tok poller.Token) *conn {
	if tok.Slot < 0 || int(tok.Slot) >= len(t.slots) {
		return nil
	}
	s := t.slots[tok.Slot]
	if s.gen != tok.Gen {
		return nil
	}
	return s.conn
}

func (t *connTable) remove(tok poller.Token) {
	if t.lookup(tok) == nil {
		return
	}
	t.slots[tok.Slot].conn = nil
	t.free = append(t.free, tok.Slot)
	t.live--
}

func (t *connTable) len() int {
	return t.live
}

func (t *connTable) each(fn func(*conn)) {
	for _, s := range t.slots {
		if s.conn != nil {
			fn(s.conn)
		}
	}
}
