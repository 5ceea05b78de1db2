//go:build linux

package poller

import (
	"encoding/binary"

	"github.com/nczempin/httpd-go-uring/errors"
	"golang.org/x/sys/unix"
)

// Interest is the set of readiness conditions a registration waits for
type Interest uint32

const (
	Readable Interest = 1 << iota
	Writable
)

// Token identifies a registration; it travels through the kernel inside the epoll event
type Token struct {
	Slot int32
	Gen  int32
}

// WakeupToken marks events raised by Wakeup
var WakeupToken = Token{Slot: -2}

// Event is one readiness notification
type Event struct {
	Token    Token
	Readable bool
	Writable bool
	Hangup   bool
	Error    bool
}

// Poller is a level-triggered epoll instance with an eventfd for cross-goroutine wakeups
type Poller struct {
	epfd   int
	wakefd int
	events []unix.EpollEvent
}

// New creates a poller returning at most maxEvents events per Wait
func New(maxEvents int) (*Poller, error) {
	if maxEvents <= 0 {
		return nil, errors.NewInvalidArgumentError("maxEvents must be positive")
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.NewTransportError(
			errors.TransportErrorPollerFailure,
			"failed to create epoll instance",
			err,
		)
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, errors.NewTransportError(
			errors.TransportErrorPollerFailure,
			"failed to create eventfd",
			err,
		)
	}

	p := &Poller{
		epfd:   epfd,
		wakefd: wakefd,
		events: make([]unix.EpollEvent, maxEvents),
	}
	if err := p.Add(wakefd, Readable, WakeupToken); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, err
	}
	return p, nil
}

// Add registers fd with the given interest
func (p *Poller) Add(fd int, interest Interest, tok Token) error {
	return p.ctl(unix.EPOLL_CTL_ADD, fd, interest, tok)
}

// Modify replaces the interest of a registered fd
func (p *Poller) Modify(fd int, interest Interest, tok Token) error {
	return p.ctl(unix.EPOLL_CTL_MOD, fd, interest, tok)
}

// Remove deregisters fd
func (p *Poller) Remove(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return errors.NewTransportError(
			errors.TransportErrorPollerFailure,
			"epoll_ctl DEL failed",
			err,
		)
	}
	return nil
}

func (p *Poller) ctl(op int, fd int, interest Interest, tok Token) error {
	ev := unix.EpollEvent{
		Events: toEpoll(interest),
		Fd:     tok.Slot,
		Pad:    tok.Gen,
	}
	if err := unix.EpollCtl(p.epfd, op, fd, &ev); err != nil {
		return errors.NewTransportError(
			errors.TransportErrorPollerFailure,
			"epoll_ctl failed",
			err,
		)
	}
	return nil
}

// Wait blocks until at least one registration is ready or msec elapses (-1 waits forever).
// Events are appended to dst[:0]. An interrupted wait returns no events and no error.
func (p *Poller) Wait(dst []Event, msec int) ([]Event, error) {
	dst = dst[:0]
	n, err := unix.EpollWait(p.epfd, p.events, msec)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, errors.NewTransportError(
			errors.TransportErrorPollerFailure,
			"epoll_wait failed",
			err,
		)
	}

	for i := 0; i < n; i++ {
		raw := p.events[i]
		tok := Token{Slot: raw.Fd, Gen: raw.Pad}
		if tok == WakeupToken {
			p.drainWakeups()
		}
		dst = append(dst, Event{
			Token:    tok,
			Readable: raw.Events&unix.EPOLLIN != 0,
			Writable: raw.Events&unix.EPOLLOUT != 0,
			Hangup:   raw.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0,
			Error:    raw.Events&unix.EPOLLERR != 0,
		})
	}
	return dst, nil
}

// Wakeup makes a blocked Wait return a WakeupToken event. Safe from any goroutine.
func (p *Poller) Wakeup() error {
	var one [8]byte
	binary.LittleEndian.PutUint64(one[:], 1)
	if _, err := unix.Write(p.wakefd, one[:]); err != nil && err != unix.EAGAIN {
		return errors.NewTransportError(
			errors.TransportErrorPollerFailure,
			"eventfd write failed",
			err,
		)
	}
	return nil
}

func (p *Poller) drainWakeups() {
	var buf [8]byte
	unix.Read(p.wakefd, buf[:])
}

// Close releases the epoll instance and the eventfd
func (p *Poller) Close() error {
	werr := unix.Close(p.wakefd)
	if err := unix.Close(p.epfd); err != nil {
		werr = err
	}
	if werr != nil {
		return errors.NewTransportError(
			errors.TransportErrorPollerFailure,
			"failed to close poller",
			werr,
		)
	}
	return nil
}

func toEpoll(interest Interest) uint32 {
	var events uint32
	if interest&Readable != 0 {
		events |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if interest&Writable != 0 {
		events |= unix.EPOLLOUT
	}
	return events
}
