package server

import (
	"fmt"
	"log"
	"os"

	"github.com/nczempin/httpd-go-uring/errors"
)

const (
	DefaultBufferSize = 1024
	DefaultBacklog    = 128
	DefaultMaxEvents  = 128

	// DefaultMaxBodySize bounds the Content-Length a request may declare
	DefaultMaxBodySize = 1 << 20
)

// Config is fixed when the server is created
type Config struct {
	// Port is the TCP port to listen on; 0 picks a free one
	Port int
	// UnixPath, when set, listens on a Unix domain socket instead of Port
	UnixPath string
	// BufferSize is the capacity of each connection's read/write buffer.
	// No request line or header line may be longer than this.
	BufferSize int
	// MaxBodySize is the largest Content-Length accepted; larger requests get a 500
	MaxBodySize int
	Backlog     int
	// MaxEvents bounds the readiness events handled per loop iteration
	MaxEvents int
	Logger    *log.Logger
}

func (c Config) withDefaults() Config {
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.MaxBodySize == 0 {
		c.MaxBodySize = DefaultMaxBodySize
	}
	if c.Backlog == 0 {
		c.Backlog = DefaultBacklog
	}
	if c.MaxEvents == 0 {
		c.MaxEvents = DefaultMaxEvents
	}
	if c.Logger == nil {
		c.Logger = log.New(os.Stderr, "httpd: ", log.LstdFlags)
	}
	return c
}

// Validate reports the first invalid setting
func (c Config) Validate() error {
	if c.UnixPath == "" && (c.Port < 0 || c.Port > 65535) {
		return errors.NewInvalidArgumentError(fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.BufferSize < 0 {
		return errors.NewInvalidArgumentError(fmt.Sprintf("buffer size %d must be positive", c.BufferSize))
	}
	if c.MaxBodySize < 0 {
		return errors.NewInvalidArgumentError(fmt.Sprintf("max body size %d must not be negative", c.MaxBodySize))
	}
	if c.Backlog < 0 {
		return errors.NewInvalidArgumentError(fmt.Sprintf("backlog %d must not be negative", c.Backlog))
	}
	if c.MaxEvents < 0 {
		return errors.NewInvalidArgumentError(fmt.Sprintf("max events %d must not be negative", c.MaxEvents))
	}
	return nil
}
