// Command httpd serves the default pages on a TCP port or a Unix socket.
package main

import (
	stderrors "errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nczempin/httpd-go-uring/pages"
	"github.com/nczempin/httpd-go-uring/server"
)

func main() {
	var cfg server.Config
	flag.IntVar(&cfg.Port, "port", 8080, "TCP port to listen on")
	flag.StringVar(&cfg.UnixPath, "unix", "", "listen on this Unix socket path instead of -port")
	flag.IntVar(&cfg.BufferSize, "buffer", server.DefaultBufferSize, "per-connection buffer size in bytes")
	flag.IntVar(&cfg.MaxBodySize, "max-body", server.DefaultMaxBodySize, "largest request body accepted, in bytes")
	flag.IntVar(&cfg.Backlog, "backlog", server.DefaultBacklog, "listen backlog")
	flag.IntVar(&cfg.MaxEvents, "max-events", server.DefaultMaxEvents, "readiness events handled per loop iteration")
	flag.Parse()

	cfg.Logger = log.New(os.Stderr, "httpd: ", log.LstdFlags)

	srv, err := server.New(cfg, pages.Default{})
	if err != nil {
		cfg.Logger.Fatalf("failed to start: %v", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		cfg.Logger.Printf("received %s, shutting down", sig)
		if err := srv.Shutdown(); err != nil {
			cfg.Logger.Printf("shutdown: %v", err)
		}
	}()

	if err := srv.Serve(); err != nil && !stderrors.Is(err, server.ErrServerClosed) {
		cfg.Logger.Fatalf("serve: %v", err)
	}
}
