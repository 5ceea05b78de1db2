// Command httpprobe sends one request, optionally in small fragments, and
// prints the response. It is meant for poking at a running httpd.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/nczempin/httpd-go-uring/client"
	"github.com/nczempin/httpd-go-uring/protocol"
	"github.com/nczempin/httpd-go-uring/transport"
)

func main() {
	network := flag.String("network", transport.NetworkTCP, "transport: tcp, unix, tcp-ring, tcp-net or unix-net")
	host := flag.String("host", "127.0.0.1", "server host, or socket path for the unix networks")
	port := flag.Int("port", 8080, "server port")
	method := flag.String("method", "GET", "request method")
	path := flag.String("path", "/", "request path, query string included")
	body := flag.String("body", "", "request body")
	fragment := flag.Int("fragment", 0, "write the request in chunks of this many bytes")
	pause := flag.Duration("pause", 10*time.Millisecond, "pause between fragments")
	flag.Parse()

	logger := log.New(os.Stderr, "httpprobe: ", 0)

	trans, err := transport.NewTransport(*network)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	if d, ok := trans.(transport.Destroyer); ok {
		defer d.Destroy()
	}

	probe := client.NewProbe(trans)
	if err := probe.SetFragment(*fragment, *pause); err != nil {
		logger.Fatalf("%v", err)
	}

	target, query, _ := strings.Cut(*path, "?")
	var params map[string]string
	if query != "" {
		if params, err = protocol.ParseQuery(query); err != nil {
			logger.Fatalf("%v", err)
		}
	}

	c := client.NewHttpClient(probe)
	if err := c.Connect(*host, *port); err != nil {
		logger.Fatalf("connect: %v", err)
	}
	defer c.Disconnect()

	resp, err := c.Do(&client.Request{
		Method: *method,
		Path:   target,
		Params: params,
		Body:   []byte(*body),
	})
	if err != nil {
		logger.Fatalf("request: %v", err)
	}

	fmt.Printf("%d %s\n", resp.StatusCode, resp.StatusMessage)
	for _, h := range resp.Headers {
		fmt.Printf("%s: %s\n", h.Key, h.Value)
	}
	fmt.Println()
	os.Stdout.Write(resp.Body)
	fmt.Println()
}
