package frontend

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/mattjoyce/das/internal/protocol"
)

// Client writes requests to the supervisor.
type Client struct {
	mu     sync.Mutex
	w      io.WriteCloser
	closed bool
}

// NewClient returns a Client writing to the request end w.
func NewClient(w io.WriteCloser) *Client {
	return &Client{w: w}
}

// Send writes one request line.
func (c *Client) Send(req *protocol.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("request stream closed")
	}
	return protocol.EncodeRequest(c.w, req)
}

// Close ends the request stream. The supervisor treats it like an exit request.
// Closing twice is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.w.Close()
}

// ReadResponses calls fn for every status line read from r, without the
// trailing newline, until r reaches end of stream.
func ReadResponses(r io.Reader, fn func(line string)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read responses: %w", err)
	}
	return nil
}

// OpenDescriptors turns the two decimal descriptor arguments the supervisor
// passes into the request and response files.
func OpenDescriptors(args []string) (requests, responses *os.File, err error) {
	if len(args) != 2 {
		return nil, nil, errors.New("expected two descriptor arguments: <request-fd> <response-fd>")
	}
	reqFD, err := parseFD(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("request descriptor: %w", err)
	}
	respFD, err := parseFD(args[1])
	if err != nil {
		return nil, nil, fmt.Errorf("response descriptor: %w", err)
	}
	if reqFD == respFD {
		return nil, nil, fmt.Errorf("request and response descriptors are both %d", reqFD)
	}
	return os.NewFile(uintptr(reqFD), "das-requests"), os.NewFile(uintptr(respFD), "das-responses"), nil
}

func parseFD(s string) (int, error) {
	fd, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid descriptor %q", s)
	}
	if fd < 0 {
		return 0, fmt.Errorf("invalid descriptor %d", fd)
	}
	return fd, nil
}
