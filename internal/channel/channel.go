// Package channel establishes the duplex pipe pair between the supervisor and its front-end.
package channel

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Descriptor numbers of the front-end's channel ends.
const (
	RequestFD  = 3
	ResponseFD = 4
)

// initialCwdSize is the first buffer size tried when reading the working directory.
var initialCwdSize = 256

// Channel is the supervisor's side of the duplex channel.
type Channel struct {
	// Requests is read by the supervisor; the front-end holds the write end.
	Requests *os.File
	// Responses is written by the supervisor; the front-end holds the read end.
	Responses *os.File

	FrontEndPID int
}

// ResolveFrontEnd returns the front-end path for the given invocation argument.
// An absolute path is used verbatim. Anything else, including the default
// name used when arg is empty, is joined to the current working directory.
func ResolveFrontEnd(arg, defaultName string) (string, error) {
	if strings.HasPrefix(arg, "/") {
		return arg, nil
	}
	rel := arg
	if rel == "" {
		rel = defaultName
	}

	cwd, err := getcwd(initialCwdSize)
	if err != nil {
		return "", fmt.Errorf("resolve front-end %q: %w", rel, err)
	}
	return cwd + "/" + rel, nil
}

// getcwd reads the working directory, doubling the buffer while the kernel reports ERANGE.
func getcwd(size int) (string, error) {
	if size < 1 {
		size = 1
	}
	for {
		buf := make([]byte, size)
		n, err := unix.Getcwd(buf)
		if errors.Is(err, unix.ERANGE) {
			size *= 2
			continue
		}
		if err != nil {
			return "", fmt.Errorf("getcwd: %w", err)
		}
		// n counts the terminating NUL.
		if n < 1 || n > len(buf) || buf[n-1] != 0 {
			return "", fmt.Errorf("getcwd: %w", unix.EINVAL)
		}
		if buf[0] != '/' {
			return "", fmt.Errorf("getcwd: %w", unix.ENOENT)
		}
		return string(buf[:n-1]), nil
	}
}

// Open creates the two pipes and starts the front-end at path with its ends
// as descriptors RequestFD and ResponseFD, passed as its two arguments.
// The front-end shares the supervisor's stdin, stdout, stderr and environment.
func Open(path string) (*Channel, error) {
	reqR, reqW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create request pipe: %w", err)
	}
	respR, respW, err := os.Pipe()
	if err != nil {
		reqR.Close()
		reqW.Close()
		return nil, fmt.Errorf("create response pipe: %w", err)
	}

	attr := &os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr, reqW, respR},
	}
	argv := []string{path, strconv.Itoa(RequestFD), strconv.Itoa(ResponseFD)}
	proc, err := os.StartProcess(path, argv, attr)

	// The front-end's ends are closed here whether or not it started.
	reqW.Close()
	respR.Close()

	if err != nil {
		reqR.Close()
		respW.Close()
		return nil, fmt.Errorf("start front-end %s: %w", path, err)
	}

	pid := proc.Pid
	_ = proc.Release()

	return &Channel{
		Requests:    reqR,
		Responses:   respW,
		FrontEndPID: pid,
	}, nil
}

// Close closes the supervisor's ends. The front-end sees end-of-stream on its response end.
func (c *Channel) Close() error {
	return errors.Join(c.Requests.Close(), c.Responses.Close())
}
