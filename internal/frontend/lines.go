package frontend

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/mattjoyce/das/internal/log"
	"github.com/mattjoyce/das/internal/protocol"
)

// Session connects a command source to the supervisor channel.
type Session struct {
	Parser    *Parser
	Client    *Client
	Responses io.Reader
}

// RunLines reads command lines from in and sends one request per line until
// in ends or an exit request is sent, then closes the request stream. Status
// lines are copied to out as they arrive and parse errors go to errOut.
// It returns once the supervisor has closed the response stream.
func (s *Session) RunLines(in io.Reader, out, errOut io.Writer) error {
	logger := log.WithComponent("frontend")

	relayDone := make(chan error, 1)
	go func() {
		relayDone <- ReadResponses(s.Responses, func(line string) {
			fmt.Fprintln(out, line)
		})
	}()

	done := make(chan struct{})
	defer close(done)

	lines := make(chan string)
	inputDone := make(chan error, 1)
	go func() {
		inputDone <- scanLines(in, lines, done)
	}()

	finish := func() error {
		if err := s.Client.Close(); err != nil {
			logger.Warn("failed to close request stream", "error", err)
		}
		return <-relayDone
	}

	for {
		select {
		case err := <-relayDone:
			// The supervisor went away first; nothing typed now can be delivered.
			_ = s.Client.Close()
			return err
		case err := <-inputDone:
			if err != nil {
				logger.Warn("input ended with error", "error", err)
			}
			return finish()
		case line := <-lines:
			req, err := s.Parser.Parse(line)
			if errors.Is(err, ErrEmptyLine) {
				continue
			}
			if err != nil {
				fmt.Fprintf(errOut, "dasc: %v\n", err)
				continue
			}
			if err := s.Client.Send(req); err != nil {
				return fmt.Errorf("send request: %w", err)
			}
			logger.Debug("sent request", "kind", string(req.Kind))
			if req.Kind == protocol.KindExit {
				return finish()
			}
		}
	}
}

// scanLines sends each line of in on lines until in ends or done is closed.
func scanLines(in io.Reader, lines chan<- string, done <-chan struct{}) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-done:
			return nil
		}
	}
	return scanner.Err()
}
