package frontend

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/das/internal/protocol"
)

// fakeSupervisor answers every command with a spawn line and a zero exit, and
// closes the response stream on exit or end of requests. It returns the
// requests it saw once done.
func fakeSupervisor(requests io.Reader, responses io.WriteCloser) <-chan []protocol.Kind {
	done := make(chan []protocol.Kind, 1)
	go func() {
		defer responses.Close()
		var seen []protocol.Kind
		defer func() { done <- seen }()

		dec := protocol.NewDecoder(requests)
		for pid := 100; ; pid++ {
			req, err := dec.Next()
			if err != nil {
				return
			}
			seen = append(seen, req.Kind)
			if req.Kind == protocol.KindExit {
				return
			}
			fmt.Fprintf(responses, "spawned external: pid = %d\nexternal %d terminated: 0\n", pid, pid)
		}
	}()
	return done
}

func newTestSession(t *testing.T) (*Session, <-chan []protocol.Kind) {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	t.Cleanup(func() {
		_ = reqR.Close()
		_ = respR.Close()
	})

	return &Session{
		Parser:    newTestParser(),
		Client:    NewClient(reqW),
		Responses: respR,
	}, fakeSupervisor(reqR, respW)
}

func TestRunLinesStopsAtExit(t *testing.T) {
	session, seen := newTestSession(t)
	in := strings.NewReader("ls\nno-such-program\n\nexit\nls\n")
	var out, errOut bytes.Buffer

	require.NoError(t, session.RunLines(in, &out, &errOut))

	assert.Equal(t, "spawned external: pid = 100\nexternal 100 terminated: 0\n", out.String())
	assert.Equal(t, "dasc: no-such-program: command not found\n", errOut.String())
	assert.Equal(t, []protocol.Kind{protocol.KindCommand, protocol.KindExit}, <-seen)
}

func TestRunLinesClosesRequestsAtEndOfInput(t *testing.T) {
	session, seen := newTestSession(t)
	in := strings.NewReader("ls\nFOO=1 env\n")
	var out, errOut bytes.Buffer

	require.NoError(t, session.RunLines(in, &out, &errOut))

	assert.Equal(t, 4, strings.Count(out.String(), "\n"))
	assert.Contains(t, out.String(), "external 101 terminated: 0")
	assert.Empty(t, errOut.String())
	assert.Equal(t, []protocol.Kind{protocol.KindCommand, protocol.KindCommand}, <-seen)
}

func TestRunLinesReturnsWhenSupervisorGoesAway(t *testing.T) {
	buf := &bufferCloser{}
	session := &Session{
		Parser:    newTestParser(),
		Client:    NewClient(buf),
		Responses: strings.NewReader("spawned external: pid = 1\n"),
	}
	// Input that never ends.
	in, inW := io.Pipe()
	defer inW.Close()

	var out bytes.Buffer
	require.NoError(t, session.RunLines(in, &out, io.Discard))
	assert.Equal(t, "spawned external: pid = 1\n", out.String())
	assert.Equal(t, 1, buf.closes)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestRunLinesReportsResponseReadError(t *testing.T) {
	session := &Session{
		Parser:    newTestParser(),
		Client:    NewClient(&bufferCloser{}),
		Responses: failingReader{},
	}
	in, inW := io.Pipe()
	defer inW.Close()

	err := session.RunLines(in, io.Discard, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestScanLinesStopsWhenDone(t *testing.T) {
	lines := make(chan string)
	done := make(chan struct{})
	result := make(chan error, 1)
	go func() {
		result <- scanLines(strings.NewReader("ls\nenv\nexit\n"), lines, done)
	}()

	assert.Equal(t, "ls", <-lines)
	// Nobody reads the remaining lines; closing done must release the scanner.
	close(done)

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scanLines did not return after done was closed")
	}
}

func TestScanLinesDeliversAllLines(t *testing.T) {
	lines := make(chan string, 3)
	done := make(chan struct{})
	defer close(done)

	require.NoError(t, scanLines(strings.NewReader("a\nb\nc"), lines, done))
	close(lines)

	var got []string
	for line := range lines {
		got = append(got, line)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}
