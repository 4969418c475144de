package supervisor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mattjoyce/das/internal/log"
	"github.com/mattjoyce/das/internal/protocol"
	"github.com/mattjoyce/das/internal/spawn"
)

// State is the position of the supervisor in the spawn/reap cycle.
type State int

const (
	StateIdle State = iota
	StateForked
	StateReaping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateForked:
		return "forked"
	case StateReaping:
		return "reaping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Next tells the dispatch loop whether to read another request.
type Next int

const (
	Continue Next = iota
	Stop
)

// Supervisor reads requests and services them one at a time.
type Supervisor struct {
	procs    ProcessTable
	requests *protocol.Decoder
	reporter *Reporter
	logger   *slog.Logger
	state    State
	newID    func() string
}

// New creates a Supervisor reading requests from requests and writing status lines to responses.
func New(procs ProcessTable, requests io.Reader, responses io.Writer) *Supervisor {
	return &Supervisor{
		procs:    procs,
		requests: protocol.NewDecoder(requests),
		reporter: NewReporter(responses),
		logger:   log.WithComponent("supervisor"),
		newID:    uuid.NewString,
	}
}

// State returns the current spawn/reap state.
func (s *Supervisor) State() State {
	return s.state
}

// Run is the dispatch loop. It returns nil after an exit request or the end of
// the request stream, and a non-nil error only for fatal failures.
func (s *Supervisor) Run() error {
	s.logger.Info("dispatch loop started")
	defer s.logger.Info("dispatch loop stopped")

	for {
		next, err := s.Step()
		if err != nil {
			return err
		}
		if next == Stop {
			return nil
		}
	}
}

// Step reads one request and services it completely.
func (s *Supervisor) Step() (Next, error) {
	req, err := s.requests.Next()

	var failure *protocol.DecodeFailure
	switch {
	case errors.Is(err, io.EOF):
		s.logger.Info("request stream closed")
		return Stop, nil
	case errors.As(err, &failure):
		s.logger.Warn("rejected request", "reason", failure.Reason)
		s.report(s.logger, s.reporter.Rejected(failure))
		return Continue, nil
	case err != nil:
		return Stop, fmt.Errorf("%w: %w", ErrRequestStream, err)
	}

	reqLogger := log.WithRequest(s.newID()).With("component", "supervisor", "kind", string(req.Kind))

	switch req.Kind {
	case protocol.KindExit:
		reqLogger.Info("exit requested")
		return Stop, nil
	case protocol.KindCommand:
		if err := s.execute(*req.Command, reqLogger); err != nil {
			return Stop, err
		}
		return Continue, nil
	default:
		return Stop, fmt.Errorf("unhandled request kind %q", req.Kind)
	}
}

// Execute spawns cmd and reaps it. It returns once the spawned process has
// exited or been killed, never while it is still alive.
func (s *Supervisor) Execute(cmd protocol.RunCommand) error {
	return s.execute(cmd, s.logger)
}

func (s *Supervisor) execute(cmd protocol.RunCommand, logger *slog.Logger) error {
	defer func() { s.state = StateIdle }()

	logger = logger.With("path", cmd.Path)
	logger.Debug("spawning", "argv", cmd.Argv, "envp_set", cmd.EnvpSet)

	s.state = StateForked
	pid, err := s.procs.Spawn(cmd)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSpawn, err)
	}
	logger = logger.With("pid", pid)
	logger.Info("spawned external")
	s.report(logger, s.reporter.Spawned(pid))

	s.state = StateReaping
	for {
		st, err := s.procs.Wait(pid)
		if errors.Is(err, spawn.ErrNoChild) {
			logger.Warn("spawned process is no longer a child")
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: pid %d: %w", ErrWait, pid, err)
		}

		logger.Debug("child state changed", "state", st.Kind.String(), "code", st.Code)
		s.report(logger, s.reporter.Status(st))

		if st.Pid == pid && st.Terminal() {
			logger.Info("reaped external", "state", st.Kind.String(), "code", st.Code)
			return nil
		}
	}
}

// report logs a failed response write. The front-end may have stopped reading;
// reaping must go on regardless.
func (s *Supervisor) report(logger *slog.Logger, err error) {
	if err != nil {
		logger.Warn("failed to write response", "error", err)
	}
}
