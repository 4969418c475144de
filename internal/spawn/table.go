package spawn

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/mattjoyce/das/internal/protocol"
)

// StdinMode selects what a spawned process reads as standard input.
type StdinMode int

const (
	StdinInherit StdinMode = iota
	StdinNull
)

// Table spawns processes as children of the calling process and reaps them.
type Table struct {
	self  string
	stdin StdinMode
}

// NewTable returns a Table that re-executes the running binary as trampoline.
func NewTable(stdin StdinMode) (*Table, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate supervisor executable: %w", err)
	}
	return &Table{self: self, stdin: stdin}, nil
}

// Spawn starts cmd and returns its pid. The process inherits stdout and stderr;
// no other descriptor of the supervisor leaks into it.
//
// An error means the child could not be created at all. A program that cannot
// be executed still yields a pid, and later an exit status of ExecFailedCode.
func (t *Table) Spawn(cmd protocol.RunCommand) (int, error) {
	stdin := os.Stdin
	if t.stdin == StdinNull {
		devNull, err := os.Open(os.DevNull)
		if err != nil {
			return 0, fmt.Errorf("open %s: %w", os.DevNull, err)
		}
		defer devNull.Close()
		stdin = devNull
	}

	attr := &os.ProcAttr{
		Env:   cmd.Environment(os.Environ()),
		Files: []*os.File{stdin, os.Stdout, os.Stderr},
	}

	proc, err := os.StartProcess(t.self, trampolineArgv(t.self, cmd.Path, cmd.Argv), attr)
	if err != nil {
		return 0, fmt.Errorf("start %s: %w", cmd.Path, err)
	}

	pid := proc.Pid
	// Release drops the handle only; the child stays ours to reap via Wait.
	_ = proc.Release()
	return pid, nil
}

// Wait blocks until pid changes state (exit, signal, stop, continue) and returns it.
// It returns ErrNoChild when pid is not a child of this process.
func (t *Table) Wait(pid int) (Status, error) {
	return waitPid(pid)
}

func waitPid(pid int) (Status, error) {
	if pid <= 0 {
		return Status{}, fmt.Errorf("wait4: invalid pid %d", pid)
	}
	for {
		var ws unix.WaitStatus
		got, err := unix.Wait4(pid, &ws, unix.WUNTRACED|unix.WCONTINUED, nil)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.ECHILD):
			return Status{}, ErrNoChild
		case err != nil:
			return Status{}, fmt.Errorf("wait4 %d: %w", pid, err)
		}
		return FromWaitStatus(got, ws), nil
	}
}
