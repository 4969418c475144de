package spawn

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ErrNoChild is returned by Wait when the pid is not (or no longer) a child of this process.
var ErrNoChild = errors.New("no such child process")

// StatusKind classifies one child state change.
type StatusKind int

const (
	StatusUnknown StatusKind = iota
	StatusExited
	StatusSignaled
	StatusStopped
	StatusContinued
)

func (k StatusKind) String() string {
	switch k {
	case StatusExited:
		return "exited"
	case StatusSignaled:
		return "signaled"
	case StatusStopped:
		return "stopped"
	case StatusContinued:
		return "continued"
	default:
		return "unknown"
	}
}

// Status is one observed state change of a child process.
type Status struct {
	Pid  int
	Kind StatusKind

	// Code is the exit code for StatusExited, or the signal number for
	// StatusSignaled and StatusStopped.
	Code       int
	CoreDumped bool

	// Raw is the undecoded wait status.
	Raw uint32
}

// Terminal reports whether the process is gone (exited or killed by a signal).
func (s Status) Terminal() bool {
	return s.Kind == StatusExited || s.Kind == StatusSignaled
}

// FromWaitStatus decodes a wait(2) status word.
func FromWaitStatus(pid int, ws unix.WaitStatus) Status {
	st := Status{Pid: pid, Raw: uint32(ws)}
	switch {
	case ws.Exited():
		st.Kind = StatusExited
		st.Code = ws.ExitStatus()
	case ws.Signaled():
		st.Kind = StatusSignaled
		st.Code = int(ws.Signal())
		st.CoreDumped = ws.CoreDump()
	case ws.Stopped():
		st.Kind = StatusStopped
		st.Code = int(ws.StopSignal())
	case ws.Continued():
		st.Kind = StatusContinued
	}
	return st
}
