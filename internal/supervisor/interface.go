package supervisor

import (
	"github.com/mattjoyce/das/internal/protocol"
	"github.com/mattjoyce/das/internal/spawn"
)

//go:generate mockgen -destination=mocks/mock_process_table.go -package=mocks github.com/mattjoyce/das/internal/supervisor ProcessTable

// ProcessTable creates child processes and observes their state changes.
type ProcessTable interface {
	// Spawn starts cmd and returns its pid without waiting for it.
	Spawn(cmd protocol.RunCommand) (int, error)
	// Wait blocks until pid changes state. It returns spawn.ErrNoChild when
	// pid is not a child of the caller.
	Wait(pid int) (spawn.Status, error)
}
