package supervisor

import (
	"errors"
	"fmt"

	"github.com/mattjoyce/das/internal/log"
	"github.com/mattjoyce/das/internal/spawn"
)

// WaitFrontEnd blocks until the front-end process pid exits or is killed.
// Stop and continue notifications are ignored.
func WaitFrontEnd(procs ProcessTable, pid int) error {
	logger := log.WithComponent("supervisor").With("front_end_pid", pid)

	for {
		st, err := procs.Wait(pid)
		if errors.Is(err, spawn.ErrNoChild) {
			logger.Warn("front-end already reaped")
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: front-end %d: %w", ErrWait, pid, err)
		}
		if st.Terminal() {
			logger.Info("front-end exited", "state", st.Kind.String(), "code", st.Code)
			return nil
		}
	}
}
