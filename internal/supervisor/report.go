package supervisor

import (
	"fmt"
	"io"

	"github.com/mattjoyce/das/internal/protocol"
	"github.com/mattjoyce/das/internal/spawn"
)

// Reporter writes human-readable status lines to the response stream, one write per line.
type Reporter struct {
	w io.Writer
}

// NewReporter returns a Reporter writing to w.
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

// Spawned reports a newly started process.
func (r *Reporter) Spawned(pid int) error {
	return r.line(fmt.Sprintf("spawned external: pid = %d", pid))
}

// Status reports one state change of a spawned process.
func (r *Reporter) Status(st spawn.Status) error {
	return r.line(FormatStatus(st))
}

// Rejected reports a request line that could not be decoded.
func (r *Reporter) Rejected(f *protocol.DecodeFailure) error {
	return r.line("json: " + f.Reason)
}

func (r *Reporter) line(s string) error {
	_, err := io.WriteString(r.w, s+"\n")
	return err
}

// FormatStatus renders a state change as a single line without the trailing newline.
func FormatStatus(st spawn.Status) string {
	switch st.Kind {
	case spawn.StatusExited:
		return fmt.Sprintf("external %d terminated: %d", st.Pid, st.Code)
	case spawn.StatusSignaled:
		if st.CoreDumped {
			return fmt.Sprintf("external %d terminated by signal: %d (core dumped)", st.Pid, st.Code)
		}
		return fmt.Sprintf("external %d terminated by signal: %d", st.Pid, st.Code)
	case spawn.StatusStopped:
		return fmt.Sprintf("external %d stopped by signal: %d", st.Pid, st.Code)
	case spawn.StatusContinued:
		return fmt.Sprintf("external %d continued", st.Pid)
	default:
		return fmt.Sprintf("external %d changed to unrecognized state: %#x", st.Pid, st.Raw)
	}
}
