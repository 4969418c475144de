package spawn

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// trampolineArg marks a re-execution of the supervisor binary that must exec a target program.
const trampolineArg = "__das_exec"

// ExecFailedCode is the exit code of a spawned process whose program could not be executed.
const ExecFailedCode = 127

// IsTrampoline reports whether args (os.Args) request trampoline mode.
func IsTrampoline(args []string) bool {
	return len(args) >= 2 && args[1] == trampolineArg
}

// RunTrampoline execs the target named in os.Args when the process was started
// in trampoline mode, and returns immediately otherwise.
func RunTrampoline() {
	if !IsTrampoline(os.Args) {
		return
	}
	os.Exit(trampoline(os.Args[2:]))
}

// trampoline replaces the current image with args[0], passing args[1:] as argv
// and the current environment unchanged. It only returns if exec fails.
func trampoline(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "das: exec: missing program path")
		return ExecFailedCode
	}

	path, argv := args[0], args[1:]
	err := unix.Exec(path, argv, os.Environ())
	fmt.Fprintf(os.Stderr, "das: exec %s: %v\n", path, err)
	return ExecFailedCode
}

func trampolineArgv(self, path string, argv []string) []string {
	out := make([]string, 0, len(argv)+3)
	out = append(out, self, trampolineArg, path)
	return append(out, argv...)
}
