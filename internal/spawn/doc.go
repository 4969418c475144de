// Package spawn starts external processes on behalf of the supervisor and
// observes their state changes through wait4(2).
//
// Starting a process is split in two so that a failing exec only ever kills
// the new child:
//   - The supervisor re-executes its own binary in trampoline mode, passing the
//     target path and argv, with the requested environment already installed.
//   - The trampoline calls execve(2). If that fails it reports on stderr and
//     exits with ExecFailedCode, which the supervisor reaps like any other exit.
//
// The pid is therefore always known to the caller before the target program
// runs, and no handle to the process is retained: callers reap it with Wait.
//
// Binaries that use Table must call RunTrampoline (or check IsTrampoline) at
// the very top of main, and test binaries must do the same in TestMain.
package spawn
