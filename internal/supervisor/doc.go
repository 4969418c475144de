// Package supervisor runs the das dispatch loop.
//
// The loop reads one request at a time from the request stream and services it
// to completion before reading the next:
//   - A command request is spawned, its pid is reported, and the supervisor
//     then blocks reaping that pid, reporting every state change, until the
//     process has exited or been killed by a signal.
//   - An exit request, or the end of the request stream, stops the loop. The
//     check only happens between requests and never interrupts a reap.
//   - A request that fails to decode is reported and skipped.
//
// Reaping is restricted to the spawned pid. Other children of the supervisor,
// in particular the front-end, are never reaped mid-command.
//
// Error handling:
//   - Decode failure → one "json:" line on the response stream, loop continues
//   - Program cannot be executed → child exits with 127, reported like any exit
//   - Spawn, wait or request stream read failure → Run returns the error (fatal)
//   - Response write failure → logged, loop continues
package supervisor
