package supervisor

import "errors"

// ErrSpawn is returned when a child process could not be created.
var ErrSpawn = errors.New("spawn failed")

// ErrWait is returned when waiting for a child fails for a reason other than it being gone.
var ErrWait = errors.New("wait failed")

// ErrRequestStream is returned when the request stream cannot be read.
var ErrRequestStream = errors.New("request stream failed")
