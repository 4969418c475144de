package protocol

// Kind discriminates the request variants carried on the request stream.
type Kind string

const (
	KindCommand Kind = "command"
	KindExit    Kind = "exit"
)

// Request is one decoded unit of work read from the channel.
type Request struct {
	Kind    Kind
	Command *RunCommand // only for KindCommand
}

// RunCommand asks the supervisor to spawn Path with Argv.
type RunCommand struct {
	Path string
	Argv []string

	// Envp replaces the inherited environment when EnvpSet is true, even if it is empty.
	Envp    []string
	EnvpSet bool
}

// Environment returns the environment the spawned process should receive,
// given the supervisor's own environment. The result is never nil when EnvpSet is true.
func (c RunCommand) Environment(inherited []string) []string {
	if !c.EnvpSet {
		return inherited
	}
	return append(make([]string, 0, len(c.Envp)), c.Envp...)
}

// Exit returns an exit request.
func Exit() *Request {
	return &Request{Kind: KindExit}
}

// Command returns a run request for cmd.
func Command(cmd RunCommand) *Request {
	return &Request{Kind: KindCommand, Command: &cmd}
}

// DecodeFailure reports a request line that is malformed or does not match either request shape.
// It never invalidates the stream; the next line can be decoded normally.
type DecodeFailure struct {
	Reason string
}

func (f *DecodeFailure) Error() string {
	return f.Reason
}

// wireRequest is the JSON envelope of one request line.
// Pointers distinguish an absent field from an empty one.
type wireRequest struct {
	Type string    `json:"type"`
	Path *string   `json:"path,omitempty"`
	Argv *[]string `json:"argv,omitempty"`
	Envp *[]string `json:"envp,omitempty"`
}
