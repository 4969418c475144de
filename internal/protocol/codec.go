package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Decoder reads newline-framed requests from a byte stream.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next blocks until one full record is available and decodes it.
//
// It returns exactly one of: a request; a *DecodeFailure for a record that
// could not be decoded; io.EOF once the writer has closed the stream with no
// partial record left; or a wrapped read error. A final record without a
// trailing newline is still decoded.
func (d *Decoder) Next() (*Request, error) {
	line, err := d.r.ReadBytes('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read request: %w", err)
		}
		if len(line) == 0 {
			return nil, io.EOF
		}
	}
	return DecodeRequest(line)
}

// DecodeRequest decodes a single request record. The trailing newline is optional.
// Every decoding problem is reported as a *DecodeFailure.
func DecodeRequest(line []byte) (*Request, error) {
	line = bytes.TrimRight(line, "\r\n")
	if len(bytes.TrimSpace(line)) == 0 {
		return nil, &DecodeFailure{Reason: "empty request"}
	}
	if !utf8.Valid(line) {
		return nil, &DecodeFailure{Reason: "malformed request: invalid UTF-8"}
	}
	// encoding/json folds key case and lets a repeated key win silently.
	if reason := checkFields(line); reason != "" {
		return nil, &DecodeFailure{Reason: "malformed request: " + reason}
	}

	var w wireRequest
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields() // Strict parsing
	if err := dec.Decode(&w); err != nil {
		return nil, &DecodeFailure{Reason: fmt.Sprintf("malformed request: %v", err)}
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, &DecodeFailure{Reason: "malformed request: trailing data after JSON object"}
	}

	switch Kind(w.Type) {
	case KindExit:
		if w.Path != nil || w.Argv != nil || w.Envp != nil {
			return nil, &DecodeFailure{Reason: "request doesn't conform to schema: exit takes no fields"}
		}
		return Exit(), nil
	case KindCommand:
		cmd, reason := commandFromWire(&w)
		if reason != "" {
			return nil, &DecodeFailure{Reason: "request doesn't conform to schema: " + reason}
		}
		return Command(cmd), nil
	case "":
		return nil, &DecodeFailure{Reason: "request doesn't conform to schema: missing type"}
	default:
		return nil, &DecodeFailure{Reason: fmt.Sprintf("request doesn't conform to schema: unknown type %q", w.Type)}
	}
}

// wireFields are the only keys a request object may carry, matched exactly.
var wireFields = map[string]bool{"type": true, "path": true, "argv": true, "envp": true}

// checkFields walks the top-level keys of a JSON object and returns a reason
// for the first unknown or repeated key. Input that is not a well-formed
// object is left for the full decode to report.
func checkFields(line []byte) string {
	dec := json.NewDecoder(bytes.NewReader(line))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return ""
	}

	seen := make(map[string]bool, len(wireFields))
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		key, ok := tok.(string)
		if !ok {
			return ""
		}
		if !wireFields[key] {
			return fmt.Sprintf("unknown field %q", key)
		}
		if seen[key] {
			return fmt.Sprintf("duplicate field %q", key)
		}
		seen[key] = true

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return ""
		}
	}
	return ""
}

// commandFromWire validates a command envelope and returns a non-empty reason on failure.
func commandFromWire(w *wireRequest) (RunCommand, string) {
	if w.Path == nil || *w.Path == "" {
		return RunCommand{}, "command requires a non-empty path"
	}
	if strings.ContainsRune(*w.Path, 0) {
		return RunCommand{}, "path contains a NUL byte"
	}
	if w.Argv == nil || len(*w.Argv) == 0 {
		return RunCommand{}, "command requires a non-empty argv"
	}
	for i, arg := range *w.Argv {
		if strings.ContainsRune(arg, 0) {
			return RunCommand{}, fmt.Sprintf("argv[%d] contains a NUL byte", i)
		}
	}

	cmd := RunCommand{
		Path: *w.Path,
		Argv: *w.Argv,
	}
	if w.Envp != nil {
		for i, kv := range *w.Envp {
			if strings.ContainsRune(kv, 0) {
				return RunCommand{}, fmt.Sprintf("envp[%d] contains a NUL byte", i)
			}
			if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
				return RunCommand{}, fmt.Sprintf("envp[%d] %q is not KEY=VALUE", i, kv)
			}
		}
		cmd.Envp = *w.Envp
		cmd.EnvpSet = true
	}
	return cmd, ""
}

// EncodeRequest serializes a Request as one JSON line and writes it to w.
func EncodeRequest(w io.Writer, req *Request) error {
	var wire wireRequest
	switch req.Kind {
	case KindExit:
		wire.Type = string(KindExit)
	case KindCommand:
		if req.Command == nil {
			return fmt.Errorf("command request without command")
		}
		path := req.Command.Path
		argv := req.Command.Argv
		wire.Type = string(KindCommand)
		wire.Path = &path
		wire.Argv = &argv
		if req.Command.EnvpSet {
			envp := req.Command.Envp
			if envp == nil {
				envp = []string{}
			}
			wire.Envp = &envp
		}
	default:
		return fmt.Errorf("unsupported request kind: %q", req.Kind)
	}

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(&wire); err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	return nil
}
