// Package frontend implements the requesting side of the das channel: it turns
// typed command lines into requests and relays the supervisor's status lines.
package frontend

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattjoyce/das/internal/protocol"
)

// ErrEmptyLine is returned for blank input, which sends nothing.
var ErrEmptyLine = errors.New("empty line")

// Parser turns command lines into requests.
type Parser struct {
	// Environ is the base environment every command starts from.
	Environ []string
	// LookPath resolves a program name without a slash. Defaults to exec.LookPath.
	LookPath func(file string) (string, error)
}

// NewParser returns a Parser starting from environ.
func NewParser(environ []string) *Parser {
	return &Parser{Environ: environ, LookPath: exec.LookPath}
}

// Parse converts one line of input. The line "exit" yields an exit request.
// Otherwise leading KEY=VALUE words override the base environment, the next
// word names the program and it plus the remaining words form argv.
func (p *Parser) Parse(line string) (*protocol.Request, error) {
	words := strings.Fields(line)
	if len(words) == 0 {
		return nil, ErrEmptyLine
	}
	if len(words) == 1 && words[0] == "exit" {
		return protocol.Exit(), nil
	}

	env := append([]string(nil), p.Environ...)
	for len(words) > 0 && isAssignment(words[0]) {
		env = setEnv(env, words[0])
		words = words[1:]
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("no program given")
	}

	path := words[0]
	if !strings.Contains(path, "/") {
		lookPath := p.LookPath
		if lookPath == nil {
			lookPath = exec.LookPath
		}
		resolved, err := lookPath(path)
		if err != nil {
			return nil, fmt.Errorf("%s: command not found", path)
		}
		path = resolved
	}

	return protocol.Command(protocol.RunCommand{
		Path:    path,
		Argv:    words,
		Envp:    env,
		EnvpSet: true,
	}), nil
}

func isAssignment(word string) bool {
	name, _, ok := strings.Cut(word, "=")
	if !ok || name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// setEnv replaces the entry for kv's key, or appends it.
func setEnv(env []string, kv string) []string {
	name, _, _ := strings.Cut(kv, "=")
	for i, existing := range env {
		if k, _, _ := strings.Cut(existing, "="); k == name {
			env[i] = kv
			return env
		}
	}
	return append(env, kv)
}
