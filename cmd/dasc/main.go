package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	flag "github.com/spf13/pflag"

	"github.com/mattjoyce/das/internal/frontend"
	"github.com/mattjoyce/das/internal/log"
	"github.com/mattjoyce/das/internal/tui"
)

const (
	exitOK    = 0
	exitUsage = 1
	exitFatal = 2
)

func main() {
	os.Exit(runCLI(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func runCLI(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dasc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	interactive := fs.Bool("tui", false, "Run the interactive console instead of reading lines from stdin (run das with spawn.stdin: null)")
	noEnv := fs.Bool("no-env", false, "Start commands from an empty environment instead of inheriting dasc's")
	logLevel := fs.String("log-level", "warn", "Log level: debug, info, warn, error")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: dasc [flags] <request-fd> <response-fd>")
		fmt.Fprintln(stderr, "\ndasc is started by das, which supplies both descriptors.")
		fmt.Fprintln(stderr, "\nWith --tui, spawned commands share the terminal with the console. Set")
		fmt.Fprintln(stderr, "spawn.stdin: null in the das config so they do not compete for keyboard")
		fmt.Fprintln(stderr, "input, and expect their output to be redrawn over by the console.\n\nFlags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Flag error: %v\n", err)
		return exitUsage
	}

	requests, responses, err := frontend.OpenDescriptors(fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "dasc: %v\n", err)
		fs.Usage()
		return exitUsage
	}
	defer responses.Close()

	log.Setup(*logLevel, "text")

	environ := os.Environ()
	if *noEnv {
		environ = nil
	}
	session := &frontend.Session{
		Parser:    frontend.NewParser(environ),
		Client:    frontend.NewClient(requests),
		Responses: responses,
	}

	if *interactive {
		err = runConsole(session)
	} else {
		err = session.RunLines(stdin, stdout, stderr)
	}
	if err != nil {
		fmt.Fprintf(stderr, "dasc: %v\n", err)
		return exitFatal
	}
	return exitOK
}

func runConsole(session *frontend.Session) error {
	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		if err := frontend.ReadResponses(session.Responses, func(line string) {
			lines <- line
		}); err != nil {
			log.Warn("response stream failed", "error", err)
		}
	}()

	model := tui.New(session.Parser, session.Client, lines)
	_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	if closeErr := session.Client.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
