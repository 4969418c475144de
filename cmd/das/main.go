package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/mattjoyce/das/internal/channel"
	"github.com/mattjoyce/das/internal/config"
	"github.com/mattjoyce/das/internal/log"
	"github.com/mattjoyce/das/internal/spawn"
	"github.com/mattjoyce/das/internal/supervisor"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
)

const (
	exitOK    = 0
	exitUsage = 1
	exitFatal = 2
)

func main() {
	// Re-executions of this binary that exec a requested program never reach the CLI.
	spawn.RunTrampoline()

	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(args []string) int {
	fs := flag.NewFlagSet("das", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "Path to config file (default $"+config.EnvConfigPath+")")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	logFormat := fs.String("log-format", "", "Log format: text, json (overrides config)")
	rehash := fs.Bool("rehash-config", false, "Write the config file's BLAKE3 checksum sidecar and exit")
	showVersion := fs.Bool("version", false, "Print version and exit")
	fs.Usage = func() { printUsage(fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return exitUsage
	}

	if *showVersion {
		fmt.Printf("das %s (commit %s)\n", version, resolveCommit())
		return exitOK
	}

	if fs.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "Usage: das [path to dasc]")
		return exitUsage
	}

	if *rehash {
		return rehashConfig(config.Locate(*configPath))
	}

	cfg, err := config.Load(config.Locate(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return exitUsage
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid flags: %v\n", err)
		return exitUsage
	}

	log.Setup(cfg.Log.Level, cfg.Log.Format)
	logger := log.WithComponent("main")
	if cfg.SourcePath != "" {
		logger.Info("loaded config", "path", cfg.SourcePath, "blake3", cfg.Fingerprint)
	}

	return runSupervisor(cfg, fs.Arg(0), logger)
}

func runSupervisor(cfg *config.Config, frontEndArg string, logger *slog.Logger) int {
	if frontEndArg == "" {
		frontEndArg = cfg.FrontEnd
	}
	path, err := channel.ResolveFrontEnd(frontEndArg, config.DefaultFrontEnd)
	if err != nil {
		logger.Error("fatal", "error", err)
		return exitFatal
	}

	stdin := spawn.StdinInherit
	if cfg.Spawn.Stdin == config.StdinNull {
		stdin = spawn.StdinNull
	}
	procs, err := spawn.NewTable(stdin)
	if err != nil {
		logger.Error("fatal", "error", err)
		return exitFatal
	}

	ch, err := channel.Open(path)
	if err != nil {
		logger.Error("fatal", "error", err)
		return exitFatal
	}
	logger.Info("front-end started", "path", path, "pid", ch.FrontEndPID)

	sup := supervisor.New(procs, ch.Requests, ch.Responses)
	if err := sup.Run(); err != nil {
		logger.Error("fatal", "error", err)
		return exitFatal
	}

	if err := ch.Close(); err != nil {
		logger.Warn("failed to close channel", "error", err)
	}
	if err := supervisor.WaitFrontEnd(procs, ch.FrontEndPID); err != nil {
		logger.Error("fatal", "error", err)
		return exitFatal
	}

	logger.Info("shutdown complete")
	return exitOK
}

// rehashConfig records the current hash of the config file so later loads accept it.
func rehashConfig(path string) int {
	if path == "" {
		fmt.Fprintf(os.Stderr, "--rehash-config needs --config or $%s\n", config.EnvConfigPath)
		return exitUsage
	}
	hash, err := config.WriteChecksum(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to refresh checksum: %v\n", err)
		return exitUsage
	}
	fmt.Printf("%s%s: blake3 %s\n", path, config.ChecksumSuffix, hash)
	return exitOK
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `das - run commands sent by a front-end, one at a time

Usage:
  das [flags] [path to dasc]

The front-end defaults to "%s" in the current directory. It is started with
two arguments: the descriptor to write requests to and the descriptor to read
responses from.

Flags:
`, config.DefaultFrontEnd)
	fs.PrintDefaults()
}

func resolveCommit() string {
	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = readBuildSetting("vcs.revision")
	}
	if commit == "" {
		return "unknown"
	}
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return strings.TrimSpace(setting.Value)
		}
	}
	return ""
}
