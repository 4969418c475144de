package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable consulted when no --config flag is given.
const EnvConfigPath = "DAS_CONFIG"

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Locate returns the config path to load: the flag value if set, otherwise $DAS_CONFIG.
// An empty result means no config file is in use.
func Locate(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return os.Getenv(EnvConfigPath)
}

// Load reads and parses configuration from a file.
// An empty path yields the defaults. A sibling "<file>.b3" checksum, when present,
// must match the file's BLAKE3 hash.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return Defaults(), nil
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s\n"+
				"Hint: Check the path given via --config or $%s", absPath, EnvConfigPath)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := verifySidecarHash(absPath); err != nil {
		return nil, err
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", absPath, err)
	}

	cfg = applyConfigDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.SourcePath = absPath
	cfg.Fingerprint = hashBytes(data)
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader([]byte(interpolateEnv(string(data)))))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &cfg, nil
}

func verifySidecarHash(path string) error {
	sidecar := path + ChecksumSuffix
	raw, err := os.ReadFile(sidecar)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read checksum: %w", err)
	}

	expected := strings.TrimSpace(string(raw))
	if err := VerifyFileHash(path, expected); err != nil {
		return fmt.Errorf("config verification failed: %w\n"+
			"If you edited this file intentionally, regenerate %s", err, filepath.Base(sidecar))
	}
	return nil
}

func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.FrontEnd == "" {
		cfg.FrontEnd = defaults.FrontEnd
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}
	if cfg.Spawn.Stdin == "" {
		cfg.Spawn.Stdin = defaults.Spawn.Stdin
	}

	return cfg
}

// interpolateEnv replaces ${VAR} with the value of VAR, leaving unset variables in place.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// Validate re-checks a configuration, e.g. after command-line overrides were merged in.
func (c *Config) Validate() error {
	return validate(c)
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	if m := envVarPattern.FindStringSubmatch(cfg.FrontEnd); m != nil {
		return fmt.Errorf("front_end: environment variable ${%s} is not set", m[1])
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error (got %q)", cfg.Log.Level)
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be one of: text, json (got %q)", cfg.Log.Format)
	}

	switch cfg.Spawn.Stdin {
	case StdinInherit, StdinNull:
	default:
		return fmt.Errorf("spawn.stdin must be one of: %s, %s (got %q)", StdinInherit, StdinNull, cfg.Spawn.Stdin)
	}

	return nil
}
