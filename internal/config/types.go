package config

// Config represents the complete das configuration.
type Config struct {
	FrontEnd string      `yaml:"front_end"`
	Log      LogConfig   `yaml:"log"`
	Spawn    SpawnConfig `yaml:"spawn"`

	// Set by Load.
	SourcePath  string `yaml:"-"`
	Fingerprint string `yaml:"-"`
}

// LogConfig defines supervisor diagnostics settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// SpawnConfig defines how spawned processes are wired to the supervisor's stdio.
type SpawnConfig struct {
	Stdin string `yaml:"stdin"` // inherit | null
}

const (
	StdinInherit = "inherit"
	StdinNull    = "null"
)

// DefaultFrontEnd is the front-end executable name resolved against the working directory.
const DefaultFrontEnd = "dasc"

// Defaults returns a Config with every field set to its default value.
func Defaults() *Config {
	return &Config{
		FrontEnd: DefaultFrontEnd,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Spawn: SpawnConfig{
			Stdin: StdinInherit,
		},
	}
}
