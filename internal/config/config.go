package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mrzor/alloc-tracer/internal/lineindex"
)

// ErrHelp is returned by ParseArgs when usage was requested.
var ErrHelp = errors.New("help requested")

// CustomAttribute is a span attribute computed from an expression over chunk fields.
type CustomAttribute struct {
	Name       string
	Expression string
}

// Config holds the parsed command-line configuration
type Config struct {
	// Command is the executable to run
	Command string
	// Args are the arguments to pass to the command
	Args []string
	// Replay is a file of recorded protocol lines read instead of running Command
	Replay string

	// LineWidth is the number of bytes per grid line
	LineWidth uint64
	// MaxAddress bounds the densely indexed address range
	MaxAddress uint64

	// CustomAttributes are evaluated per chunk and attached to its span
	CustomAttributes []CustomAttribute
	// Filter is an expression selecting which chunks the viewer lists
	Filter string

	// LogFile receives log output while the terminal viewer is running
	LogFile string
	// Headless disables the terminal viewer
	Headless bool
	// Tick is the viewer poll interval
	Tick time.Duration
}

// EnvConfig holds configuration read from ALLOC_TRACER_* environment variables.
type EnvConfig struct {
	LineWidth  string        `env:"ALLOC_TRACER_LINE_WIDTH" envDefault:"400"`
	MaxAddress string        `env:"ALLOC_TRACER_MAX_ADDRESS" envDefault:"40000"`
	Attributes string        `env:"ALLOC_TRACER_ATTRIBUTES" envDefault:""`
	Filter     string        `env:"ALLOC_TRACER_FILTER" envDefault:""`
	LogFile    string        `env:"ALLOC_TRACER_LOG_FILE" envDefault:"alloc-tracer.log"`
	Tick       time.Duration `env:"ALLOC_TRACER_TICK" envDefault:"33ms"`
}

// ParseEnvConfig parses ALLOC_TRACER_* environment variables.
func ParseEnvConfig() (*EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment config: %w", err)
	}
	return &cfg, nil
}

// Usage returns the usage text for programName.
func Usage(programName string) string {
	return fmt.Sprintf(`Usage: %[1]s [options] -- <command> [args...]
       %[1]s [options] --replay <file>

Options:
  -w, --line-width HEX      bytes per grid line (default 400)
  -m, --max-address HEX     densely indexed address range (default 40000)
  -a, --attribute NAME=EXPR custom span attribute, repeatable
  -f, --filter EXPR         only list chunks matching EXPR
      --replay FILE         read events from FILE instead of a command
      --log-file FILE       log destination while the viewer runs
      --headless            no viewer; drain until the command exits
  -h, --help                show this help

Example: %[1]s -- python ./target.py`, programName)
}

// ParseArgs parses command-line arguments and returns a Config.
// Environment variables provide defaults; flags override them, except for
// attributes where environment entries come first and flag entries are
// appended.
func ParseArgs(args []string) (*Config, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no arguments provided")
	}
	programName := args[0]

	envCfg, err := ParseEnvConfig()
	if err != nil {
		return nil, err
	}

	envAttrs, err := ParseAttributeString(envCfg.Attributes)
	if err != nil {
		return nil, fmt.Errorf("ALLOC_TRACER_ATTRIBUTES: %w", err)
	}

	cfg := &Config{
		CustomAttributes: envAttrs,
		Filter:           envCfg.Filter,
		LogFile:          envCfg.LogFile,
		Tick:             envCfg.Tick,
	}

	lineWidth := envCfg.LineWidth
	maxAddress := envCfg.MaxAddress

	cmdStart := -1
	for i := 1; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			cmdStart = i + 1
			break
		}

		// Flags without a value
		switch arg {
		case "-h", "--help":
			return nil, ErrHelp
		case "--headless":
			cfg.Headless = true
			continue
		}

		if i+1 >= len(args) {
			return nil, fmt.Errorf("%s requires a value or is unknown\n%s", arg, Usage(programName))
		}
		value := args[i+1]

		switch arg {
		case "-w", "--line-width":
			lineWidth = value
		case "-m", "--max-address":
			maxAddress = value
		case "-a", "--attribute":
			attr, err := parseAttribute(value)
			if err != nil {
				return nil, err
			}
			cfg.CustomAttributes = append(cfg.CustomAttributes, attr)
		case "-f", "--filter":
			cfg.Filter = value
		case "--replay":
			cfg.Replay = value
		case "--log-file":
			cfg.LogFile = value
		default:
			return nil, fmt.Errorf("unknown option %q\n%s", arg, Usage(programName))
		}
		i++ // skip the value
	}

	if cmdStart != -1 && cmdStart < len(args) {
		cfg.Command = args[cmdStart]
		cfg.Args = args[cmdStart+1:]
	}

	if cfg.Command == "" && cfg.Replay == "" {
		return nil, fmt.Errorf("no command specified\n%s", Usage(programName))
	}

	if cfg.LineWidth, err = ParseHex(lineWidth); err != nil {
		return nil, fmt.Errorf("invalid line width: %w", err)
	}
	if cfg.LineWidth == 0 {
		return nil, fmt.Errorf("invalid line width: must be positive")
	}
	if cfg.MaxAddress, err = ParseHex(maxAddress); err != nil {
		return nil, fmt.Errorf("invalid max address: %w", err)
	}
	if lines := cfg.MaxAddress / cfg.LineWidth; lines > lineindex.MaxLines {
		return nil, fmt.Errorf("invalid max address %#x: %d lines of %#x bytes, at most %d allowed",
			cfg.MaxAddress, lines, cfg.LineWidth, lineindex.MaxLines)
	}
	if cfg.Tick <= 0 {
		return nil, fmt.Errorf("invalid tick %s: must be positive", cfg.Tick)
	}

	return cfg, nil
}

// ParseHex parses an unsigned hex number with an optional 0x prefix.
func ParseHex(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a hex number", s)
	}
	return v, nil
}

// ParseAttributeString parses a semicolon-separated list of NAME=EXPR entries.
// Empty sections are skipped.
func ParseAttributeString(s string) ([]CustomAttribute, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var attrs []CustomAttribute
	for _, part := range strings.Split(s, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		attr, err := parseAttribute(part)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

// parseAttribute parses a single NAME=EXPR entry. Only the first '=' splits.
func parseAttribute(s string) (CustomAttribute, error) {
	name, expression, found := strings.Cut(s, "=")
	if !found {
		return CustomAttribute{}, fmt.Errorf("invalid attribute format %q, expected NAME=EXPR", s)
	}
	name = strings.TrimSpace(name)
	expression = strings.TrimSpace(expression)
	if name == "" {
		return CustomAttribute{}, fmt.Errorf("invalid attribute %q: name cannot be empty", s)
	}
	if expression == "" {
		return CustomAttribute{}, fmt.Errorf("invalid attribute %q: expression cannot be empty", s)
	}
	return CustomAttribute{Name: name, Expression: expression}, nil
}

// FullCommand returns the command and all its arguments as a slice
func (c *Config) FullCommand() []string {
	return append([]string{c.Command}, c.Args...)
}
