// Package config resolves runtime settings from, in increasing precedence,
// the YAML config file, environment variables, and CLI flags. Every resolved
// value remembers where it came from so the CLI can explain itself.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries CLI flag overrides into resolution.
type ResolveOptions struct {
	ConfigPath    string
	CLIInput      string
	CLIOutput     string
	CLIMaxRecords string
	CLIModel      string
	CLIDBPath     string
	CLIMinItems   string
}

// ResolvedConfig is the full resolved runtime configuration.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	InputPath  ResolvedValue `json:"input_path"`
	OutputPath ResolvedValue `json:"output_path"`
	MaxRecords ResolvedValue `json:"max_records"`
	Model      ResolvedValue `json:"model"`
	DBPath     ResolvedValue `json:"db_path"`
	MinItems   ResolvedValue `json:"min_items"`

	SessionToken ResolvedValue `json:"session_token"`
}

type fileConfig struct {
	InputPath  string `yaml:"input_path"`
	OutputPath string `yaml:"output_path"`
	MaxRecords string `yaml:"max_records"`
	Model      string `yaml:"model"`
	DBPath     string `yaml:"db_path"`
	MinItems   string `yaml:"min_items"`

	SessionToken string `yaml:"session_token"`
}

// Built-in defaults, applied when nothing else sets a value.
const (
	DefaultInputPath  = "data/requirements.jsonl"
	DefaultOutputPath = "data/requirements_processed.jsonl"
	DefaultMaxRecords = 500
	DefaultModel      = "best"
)

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".verilim", "config.yaml")
}

// ResolveConfig layers file, environment, and CLI values. A missing config
// file is not an error; a malformed one is.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}
	if cfg != nil {
		apply(&out.InputPath, cfg.InputPath, SourceConfig, path)
		apply(&out.OutputPath, cfg.OutputPath, SourceConfig, path)
		apply(&out.MaxRecords, cfg.MaxRecords, SourceConfig, path)
		apply(&out.Model, cfg.Model, SourceConfig, path)
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.MinItems, cfg.MinItems, SourceConfig, path)
		apply(&out.SessionToken, cfg.SessionToken, SourceConfig, path)
	}

	applyEnv(&out.InputPath, "VERILIM_INPUT")
	applyEnv(&out.OutputPath, "VERILIM_OUTPUT")
	applyEnv(&out.MaxRecords, "VERILIM_MAX_RECORDS")
	applyEnv(&out.Model, "VERILIM_MODEL")
	applyEnv(&out.DBPath, "VERILIM_DB")
	applyEnv(&out.MinItems, "VERILIM_MIN_ITEMS")
	applyEnv(&out.SessionToken, "PERPLEXITY_SESSION_TOKEN")

	apply(&out.InputPath, opts.CLIInput, SourceCLI, "--input")
	apply(&out.OutputPath, opts.CLIOutput, SourceCLI, "--output")
	apply(&out.MaxRecords, opts.CLIMaxRecords, SourceCLI, "--max-records")
	apply(&out.Model, opts.CLIModel, SourceCLI, "--model")
	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.MinItems, opts.CLIMinItems, SourceCLI, "--min-items")

	applyDefault(&out.InputPath, DefaultInputPath)
	applyDefault(&out.OutputPath, DefaultOutputPath)
	applyDefault(&out.MaxRecords, strconv.Itoa(DefaultMaxRecords))
	applyDefault(&out.Model, DefaultModel)

	if out.InputPath.Value != "" {
		out.InputPath.Value = expandUserPath(out.InputPath.Value)
	}
	if out.OutputPath.Value != "" {
		out.OutputPath.Value = expandUserPath(out.OutputPath.Value)
	}
	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}
	return out, nil
}

// MaxRecordsInt parses the resolved max-records value; unparseable values
// fall back to the built-in default.
func (r ResolvedConfig) MaxRecordsInt() int {
	n, err := strconv.Atoi(strings.TrimSpace(r.MaxRecords.Value))
	if err != nil || n < 0 {
		return DefaultMaxRecords
	}
	return n
}

// MinItemsInt parses the resolved min-items value; zero means "use the
// policy default".
func (r ResolvedConfig) MinItemsInt() int {
	n, err := strconv.Atoi(strings.TrimSpace(r.MinItems.Value))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// RequireSessionToken returns the session token or an error naming the
// environment variable a caller must set. Only live-run commands call this.
func (r ResolvedConfig) RequireSessionToken() (string, error) {
	token := strings.TrimSpace(r.SessionToken.Value)
	if token == "" {
		return "", fmt.Errorf("PERPLEXITY_SESSION_TOKEN not set: live access requires the session cookie")
	}
	return token, nil
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func applyDefault(dst *ResolvedValue, value string) {
	if strings.TrimSpace(dst.Value) == "" {
		*dst = ResolvedValue{Value: value, Source: SourceDefault, From: "built-in default"}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

// expandUserPath expands a leading ~ to the home directory.
func expandUserPath(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
