// Package config loads the JSON configuration shared by every repogen command.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
)

// DefaultPath is used when no --config flag is given. A missing file at this
// path is not an error.
const DefaultPath = "config/config.json"

type Config struct {
	LLM           LLMConfig `json:"llm"`
	OutputDir     string    `json:"output_dir,omitempty"`
	ServerAddr    string    `json:"server_addr,omitempty"`
	ContextChars  int       `json:"context_chars,omitempty"`
	StepTimeout   Duration  `json:"step_timeout,omitempty"`
	OnFailure     string    `json:"on_failure,omitempty"`
	UnwrapFences  *bool     `json:"unwrap_fences,omitempty"`
	ReportChanges *bool     `json:"report_changes,omitempty"`
	Exclude       []string  `json:"exclude,omitempty"`
	Log           LogConfig `json:"log"`
}

type LLMConfig struct {
	Provider    string   `json:"provider,omitempty"`
	Model       string   `json:"model,omitempty"`
	APIKey      string   `json:"api_key,omitempty"`
	APIKeyEnv   string   `json:"api_key_env,omitempty"`
	BaseURL     string   `json:"base_url,omitempty"`
	Command     []string `json:"command,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"`
	// File, when set, receives logs through a rotating writer in addition to stderr.
	File string `json:"file,omitempty"`
}

// Duration is a time.Duration that decodes from "90s"-style strings or from
// a number of seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case float64:
		*d = Duration(time.Duration(t * float64(time.Second)))
	case string:
		parsed, err := time.ParseDuration(t)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", t, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

// Default returns the configuration used when no file is present.
func Default() Config {
	yes, no := true, false
	return Config{
		LLM:           LLMConfig{Provider: "openai"},
		OutputDir:     "generated_repos",
		ServerAddr:    ":8080",
		ContextChars:  2500,
		StepTimeout:   Duration(5 * time.Minute),
		OnFailure:     "keep",
		UnwrapFences:  &no,
		ReportChanges: &yes,
		Log:           LogConfig{Level: "info", Format: "console"},
	}
}

// LoadConfig reads path over the defaults. When path is DefaultPath and the
// file does not exist, the defaults are returned.
func LoadConfig(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if path == DefaultPath && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "deepseek", "ollama", "claude", "command", "mock":
	default:
		return fmt.Errorf("unsupported llm.provider %q", c.LLM.Provider)
	}
	if c.LLM.Provider == "command" && len(c.LLM.Command) == 0 {
		return errors.New("llm.command is required for the command provider")
	}
	if c.ContextChars < 0 {
		return errors.New("context_chars must not be negative")
	}
	if c.StepTimeout < 0 {
		return errors.New("step_timeout must not be negative")
	}
	switch c.OnFailure {
	case "", "keep", "remove":
	default:
		return fmt.Errorf("on_failure must be keep or remove, got %q", c.OnFailure)
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}

// ResolveAPIKey returns llm.api_key, falling back to the environment variable
// named by llm.api_key_env.
func (c LLMConfig) ResolveAPIKey() string {
	if k := strings.TrimSpace(c.APIKey); k != "" {
		return k
	}
	if c.APIKeyEnv != "" {
		return strings.TrimSpace(os.Getenv(c.APIKeyEnv))
	}
	return ""
}

// Unwrap reports whether a reply that is a single code fence is unwrapped.
// Replies are only trimmed unless unwrap_fences is set.
func (c Config) Unwrap() bool { return c.UnwrapFences != nil && *c.UnwrapFences }

func (c Config) ChangeReport() bool { return c.ReportChanges == nil || *c.ReportChanges }
