// Package userconfig provides user-level configuration for voice-agent.
// This configuration is stored in ~/.config/voice-agent/config.yaml.
package userconfig

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/natefinch/atomic"

	"github.com/goshawk/voice-agent/pkg/actions"
	"github.com/goshawk/voice-agent/pkg/audio/transcribe"
	"github.com/goshawk/voice-agent/pkg/debounce"
	"github.com/goshawk/voice-agent/pkg/environment"
	"github.com/goshawk/voice-agent/pkg/interpret"
	"github.com/goshawk/voice-agent/pkg/paths"
)

// CurrentVersion is the current version of the user config format
const CurrentVersion = "v1"

const (
	DefaultListen     = "127.0.0.1:8070"
	DefaultBackendURL = "http://" + DefaultListen + interpret.DefaultPath
	DefaultLocation   = "http://localhost:8069/odoo"
)

// Config represents the user-level voice-agent configuration
type Config struct {
	// Version is the config format version
	Version     string      `yaml:"version,omitempty"`
	Backend     Backend     `yaml:"backend"`
	Session     Session     `yaml:"session"`
	Actions     Actions     `yaml:"actions"`
	Transcriber Transcriber `yaml:"transcriber"`
	Host        Host        `yaml:"host"`
	Server      Server      `yaml:"server"`
}

// Backend configures the interpretation client.
type Backend struct {
	URL string `yaml:"url"`
	// JSONRPC wraps requests in a JSON-RPC 2.0 call envelope
	JSONRPC bool `yaml:"jsonrpc,omitempty"`
	// Timeout bounds each request. Zero means no timeout.
	Timeout Duration          `yaml:"timeout,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

type Session struct {
	QuietPeriod Duration `yaml:"quiet_period"`
}

type Actions struct {
	OpenAppRetryDelay Duration `yaml:"open_app_retry_delay"`
}

// Transcriber configures realtime speech-to-text. Audio is a PCM16 mono
// 24kHz file or named pipe; speech capture is unavailable without it. Stdin
// is reserved for typed commands.
type Transcriber struct {
	URL      string `yaml:"url"`
	Model    string `yaml:"model"`
	Audio    string `yaml:"audio,omitempty"`
	Realtime bool   `yaml:"realtime,omitempty"`
}

// Host describes the simulated application shell used by the CLI.
type Host struct {
	Location string   `yaml:"location"`
	Entries  []string `yaml:"entries,omitempty"`
	AppsMenu []string `yaml:"apps_menu,omitempty"`
	MainMenu bool     `yaml:"main_menu"`
}

// Server configures the development interpretation backend.
type Server struct {
	Listen string `yaml:"listen"`
	// Interpreter is one of keyword, gemini, openai or anthropic
	Interpreter string `yaml:"interpreter"`
	Model       string `yaml:"model,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Backend: Backend{
			URL: DefaultBackendURL,
		},
		Session: Session{
			QuietPeriod: Duration{debounce.DefaultQuietPeriod},
		},
		Actions: Actions{
			OpenAppRetryDelay: Duration{actions.DefaultOpenAppRetryDelay},
		},
		Transcriber: Transcriber{
			URL:   transcribe.DefaultURL,
			Model: transcribe.DefaultModel,
		},
		Host: Host{
			Location: DefaultLocation,
			Entries:  []string{"Discuss"},
			AppsMenu: []string{"Discuss", "Sales", "Inventory", "Settings"},
			MainMenu: true,
		},
		Server: Server{
			Listen:      DefaultListen,
			Interpreter: "keyword",
		},
	}
}

// Path returns the path to the config file
func Path() string {
	return filepath.Join(paths.GetConfigDir(), "config.yaml")
}

// Load loads the user configuration from the config file, then applies
// environment overrides.
func Load(ctx context.Context, env environment.Provider) (*Config, error) {
	return LoadFrom(ctx, Path(), env)
}

// LoadFrom is Load for an explicit path. A missing file yields the defaults.
func LoadFrom(ctx context.Context, path string, env environment.Provider) (*Config, error) {
	config, err := readConfig(path)
	if err != nil {
		return nil, err
	}
	if env != nil {
		config.applyEnv(ctx, env)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return config, nil
}

// readConfig reads and parses the config file on top of the defaults.
func readConfig(configPath string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

func (c *Config) applyEnv(ctx context.Context, env environment.Provider) {
	if url := environment.Value(ctx, env, environment.BackendURLEnv); url != "" {
		c.Backend.URL = url
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	if c.Session.QuietPeriod.Duration < 0 {
		return fmt.Errorf("session.quiet_period must not be negative")
	}
	if c.Actions.OpenAppRetryDelay.Duration < 0 {
		return fmt.Errorf("actions.open_app_retry_delay must not be negative")
	}
	if c.Transcriber.Audio == "-" {
		return fmt.Errorf("transcriber.audio cannot be stdin, which is read for typed commands; use a file or named pipe")
	}
	switch c.Server.Interpreter {
	case "", "keyword", "gemini", "openai", "anthropic":
	default:
		return fmt.Errorf("unknown server.interpreter %q", c.Server.Interpreter)
	}
	return nil
}

// Save saves the configuration to the config file
func (c *Config) Save() error {
	return c.SaveTo(Path())
}

func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Ensure version is always set to current version when saving
	c.Version = CurrentVersion

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return atomic.WriteFile(path, bytes.NewReader(data))
}

// Duration is a time.Duration written as a Go duration string ("300ms").
type Duration struct {
	time.Duration
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
