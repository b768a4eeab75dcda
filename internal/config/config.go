// Package config loads the pagebrain bootstrap configuration: where state is
// stored, how pages are loaded, how logging is set up, and which assistant
// defaults seed the persisted settings on first run and on /reset.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pagebrain/internal/logging"

	"gopkg.in/yaml.v3"
)

// Config holds all pagebrain configuration.
type Config struct {
	// Assistant defaults copied into the settings store on first run and /reset
	Assistant AssistantConfig `yaml:"assistant"`

	// Key-value persistence
	Storage StorageConfig `yaml:"storage"`

	// Page loading
	Browser BrowserConfig `yaml:"browser"`
	HTTP    HTTPConfig    `yaml:"http"`

	// Agents
	Overview OverviewConfig `yaml:"overview"`
	Research ResearchConfig `yaml:"research"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// AssistantConfig mirrors the persisted settings keys.
type AssistantConfig struct {
	Model     string `yaml:"model"`
	Prompt    string `yaml:"prompt"`
	ChatURL   string `yaml:"chat_url"`
	ModelsURL string `yaml:"models_url"`
	APIToken  string `yaml:"api_token"`
}

// StorageConfig selects the key-value backend.
type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite3 (cgo), sqlite (pure Go), memory
	Path   string `yaml:"path"`
}

// BrowserConfig configures the Chrome page source.
type BrowserConfig struct {
	Enabled           bool   `yaml:"enabled"`
	DebuggerURL       string `yaml:"debugger_url"`
	Bin               string `yaml:"bin"`
	Headless          bool   `yaml:"headless"`
	NavigationTimeout string `yaml:"navigation_timeout"`
}

// HTTPConfig configures outbound HTTP.
type HTTPConfig struct {
	Timeout      string `yaml:"timeout"`
	MaxPageBytes int64  `yaml:"max_page_bytes"`
}

// OverviewConfig configures the chunked summarizer.
type OverviewConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// ResearchConfig configures research mode.
type ResearchConfig struct {
	AutoAnalyze bool `yaml:"auto_analyze"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // json, console
	File       string          `yaml:"file"`
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// DefaultPrompt is the system prompt used until the user changes it.
const DefaultPrompt = "You are a helpful assistant with the ability to answer questions about the current page content."

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home := defaultHome()
	return &Config{
		Assistant: AssistantConfig{
			Prompt:    DefaultPrompt,
			ChatURL:   "http://localhost:11434/v1/chat/completions",
			ModelsURL: "http://localhost:11434/v1/models",
		},
		Storage: StorageConfig{
			Driver: "sqlite3",
			Path:   filepath.Join(home, "pagebrain.db"),
		},
		Browser: BrowserConfig{
			Enabled:           false,
			Headless:          true,
			NavigationTimeout: "30s",
		},
		HTTP: HTTPConfig{
			Timeout:      "5m",
			MaxPageBytes: 4 << 20,
		},
		Overview: OverviewConfig{
			ChunkSize: 12000,
			Overlap:   400,
		},
		Research: ResearchConfig{
			AutoAnalyze: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File:   filepath.Join(home, "logs", "pagebrain.log"),
		},
	}
}

// DefaultPath returns ~/.pagebrain/config.yaml.
func DefaultPath() string {
	return filepath.Join(defaultHome(), "config.yaml")
}

func defaultHome() string {
	if dir := os.Getenv("PAGEBRAIN_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pagebrain"
	}
	return filepath.Join(home, ".pagebrain")
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PAGEBRAIN_CHAT_URL"); v != "" {
		c.Assistant.ChatURL = v
	}
	if v := os.Getenv("PAGEBRAIN_MODELS_URL"); v != "" {
		c.Assistant.ModelsURL = v
	}
	if v := os.Getenv("PAGEBRAIN_API_TOKEN"); v != "" {
		c.Assistant.APIToken = v
	}
	if v := os.Getenv("PAGEBRAIN_MODEL"); v != "" {
		c.Assistant.Model = v
	}
	if v := os.Getenv("PAGEBRAIN_BROWSER_URL"); v != "" {
		c.Browser.DebuggerURL = v
		c.Browser.Enabled = true
	}
	if v := os.Getenv("PAGEBRAIN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// ValidDrivers lists the supported storage drivers.
var ValidDrivers = []string{"sqlite3", "sqlite", "memory"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	valid := false
	for _, d := range ValidDrivers {
		if c.Storage.Driver == d {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid storage driver: %s (valid: %v)", c.Storage.Driver, ValidDrivers)
	}
	if c.Storage.Driver != "memory" && c.Storage.Path == "" {
		return fmt.Errorf("storage path is required for driver %s", c.Storage.Driver)
	}
	if c.Overview.ChunkSize <= 0 {
		return fmt.Errorf("overview chunk_size must be positive, got %d", c.Overview.ChunkSize)
	}
	if c.Overview.Overlap < 0 || c.Overview.Overlap >= c.Overview.ChunkSize {
		return fmt.Errorf("overview overlap must be in [0, chunk_size), got %d", c.Overview.Overlap)
	}
	if _, err := time.ParseDuration(c.HTTP.Timeout); c.HTTP.Timeout != "" && err != nil {
		return fmt.Errorf("invalid http timeout %q: %w", c.HTTP.Timeout, err)
	}
	return nil
}

// GetHTTPTimeout returns the transport timeout. Zero means no timeout.
func (c *Config) GetHTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.HTTP.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// GetNavigationTimeout returns the browser navigation timeout as a duration.
func (c *Config) GetNavigationTimeout() time.Duration {
	d, err := time.ParseDuration(c.Browser.NavigationTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// LoggingOptions converts the logging section for logging.Initialize.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		File:       c.Logging.File,
		Categories: c.Logging.Categories,
	}
}
