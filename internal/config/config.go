package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultMaxPromptLength is the longest user text accepted before a
	// request is refused locally.
	DefaultMaxPromptLength = 8000

	defaultProxyURL       = "https://pyduino-ide-proxy-api.fepson1234.workers.dev/"
	defaultCatalogURL     = "https://raw.githubusercontent.com/programmercoder945/libs-blocks/main/funcs.pyfunc"
	defaultHistoryWindow  = 40
	defaultRequestTimeout = 60 * time.Second
	defaultRateLimitRPM   = 60
	defaultRunnerTimeout  = 30 * time.Second
	defaultRunnerMaxOut   = 10 * 1024
)

// Config holds all runtime settings for the worker.
type Config struct {
	ProxyURL        string   `toml:"proxy_url"`
	ProxySecret     string   `toml:"proxy_secret"`
	MaxPromptLength int      `toml:"max_prompt_length"`
	HistoryPath     string   `toml:"history_path"`
	HistoryWindow   int      `toml:"history_window"`
	RequestTimeout  duration `toml:"request_timeout"`
	RateLimitRPM    int      `toml:"rate_limit_rpm"`

	RunnerCommand   []string `toml:"runner_command"`
	RunnerTimeout   duration `toml:"runner_timeout"`
	RunnerMaxOutput int      `toml:"runner_max_output"`

	CatalogURL  string `toml:"catalog_url"`
	ArduinoCLI  string `toml:"arduino_cli"`
	SketchPath  string `toml:"sketch_path"`
	BuildFolder string `toml:"build_folder"`
}

// duration wraps time.Duration so it can be written as "60s" in TOML.
type duration struct {
	time.Duration
}

// UnmarshalText implements toml.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns a config populated with working defaults.
func Default() *Config {
	return &Config{
		ProxyURL:        defaultProxyURL,
		MaxPromptLength: DefaultMaxPromptLength,
		HistoryPath:     "history.db",
		HistoryWindow:   defaultHistoryWindow,
		RequestTimeout:  duration{defaultRequestTimeout},
		RateLimitRPM:    defaultRateLimitRPM,
		RunnerCommand:   []string{"python3", "-"},
		RunnerTimeout:   duration{defaultRunnerTimeout},
		RunnerMaxOutput: defaultRunnerMaxOut,
		CatalogURL:      defaultCatalogURL,
		ArduinoCLI:      "arduino-cli",
	}
}

// Load reads a TOML config file and applies it over the defaults. A missing
// file is not an error: the defaults are returned. The proxy secret may
// always be supplied via SKETCHPILOT_SECRET, which wins over the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if secret := os.Getenv("SKETCHPILOT_SECRET"); secret != "" {
		cfg.ProxySecret = secret
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ProxyURL == "" {
		return fmt.Errorf("proxy_url must not be empty")
	}
	if c.MaxPromptLength <= 0 {
		return fmt.Errorf("max_prompt_length must be positive")
	}
	if c.HistoryWindow < 0 {
		return fmt.Errorf("history_window must not be negative")
	}
	if len(c.RunnerCommand) == 0 {
		return fmt.Errorf("runner_command must not be empty")
	}
	return nil
}

// RequestTimeoutValue returns the configured request timeout.
func (c *Config) RequestTimeoutValue() time.Duration {
	return c.RequestTimeout.Duration
}

// RunnerTimeoutValue returns the configured runner timeout.
func (c *Config) RunnerTimeoutValue() time.Duration {
	return c.RunnerTimeout.Duration
}
