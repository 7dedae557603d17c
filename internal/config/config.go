package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/AgentOS/preview/internal/preview"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/host"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Preview   PreviewConfig
	Remote    RemoteConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	// EvaluateRPS caps preview and transpile requests across all clients.
	// Zero disables the cap.
	EvaluateRPS       int  `envconfig:"RATE_LIMIT_EVALUATE_RPS" default:"0"`
}

// PreviewConfig holds preview pipeline and host configuration.
type PreviewConfig struct {
	Debounce       time.Duration `envconfig:"PREVIEW_DEBOUNCE" default:"300ms"`
	Timeout        time.Duration `envconfig:"PREVIEW_TIMEOUT" default:"2s"`
	MaxSourceBytes int           `envconfig:"PREVIEW_MAX_SOURCE_BYTES" default:"262144"`
	MaxConsole     int           `envconfig:"PREVIEW_MAX_CONSOLE" default:"500"`
	Sanitize       bool          `envconfig:"PREVIEW_SANITIZE" default:"false"`
	Fallback       string        `envconfig:"PREVIEW_FALLBACK" default:"Loading preview..."`
	Height         string        `envconfig:"PREVIEW_HEIGHT" default:""`
}

// RemoteConfig points the CLI at a running preview server.
type RemoteConfig struct {
	URL     string        `envconfig:"PREVIEW_SERVER_URL" default:"http://localhost:8000"`
	Timeout time.Duration `envconfig:"PREVIEW_SERVER_TIMEOUT" default:"10s"`
}

// Engine returns the pipeline configuration.
func (p PreviewConfig) Engine() preview.Config {
	cfg := preview.DefaultConfig()
	cfg.Sandbox.Timeout = p.Timeout
	cfg.Sandbox.MaxConsole = p.MaxConsole
	cfg.MaxSourceBytes = p.MaxSourceBytes
	return cfg
}

// Host returns the options for a preview host.
func (p PreviewConfig) Host() host.Options {
	return host.Options{
		Debounce: p.Debounce,
		Fallback: p.Fallback,
		Height:   p.Height,
	}
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile loads the environment configuration and then applies the TOML
// file at path on top of it. Keys missing from the file keep their
// environment or default value.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var file fileConfig
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	file.apply(cfg)
	return cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Preview: PreviewConfig{
			Debounce:       300 * time.Millisecond,
			Timeout:        2 * time.Second,
			MaxSourceBytes: 256 * 1024,
			MaxConsole:     500,
			Fallback:       "Loading preview...",
		},
		Remote: RemoteConfig{
			URL:     "http://localhost:8000",
			Timeout: 10 * time.Second,
		},
	}
}

// Duration decodes TOML strings such as "300ms".
type Duration time.Duration

// UnmarshalText parses a time.ParseDuration string
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

type fileConfig struct {
	Server struct {
		Port string `toml:"port"`
		Host string `toml:"host"`
	} `toml:"server"`
	Logging struct {
		Level       string `toml:"level"`
		Development *bool  `toml:"development"`
	} `toml:"logging"`
	RateLimit struct {
		RequestsPerSecond int   `toml:"rps"`
		Burst             int   `toml:"burst"`
		Enabled           *bool `toml:"enabled"`
		EvaluateRPS       int   `toml:"evaluate_rps"`
	} `toml:"rate_limit"`
	Preview struct {
		Debounce       *Duration `toml:"debounce"`
		Timeout        *Duration `toml:"timeout"`
		MaxSourceBytes int       `toml:"max_source_bytes"`
		MaxConsole     int       `toml:"max_console"`
		Sanitize       *bool     `toml:"sanitize"`
		Fallback       string    `toml:"fallback"`
		Height         string    `toml:"height"`
	} `toml:"preview"`
	Remote struct {
		URL     string    `toml:"url"`
		Timeout *Duration `toml:"timeout"`
	} `toml:"remote"`
}

func (f *fileConfig) apply(cfg *Config) {
	setString(&cfg.Server.Port, f.Server.Port)
	setString(&cfg.Server.Host, f.Server.Host)

	setString(&cfg.Logging.Level, f.Logging.Level)
	setBool(&cfg.Logging.Development, f.Logging.Development)

	setInt(&cfg.RateLimit.RequestsPerSecond, f.RateLimit.RequestsPerSecond)
	setInt(&cfg.RateLimit.Burst, f.RateLimit.Burst)
	setBool(&cfg.RateLimit.Enabled, f.RateLimit.Enabled)
	setInt(&cfg.RateLimit.EvaluateRPS, f.RateLimit.EvaluateRPS)

	setDuration(&cfg.Preview.Debounce, f.Preview.Debounce)
	setDuration(&cfg.Preview.Timeout, f.Preview.Timeout)
	setInt(&cfg.Preview.MaxSourceBytes, f.Preview.MaxSourceBytes)
	setInt(&cfg.Preview.MaxConsole, f.Preview.MaxConsole)
	setBool(&cfg.Preview.Sanitize, f.Preview.Sanitize)
	setString(&cfg.Preview.Fallback, f.Preview.Fallback)
	setString(&cfg.Preview.Height, f.Preview.Height)

	setString(&cfg.Remote.URL, f.Remote.URL)
	setDuration(&cfg.Remote.Timeout, f.Remote.Timeout)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *Duration) {
	if v != nil {
		*dst = time.Duration(*v)
	}
}
