package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

const CodeInvalidConfig = "INVALID_CONFIG"

// Defaults used when neither the file nor flags set a value.
const (
	DefaultAddr            = ":3000"
	DefaultEscalationDelay = 7 * time.Minute
	DefaultDispatchTimeout = 10 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
)

// Config is the full relay configuration.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Downstream DownstreamConfig `json:"downstream" yaml:"downstream"`
	Escalation EscalationConfig `json:"escalation" yaml:"escalation"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Log        LogConfig        `json:"log" yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `json:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `json:"read_timeout,omitempty" yaml:"read_timeout,omitempty"`
	WriteTimeout    time.Duration `json:"write_timeout,omitempty" yaml:"write_timeout,omitempty"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout,omitempty" yaml:"shutdown_timeout,omitempty"`
}

type DownstreamConfig struct {
	URL     string        `json:"url" yaml:"url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	Breaker BreakerConfig `json:"breaker,omitempty" yaml:"breaker,omitempty"`
}

// BreakerConfig controls the optional circuit breaker in front of the downstream.
type BreakerConfig struct {
	Enabled     bool          `json:"enabled" yaml:"enabled"`
	MaxFailures uint32        `json:"max_failures,omitempty" yaml:"max_failures,omitempty"`
	OpenTimeout time.Duration `json:"open_timeout,omitempty" yaml:"open_timeout,omitempty"`
}

type EscalationConfig struct {
	Delay time.Duration `json:"delay" yaml:"delay"`
}

type JournalConfig struct {
	Capacity      int           `json:"capacity" yaml:"capacity"`
	Retention     time.Duration `json:"retention" yaml:"retention"`
	SweepSchedule string        `json:"sweep_schedule" yaml:"sweep_schedule"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Defaults returns a Config with every field set.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            DefaultAddr,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Downstream: DownstreamConfig{
			Timeout: DefaultDispatchTimeout,
			Breaker: BreakerConfig{
				MaxFailures: 5,
				OpenTimeout: 30 * time.Second,
			},
		},
		Escalation: EscalationConfig{
			Delay: DefaultEscalationDelay,
		},
		Journal: JournalConfig{
			Capacity:      1000,
			Retention:     24 * time.Hour,
			SweepSchedule: "@every 1m",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a YAML file over Defaults. An empty path returns Defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, errors.CategoryBadInput, "read config file").
			WithTextCode(CodeInvalidConfig).
			WithMetadata(map[string]any{"path": path})
	}
	return Parse(data)
}

// Parse decodes YAML (or JSON) over Defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, errors.CategoryBadInput, "decode config").
			WithTextCode(CodeInvalidConfig)
	}
	return cfg, cfg.Validate()
}

// Validate checks values that would break the relay at runtime.
// An empty downstream URL is allowed; dispatches fail until one is set.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return invalid("server.addr is required", nil)
	}
	if c.Escalation.Delay <= 0 {
		return invalid("escalation.delay must be positive", map[string]any{"delay": c.Escalation.Delay.String()})
	}
	if c.Downstream.Timeout <= 0 {
		return invalid("downstream.timeout must be positive", map[string]any{"timeout": c.Downstream.Timeout.String()})
	}
	if c.Downstream.URL != "" {
		if err := ValidateURL(c.Downstream.URL); err != nil {
			return err
		}
	}
	if c.Downstream.Breaker.Enabled && c.Downstream.Breaker.MaxFailures == 0 {
		return invalid("downstream.breaker.max_failures must be positive when the breaker is enabled", nil)
	}
	if c.Journal.Capacity <= 0 {
		return invalid("journal.capacity must be positive", map[string]any{"capacity": c.Journal.Capacity})
	}
	if c.Journal.Retention < 0 {
		return invalid("journal.retention cannot be negative", nil)
	}
	return nil
}

// ValidateURL accepts absolute http and https URLs.
func ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "downstream url is not a valid URL").
			WithTextCode(CodeInvalidConfig).
			WithMetadata(map[string]any{"url": raw})
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalid(fmt.Sprintf("downstream url scheme %q is not supported", u.Scheme), map[string]any{"url": raw})
	}
	if u.Host == "" {
		return invalid("downstream url has no host", map[string]any{"url": raw})
	}
	return nil
}

func invalid(msg string, metadata map[string]any) error {
	err := errors.New(msg, errors.CategoryValidation).WithTextCode(CodeInvalidConfig)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// Target holds the downstream URL. Reads and writes are atomic and the last
// write wins.
type Target struct {
	url atomic.Pointer[string]
}

// NewTarget returns a Target holding initial, which may be empty.
func NewTarget(initial string) *Target {
	t := &Target{}
	initial = strings.TrimSpace(initial)
	t.url.Store(&initial)
	return t
}

// URL returns the current downstream URL.
func (t *Target) URL() string {
	if p := t.url.Load(); p != nil {
		return *p
	}
	return ""
}

// Set validates and stores raw.
func (t *Target) Set(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return invalid("url is required", nil)
	}
	if err := ValidateURL(raw); err != nil {
		return err
	}
	t.url.Store(&raw)
	return nil
}
