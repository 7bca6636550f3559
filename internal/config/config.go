package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deltaflow/deltaflow/internal/timeseries"
)

// Default values applied when fields are absent from the config file.
const (
	// DefaultPollInterval is the wake granularity of the outer tick loop.
	// It bounds how late a scheduled fire can be observed, so it should be
	// well below the shortest configured function period.
	DefaultPollInterval = time.Second

	DefaultMaxAge = 360 * time.Second

	DefaultScrapeInterval = 30 * time.Second
)

// Config is the top-level configuration. Fields map 1:1 to config.example.yaml.
type Config struct {
	// PollInterval is how often each function's fire condition is evaluated.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Store selects and configures the time-series backend.
	Store StoreConfig `yaml:"store"`

	// Ingest is the list of sample sources feeding the store.
	Ingest []Source `yaml:"ingest"`

	// Functions is the list of derived-metric instances to run.
	Functions []Function `yaml:"functions"`
}

// StoreConfig selects the time-series backend.
type StoreConfig struct {
	// Backend is one of: clickhouse | mysql | memory.
	Backend string `yaml:"backend"`

	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	MySQL      MySQLConfig      `yaml:"mysql"`
}

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`

	// PasswordEnv is the name of the environment variable holding the password.
	PasswordEnv string `yaml:"password_env"`
}

// Password returns the ClickHouse password resolved from the environment.
func (c ClickHouseConfig) Password() string {
	if c.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.PasswordEnv)
}

// MySQLConfig holds MySQL connection settings.
type MySQLConfig struct {
	// DSNEnv is the name of the environment variable holding the DSN,
	// so credentials stay out of the config file.
	DSNEnv string `yaml:"dsn_env"`
}

// DSN returns the MySQL DSN resolved from the environment.
func (c MySQLConfig) DSN() string {
	if c.DSNEnv == "" {
		return ""
	}
	return os.Getenv(c.DSNEnv)
}

// Source describes one ingest source feeding samples into the store.
type Source struct {
	// ID is a unique, human-readable identifier for this source.
	ID string `yaml:"id"`

	// Type is the source type: mqtt | amqp | prometheus.
	Type string `yaml:"type"`

	// MQTT fields — used when Type == "mqtt".
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`

	// AMQP fields — used when Type == "amqp".
	DSNEnv   string   `yaml:"dsn_env"`
	Exchange string   `yaml:"exchange"`
	Topics   []string `yaml:"topics"`

	// Prometheus fields — used when Type == "prometheus".
	Endpoint       string            `yaml:"endpoint"`
	DeviceID       string            `yaml:"device_id"`
	Metrics        map[string]string `yaml:"metrics"` // metric name -> measurement id
	Unit           string            `yaml:"unit"`
	ScrapeInterval time.Duration     `yaml:"scrape_interval"`
}

// Password returns the broker password resolved from the environment.
func (s Source) Password() string {
	if s.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(s.PasswordEnv)
}

// DSN returns the AMQP DSN resolved from the environment.
func (s Source) DSN() string {
	if s.DSNEnv == "" {
		return ""
	}
	return os.Getenv(s.DSNEnv)
}

// Input is one side of a difference function: a measurement selector plus
// the maximum sample age accepted for it.
type Input struct {
	Selector timeseries.Selector `yaml:",inline"`

	// MaxAge is the staleness bound: a sample older than now-max_age is
	// treated as absent. Omitted or zero selects the 360s default.
	MaxAge time.Duration `yaml:"max_age"`
}

// Output is the identity under which the derived value is stored.
type Output struct {
	Measurement string `yaml:"measurement"`
	Unit        string `yaml:"unit"`
}

// Function configures one derived-metric instance.
type Function struct {
	// ID is a unique identifier; it doubles as the device id of the
	// function's output stream.
	ID string `yaml:"id"`

	// Period is the emission schedule. Must be positive.
	Period time.Duration `yaml:"period"`

	InputA Input `yaml:"input_a"`
	InputB Input `yaml:"input_b"`

	// ReverseOrder computes b−a instead of a−b.
	ReverseOrder bool `yaml:"reverse_order"`

	// Absolute stores |difference| instead of the signed value.
	Absolute bool `yaml:"absolute"`

	Output Output `yaml:"output"`
}

// OutputStream returns the stream id the derived values are appended to.
func (f Function) OutputStream() string {
	return timeseries.Selector{DeviceID: f.ID, MeasurementID: f.Output.Measurement}.Stream()
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		PollInterval: DefaultPollInterval,
		Store:        StoreConfig{Backend: "memory"},
	}
}

// applyDefaults fills per-entry defaults that cannot be set up front because
// the entries come from YAML lists.
func applyDefaults(cfg *Config) {
	for i := range cfg.Functions {
		if cfg.Functions[i].InputA.MaxAge == 0 {
			cfg.Functions[i].InputA.MaxAge = DefaultMaxAge
		}
		if cfg.Functions[i].InputB.MaxAge == 0 {
			cfg.Functions[i].InputB.MaxAge = DefaultMaxAge
		}
	}
	for i := range cfg.Ingest {
		if cfg.Ingest[i].Type == "prometheus" && cfg.Ingest[i].ScrapeInterval == 0 {
			cfg.Ingest[i].ScrapeInterval = DefaultScrapeInterval
		}
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}

	switch cfg.Store.Backend {
	case "clickhouse", "mysql", "memory":
	default:
		return fmt.Errorf("store: unknown backend %q", cfg.Store.Backend)
	}

	seen := make(map[string]bool)
	for i, src := range cfg.Ingest {
		if src.ID == "" {
			return fmt.Errorf("ingest[%d]: id is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("ingest[%d]: duplicate id %q", i, src.ID)
		}
		seen[src.ID] = true

		switch src.Type {
		case "mqtt":
			if src.Broker == "" {
				return fmt.Errorf("ingest[%d] %q: broker is required", i, src.ID)
			}
		case "amqp":
			if src.Exchange == "" {
				return fmt.Errorf("ingest[%d] %q: exchange is required", i, src.ID)
			}
		case "prometheus":
			if src.Endpoint == "" {
				return fmt.Errorf("ingest[%d] %q: endpoint is required", i, src.ID)
			}
			if src.DeviceID == "" {
				return fmt.Errorf("ingest[%d] %q: device_id is required", i, src.ID)
			}
			if len(src.Metrics) == 0 {
				return fmt.Errorf("ingest[%d] %q: metrics map is required", i, src.ID)
			}
		default:
			return fmt.Errorf("ingest[%d] %q: unknown type %q", i, src.ID, src.Type)
		}
	}

	fnSeen := make(map[string]bool)
	for i, fn := range cfg.Functions {
		if fn.ID == "" {
			return fmt.Errorf("functions[%d]: id is required", i)
		}
		if fnSeen[fn.ID] {
			return fmt.Errorf("functions[%d]: duplicate id %q", i, fn.ID)
		}
		fnSeen[fn.ID] = true

		if fn.Period <= 0 {
			return fmt.Errorf("functions[%d] %q: period must be positive", i, fn.ID)
		}
		if fn.InputA.MaxAge < 0 {
			return fmt.Errorf("functions[%d] %q: input_a.max_age must not be negative", i, fn.ID)
		}
		if fn.InputB.MaxAge < 0 {
			return fmt.Errorf("functions[%d] %q: input_b.max_age must not be negative", i, fn.ID)
		}
		if err := fn.InputA.Selector.Validate(); err != nil {
			return fmt.Errorf("functions[%d] %q: input_a: %w", i, fn.ID, err)
		}
		if err := fn.InputB.Selector.Validate(); err != nil {
			return fmt.Errorf("functions[%d] %q: input_b: %w", i, fn.ID, err)
		}
		if fn.Output.Measurement == "" {
			return fmt.Errorf("functions[%d] %q: output.measurement is required", i, fn.ID)
		}
	}

	return nil
}
