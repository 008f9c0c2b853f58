package feed

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"tickd/pkg/confkit"
)

// Config describes the set of feed sources available to the application.
type Config struct {
	Default string                   `yaml:"default"`
	Sources map[string]*SourceConfig `yaml:"sources"`
}

// SourceConfig represents configuration for a single feed source.
type SourceConfig struct {
	Type string `yaml:"type"`

	URL      string `yaml:"url"`
	AuthURL  string `yaml:"auth_url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	DialTimeoutRaw string        `yaml:"dial_timeout"`
	DialTimeout    time.Duration `yaml:"-"`
	HeartbeatRaw   string        `yaml:"heartbeat"`
	Heartbeat      time.Duration `yaml:"-"`
	// Interval is only meaningful for generated sources (type: sim).
	IntervalRaw string        `yaml:"interval"`
	Interval    time.Duration `yaml:"-"`
}

// SourceBuilder constructs a Source from configuration.
type SourceBuilder func(name string, cfg *SourceConfig) (Source, error)

var (
	sourceRegistry   = make(map[string]SourceBuilder)
	sourceRegistryMu sync.RWMutex
)

// RegisterSource registers a feed source constructor.
func RegisterSource(typeName string, builder SourceBuilder) {
	sourceRegistryMu.Lock()
	defer sourceRegistryMu.Unlock()
	sourceRegistry[strings.ToLower(strings.TrimSpace(typeName))] = builder
}

func lookupSourceBuilder(typeName string) (SourceBuilder, bool) {
	sourceRegistryMu.RLock()
	defer sourceRegistryMu.RUnlock()
	builder, ok := sourceRegistry[strings.ToLower(strings.TrimSpace(typeName))]
	return builder, ok
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads feed configuration from the default project location and panics on error.
func MustLoad() *Config {
	path := confkit.MustProjectPath("etc/feed.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read feed config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal feed config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	if c.Sources == nil {
		c.Sources = make(map[string]*SourceConfig)
	}
	for name, source := range c.Sources {
		if source == nil {
			source = &SourceConfig{}
			c.Sources[name] = source
		}
		source.expandEnv()
		if err := source.parseDurations(name); err != nil {
			return err
		}
	}
	return nil
}

func (s *SourceConfig) expandEnv() {
	s.Type = strings.TrimSpace(os.ExpandEnv(s.Type))
	s.URL = strings.TrimSpace(os.ExpandEnv(s.URL))
	s.AuthURL = strings.TrimSpace(os.ExpandEnv(s.AuthURL))
	s.Username = strings.TrimSpace(os.ExpandEnv(s.Username))
	s.Password = strings.TrimSpace(os.ExpandEnv(s.Password))
	s.DialTimeoutRaw = strings.TrimSpace(os.ExpandEnv(s.DialTimeoutRaw))
	s.HeartbeatRaw = strings.TrimSpace(os.ExpandEnv(s.HeartbeatRaw))
	s.IntervalRaw = strings.TrimSpace(os.ExpandEnv(s.IntervalRaw))
}

func (s *SourceConfig) parseDurations(name string) error {
	if s.DialTimeoutRaw != "" {
		d, err := time.ParseDuration(s.DialTimeoutRaw)
		if err != nil {
			return fmt.Errorf("feed source %s: invalid dial_timeout %q: %w", name, s.DialTimeoutRaw, err)
		}
		if d <= 0 {
			return fmt.Errorf("feed source %s: dial_timeout must be positive, got %s", name, d)
		}
		s.DialTimeout = d
	}
	if s.HeartbeatRaw != "" {
		d, err := time.ParseDuration(s.HeartbeatRaw)
		if err != nil {
			return fmt.Errorf("feed source %s: invalid heartbeat %q: %w", name, s.HeartbeatRaw, err)
		}
		if d <= 0 {
			return fmt.Errorf("feed source %s: heartbeat must be positive, got %s", name, d)
		}
		s.Heartbeat = d
	}
	if s.IntervalRaw != "" {
		d, err := time.ParseDuration(s.IntervalRaw)
		if err != nil {
			return fmt.Errorf("feed source %s: invalid interval %q: %w", name, s.IntervalRaw, err)
		}
		if d <= 0 {
			return fmt.Errorf("feed source %s: interval must be positive, got %s", name, d)
		}
		s.Interval = d
	}
	return nil
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("feed config: sources cannot be empty")
	}
	if c.Default != "" {
		if _, ok := c.Sources[c.Default]; !ok {
			return fmt.Errorf("feed config: default source %q not defined", c.Default)
		}
	}
	for name, source := range c.Sources {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("feed config: source name cannot be empty")
		}
		if err := source.validate(name); err != nil {
			return err
		}
	}
	return nil
}

func (s *SourceConfig) validate(name string) error {
	if s == nil {
		return fmt.Errorf("feed config: source %s is nil", name)
	}
	if strings.TrimSpace(s.Type) == "" {
		return fmt.Errorf("feed config: source %s must specify type", name)
	}
	if _, ok := lookupSourceBuilder(s.Type); !ok {
		return fmt.Errorf("feed config: source %s has unsupported type %q", name, s.Type)
	}
	return nil
}

// Factory builds a fresh single-session Source. The connection manager calls
// it once per (re)connect; a Source is spent after its session ends.
type Factory func() (Source, error)

// SourceFactory returns a session factory for the named source, falling back
// to the configured default when name is empty.
func (c *Config) SourceFactory(name string) (Factory, error) {
	if strings.TrimSpace(name) == "" {
		name = c.Default
	}
	sourceCfg, ok := c.Sources[name]
	if !ok {
		return nil, fmt.Errorf("feed source %q not defined", name)
	}
	builder, ok := lookupSourceBuilder(sourceCfg.Type)
	if !ok {
		return nil, fmt.Errorf("feed source %s: unsupported type %q", name, sourceCfg.Type)
	}
	boundName := name
	return func() (Source, error) {
		source, err := builder(boundName, sourceCfg)
		if err != nil {
			return nil, fmt.Errorf("feed source %s: %w", boundName, err)
		}
		return source, nil
	}, nil
}
