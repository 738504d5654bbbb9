package manager

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/zeusync/chaoscache/internal/core/adapter"
	"github.com/zeusync/chaoscache/internal/core/observability/metrics"
	"gopkg.in/yaml.v3"
)

// CacheMode selects whether an observed component is recorded or replayed.
type CacheMode uint8

const (
	ModePlay CacheMode = iota
	ModeRecord
)

func (m CacheMode) String() string {
	if m == ModeRecord {
		return "record"
	}
	return "play"
}

func (m *CacheMode) UnmarshalYAML(value *yaml.Node) error {
	switch strings.ToLower(value.Value) {
	case "play", "playback":
		*m = ModePlay
	case "record":
		*m = ModeRecord
	default:
		return fmt.Errorf("%w: unknown cache mode %q", ErrInvalidConfig, value.Value)
	}
	return nil
}

func (m CacheMode) MarshalYAML() (any, error) { return m.String(), nil }

// StartMode is the trigger policy of an observed component.
type StartMode uint8

const (
	// StartTimed runs as soon as the session begins, after TimedDuration.
	StartTimed StartMode = iota
	// StartTriggered waits for an explicit trigger call.
	StartTriggered
)

func (s StartMode) String() string {
	if s == StartTriggered {
		return "triggered"
	}
	return "timed"
}

func (s *StartMode) UnmarshalYAML(value *yaml.Node) error {
	switch strings.ToLower(value.Value) {
	case "timed", "":
		*s = StartTimed
	case "triggered":
		*s = StartTriggered
	default:
		return fmt.Errorf("%w: unknown start mode %q", ErrInvalidConfig, value.Value)
	}
	return nil
}

func (s StartMode) MarshalYAML() (any, error) { return s.String(), nil }

// Seconds is a duration in seconds. In YAML it accepts a plain number or a
// Go duration string such as "250ms".
type Seconds float64

func (s *Seconds) UnmarshalYAML(value *yaml.Node) error {
	if f, err := strconv.ParseFloat(value.Value, 64); err == nil {
		*s = Seconds(f)
		return nil
	}
	d, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("%w: bad duration %q", ErrInvalidConfig, value.Value)
	}
	*s = Seconds(d.Seconds())
	return nil
}

// ObservedConfig describes one observed component.
type ObservedConfig struct {
	Component     string    `yaml:"component"`
	Cache         string    `yaml:"cache"`
	Mode          CacheMode `yaml:"mode"`
	Start         StartMode `yaml:"start"`
	TimedDuration Seconds   `yaml:"timed_duration"`
}

// Config is the manager configuration file.
type Config struct {
	Collection string `yaml:"collection"`
	// RecordInterval is the minimum time between recorded frames; zero
	// records every solver tick.
	RecordInterval Seconds `yaml:"record_interval"`
	// ParallelFlush bounds concurrent cache flushes; zero flushes
	// sequentially, negative is unbounded.
	ParallelFlush int              `yaml:"parallel_flush"`
	Compress      bool             `yaml:"compress"`
	LogLevel      string           `yaml:"log_level"`
	Metrics       *metrics.Config  `yaml:"metrics"`
	Observed      []ObservedConfig `yaml:"observed"`
}

func DefaultConfig() *Config {
	return &Config{
		Collection: "default",
		LogLevel:   "info",
		Metrics:    &metrics.Config{Enabled: false, Namespace: "chaoscache"},
	}
}

// ParseConfig decodes YAML over the defaults and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return cfg, nil
}

// LoadConfig reads and parses the YAML file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.RecordInterval < 0 {
		return fmt.Errorf("%w: negative record_interval", ErrInvalidConfig)
	}
	for i, o := range c.Observed {
		if o.Component == "" {
			return fmt.Errorf("%w: observed[%d] has no component", ErrInvalidConfig, i)
		}
		if o.TimedDuration < 0 {
			return fmt.Errorf("%w: observed[%d] has negative timed_duration", ErrInvalidConfig, i)
		}
		if o.Mode == ModePlay && o.Cache == "" {
			return fmt.Errorf("%w: observed[%d] plays back without a cache name", ErrInvalidConfig, i)
		}
	}
	return nil
}

// Resolver finds live scene components by name.
type Resolver interface {
	Resolve(name string) (adapter.Component, bool)
}

// Scene is a concurrency-safe Resolver over named components. Removing a
// component makes every reference to it resolve to nothing from the next
// tick on.
type Scene struct {
	mu         sync.RWMutex
	components map[string]adapter.Component
}

func NewScene(components ...adapter.Component) *Scene {
	s := &Scene{components: make(map[string]adapter.Component, len(components))}
	for _, c := range components {
		s.components[c.Name()] = c
	}
	return s
}

func (s *Scene) Resolve(name string) (adapter.Component, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.components[name]
	return c, ok
}

func (s *Scene) Add(c adapter.Component) {
	s.mu.Lock()
	s.components[c.Name()] = c
	s.mu.Unlock()
}

func (s *Scene) Remove(name string) {
	s.mu.Lock()
	delete(s.components, name)
	s.mu.Unlock()
}
