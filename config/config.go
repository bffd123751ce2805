// Package config loads dispatcher configuration from YAML, with
// environment variable and command-line flag overrides layered on top in
// increasing precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/dispatchmux/dispatchmux/core"
)

// RedisConfig holds the connection options for the shared routing store.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// BrokerConfig holds the bus connection options.
type BrokerConfig struct {
	Kind    string   `koanf:"kind"` // "nats", "rabbitmq", or "kafka"
	Brokers []string `koanf:"brokers"`
	Group   string   `koanf:"group"`
}

// Config is the top-level dispatcher document: the dispatcher's own
// identity and endpoint lists, which router to use and its subtree, the
// ordered middleware chain, the bus, and the routing store.
type Config struct {
	DispatcherName string       `koanf:"dispatcher_name"`
	TransportNames []string     `koanf:"transport_names"`
	ExposedNames   []string     `koanf:"exposed_names"`
	RouterClass    string       `koanf:"router_class"`
	Middleware     []string     `koanf:"middleware"`
	Broker         BrokerConfig `koanf:"broker"`
	Redis          RedisConfig  `koanf:"redis_config"`

	k *koanf.Koanf
}

// Option configures loading during New.
type Option func(*loadOptions) error

type loadOptions struct {
	file         string
	envPrefix    string
	envExpansion bool
	flags        *pflag.FlagSet
}

// WithFile loads configuration from a YAML file.
func WithFile(path string) Option {
	return func(o *loadOptions) error {
		o.file = path
		return nil
	}
}

// WithEnvPrefix loads environment variable overrides under prefix, mapping
// DISPATCHMUX_ROUTER_CLASS to router_class.
func WithEnvPrefix(prefix string) Option {
	return func(o *loadOptions) error {
		o.envPrefix = prefix
		return nil
	}
}

// WithEnvExpansion enables ${VAR} expansion inside the YAML file before
// parsing.
func WithEnvExpansion() Option {
	return func(o *loadOptions) error {
		o.envExpansion = true
		return nil
	}
}

// WithFlags overlays parsed command-line flags on top of file/env values.
func WithFlags(fs *pflag.FlagSet) Option {
	return func(o *loadOptions) error {
		o.flags = fs
		return nil
	}
}

var defaults = map[string]any{
	"router_class":      "simple",
	"redis_config.addr": "localhost:6379",
	"redis_config.db":   0,
	"broker.kind":       "nats",
}

// New loads a Config from the given options, applying baseline defaults,
// then file, then environment, then flags, in increasing precedence.
func New(opts ...Option) (*Config, error) {
	options := &loadOptions{}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, fmt.Errorf("dispatchmux: config option: %w", err)
		}
	}

	k := koanf.New(".")
	cfg := &Config{k: k}

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("dispatchmux: load config defaults: %w", err)
	}

	if options.file != "" {
		raw, err := os.ReadFile(options.file)
		if err != nil {
			return nil, fmt.Errorf("dispatchmux: read config file %q: %w", options.file, err)
		}
		if options.envExpansion {
			raw = []byte(os.ExpandEnv(string(raw)))
		}
		if err := k.Load(rawbytes.Provider(raw), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("dispatchmux: parse config file %q: %w", options.file, err)
		}
	}

	if options.envPrefix != "" {
		// "__" is the nesting separator (DISPATCHMUX_REDIS_CONFIG__ADDR ->
		// redis_config.addr); a single "_" stays part of the key name so
		// fields like router_class survive the round trip.
		transform := func(s string) string {
			trimmed := strings.TrimPrefix(s, options.envPrefix)
			return strings.ReplaceAll(strings.ToLower(trimmed), "__", ".")
		}
		if err := k.Load(env.Provider(options.envPrefix, ".", transform), nil); err != nil {
			return nil, fmt.Errorf("dispatchmux: load environment config: %w", err)
		}
	}

	if options.flags != nil {
		if err := k.Load(posflag.Provider(options.flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("dispatchmux: load flag config: %w", err)
		}
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("dispatchmux: unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("dispatchmux: %w", err)
	}

	return cfg, nil
}

// Validate checks the fields every dispatcher needs regardless of router.
func (c *Config) Validate() error {
	if c.DispatcherName == "" {
		return core.NewConfigError("config", "dispatcher_name is required")
	}
	if len(c.TransportNames) == 0 && len(c.ExposedNames) == 0 {
		return core.NewConfigError("config", "transport_names and exposed_names are both empty")
	}
	if c.RouterClass == "" {
		return core.NewConfigError("config", "router_class is required")
	}
	return nil
}

// RouterSubtree returns the "router" config subtree as a core.Config,
// augmented with the fields every stateful router needs (dispatcher_name,
// transport_names, exposed_names) so routers don't need a back-reference
// to the top-level document.
func (c *Config) RouterSubtree() core.Config {
	raw := c.k.Get("router")
	sub, ok := raw.(map[string]any)
	if !ok {
		sub = make(map[string]any)
	}
	out := make(core.Config, len(sub)+3)
	for k, v := range sub {
		out[k] = v
	}
	out["dispatcher_name"] = c.DispatcherName
	out["transport_names"] = c.TransportNames
	out["exposed_names"] = c.ExposedNames
	return out
}

// DispatcherConfig returns the core.Config subtree Dispatcher.Configure
// expects for transport_names/exposed_names.
func (c *Config) DispatcherConfig() core.Config {
	return core.Config{
		"transport_names": c.TransportNames,
		"exposed_names":   c.ExposedNames,
	}
}
