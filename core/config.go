package core

import "fmt"

// Config is a generic, map-based configuration subtree. Each router receives
// the subtree under its own `router` config key; the dispatcher itself reads
// only `transport_names`/`exposed_names` from the Config passed to
// Dispatcher.Configure, and takes the router name and middleware list as
// separate arguments. See config/ for the koanf-backed loader that reads
// `router_class`/`middleware` and produces these maps from YAML.
type Config map[string]any

// Get returns the raw value for key and whether it was present.
func (c Config) Get(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}

// String returns the string value at key, or "" if absent or the wrong type.
func (c Config) String(key string) string {
	return c.StringOr(key, "")
}

// StringOr returns the string value at key, or def if absent or the wrong type.
func (c Config) StringOr(key, def string) string {
	if v, ok := c[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// IntOr returns the int value at key, or def if absent or the wrong type.
// Accepts both int and float64 (the latter is what YAML/JSON decoders
// typically produce for bare numeric literals).
func (c Config) IntOr(key string, def int) int {
	v, ok := c[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

// StringSlice returns the []string value at key, converting from []any if
// necessary. Missing or malformed values yield nil.
func (c Config) StringSlice(key string) []string {
	v, ok := c[key]
	if !ok {
		return nil
	}
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// StringMapStringSlice returns a map[string][]string at key, e.g. the
// Simple router's route_mappings (transport_name -> [exposed_name, ...]).
func (c Config) StringMapStringSlice(key string) map[string][]string {
	v, ok := c[key]
	if !ok {
		return nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		if typed, ok := v.(map[string][]string); ok {
			return typed
		}
		return nil
	}
	out := make(map[string][]string, len(raw))
	for k, val := range raw {
		switch s := val.(type) {
		case []string:
			out[k] = s
		case []any:
			list := make([]string, 0, len(s))
			for _, e := range s {
				if str, ok := e.(string); ok {
					list = append(list, str)
				}
			}
			out[k] = list
		case string:
			out[k] = []string{s}
		}
	}
	return out
}

// StringMap returns a map[string]string at key, e.g. transport_mappings or
// toaddr_mappings.
func (c Config) StringMap(key string) map[string]string {
	v, ok := c[key]
	if !ok {
		return nil
	}
	switch raw := v.(type) {
	case map[string]string:
		return raw
	case map[string]any:
		out := make(map[string]string, len(raw))
		for k, val := range raw {
			if s, ok := val.(string); ok {
				out[k] = s
			}
		}
		return out
	default:
		return nil
	}
}

// Slice returns the []any value at key, used for the keyword router's rule
// list.
func (c Config) Slice(key string) []any {
	v, ok := c[key]
	if !ok {
		return nil
	}
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}

// AsConfig coerces a raw value (typically an entry inside a Slice) into a
// Config, converting from map[string]any.
func AsConfig(v any) (Config, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("dispatchmux: expected a mapping, got %T", v)
	}
	return Config(m), nil
}
