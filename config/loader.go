package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/mediajoin/errors"
)

// durationFields are the dotted paths holding time.Duration values
var durationFields = [][]string{
	{"element", "pull_timeout"},
	{"nats", "reconnect_wait"},
	{"nats", "ping_interval"},
	{"nats", "drain_timeout"},
	{"nats", "handler_timeout"},
	{"retry", "initial_delay"},
	{"retry", "max_delay"},
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:    []string{},
		envPrefix: "MEDIAJOIN",
	}
}

// AddLayer adds a configuration file layer. Later layers override earlier ones.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables semantic validation. Schema validation
// always runs.
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges the defaults and every layer, checks the result against the
// schema, applies environment overrides and, when enabled, validates it.
func (l *Loader) Load() (*Config, error) {
	merged, err := toMap(Default())
	if err != nil {
		return nil, errors.WrapFatal(err, "Loader", "Load", "encode defaults")
	}

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapFatal(fmt.Errorf("%w: %s: %w", errors.ErrInvalidConfig, path, err),
				"Loader", "Load", "load layer")
		}
		merged = deepMergeMaps(merged, raw)
	}

	cfg, err := Parse(merged)
	if err != nil {
		return nil, err
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, errors.WrapFatal(err, "Loader", "Load", "environment overrides")
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, errors.WrapFatal(err, "Loader", "Load", "validate")
		}
	}
	return cfg, nil
}

// Parse checks a decoded document against the schema and converts it to a
// Config. Duration strings are accepted.
func Parse(doc map[string]any) (*Config, error) {
	parseDurations(doc)
	if err := validateSchema(doc); err != nil {
		return nil, errors.WrapFatal(err, "config", "Parse", "schema validation")
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.WrapFatal(err, "config", "Parse", "encode document")
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapFatal(fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err), "config", "Parse", "decode document")
	}
	return &cfg, nil
}

// loadRaw reads one layer as a generic map
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, kind, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch kind {
	case kindYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		if err := validateJSONDepth(data); err != nil {
			return nil, fmt.Errorf("invalid JSON structure: %w", err)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// parseDurations converts duration strings to nanoseconds in place
func parseDurations(doc map[string]any) {
	for _, path := range durationFields {
		section, ok := doc[path[0]].(map[string]any)
		if !ok {
			continue
		}
		if s, ok := section[path[1]].(string); ok {
			if d, err := time.ParseDuration(s); err == nil {
				section[path[1]] = d.Nanoseconds()
			}
		}
	}
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// applyEnvOverrides applies MEDIAJOIN_* environment variables
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	get := func(name string) (string, error) {
		key := l.envPrefix + "_" + name
		val := os.Getenv(key)
		return val, validateEnvVar(key, val)
	}

	overrides := []struct {
		name string
		set  func(string) error
	}{
		{"NATS_URLS", func(v string) error { cfg.NATS.URLs = strings.Split(v, ","); return nil }},
		{"NATS_USERNAME", func(v string) error { cfg.NATS.Username = v; return nil }},
		{"NATS_PASSWORD", func(v string) error { cfg.NATS.Password = v; return nil }},
		{"NATS_TOKEN", func(v string) error { cfg.NATS.Token = v; return nil }},
		{"NATS_SUBJECT_PREFIX", func(v string) error { cfg.NATS.SubjectPrefix = v; return nil }},
		{"ELEMENT_NAME", func(v string) error { cfg.Element.Name = v; return nil }},
		{"METRICS_ADDRESS", func(v string) error { cfg.Metrics.Address = v; return nil }},
		{"METRICS_ENABLED", func(v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s_METRICS_ENABLED: %w", l.envPrefix, err)
			}
			cfg.Metrics.Enabled = b
			return nil
		}},
	}

	for _, o := range overrides {
		val, err := get(o.name)
		if err != nil {
			return err
		}
		if val == "" {
			continue
		}
		if err := o.set(val); err != nil {
			return err
		}
	}
	return nil
}

// toMap round-trips v through JSON into a generic map
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
