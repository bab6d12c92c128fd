package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
	"unicode"

	"github.com/c360/mediajoin/errors"
	"github.com/c360/mediajoin/format"
	"github.com/c360/mediajoin/pkg/retry"
	"github.com/c360/mediajoin/port"
	"github.com/c360/mediajoin/subnet"
)

// Config is the complete configuration of one mediajoin process
type Config struct {
	Element    ElementConfig        `json:"element"`
	Formats    []format.PixelFormat `json:"formats,omitempty"`
	PluginDirs []string             `json:"plugin_dirs,omitempty"`
	Transform  TransformConfig      `json:"transform"`
	NATS       NATSConfig           `json:"nats"`
	Metrics    MetricsConfig        `json:"metrics"`
	Retry      RetryConfig          `json:"retry"`
	Subnet     SubnetConfig         `json:"subnet"`
}

// ElementConfig describes the element and its ports
type ElementConfig struct {
	Name                  string            `json:"name"`
	Discipline            string            `json:"discipline"`
	PullTimeout           time.Duration     `json:"pull_timeout"`
	StopOnEndOfStream     bool              `json:"stop_on_end_of_stream"`
	QueueCapacity         int               `json:"queue_capacity"`
	QueuePolicy           string            `json:"queue_policy"`
	DropWarningsPerSecond float64           `json:"drop_warnings_per_second"`
	Inputs                []port.Definition `json:"inputs,omitempty"`
	Outputs               []port.Definition `json:"outputs,omitempty"`
}

// TransformConfig selects a registered transform, built-in or a preset found in
// PluginDirs. Params are passed to its factory untouched.
type TransformConfig struct {
	Name   string          `json:"name"`
	Params json.RawMessage `json:"params,omitempty"`
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty"`
	MaxReconnects int           `json:"max_reconnects"`
	ReconnectWait time.Duration `json:"reconnect_wait"`

	// Zero falls back to the client defaults
	PingInterval   time.Duration `json:"ping_interval"`
	DrainTimeout   time.Duration `json:"drain_timeout"`
	HandlerTimeout time.Duration `json:"handler_timeout"`

	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
	ClientName    string        `json:"client_name,omitempty"`
	SubjectPrefix string        `json:"subject_prefix,omitempty"`
	TLS           NATSTLSConfig `json:"tls"`
}

// NATSTLSConfig for secure NATS connections
type NATSTLSConfig struct {
	Enabled  bool   `json:"enabled"`
	CertFile string `json:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty"`
	CAFile   string `json:"ca_file,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address"`
	Path    string `json:"path"`
}

// RetryConfig controls the retries made while connecting transport
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// SubnetConfig wires element ports to NATS subjects. When both lists are empty
// the subjects on the port definitions are used.
type SubnetConfig struct {
	Inputs  []subnet.Entry `json:"inputs,omitempty"`
	Outputs []subnet.Entry `json:"outputs,omitempty"`
}

// Default returns the configuration every loaded file is merged over
func Default() *Config {
	return &Config{
		Element: ElementConfig{
			Name:                  "mediajoin",
			Discipline:            "push",
			PullTimeout:           100 * time.Millisecond,
			QueueCapacity:         4,
			QueuePolicy:           "drop_oldest",
			DropWarningsPerSecond: 1,
		},
		Transform: TransformConfig{Name: "copy"},
		NATS: NATSConfig{
			URLs:           []string{"nats://localhost:4222"},
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
			PingInterval:   30 * time.Second,
			DrainTimeout:   10 * time.Second,
			HandlerTimeout: 5 * time.Second,
			ClientName:     "mediajoin",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Address: ":9090",
			Path:    "/metrics",
		},
		Retry: RetryConfig{
			MaxAttempts:  10,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   1.5,
		},
	}
}

// Validate checks what the schema cannot: port formats resolve, subnet entries
// name declared ports, plugin directories exist and the subject prefix is usable.
func (c *Config) Validate() error {
	if _, err := c.ElementConfig(); err != nil {
		return err
	}

	if c.NATS.SubjectPrefix != "" && !isValidSubjectPart(c.NATS.SubjectPrefix) {
		return invalid("nats.subject_prefix %q is not valid in NATS subjects", c.NATS.SubjectPrefix)
	}

	if err := c.validateTLS(); err != nil {
		return err
	}

	for i, dir := range c.PluginDirs {
		info, err := os.Stat(dir)
		if err != nil {
			return invalid("plugin_dirs[%d]: %v", i, err)
		}
		if !info.IsDir() {
			return invalid("plugin_dirs[%d]: %s is not a directory", i, dir)
		}
	}

	if err := checkEntries("subnet.inputs", c.Subnet.Inputs, c.Element.Inputs); err != nil {
		return err
	}
	return checkEntries("subnet.outputs", c.Subnet.Outputs, c.Element.Outputs)
}

// FormatTable returns the built-in pixel formats plus the configured ones
func (c *Config) FormatTable() (*format.Table, error) {
	table := format.DefaultTable()
	for i, pf := range c.Formats {
		if err := table.Register(pf); err != nil {
			return nil, fmt.Errorf("formats[%d]: %w", i, err)
		}
	}
	return table, nil
}

// RetryPolicy converts the retry section for pkg/retry
func (c *Config) RetryPolicy() retry.Config {
	return retry.Config{
		MaxAttempts:  c.Retry.MaxAttempts,
		InitialDelay: c.Retry.InitialDelay,
		MaxDelay:     c.Retry.MaxDelay,
		Multiplier:   c.Retry.Multiplier,
		AddJitter:    true,
	}
}

// SubnetEntries returns the port to subject wiring. Explicit subnet entries win;
// otherwise every port with a subject is linked.
func (c *Config) SubnetEntries() (inputs, outputs []subnet.Entry) {
	if len(c.Subnet.Inputs) > 0 || len(c.Subnet.Outputs) > 0 {
		return c.Subnet.Inputs, c.Subnet.Outputs
	}
	for _, d := range c.Element.Inputs {
		if d.Subject != "" {
			inputs = append(inputs, subnet.Entry{Name: d.Name, Description: d.Subject})
		}
	}
	for _, d := range c.Element.Outputs {
		if d.Subject != "" {
			outputs = append(outputs, subnet.Entry{Name: d.Name, Description: d.Subject})
		}
	}
	return inputs, outputs
}

// Clone returns a deep copy
func (c *Config) Clone() *Config {
	if c == nil {
		return Default()
	}
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// String returns the configuration as indented JSON with secrets masked
func (c *Config) String() string {
	masked := c.Clone()
	if masked.NATS.Password != "" {
		masked.NATS.Password = "***"
	}
	if masked.NATS.Token != "" {
		masked.NATS.Token = "***"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// validateTLS checks the NATS TLS files exist when TLS is enabled
func (c *Config) validateTLS() error {
	tls := c.NATS.TLS
	if !tls.Enabled {
		return nil
	}
	if (tls.CertFile == "") != (tls.KeyFile == "") {
		return invalid("nats.tls: cert_file and key_file must be set together")
	}
	files := map[string]string{
		"cert_file": tls.CertFile,
		"key_file":  tls.KeyFile,
		"ca_file":   tls.CAFile,
	}
	for field, path := range files {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return invalid("nats.tls.%s: %v", field, err)
		}
	}
	return nil
}

func checkEntries(field string, entries []subnet.Entry, defs []port.Definition) error {
	declared := make(map[string]bool, len(defs))
	for _, d := range defs {
		declared[d.Name] = true
	}
	for i, e := range entries {
		if !declared[e.Name] {
			return invalid("%s[%d]: port %q is not declared on the element", field, i, e.Name)
		}
		if e.Description == "" {
			return invalid("%s[%d]: empty subject", field, i)
		}
	}
	return nil
}

func invalid(msg string, args ...any) error {
	return fmt.Errorf("%w: %s", errors.ErrInvalidConfig, fmt.Sprintf(msg, args...))
}

// isValidSubjectPart reports whether s may appear as tokens of a NATS subject
func isValidSubjectPart(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) &&
			r != '-' && r != '_' && r != '.' {
			return false
		}
	}
	return true
}
