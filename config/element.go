package config

import (
	"github.com/c360/mediajoin/element"
	"github.com/c360/mediajoin/pkg/buffer"
	"github.com/c360/mediajoin/port"
)

// ElementConfig converts the element section for element.New. Port formats are
// resolved once here so a bad caps string fails at load time.
func (c *Config) ElementConfig() (element.Config, error) {
	table, err := c.FormatTable()
	if err != nil {
		return element.Config{}, err
	}

	policy, ok := buffer.ParseOverflowPolicy(c.Element.QueuePolicy)
	if !ok {
		return element.Config{}, invalid("element.queue_policy %q", c.Element.QueuePolicy)
	}

	cfg := element.Config{
		Name:                  c.Element.Name,
		Discipline:            element.Discipline(c.Element.Discipline),
		PullTimeout:           c.Element.PullTimeout,
		StopOnEndOfStream:     c.Element.StopOnEndOfStream,
		QueueCapacity:         c.Element.QueueCapacity,
		QueuePolicy:           policy,
		Inputs:                append([]port.Definition(nil), c.Element.Inputs...),
		Outputs:               append([]port.Definition(nil), c.Element.Outputs...),
		Formats:               table,
		DropWarningsPerSecond: c.Element.DropWarningsPerSecond,
	}
	if err := cfg.Validate(); err != nil {
		return element.Config{}, err
	}
	if _, err := port.BuildFromDefinitions(cfg.Inputs, cfg.Outputs, table); err != nil {
		return element.Config{}, err
	}
	return cfg, nil
}
