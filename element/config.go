package element

import (
	"fmt"
	"time"

	"github.com/c360/mediajoin/errors"
	"github.com/c360/mediajoin/format"
	"github.com/c360/mediajoin/join"
	"github.com/c360/mediajoin/pkg/buffer"
	"github.com/c360/mediajoin/port"
)

// Discipline selects how buffers reach the join coordinator
type Discipline string

// Join disciplines
const (
	Push Discipline = "push"
	Pull Discipline = "pull"
)

// Config is the explicit configuration of one element
type Config struct {
	Name       string
	Discipline Discipline

	// Pull mode
	PullTimeout       time.Duration
	StopOnEndOfStream bool
	QueueCapacity     int
	QueuePolicy       buffer.OverflowPolicy

	Inputs  []port.Definition
	Outputs []port.Definition

	// Formats resolves layout names in port caps. Nil uses format.DefaultTable.
	Formats *format.Table

	// DropWarningsPerSecond limits the "buffer dropped" warning rate
	DropWarningsPerSecond float64
}

// DefaultConfig returns a push-mode config with no ports
func DefaultConfig() Config {
	return Config{
		Name:                  "mediajoin",
		Discipline:            Push,
		PullTimeout:           join.DefaultPullTimeout,
		QueueCapacity:         4,
		QueuePolicy:           buffer.DropOldest,
		DropWarningsPerSecond: 1,
	}
}

// Validate checks the fields that port resolution does not
func (c Config) Validate() error {
	if c.Name == "" {
		return errors.WrapFatal(
			fmt.Errorf("%w: element name", errors.ErrMissingConfig), "Config", "Validate", "name check")
	}
	switch c.Discipline {
	case Push, Pull:
	default:
		return errors.WrapFatal(
			fmt.Errorf("%w: discipline %q, want push or pull", errors.ErrInvalidConfig, c.Discipline),
			"Config", "Validate", "discipline check")
	}
	if c.Discipline == Pull {
		if c.PullTimeout <= 0 {
			return errors.WrapFatal(
				fmt.Errorf("%w: pull timeout must be positive", errors.ErrInvalidConfig),
				"Config", "Validate", "pull timeout check")
		}
		if c.QueueCapacity <= 0 {
			return errors.WrapFatal(
				fmt.Errorf("%w: queue capacity must be positive", errors.ErrInvalidConfig),
				"Config", "Validate", "queue capacity check")
		}
	}
	return nil
}
