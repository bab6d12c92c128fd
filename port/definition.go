package port

import (
	"fmt"

	"github.com/c360/mediajoin/errors"
	"github.com/c360/mediajoin/format"
)

// Definition is the configuration form of a port. The format is given either as a
// caps string in Caps or as an explicit descriptor in Format; Caps wins when both
// are set.
type Definition struct {
	Name     string             `json:"name"               yaml:"name"`
	Caps     string             `json:"caps,omitempty"     yaml:"caps,omitempty"`
	Format   *format.Descriptor `json:"format,omitempty"   yaml:"format,omitempty"`
	Presence string             `json:"presence,omitempty" yaml:"presence,omitempty"`
	Subject  string             `json:"subject,omitempty"  yaml:"subject,omitempty"`
}

// Resolve turns the definition into a Port for the given direction
func (d Definition) Resolve(dir Direction, table *format.Table) (Port, error) {
	presence, err := ParsePresence(d.Presence)
	if err != nil {
		return Port{}, err
	}

	var desc format.Descriptor
	switch {
	case d.Caps != "":
		desc, err = format.Parse(d.Caps, table)
		if err != nil {
			return Port{}, errors.Wrap(err, "Definition", "Resolve", fmt.Sprintf("caps for port %q", d.Name))
		}
	case d.Format != nil:
		desc = *d.Format
	default:
		return Port{}, errors.WrapInvalid(
			fmt.Errorf("%w: port %q has no format", errors.ErrMissingConfig, d.Name),
			"Definition", "Resolve", "format check")
	}

	return Port{
		Name:      d.Name,
		Direction: dir,
		Presence:  presence,
		Format:    desc,
		Subject:   d.Subject,
	}, nil
}

// BuildFromDefinitions creates a registry holding the given inputs and outputs.
// The first failing definition aborts the build.
func BuildFromDefinitions(inputs, outputs []Definition, table *format.Table) (*Registry, error) {
	if table == nil {
		table = format.DefaultTable()
	}

	r := NewRegistry()
	add := func(dir Direction, defs []Definition) error {
		for _, def := range defs {
			p, err := def.Resolve(dir, table)
			if err != nil {
				return err
			}
			if err := r.Add(p); err != nil {
				return err
			}
		}
		return nil
	}

	if err := add(DirectionInput, inputs); err != nil {
		return nil, err
	}
	if err := add(DirectionOutput, outputs); err != nil {
		return nil, err
	}
	return r, nil
}
