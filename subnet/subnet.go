// Package subnet wires external producers and consumers to an element's ports by
// name. Every entry is validated before the first link is made.
package subnet

import (
	"context"
	"fmt"

	"github.com/c360/mediajoin/errors"
)

// Entry pairs a port name with a description of what to attach to it. The
// description is interpreted by the Linker, e.g. a NATS subject.
type Entry struct {
	Name        string `json:"name"        yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Ports is the view of an element the composer validates against
type Ports interface {
	InputNames() []string
	OutputNames() []string
}

// Link is an established attachment
type Link interface {
	Close() error
}

// Linker attaches descriptions to element ports
type Linker interface {
	LinkInput(ctx context.Context, port, description string) (Link, error)
	LinkOutput(ctx context.Context, port, description string) (Link, error)
}

// Subnet holds the links made by Compose
type Subnet struct {
	Inputs  []Entry
	Outputs []Entry
	links   []Link
}

// Compose validates inputs and outputs against the element's ports and links
// every entry. Names must be unique within each list and exist on the element,
// otherwise ErrDuplicateName or ErrUnknownPort is returned and nothing is linked.
// If a link fails, links already made are closed.
func Compose(ctx context.Context, element Ports, inputs, outputs []Entry, linker Linker) (*Subnet, error) {
	if err := validate("input", inputs, element.InputNames()); err != nil {
		return nil, err
	}
	if err := validate("output", outputs, element.OutputNames()); err != nil {
		return nil, err
	}

	s := &Subnet{
		Inputs:  append([]Entry(nil), inputs...),
		Outputs: append([]Entry(nil), outputs...),
	}
	for _, e := range inputs {
		l, err := linker.LinkInput(ctx, e.Name, e.Description)
		if err != nil {
			_ = s.Close()
			return nil, errors.Wrap(err, "subnet", "Compose", fmt.Sprintf("link input %q", e.Name))
		}
		s.links = append(s.links, l)
	}
	for _, e := range outputs {
		l, err := linker.LinkOutput(ctx, e.Name, e.Description)
		if err != nil {
			_ = s.Close()
			return nil, errors.Wrap(err, "subnet", "Compose", fmt.Sprintf("link output %q", e.Name))
		}
		s.links = append(s.links, l)
	}
	return s, nil
}

// Close releases every link in reverse order
func (s *Subnet) Close() error {
	var errs []error
	for i := len(s.links) - 1; i >= 0; i-- {
		if s.links[i] == nil {
			continue
		}
		if err := s.links[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.links = nil
	return errors.Join(errs...)
}

func validate(kind string, entries []Entry, known []string) error {
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.Name] {
			return errors.WrapInvalid(
				fmt.Errorf("%w: %s %q listed twice", errors.ErrDuplicateName, kind, e.Name),
				"subnet", "Compose", "name check")
		}
		seen[e.Name] = true
	}

	ports := make(map[string]bool, len(known))
	for _, n := range known {
		ports[n] = true
	}
	for _, e := range entries {
		if !ports[e.Name] {
			return errors.WrapInvalid(
				fmt.Errorf("%w: %s %q not in %v", errors.ErrUnknownPort, kind, e.Name, known),
				"subnet", "Compose", "port check")
		}
	}
	return nil
}
