package port

import (
	"fmt"
	"sync"

	"github.com/c360/mediajoin/errors"
	"github.com/c360/mediajoin/format"
)

// Registry keeps the input and output port lists of an element. Names are unique
// per direction and iteration follows registration order.
type Registry struct {
	mu      sync.RWMutex
	inputs  []Port
	outputs []Port
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// AddInput registers an always-present input port
func (r *Registry) AddInput(name string, f format.Descriptor) error {
	return r.Add(Port{Name: name, Direction: DirectionInput, Presence: PresenceAlways, Format: f})
}

// AddOutput registers an always-present output port
func (r *Registry) AddOutput(name string, f format.Descriptor) error {
	return r.Add(Port{Name: name, Direction: DirectionOutput, Presence: PresenceAlways, Format: f})
}

// Add registers a fully described port
func (r *Registry) Add(p Port) error {
	if p.Name == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: port name must not be empty", errors.ErrInvalidName),
			"Registry", "Add", "name check")
	}
	if _, err := p.Format.ByteLength(); err != nil {
		return errors.Wrap(err, "Registry", "Add", fmt.Sprintf("format check for %s", p))
	}
	if p.Presence == "" {
		p.Presence = PresenceAlways
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.list(p.Direction)
	if err != nil {
		return err
	}
	if indexOf(*list, p.Name) >= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrDuplicateName, p),
			"Registry", "Add", "name check")
	}
	*list = append(*list, p)
	return nil
}

// Remove deletes the named port from the given direction
func (r *Registry) Remove(d Direction, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.list(d)
	if err != nil {
		return err
	}
	i := indexOf(*list, name)
	if i < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s port %q", errors.ErrNotFound, d, name),
			"Registry", "Remove", "port lookup")
	}
	*list = append((*list)[:i:i], (*list)[i+1:]...)
	return nil
}

// Input returns the named input port
func (r *Registry) Input(name string) (Port, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := indexOf(r.inputs, name); i >= 0 {
		return r.inputs[i], true
	}
	return Port{}, false
}

// Output returns the named output port
func (r *Registry) Output(name string) (Port, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := indexOf(r.outputs, name); i >= 0 {
		return r.outputs[i], true
	}
	return Port{}, false
}

// Inputs returns a copy of the input ports in registration order
func (r *Registry) Inputs() []Port {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Port(nil), r.inputs...)
}

// Outputs returns a copy of the output ports in registration order
func (r *Registry) Outputs() []Port {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Port(nil), r.outputs...)
}

// InputNames returns input port names in registration order
func (r *Registry) InputNames() []string {
	return names(r.Inputs())
}

// OutputNames returns output port names in registration order
func (r *Registry) OutputNames() []string {
	return names(r.Outputs())
}

// Len returns the number of input and output ports
func (r *Registry) Len() (inputs, outputs int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.inputs), len(r.outputs)
}

func (r *Registry) list(d Direction) (*[]Port, error) {
	switch d {
	case DirectionInput:
		return &r.inputs, nil
	case DirectionOutput:
		return &r.outputs, nil
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: unknown direction %q", errors.ErrInvalidConfig, d),
			"Registry", "list", "direction check")
	}
}

func indexOf(ports []Port, name string) int {
	for i, p := range ports {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func names(ports []Port) []string {
	out := make([]string, len(ports))
	for i, p := range ports {
		out[i] = p.Name
	}
	return out
}
