package transform

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/c360/mediajoin/dispatch"
	"github.com/c360/mediajoin/errors"
	"github.com/c360/mediajoin/port"
)

// Built holds the result of a factory. Exactly one field is set.
type Built struct {
	Transform dispatch.Transform
	InPlace   dispatch.InPlaceTransform
}

// Dispatcher builds a dispatcher for the registry's ports
func (b Built) Dispatcher(registry *port.Registry) (*dispatch.Dispatcher, error) {
	switch {
	case b.InPlace != nil:
		return dispatch.NewInPlace(registry, b.InPlace)
	case b.Transform != nil:
		return dispatch.New(registry, b.Transform)
	default:
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "transform", "Dispatcher", "transform presence")
	}
}

// Factory creates a transform from raw JSON params. Params may be empty.
type Factory func(params json.RawMessage, logger *slog.Logger) (Built, error)

// Registration describes a named transform
type Registration struct {
	Name        string
	Description string
	Factory     Factory
}

// Registry resolves transform names to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]*Registration
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]*Registration)}
}

// DefaultRegistry returns a registry with every built-in transform registered
func DefaultRegistry() *Registry {
	r := NewRegistry()
	if err := Register(r); err != nil {
		panic(err)
	}
	return r
}

// Register adds the built-in transforms to r
func Register(r *Registry) error {
	builtins := []*Registration{
		{Name: "mean", Description: "element-wise mean of all inputs", Factory: newMeanMixer},
		{Name: "copy", Description: "first input copied to every output", Factory: newCopy},
		{Name: "fill", Description: "copy with the top-left quadrant set to a value", Factory: newQuadrantFill},
		{Name: "crop", Description: "top-left corner of the first input sized to each output", Factory: newCrop},
		{Name: "trace", Description: "pass-through that logs dimensions and value range", Factory: newTrace},
	}
	for _, reg := range builtins {
		if err := r.RegisterFactory(reg); err != nil {
			return errors.WrapInvalid(err, "transform", "Register", fmt.Sprintf("%s registration", reg.Name))
		}
	}
	return nil
}

// RegisterFactory adds a named factory. Names must be unique.
func (r *Registry) RegisterFactory(reg *Registration) error {
	if reg == nil || reg.Name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "name validation")
	}
	if reg.Factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "factory validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[reg.Name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("%w: transform %q already registered", errors.ErrDuplicateName, reg.Name),
			"Registry", "RegisterFactory", "duplicate check")
	}
	r.factories[reg.Name] = reg
	return nil
}

// Create builds the named transform
func (r *Registry) Create(name string, params json.RawMessage, logger *slog.Logger) (Built, error) {
	r.mu.RLock()
	reg, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return Built{}, errors.WrapFatal(
			fmt.Errorf("%w: no transform named %q (known: %v)", errors.ErrInvalidConfig, name, r.Names()),
			"Registry", "Create", "factory lookup")
	}
	if logger == nil {
		logger = slog.Default()
	}

	built, err := reg.Factory(params, logger.With("transform", name))
	if err != nil {
		return Built{}, errors.WrapFatal(err, "Registry", "Create", fmt.Sprintf("%s construction", name))
	}
	return built, nil
}

// Names returns the registered names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// decodeParams unmarshals params into dst, leaving defaults alone when params is empty
func decodeParams(params json.RawMessage, dst any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, dst); err != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err),
			"transform", "decodeParams", "params decode")
	}
	return nil
}

// Describe returns the description registered for name
func (r *Registry) Describe(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.factories[name]
	if !ok {
		return "", false
	}
	return reg.Description, true
}
