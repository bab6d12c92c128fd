package format

import (
	"fmt"
	"sort"
	"sync"

	"github.com/c360/mediajoin/errors"
)

// PixelFormat describes one named pixel layout
type PixelFormat struct {
	Name        string `json:"name"         yaml:"name"`
	Components  int    `json:"components"   yaml:"components"`
	ElementSize int    `json:"element_size" yaml:"element_size"`
	BigEndian   bool   `json:"big_endian"   yaml:"big_endian"`
}

// Table maps pixel format names to their layouts. Padded formats such as RGBx
// count the padding byte as a component.
type Table struct {
	mu      sync.RWMutex
	formats map[string]PixelFormat
}

var builtinFormats = []PixelFormat{
	{Name: "RGB", Components: 3, ElementSize: 1},
	{Name: "BGR", Components: 3, ElementSize: 1},
	{Name: "RGBx", Components: 4, ElementSize: 1},
	{Name: "BGRx", Components: 4, ElementSize: 1},
	{Name: "xRGB", Components: 4, ElementSize: 1},
	{Name: "xBGR", Components: 4, ElementSize: 1},
	{Name: "RGBA", Components: 4, ElementSize: 1},
	{Name: "BGRA", Components: 4, ElementSize: 1},
	{Name: "ARGB", Components: 4, ElementSize: 1},
	{Name: "ABGR", Components: 4, ElementSize: 1},
	{Name: "GRAY8", Components: 1, ElementSize: 1},
	{Name: "GRAY16_LE", Components: 1, ElementSize: 2},
	{Name: "GRAY16_BE", Components: 1, ElementSize: 2, BigEndian: true},
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{formats: make(map[string]PixelFormat)}
}

// DefaultTable returns a new table holding the built-in raw video formats
func DefaultTable() *Table {
	t := NewTable()
	for _, pf := range builtinFormats {
		t.formats[pf.Name] = pf
	}
	return t
}

// Register adds or replaces a pixel format
func (t *Table) Register(pf PixelFormat) error {
	if pf.Name == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: pixel format name is empty", errors.ErrInvalidFormat),
			"Table", "Register", "name check")
	}
	if pf.Components <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s has %d components", errors.ErrInvalidFormat, pf.Name, pf.Components),
			"Table", "Register", "component check")
	}
	if _, err := KindFromBits(pf.ElementSize * 8); err != nil {
		return errors.Wrap(err, "Table", "Register", pf.Name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.formats[pf.Name] = pf
	return nil
}

// Lookup returns the named pixel format
func (t *Table) Lookup(name string) (PixelFormat, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	pf, ok := t.formats[name]
	if !ok {
		return PixelFormat{}, errors.WrapInvalid(
			fmt.Errorf("%w: format %q does not have a known number of components", errors.ErrInvalidFormat, name),
			"Table", "Lookup", "format lookup")
	}
	return pf, nil
}

// Descriptor builds a descriptor for the named format at the given size
func (t *Table) Descriptor(name string, width, height int) (Descriptor, error) {
	pf, err := t.Lookup(name)
	if err != nil {
		return Descriptor{}, err
	}
	d := Descriptor{
		Layout:      pf.Name,
		Width:       width,
		Height:      height,
		Components:  pf.Components,
		ElementSize: pf.ElementSize,
		BigEndian:   pf.BigEndian,
	}
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// Names returns the registered format names in sorted order
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.formats))
	for name := range t.formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
