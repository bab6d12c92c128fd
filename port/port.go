// Package port holds the named input and output ports of an element, each bound to
// a format descriptor, kept in declaration order.
package port

import (
	"fmt"

	"github.com/c360/mediajoin/errors"
	"github.com/c360/mediajoin/format"
)

// Direction for data flow
type Direction string

// Direction constants for port data flow
const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Presence tells whether a port exists for the element's whole life or is
// created on request
type Presence string

// Presence constants
const (
	PresenceAlways  Presence = "always"
	PresenceRequest Presence = "request"
)

// ParsePresence converts a configuration string to a Presence. The empty string
// means PresenceAlways.
func ParsePresence(s string) (Presence, error) {
	switch Presence(s) {
	case "", PresenceAlways:
		return PresenceAlways, nil
	case PresenceRequest:
		return PresenceRequest, nil
	default:
		return "", errors.WrapInvalid(
			fmt.Errorf("%w: unknown presence %q", errors.ErrInvalidConfig, s),
			"port", "ParsePresence", "presence lookup")
	}
}

// Port is a named, directional attachment point bound to one format
type Port struct {
	Name      string            `json:"name"`
	Direction Direction         `json:"direction"`
	Presence  Presence          `json:"presence"`
	Format    format.Descriptor `json:"format"`
	Subject   string            `json:"subject,omitempty"`
}

// String returns "direction:name"
func (p Port) String() string {
	return fmt.Sprintf("%s:%s", p.Direction, p.Name)
}
