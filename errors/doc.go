// Package errors provides standardized error handling for mediajoin elements.
//
// # Overview
//
// The package combines two things: a three-class classification system
// (Transient, Invalid, Fatal) and the sentinel taxonomy raised by the port
// registry, the join coordinator, the transform dispatcher and the output router.
//
//   - Transient: delivery refusals, connection problems, context timeouts
//   - Invalid: bad formats, size and arity mismatches, unknown or duplicate ports
//   - Fatal: configuration that prevents an element from entering the running state
//
// # Error Wrapping Pattern
//
// All error wrapping follows the format:
//
//	"component.method: action failed: %w"
//
// Three wrappers set the classification explicitly:
//
//	errors.WrapTransient(err, "Router", "Route", "push")
//	errors.WrapInvalid(err, "Registry", "AddInput", "format check")
//	errors.WrapFatal(err, "Element", "Initialize", "port setup")
//
// # Taxonomy
//
//	ErrDuplicateName  a port name already exists in that direction
//	ErrNotFound       removing a port that does not exist
//	ErrInvalidFormat  a format whose byte layout cannot be computed
//	ErrSizeMismatch   buffer byte length differs from rows*cols*components*elementSize
//	ErrArityMismatch  transform output count differs from output port count
//	ErrDelivery       a sink refused a buffer (see DeliveryError)
//	ErrUnknownPort    wiring or arrival referenced a port that is not registered
//
// DeliveryError carries the port name and matches both ErrDelivery and its cause:
//
//	var de *errors.DeliveryError
//	if errors.As(err, &de) {
//	    log.Printf("port %s refused: %v", de.Port, de.Err)
//	}
//
// All errors support errors.Is and errors.As through the wrapping chain.
package errors
