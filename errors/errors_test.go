package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"delivery refused", ErrDelivery, true},
		{"delivery error", &DeliveryError{Port: "src_0", Err: fmt.Errorf("flushing")}, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"size mismatch", ErrSizeMismatch, false},
		{"timeout in message", fmt.Errorf("operation timeout occurred"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsTransient(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid format", ErrInvalidFormat, true},
		{"size mismatch", ErrSizeMismatch, true},
		{"arity mismatch", ErrArityMismatch, true},
		{"duplicate name", ErrDuplicateName, true},
		{"unknown port", ErrUnknownPort, true},
		{"wrapped arity", fmt.Errorf("dispatch: %w", ErrArityMismatch), true},
		{"connection timeout", ErrConnectionTimeout, false},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsInvalid(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil error", nil, ErrorTransient},
		{"connection timeout", ErrConnectionTimeout, ErrorTransient},
		{"invalid config", ErrInvalidConfig, ErrorFatal},
		{"size mismatch", ErrSizeMismatch, ErrorInvalid},
		{"unknown error", fmt.Errorf("unknown error"), ErrorTransient},
		{"classified error", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, ErrorFatal},
		{"wrapped invalid", WrapInvalid(fmt.Errorf("timeout"), "C", "M", "a"), ErrorInvalid},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := Classify(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestClassifiedError(t *testing.T) {
	baseErr := fmt.Errorf("base error")
	ce := newClassified(ErrorTransient, baseErr, "Router", "Route", "custom message")

	if ce.Component != "Router" || ce.Operation != "Route" {
		t.Errorf("unexpected component/operation: %s/%s", ce.Component, ce.Operation)
	}
	if ce.Error() != "custom message" {
		t.Errorf("expected 'custom message', got %s", ce.Error())
	}
	if !errors.Is(ce, baseErr) {
		t.Error("classified error should unwrap to base error")
	}

	ce = newClassified(ErrorTransient, baseErr, "Router", "Route", "")
	if ce.Error() != "base error" {
		t.Errorf("expected 'base error', got %s", ce.Error())
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "Registry", "AddInput", "format check") != nil {
		t.Fatal("wrapping nil must return nil")
	}

	err := Wrap(ErrDuplicateName, "Registry", "AddInput", "name check")
	expected := "Registry.AddInput: name check failed: duplicate port name"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
	if !errors.Is(err, ErrDuplicateName) {
		t.Error("wrapped error should match sentinel")
	}
}

func TestWrapClassified(t *testing.T) {
	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wrap(nil, "C", "M", "a") != nil {
				t.Fatal("wrapping nil must return nil")
			}

			err := tt.wrap(ErrSizeMismatch, "Dispatcher", "Dispatch", "map input")
			var ce *ClassifiedError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ClassifiedError, got %T", err)
			}
			if ce.Class != tt.class {
				t.Errorf("expected class %v, got %v", tt.class, ce.Class)
			}
			if !strings.HasPrefix(err.Error(), "Dispatcher.Dispatch: map input failed") {
				t.Errorf("unexpected message %q", err.Error())
			}
			if !errors.Is(err, ErrSizeMismatch) {
				t.Error("classification must preserve the sentinel")
			}
		})
	}
}

func TestDeliveryError(t *testing.T) {
	cause := fmt.Errorf("not linked")
	err := fmt.Errorf("route: %w", &DeliveryError{Port: "src_1", Err: cause})

	if !errors.Is(err, ErrDelivery) {
		t.Error("delivery error should match ErrDelivery")
	}
	if !errors.Is(err, cause) {
		t.Error("delivery error should match its cause")
	}

	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatal("expected DeliveryError in chain")
	}
	if de.Port != "src_1" {
		t.Errorf("expected port src_1, got %s", de.Port)
	}
	if !strings.Contains(de.Error(), `"src_1"`) {
		t.Errorf("error text should name the port: %s", de.Error())
	}
}

func TestJoinedDeliveryErrors(t *testing.T) {
	err := Join(
		&DeliveryError{Port: "a", Err: fmt.Errorf("x")},
		nil,
		&DeliveryError{Port: "b", Err: fmt.Errorf("y")},
	)
	if !Is(err, ErrDelivery) {
		t.Fatal("joined errors should match ErrDelivery")
	}
	if !IsTransient(err) {
		t.Error("delivery failures are transient")
	}
}
