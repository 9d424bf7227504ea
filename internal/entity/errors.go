package entity

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for entity configuration operations. Check with errors.Is.
var (
	// ErrValidation indicates the definition document violates the
	// platform schema. The store is never touched.
	ErrValidation = errors.New("entity: validation failed")

	// ErrUnknownPlatform indicates no schema is registered for the
	// requested platform tag.
	ErrUnknownPlatform = errors.New("entity: unknown platform")

	// ErrNotFound indicates no record exists for the unique id.
	ErrNotFound = errors.New("entity: not found")

	// ErrDuplicateID indicates a generated unique id collided with an
	// existing record. Transient; retry with a fresh id.
	ErrDuplicateID = errors.New("entity: duplicate unique id")

	// ErrPlatformMismatch indicates an update tried to retarget an
	// entity to a different platform.
	ErrPlatformMismatch = errors.New("entity: platform mismatch")

	// ErrInstantiation indicates the live entity could not be built or
	// registered after the record was already committed. Triggers
	// compensation in the facade.
	ErrInstantiation = errors.New("entity: instantiation failed")

	// ErrPersistence indicates a durable write failed. No partial
	// state is assumed committed.
	ErrPersistence = errors.New("entity: persistence failed")
)

// FieldError describes one schema violation at a field path.
type FieldError struct {
	// Path locates the offending field, e.g. "switch_address[1]".
	Path string

	// Message says what is wrong with it.
	Message string
}

func (fe FieldError) String() string {
	if fe.Path == "" {
		return fe.Message
	}
	return fe.Path + ": " + fe.Message
}

// ValidationError aggregates every schema violation found in one
// definition document. It matches ErrValidation under errors.Is.
type ValidationError struct {
	Platform Platform
	Fields   []FieldError
}

func (ve *ValidationError) Error() string {
	msgs := make([]string, len(ve.Fields))
	for i, fe := range ve.Fields {
		msgs[i] = fe.String()
	}
	return fmt.Sprintf("entity: validation failed for platform %q: %s",
		ve.Platform, strings.Join(msgs, "; "))
}

func (ve *ValidationError) Unwrap() error {
	return ErrValidation
}

// add records a violation and returns the error for chaining.
func (ve *ValidationError) add(path, message string) {
	ve.Fields = append(ve.Fields, FieldError{Path: path, Message: message})
}

// ok reports whether no violations were recorded.
func (ve *ValidationError) ok() bool {
	return len(ve.Fields) == 0
}
