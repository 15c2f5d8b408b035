package object

import (
	"errors"
	"fmt"

	"github.com/i5heu/ouroboros-objects/pkg/schema"
)

var (
	// ErrInvalidated is returned by every operation on a torn down proxy or
	// container. Callers must fetch the object again.
	ErrInvalidated = errors.New("object: access to invalidated object")
	// ErrReadOnly is returned when mutating a read-only structure.
	ErrReadOnly = errors.New("object: object is read only")
	// ErrTypeMismatch covers wrong link target types, values of the wrong
	// Go type and assignments the field kind does not allow.
	ErrTypeMismatch = errors.New("object: type mismatch")
	// ErrSerialization is returned when a record cannot be encoded, usually
	// because a required field is unset.
	ErrSerialization = errors.New("object: serialization failed")
	ErrUnknownField  = errors.New("object: unknown field")
	// ErrCycle is returned when a link would make an object its own
	// ancestor.
	ErrCycle = errors.New("object: link would create a cycle")
	// ErrNotInWorkspace is returned when a link target can be found
	// neither in the workspace nor in the backing store.
	ErrNotInWorkspace = errors.New("object: object not found")
	ErrNoRepository   = errors.New("object: object is not attached to a repository")
	ErrIndex          = errors.New("object: index out of range")
	// ErrNoSpecialization is returned by Specialized for types without a
	// registered helper set.
	ErrNoSpecialization = errors.New("object: no specialization for type")
)

// ObjectError names the object an operation failed on.
type ObjectError struct {
	Op    string
	Type  schema.TypeID
	ID    ID
	Field string
	Err   error
}

func (e *ObjectError) Error() string {
	msg := fmt.Sprintf("object: %s %s %s", e.Op, e.Type, e.ID)
	if e.Field != "" {
		msg += " field " + e.Field
	}
	return msg + ": " + e.Err.Error()
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

func (w *Wrapper) fail(op, field string, err error) error {
	oe := &ObjectError{Op: op, Field: field, Err: err}
	if w != nil && !w.invalid {
		oe.Type = w.desc.Type
		if w.root.state != nil {
			oe.ID = w.root.state.workingID
		}
	}
	return oe
}
