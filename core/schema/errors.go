package schema

import (
	"errors"
	"fmt"
)

// Schema and object errors. Callers match them with errors.Is.
var (
	ErrSchemaNotFound          = errors.New("schema not found")
	ErrInvalidSchema           = errors.New("invalid schema")
	ErrUnknownAttribute        = errors.New("unknown attribute")
	ErrUnknownProperty         = errors.New("unknown property")
	ErrTypeMismatch            = errors.New("type mismatch")
	ErrNestedArrayUnsupported  = errors.New("nested arrays are not supported")
	ErrIndexOutOfBounds        = errors.New("index out of bounds")
	ErrUnsupportedOperation    = errors.New("unsupported operation")
	ErrUnsupportedSchemaSource = errors.New("unsupported schema source")
)

// ErrInvalidValue is reported when a value is rejected by an attribute.
// It is the same error as ErrTypeMismatch.
var ErrInvalidValue = ErrTypeMismatch

// ValueError describes a rejected value.
type ValueError struct {
	Path   string
	Attr   string
	Want   string
	Value  any
	Reason string
}

// Error returns the error message.
func (e *ValueError) Error() string {
	name := e.Attr
	if e.Path != "" {
		name = e.Path + "." + e.Attr
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", name, e.Reason)
	}
	return fmt.Sprintf("%s: value %v (%T) is not of type %s", name, e.Value, e.Value, e.Want)
}

// Unwrap returns ErrTypeMismatch.
func (e *ValueError) Unwrap() error {
	return ErrTypeMismatch
}
