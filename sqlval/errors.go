package sqlval

import (
	"errors"
	"fmt"
)

// Sentinel errors for literal rendering.
var (
	ErrUnsupportedType = errors.New("sqlval: unsupported value type")
	ErrArgCount        = errors.New("sqlval: placeholder count does not match argument count")
)

// UnsupportedTypeError reports a value ToSQL cannot render.
type UnsupportedTypeError struct {
	// TypeName is the detected type: "object" for structs and maps,
	// "function" for funcs, "undefined" for Undefined, otherwise the Go kind.
	TypeName string

	// Value is a best-effort rendering of the offending value.
	Value string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("sqlval: unsupported value type: %s value: (%s)", e.TypeName, e.Value)
}

// Unwrap lets errors.Is match ErrUnsupportedType.
func (e *UnsupportedTypeError) Unwrap() error {
	return ErrUnsupportedType
}
