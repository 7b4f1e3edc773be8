package rom

import (
	"errors"
	"fmt"
)

// ErrMaxDepth is wrapped by the errors returned when a value or wire
// tree nests deeper than the engine's configured limit. Cyclic value
// graphs always hit this limit.
var ErrMaxDepth = errors.New("maximum nesting depth exceeded")

// UncommittedReferenceError is the error returned when a remote
// object that has not been committed is flattened outside of the
// transaction that creates it.
type UncommittedReferenceError struct {
	// TypeName is the remote class of the object.
	TypeName string
	// Ref is the object's provisional reference.
	Ref string
}

func (e UncommittedReferenceError) Error() string {
	return fmt.Sprintf("uncommitted %s object %q referenced outside its transaction", e.TypeName, e.Ref)
}

// UnknownEnumValueError is the error returned when a value is not a
// member of its enum type.
type UnknownEnumValueError struct {
	Path  string
	Value string
	// Enum is the name of the enum type.
	Enum string
}

func (e UnknownEnumValueError) Error() string {
	return fmt.Sprintf("%s%q is not a value of enum %s", pathPrefix(e.Path), e.Value, e.Enum)
}

// UnknownObjectReferenceError is the error returned when a remote
// object reference cannot be resolved.
type UnknownObjectReferenceError struct {
	Path string
	Ref  string
}

func (e UnknownObjectReferenceError) Error() string {
	return fmt.Sprintf("%sunknown remote object reference %q", pathPrefix(e.Path), e.Ref)
}

// UnknownTypeError is the error returned when a type has no wire
// representation.
type UnknownTypeError struct {
	// Type is the name of the type that caused the error.
	Type string
	// Reason is an explanation of why the type isn't representable.
	Reason error
}

func (e UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown type %s: %s", e.Type, e.Reason)
}

func (e UnknownTypeError) Unwrap() error {
	return e.Reason
}

func typeErr(t fmt.Stringer, reason string, args ...any) error {
	ts := "<nil>"
	if t != nil {
		ts = t.String()
	}
	return UnknownTypeError{ts, fmt.Errorf(reason, args...)}
}

// UnsupportedTypeError is the error returned when a value or target
// type falls outside every category the engines handle.
type UnsupportedTypeError struct {
	Path string
	Type string
	// Reason is optional.
	Reason error
}

func (e UnsupportedTypeError) Error() string {
	if e.Reason == nil {
		return fmt.Sprintf("%sunsupported type %s", pathPrefix(e.Path), e.Type)
	}
	return fmt.Sprintf("%sunsupported type %s: %s", pathPrefix(e.Path), e.Type, e.Reason)
}

func (e UnsupportedTypeError) Unwrap() error {
	return e.Reason
}

// ProtocolTypeMismatchError is the error returned when a wire value
// does not have the shape required by the target type.
type ProtocolTypeMismatchError struct {
	Path string
	// Value is the offending wire value.
	Value any
	// Expected is the name of the target type.
	Expected string
}

func (e ProtocolTypeMismatchError) Error() string {
	return fmt.Sprintf("%scannot unflatten %s %s into %s", pathPrefix(e.Path), wireTypeName(e.Value), abbrev(e.Value), e.Expected)
}

// ConstructionError is the error returned when a register value
// cannot be constructed from its wire properties.
type ConstructionError struct {
	Path string
	// Type is the name of the register type being constructed.
	Type string
	Err  error
}

func (e ConstructionError) Error() string {
	return fmt.Sprintf("%sconstructing %s: %s", pathPrefix(e.Path), e.Type, e.Err)
}

func (e ConstructionError) Unwrap() error {
	return e.Err
}

func pathPrefix(path string) string {
	if path == "" {
		return ""
	}
	return path + ": "
}

// abbrev formats a wire value for an error message, truncating long
// renderings.
func abbrev(v any) string {
	const limit = 64
	var s string
	switch x := v.(type) {
	case string:
		s = fmt.Sprintf("%q", x)
	case *Props:
		s = fmt.Sprint(x)
	default:
		s = fmt.Sprintf("%v", x)
	}
	if len(s) > limit {
		s = s[:limit-3] + "..."
	}
	return s
}
