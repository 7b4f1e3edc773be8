package rom

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
)

type containerKind uint8

const (
	notContainer containerKind = iota
	listContainer
	mapContainer
)

// A Descriptor is the static description of an in-memory type: the
// information the flattening and unflattening engines need in place
// of runtime introspection.
//
// Descriptors are immutable once built. The primitive descriptors
// ([Void], [Bool], [Int32], [Int64], [Float32], [Float64], [String])
// are singletons, and are recognized by identity. Other descriptors
// are built with [ListOf], [MapOf], [NewEnum], [Enum], [NewRegister],
// [Register], [NewAbstract], [NewRemoteClass] and [RemoteClass], and
// named ones are made available to the engines through a [Registry].
type Descriptor struct {
	name   string
	module string
	// goType is the Go type of values described by the descriptor,
	// or nil for descriptors built at runtime from module
	// definitions.
	goType reflect.Type

	container containerKind
	elem      *Descriptor

	remote bool
	wrap   func(*Handle) any

	// members is non-nil for enums, even enums with no members.
	members []EnumMember

	props     []Property
	params    []Field
	construct ConstructFunc
	abstract  bool
}

// An EnumMember is one value of an enum type.
type EnumMember struct {
	// Name is the member's canonical wire string.
	Name string
	// Value is the in-memory value of the member.
	Value any
}

// A Field is a named, typed slot of a register type: a property or a
// constructor parameter.
type Field struct {
	// Name is the field's wire name.
	Name string
	// Type is the field's descriptor. If Type is nil, the descriptor
	// is resolved from GoType through a [Registry] when needed.
	Type *Descriptor
	// GoType is the Go type of the field, if known.
	GoType reflect.Type
	// Optional reports whether the field may be absent on the
	// wire. Absent optional fields construct as their zero value.
	Optional bool
}

// A Property is a readable attribute of a register type.
type Property struct {
	Field
	// Get extracts the property's value from a value of the register
	// type.
	Get func(v any) (any, error)
}

// A ConstructFunc builds a register value from its constructor
// arguments, given in the order of the register's parameters.
type ConstructFunc func(args []any) (any, error)

// Primitive descriptors.
var (
	Void    = &Descriptor{name: "void"}
	Bool    = &Descriptor{name: "boolean", goType: reflect.TypeFor[bool]()}
	Int32   = &Descriptor{name: "int", goType: reflect.TypeFor[int32]()}
	Int64   = &Descriptor{name: "int64", goType: reflect.TypeFor[int64]()}
	Float32 = &Descriptor{name: "float", goType: reflect.TypeFor[float32]()}
	Float64 = &Descriptor{name: "double", goType: reflect.TypeFor[float64]()}
	String  = &Descriptor{name: "String", goType: reflect.TypeFor[string]()}
)

// PropsType describes a [Props] value. It is the wire shape of
// register and map types.
var PropsType = &Descriptor{name: "Props", goType: reflect.TypeFor[*Props]()}

// Name returns the simple type name of d. Lists and maps have no
// name.
func (d *Descriptor) Name() string { return d.name }

// Module returns the name of the module that owns d, or "" for
// primitives and containers.
func (d *Descriptor) Module() string { return d.module }

// GoType returns the Go type of values described by d, or nil if
// values are not bound to a Go type.
func (d *Descriptor) GoType() reflect.Type { return d.goType }

// Elem returns the element descriptor of a list or map, or nil.
func (d *Descriptor) Elem() *Descriptor { return d.elem }

// Members returns the members of an enum, in declaration order.
func (d *Descriptor) Members() []EnumMember { return slices.Clone(d.members) }

// Properties returns the readable properties of a register.
func (d *Descriptor) Properties() []Property { return slices.Clone(d.props) }

// Params returns the constructor parameters of a register.
func (d *Descriptor) Params() []Field { return slices.Clone(d.params) }

// IsAbstract reports whether d describes a type that cannot be
// constructed directly, only through one of its subtypes.
func (d *Descriptor) IsAbstract() bool { return d.abstract }

// Wrap returns the local wrapper for h, if d is a remote class with
// a wrapper factory. Otherwise, Wrap returns nil.
func (d *Descriptor) Wrap(h *Handle) any {
	if d.wrap == nil {
		return nil
	}
	return d.wrap(h)
}

// valueType returns the Go type of unflattened values of type d, or
// nil if unknown. Remote objects are represented by pointers to their
// wrapper type, or by their *Handle if there is no wrapper.
func (d *Descriptor) valueType() reflect.Type {
	switch {
	case d == nil, d.remote && d.goType == nil:
		return nil
	case d.remote && d.wrap == nil:
		return reflect.TypeFor[*Handle]()
	case d.remote && d.goType != nil:
		return reflect.PointerTo(d.goType)
	}
	return d.goType
}

func (d *Descriptor) String() string {
	if d == nil {
		return "<nil descriptor>"
	}
	switch d.container {
	case listContainer:
		return d.elem.String() + "[]"
	case mapContainer:
		return d.elem.String() + "<>"
	}
	if d.module == "" {
		return d.name
	}
	return d.module + "." + d.name
}

// ListOf returns a descriptor for lists of elem.
func ListOf(elem *Descriptor) *Descriptor {
	var t reflect.Type
	if vt := elem.valueType(); vt != nil {
		t = reflect.SliceOf(vt)
	}
	return listOf(elem, t)
}

func listOf(elem *Descriptor, t reflect.Type) *Descriptor {
	return &Descriptor{container: listContainer, elem: elem, goType: t}
}

// MapOf returns a descriptor for maps of string keys to elem.
func MapOf(elem *Descriptor) *Descriptor {
	var t reflect.Type
	if vt := elem.valueType(); vt != nil {
		t = reflect.MapOf(reflect.TypeFor[string](), vt)
	}
	return mapOf(elem, t)
}

func mapOf(elem *Descriptor, t reflect.Type) *Descriptor {
	return &Descriptor{container: mapContainer, elem: elem, goType: t}
}

// NewEnum returns a descriptor for the enum type E, whose members are
// values. The canonical wire string of each member is its
// [fmt.Sprint] representation, so enums typically implement
// [fmt.Stringer] or have a string underlying type.
func NewEnum[E comparable](module, name string, values ...E) *Descriptor {
	members := make([]EnumMember, 0, len(values))
	for _, v := range values {
		members = append(members, EnumMember{fmt.Sprint(v), v})
	}
	return &Descriptor{
		name:    name,
		module:  module,
		goType:  reflect.TypeFor[E](),
		members: members,
	}
}

// Enum returns a descriptor for an enum that is not bound to a Go
// type. Its members unflatten to their names.
func Enum(module, name string, names ...string) *Descriptor {
	members := make([]EnumMember, 0, len(names))
	for _, n := range names {
		members = append(members, EnumMember{n, n})
	}
	return &Descriptor{
		name:    name,
		module:  module,
		members: members,
	}
}

// A RegisterOption customizes the descriptor built by [NewRegister].
type RegisterOption[T any] func(*Descriptor) error

// WithProperty adds a computed property to a register. The property
// is read by calling get during flattening, and is not a constructor
// parameter. If get fails, the property is omitted from the
// flattened value.
func WithProperty[T any](name string, typ *Descriptor, get func(T) (any, error)) RegisterOption[T] {
	return func(d *Descriptor) error {
		for _, p := range d.props {
			if p.Name == name {
				return fmt.Errorf("duplicate property %q", name)
			}
		}
		d.props = append(d.props, Property{
			Field: Field{Name: name, Type: typ},
			Get: func(v any) (any, error) {
				tv, ok := asType[T](v)
				if !ok {
					return nil, fmt.Errorf("property %q read from %T, want %s", name, v, reflect.TypeFor[T]())
				}
				return get(tv)
			},
		})
		return nil
	}
}

// WithConstructor replaces the default constructor of a register,
// which assigns every property to the struct field it came from.
func WithConstructor[T any](params []Field, fn func(args []any) (T, error)) RegisterOption[T] {
	return func(d *Descriptor) error {
		if fn == nil {
			return errors.New("nil constructor")
		}
		d.params = slices.Clone(params)
		d.construct = func(args []any) (any, error) {
			return fn(args)
		}
		return nil
	}
}

// NewRegister returns a descriptor for the register type T, which
// must be a struct.
//
// Each exported field of T is a property and a constructor parameter,
// in declaration order. A field's wire name is its Go name with the
// leading word lowercased ("ID" becomes "id", "MaxBitrate" becomes
// "maxBitrate"), or the name given in a `rom:"name"` struct tag. The
// tag option "optional" allows the field to be absent on the wire,
// and a tag of "-" excludes the field.
func NewRegister[T any](module, name string, opts ...RegisterOption[T]) (*Descriptor, error) {
	t := reflect.TypeFor[T]()
	info, err := getStructInfo(t)
	if err != nil {
		return nil, fmt.Errorf("describing register %s.%s: %w", module, name, err)
	}

	d := &Descriptor{
		name:   name,
		module: module,
		goType: t,
	}
	for _, f := range info.Fields {
		field := Field{
			Name:     f.Name,
			GoType:   f.Type,
			Optional: f.Optional,
		}
		d.props = append(d.props, Property{
			Field: field,
			Get: func(v any) (any, error) {
				sv := derefZero(reflect.ValueOf(v))
				if !sv.IsValid() || sv.Type() != t {
					return nil, fmt.Errorf("property %q read from %T, want %s", f.Name, v, t)
				}
				return f.GetWithZero(sv).Interface(), nil
			},
		})
		d.params = append(d.params, field)
	}
	d.construct = func(args []any) (any, error) {
		ret := reflect.New(t).Elem()
		for i, f := range info.Fields {
			if args[i] == nil && f.Optional {
				continue
			}
			if err := setValue(f.GetWithAlloc(ret), args[i]); err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
		}
		return ret.Interface(), nil
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, fmt.Errorf("describing register %s.%s: %w", module, name, err)
		}
	}
	return d, nil
}

// Register returns a descriptor for a register type that is not
// bound to a Go type. Values are built by construct, from arguments
// unflattened according to params.
func Register(module, name string, params []Field, construct ConstructFunc) *Descriptor {
	d := &Descriptor{
		name:      name,
		module:    module,
		params:    slices.Clone(params),
		construct: construct,
	}
	for _, f := range params {
		d.props = append(d.props, Property{
			Field: f,
			Get: func(v any) (any, error) {
				p, ok := v.(*Props)
				if !ok {
					return nil, fmt.Errorf("property %q read from %T, want *Props", f.Name, v)
				}
				return p.Get(f.Name), nil
			},
		})
	}
	return d
}

// NewAbstract returns a descriptor for an abstract register type T,
// typically an interface implemented by several concrete registers.
// Values of an abstract type can only be unflattened from wire data
// tagged with a registered concrete type.
func NewAbstract[T any](module, name string) *Descriptor {
	return &Descriptor{
		name:     name,
		module:   module,
		goType:   reflect.TypeFor[T](),
		abstract: true,
	}
}

// Abstract returns a descriptor for an abstract register type that is
// not bound to a Go type.
func Abstract(module, name string) *Descriptor {
	return &Descriptor{
		name:     name,
		module:   module,
		abstract: true,
	}
}

// NewRemoteClass returns a descriptor for the remote class T. Remote
// objects are represented locally by *T wrappers built by wrap from
// the object's [Handle]. wrap may be nil, in which case the handle
// itself represents the object.
func NewRemoteClass[T any](module, name string, wrap func(*Handle) *T) *Descriptor {
	d := &Descriptor{
		name:   name,
		module: module,
		goType: reflect.TypeFor[T](),
		remote: true,
	}
	if wrap != nil {
		d.wrap = func(h *Handle) any { return wrap(h) }
	}
	return d
}

// RemoteClass returns a descriptor for a remote class that is not
// bound to a Go type. Its objects are represented by their [Handle].
func RemoteClass(module, name string) *Descriptor {
	return &Descriptor{
		name:   name,
		module: module,
		remote: true,
	}
}

// asType returns v as a T, dereferencing a *T if needed.
func asType[T any](v any) (T, bool) {
	switch x := v.(type) {
	case T:
		return x, true
	case *T:
		if x != nil {
			return *x, true
		}
	}
	var zero T
	return zero, false
}

// Must returns d, or panics if err is non-nil. It is intended for
// package-level registration of descriptors built by [NewRegister].
func Must(d *Descriptor, err error) *Descriptor {
	if err != nil {
		panic(err)
	}
	return d
}
