package rom

import (
	"reflect"

	"github.com/creachadair/mds/mapset"
)

var (
	// nameToPrimitive maps the wire name of a primitive type to its
	// descriptor.
	nameToPrimitive = map[string]*Descriptor{
		"void":    Void,
		"boolean": Bool,
		"int":     Int32,
		"int64":   Int64,
		"float":   Float32,
		"double":  Float64,
		"String":  String,
	}

	// typeToPrimitive maps the Go types of primitive values to their
	// descriptors.
	typeToPrimitive = map[reflect.Type]*Descriptor{
		reflect.TypeFor[bool]():    Bool,
		reflect.TypeFor[int32]():   Int32,
		reflect.TypeFor[int64]():   Int64,
		reflect.TypeFor[float32](): Float32,
		reflect.TypeFor[float64](): Float64,
		reflect.TypeFor[string]():  String,
	}

	// primitiveCategories maps primitive descriptors to their wire
	// category.
	primitiveCategories = map[*Descriptor]Category{
		Void:    CategoryVoid,
		Bool:    CategoryBool,
		Int32:   CategoryInt32,
		Int64:   CategoryInt64,
		Float32: CategoryFloat32,
		Float64: CategoryFloat64,
		String:  CategoryString,
	}

	// unsupportedKinds is the set of reflect.Kinds that have no wire
	// representation. Go's platform-sized and unsigned integers are
	// rejected rather than silently narrowed.
	unsupportedKinds = mapset.New(
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Uintptr,
		reflect.Complex64,
		reflect.Complex128,
		reflect.Chan,
		reflect.Func,
		reflect.UnsafePointer,
	)
)

// PrimitiveNamed returns the primitive descriptor with the given wire
// name ("boolean", "int", "int64", "float", "double", "String" or
// "void"), or nil.
func PrimitiveNamed(name string) *Descriptor {
	return nameToPrimitive[name]
}
