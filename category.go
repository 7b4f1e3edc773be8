package rom

import "fmt"

// A Category is the wire category of a type. Every [Descriptor]
// classifies into exactly one Category, which decides how values of
// that type are flattened and unflattened.
type Category uint8

const (
	CategoryVoid Category = iota
	CategoryBool
	CategoryInt32
	CategoryFloat32
	CategoryFloat64
	CategoryInt64
	CategoryString
	CategoryEnum
	CategoryRegister
	CategoryList
	CategoryMap
	CategoryRemoteClass
)

var categoryNames = [...]string{
	CategoryVoid:        "Void",
	CategoryBool:        "Bool",
	CategoryInt32:       "Int32",
	CategoryFloat32:     "Float32",
	CategoryFloat64:     "Float64",
	CategoryInt64:       "Int64",
	CategoryString:      "String",
	CategoryEnum:        "Enum",
	CategoryRegister:    "Register",
	CategoryList:        "List",
	CategoryMap:         "Map",
	CategoryRemoteClass: "RemoteClass",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

// IsPrimitive reports whether c is Void or one of the primitive
// categories, whose wire form is the value itself.
func (c Category) IsPrimitive() bool {
	return c <= CategoryString
}
