package rom

import (
	"fmt"
	"iter"
	"reflect"
	"strings"
	"unicode"
)

// structField is the information about a struct field that maps to a
// register property.
type structField struct {
	// Name is the property's wire name.
	Name string
	// GoName is the Go field name, for diagnostics.
	GoName string
	Index  [][]int
	Type   reflect.Type
	// Optional is whether the property may be absent on the wire.
	Optional bool
}

// GetWithZero reads the field from structVal, for flattening. A nil
// embedded struct pointer on the way yields a zero value that cannot
// be set.
func (f *structField) GetWithZero(structVal reflect.Value) reflect.Value {
	v := structVal
	for i, hop := range f.Index {
		if i > 0 {
			if v.IsNil() {
				return reflect.Zero(f.Type)
			}
			v = v.Elem()
		}
		v = v.FieldByIndex(hop)
	}
	return v
}

// GetWithAlloc returns the settable field of structVal, for
// unflattening, allocating nil embedded struct pointers on the way.
func (f *structField) GetWithAlloc(structVal reflect.Value) reflect.Value {
	v := structVal
	for i, hop := range f.Index {
		if i > 0 {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.FieldByIndex(hop)
	}
	return v
}

func (f *structField) String() string {
	opt := ""
	if f.Optional {
		opt = ", optional"
	}
	return fmt.Sprintf("%s (%s): %s at %v%s", f.Name, f.GoName, f.Type, f.Index, opt)
}

// structInfo is the information about a struct relevant to
// flattening and unflattening.
type structInfo struct {
	// Type is the struct's type, for use in diagnostics.
	Type reflect.Type
	// Fields is the information about each struct field that is a
	// register property, in declaration order.
	Fields []*structField
}

func (s *structInfo) String() string {
	var ret strings.Builder
	fmt.Fprintf(&ret, "%s: struct, fields:\n", s.Type)
	for _, f := range s.Fields {
		ret.WriteString(f.String())
		ret.WriteByte('\n')
	}
	return ret.String()
}

var structInfos cache[reflect.Type, *structInfo]

// getStructInfo returns the structInfo for t.
//
// getStructInfo returns an error if t is not a struct, or if two
// fields map to the same property name.
func getStructInfo(t reflect.Type) (*structInfo, error) {
	if ret, err := structInfos.Get(t); err == nil {
		return ret, nil
	} else if err != errNotFound {
		return nil, err
	}

	if t.Kind() != reflect.Struct {
		return nil, structInfos.SetErr(t, fmt.Errorf("%s is not a struct", t))
	}

	ret := &structInfo{Type: t}
	seen := map[string]string{}
	for field := range structFields(t, nil) {
		if !field.IsExported() {
			continue
		}
		name, optional, skip := parseStructTag(field)
		if skip {
			continue
		}
		if prev, ok := seen[name]; ok {
			return nil, structInfos.SetErr(t, fmt.Errorf("duplicate property %q in struct %s, used by %s and %s", name, t, prev, field.Name))
		}
		seen[name] = field.Name
		ret.Fields = append(ret.Fields, &structField{
			Name:     name,
			GoName:   field.Name,
			Type:     field.Type,
			Index:    allocSteps(t, field.Index),
			Optional: optional,
		})
	}

	return structInfos.Set(t, ret), nil
}

// parseStructTag returns the information contained in field's "rom"
// struct tag.
func parseStructTag(field reflect.StructField) (name string, optional, skip bool) {
	tag := field.Tag.Get("rom")
	if tag == "-" {
		return "", false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	for _, o := range strings.Split(opts, ",") {
		if o == "optional" {
			optional = true
		}
	}
	if name == "" {
		name = lowerCamel(field.Name)
	}
	return name, optional, false
}

// lowerCamel lowercases the leading word of a Go identifier. An
// initialism at the start of the name is lowercased whole, except
// for the letter that starts the following word.
func lowerCamel(s string) string {
	rs := []rune(s)
	n := 0
	for n < len(rs) && unicode.IsUpper(rs[n]) {
		n++
	}
	switch {
	case n == 0:
		return s
	case n == 1 || n == len(rs):
	default:
		if unicode.IsLetter(rs[n]) {
			n--
		}
	}
	for i := range n {
		rs[i] = unicode.ToLower(rs[i])
	}
	return string(rs)
}

// allocSteps splits the field index path idx into hops, cutting after
// every embedded struct pointer.
//
// Each hop but the last ends at a pointer that may be nil.
func allocSteps(t reflect.Type, idx []int) [][]int {
	var ret [][]int
	prev := 0
	t = t.Field(idx[0]).Type
	for i := 1; i < len(idx); i++ {
		if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct {
			ret = append(ret, idx[prev:i])
			prev = i
			t = t.Elem()
		}
		t = t.Field(idx[i]).Type
	}
	ret = append(ret, idx[prev:])
	return ret
}

// structFields iterates over the fields of t, descending into
// exported embedded structs.
func structFields(t reflect.Type, idx []int) iter.Seq[reflect.StructField] {
	return func(yield func(reflect.StructField) bool) {
		for i := range t.NumField() {
			f := t.Field(i)
			idx = append(idx, i)
			if f.Anonymous && f.IsExported() {
				at := f.Type
				if at.Kind() == reflect.Pointer {
					at = at.Elem()
				}
				if at.Kind() == reflect.Struct {
					for af := range structFields(at, idx) {
						if !yield(af) {
							return
						}
					}
					idx = idx[:len(idx)-1]
					continue
				}
			}
			f.Index = append([]int(nil), idx...)
			if !yield(f) {
				return
			}
			idx = idx[:len(idx)-1]
		}
	}
}
