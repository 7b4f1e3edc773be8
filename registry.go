package rom

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"maps"
	"reflect"
	"slices"
	"sync"
)

type typeKey struct {
	module, name string
}

// A Registry is a set of named types, indexed by (module, name) and
// by Go type. The engines use it to find the descriptors of values
// being flattened, and to recover the concrete type of tagged wire
// data being unflattened.
//
// A Registry is safe for concurrent use. It is typically populated
// once at startup and read thereafter.
type Registry struct {
	mu     sync.RWMutex
	byName map[typeKey]*Descriptor
	byType map[reflect.Type]*Descriptor

	// derived memoizes the descriptors of unnamed Go types (pointers,
	// slices and maps) built from registered types. It is reset
	// whenever a type is registered.
	derived cache[reflect.Type, *Descriptor]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: map[typeKey]*Descriptor{},
		byType: map[reflect.Type]*Descriptor{},
	}
}

// Register adds d to the registry. d must be a named enum, register
// or remote class.
//
// Registration is atomic. If an equivalent descriptor is already
// registered under d's name, Register returns the existing descriptor
// and callers should use it in place of d. If d conflicts with a
// registered descriptor, Register returns an error.
func (r *Registry) Register(d *Descriptor) (*Descriptor, error) {
	c, err := Classify(d)
	if err != nil {
		return nil, err
	}
	switch c {
	case CategoryEnum, CategoryRegister, CategoryRemoteClass:
	default:
		return nil, fmt.Errorf("cannot register %s: %s types are not named", d, c)
	}
	if d.module == "" || d.name == "" {
		return nil, fmt.Errorf("cannot register %s: module and name are required", d)
	}
	if _, ok := nameToPrimitive[d.name]; ok {
		return nil, fmt.Errorf("cannot register %s: name %q is reserved", d, d.name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := typeKey{d.module, d.name}
	if prev := r.byName[k]; prev != nil {
		if !equivalent(prev, d) {
			return nil, fmt.Errorf("cannot register %s: conflicts with registered type of the same name", d)
		}
		return prev, nil
	}
	if d.goType != nil {
		if prev := r.byType[d.goType]; prev != nil {
			return nil, fmt.Errorf("cannot register %s: Go type %s is already registered as %s", d, d.goType, prev)
		}
		if _, ok := typeToPrimitive[d.goType]; ok {
			return nil, fmt.Errorf("cannot register %s: Go type %s is a primitive", d, d.goType)
		}
		r.byType[d.goType] = d
	}
	r.byName[k] = d
	r.derived.Clear()
	return d, nil
}

// MustRegister is like [Registry.Register], but panics if d cannot
// be registered.
func (r *Registry) MustRegister(d *Descriptor) *Descriptor {
	ret, err := r.Register(d)
	if err != nil {
		panic(err)
	}
	return ret
}

// equivalent reports whether a and b describe the same type.
func equivalent(a, b *Descriptor) bool {
	if a == b {
		return true
	}
	ca, _ := Classify(a)
	cb, _ := Classify(b)
	if ca != cb || a.goType != b.goType || a.abstract != b.abstract {
		return false
	}
	switch ca {
	case CategoryEnum:
		return slices.EqualFunc(a.members, b.members, func(x, y EnumMember) bool {
			return x.Name == y.Name
		})
	case CategoryRegister:
		return slices.EqualFunc(a.params, b.params, func(x, y Field) bool {
			return x.Name == y.Name && x.Optional == y.Optional &&
				x.GoType == y.GoType && sameType(x.Type, y.Type)
		})
	}
	return true
}

// sameType reports whether a and b are the same type. Lists and maps
// are compared by element type.
func sameType(a, b *Descriptor) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.container == notContainer || a.container != b.container {
		return false
	}
	return a.goType == b.goType && sameType(a.elem, b.elem)
}

// Lookup returns the type registered as module.name, or nil.
func (r *Registry) Lookup(module, name string) *Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[typeKey{module, name}]
}

// FindName returns the type registered under the simple name, in any
// module. FindName reports false if no module, or more than one
// module, registers that name.
func (r *Registry) FindName(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ret *Descriptor
	for k, d := range r.byName {
		if k.name != name {
			continue
		}
		if ret != nil {
			return nil, false
		}
		ret = d
	}
	return ret, ret != nil
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// All iterates over the registered types, ordered by module then
// name.
func (r *Registry) All() iter.Seq[*Descriptor] {
	r.mu.RLock()
	ds := slices.Collect(maps.Values(r.byName))
	r.mu.RUnlock()
	slices.SortFunc(ds, func(a, b *Descriptor) int {
		return cmp.Or(cmp.Compare(a.module, b.module), cmp.Compare(a.name, b.name))
	})
	return slices.Values(ds)
}

func (r *Registry) byGoType(t reflect.Type) *Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byType[t]
}

var errRecursive = errors.New("recursive type")

// DescriptorFor returns the descriptor for values of Go type t.
//
// Registered types and the Go types of primitives map to their
// descriptors. Pointers map to the descriptor of the pointed-to type,
// slices and arrays to lists, and maps with string keys to maps, if
// their element type has a descriptor.
func (r *Registry) DescriptorFor(t reflect.Type) (*Descriptor, error) {
	return r.descriptorFor(t, nil)
}

func (r *Registry) descriptorFor(t reflect.Type, visiting []reflect.Type) (*Descriptor, error) {
	if t == nil {
		return nil, typeErr(t, "nil type")
	}
	if d := r.byGoType(t); d != nil {
		return d, nil
	}
	if d := typeToPrimitive[t]; d != nil {
		return d, nil
	}
	if t == reflect.TypeFor[*Props]() || t == reflect.TypeFor[Props]() {
		return PropsType, nil
	}
	if d, err := r.derived.Get(t); err == nil {
		return d, nil
	} else if err != errNotFound {
		return nil, err
	}
	if slices.Contains(visiting, t) {
		return nil, typeErr(t, "%w", errRecursive)
	}
	visiting = append(visiting, t)

	var ret *Descriptor
	switch t.Kind() {
	case reflect.Pointer:
		elem, err := r.descriptorFor(t.Elem(), visiting)
		if err != nil {
			return nil, err
		}
		ret = elem
	case reflect.Slice, reflect.Array:
		elem, err := r.descriptorFor(t.Elem(), visiting)
		if err != nil {
			return nil, r.derived.SetErr(t, typeErr(t, "list element: %w", err))
		}
		ret = listOf(elem, t)
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, r.derived.SetErr(t, typeErr(t, "map keys must be strings"))
		}
		elem, err := r.descriptorFor(t.Elem(), visiting)
		if err != nil {
			return nil, r.derived.SetErr(t, typeErr(t, "map value: %w", err))
		}
		ret = mapOf(elem, t)
	default:
		if unsupportedKinds.Has(t.Kind()) {
			return nil, typeErr(t, "%s values have no wire representation", t.Kind())
		}
		return nil, typeErr(t, "type is not registered")
	}
	return r.derived.Set(t, ret), nil
}

// DescriptorOf returns the descriptor for values of type T.
func DescriptorOf[T any](r *Registry) (*Descriptor, error) {
	return r.DescriptorFor(reflect.TypeFor[T]())
}

// FieldType returns the descriptor of f, resolving it from f's Go
// type if needed.
func (r *Registry) FieldType(f Field) (*Descriptor, error) {
	if f.Type != nil {
		return f.Type, nil
	}
	if f.GoType == nil {
		return nil, fmt.Errorf("field %q has neither a descriptor nor a Go type", f.Name)
	}
	return r.DescriptorFor(f.GoType)
}
