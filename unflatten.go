package rom

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/creachadair/mds/value"
)

// Unflatten returns the in-memory value of type target represented by
// wire. path names the value in error diagnostics, and may be empty.
// Remote object references are resolved with r, which may be nil if
// the value contains no remote objects.
//
// Primitives are type-checked, and numeric wire values are converted
// to the target's width if that can be done without loss. Enums are
// matched by member name. Registers are constructed from a *[Props],
// using the type named by the Props' type tag in preference to target
// if the tag names a registered type. Remote objects are resolved by
// reference, preferring the object's wrapper. Lists and maps are
// unflattened element by element, into a typed slice or map if target
// has a Go type.
//
// A nil wire value unflattens to nil, or to an empty list or map.
func (e *Engine) Unflatten(path string, wire any, target *Descriptor, r Resolver) (any, error) {
	u := unflattener{e: e, r: r}
	return u.unflatten(path, wire, target, 0)
}

// UnflattenMany unflattens the named values of p, each into the type
// at the same index of targets. Absent values unflatten as nil. A nil
// p unflattens to nil.
func (e *Engine) UnflattenMany(names []string, targets []*Descriptor, p *Props, r Resolver) ([]any, error) {
	if len(names) != len(targets) {
		return nil, fmt.Errorf("got %d parameter names but %d types", len(names), len(targets))
	}
	if p == nil {
		return nil, nil
	}
	u := unflattener{e: e, r: r}
	ret := make([]any, len(names))
	for i, name := range names {
		v, err := u.unflatten(name, p.Get(name), targets[i], 0)
		if err != nil {
			return nil, err
		}
		ret[i] = v
	}
	return ret, nil
}

// UnflattenAs unflattens wire into a value of type T, using the
// descriptor the engine's registry has for T.
func UnflattenAs[T any](e *Engine, wire any, r Resolver) (T, error) {
	var ret T
	d, err := DescriptorOf[T](e.reg)
	if err != nil {
		return ret, err
	}
	v, err := e.Unflatten("", wire, d, r)
	if err != nil {
		return ret, err
	}
	if v == nil {
		return ret, nil
	}
	if t, ok := v.(T); ok {
		return t, nil
	}
	if err := setValue(reflect.ValueOf(&ret).Elem(), v); err != nil {
		return ret, ProtocolTypeMismatchError{"", wire, d.String()}
	}
	return ret, nil
}

// unflattener is the state of one unflattening traversal.
type unflattener struct {
	e *Engine
	r Resolver
}

func (u *unflattener) unflatten(path string, wire any, d *Descriptor, depth int) (any, error) {
	if err := u.e.checkDepth(path, depth); err != nil {
		return nil, err
	}
	c, err := Classify(d)
	if err != nil {
		return nil, UnsupportedTypeError{path, d.String(), err}
	}
	mismatch := func() error {
		return ProtocolTypeMismatchError{path, wire, d.String()}
	}

	if wire == nil {
		switch c {
		case CategoryList:
			return u.emptyList(d), nil
		case CategoryMap:
			return u.emptyMap(d), nil
		}
		return nil, nil
	}

	var (
		ret any
		ok  bool
	)
	switch c {
	case CategoryVoid:
		return nil, mismatch()
	case CategoryBool:
		ret, ok = wire.(bool)
	case CategoryInt32:
		ret, ok = toInt32(wire)
	case CategoryInt64:
		ret, ok = toInt64(wire)
	case CategoryFloat32:
		ret, ok = toFloat32(wire)
	case CategoryFloat64:
		ret, ok = toFloat64(wire)
	case CategoryString:
		ret, ok = wire.(string)
	case CategoryEnum:
		s, isStr := wire.(string)
		if !isStr {
			return nil, mismatch()
		}
		for _, m := range d.members {
			if m.Name == s {
				return m.Value, nil
			}
		}
		return nil, UnknownEnumValueError{path, s, d.String()}
	case CategoryRegister:
		p, isProps := wire.(*Props)
		if !isProps {
			return nil, mismatch()
		}
		if d == PropsType {
			return p, nil
		}
		return u.construct(path, p, d, depth)
	case CategoryRemoteClass:
		switch x := wire.(type) {
		case string:
			return u.resolve(path, x, d)
		case *Props:
			return u.construct(path, x, d, depth)
		}
		return nil, mismatch()
	case CategoryList:
		l, isList := wire.([]any)
		if !isList {
			return nil, mismatch()
		}
		return u.unflattenList(path, l, d, depth)
	case CategoryMap:
		p, isProps := wire.(*Props)
		if !isProps {
			return nil, mismatch()
		}
		return u.unflattenMap(path, p, d, depth)
	default:
		return nil, UnsupportedTypeError{Path: path, Type: d.String()}
	}
	if !ok {
		return nil, mismatch()
	}
	return ret, nil
}

// taggedType returns the registered type named by the type tag of p.
func (u *unflattener) taggedType(p *Props) *Descriptor {
	module, name := stringProp(p, ModuleProperty), stringProp(p, TypeProperty)
	n, ok := name.GetOK()
	if !ok {
		return nil
	}
	if m, ok := module.GetOK(); ok {
		return u.e.reg.Lookup(m, n)
	}
	d, _ := u.e.reg.FindName(n)
	return d
}

func stringProp(p *Props, name string) value.Maybe[string] {
	if s, ok := p.Get(name).(string); ok && s != "" {
		return value.Just(s)
	}
	return value.Absent[string]()
}

// compatible reports whether values of the concrete type may be used
// where declared is expected.
func compatible(concrete, declared *Descriptor) bool {
	if declared.remote || declared.goType == nil {
		return true
	}
	if concrete.goType == nil {
		return false
	}
	return concrete.goType.AssignableTo(declared.goType) ||
		reflect.PointerTo(concrete.goType).AssignableTo(declared.goType)
}

// construct builds a register value from p. The type built is the
// one named by p's type tag if registered, or declared otherwise.
func (u *unflattener) construct(path string, p *Props, declared *Descriptor, depth int) (any, error) {
	d := declared
	if tagged := u.taggedType(p); tagged != nil && tagged != declared {
		if c, _ := Classify(tagged); c != CategoryRegister || !compatible(tagged, declared) {
			return nil, ProtocolTypeMismatchError{path, p, declared.String()}
		}
		d = tagged
	}
	switch {
	case d.remote:
		return nil, ConstructionError{path, d.String(), errors.New("remote objects cannot be constructed from properties without a register type tag")}
	case d.abstract:
		return nil, ConstructionError{path, d.String(), errors.New("type is abstract")}
	case d.construct == nil:
		return nil, ConstructionError{path, d.String(), errors.New("type has no constructor")}
	}

	args := make([]any, len(d.params))
	for i, f := range d.params {
		ft, err := u.e.reg.FieldType(f)
		if err != nil {
			return nil, ConstructionError{path, d.String(), fmt.Errorf("parameter %q: %w", f.Name, err)}
		}
		wv, ok := p.Lookup(f.Name)
		if !ok && !f.Optional {
			return nil, ConstructionError{path, d.String(), fmt.Errorf("missing property %q", f.Name)}
		}
		v, err := u.unflatten(fieldPath(path, f.Name), wv, ft, depth+1)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	ret, err := callConstructor(d.construct, args)
	if err != nil {
		return nil, ConstructionError{path, d.String(), err}
	}
	if ret != nil && declared.goType != nil {
		if p, ok := addrOf(reflect.ValueOf(ret), declared.goType); ok {
			return p.Interface(), nil
		}
	}
	return ret, nil
}

// callConstructor calls fn, converting a panic into an error.
func callConstructor(fn ConstructFunc, args []any) (ret any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("constructor panicked: %v", r)
		}
	}()
	return fn(args)
}

// resolve returns the remote object known by ref.
func (u *unflattener) resolve(path, ref string, d *Descriptor) (any, error) {
	if u.r == nil {
		return nil, UnknownObjectReferenceError{path, ref}
	}
	if obj, ok := u.r.Lookup(ref); ok {
		if h, isHandle := obj.(*Handle); isHandle {
			if w := h.Wrapper(); w != nil {
				return w, nil
			}
		}
		return obj, nil
	}
	if m, ok := u.r.(Materializer); ok {
		obj, err := m.GetOrCreate(ref, d)
		if err != nil {
			return nil, fmt.Errorf("%smaterializing %s %q: %w", pathPrefix(path), d, ref, err)
		}
		return obj, nil
	}
	return nil, UnknownObjectReferenceError{path, ref}
}

func (u *unflattener) emptyList(d *Descriptor) any {
	if d.goType == nil {
		return []any{}
	}
	if d.goType.Kind() == reflect.Array {
		return reflect.New(d.goType).Elem().Interface()
	}
	return reflect.MakeSlice(d.goType, 0, 0).Interface()
}

func (u *unflattener) emptyMap(d *Descriptor) any {
	if d.goType == nil {
		return map[string]any{}
	}
	return reflect.MakeMap(d.goType).Interface()
}

func (u *unflattener) unflattenList(path string, l []any, d *Descriptor, depth int) (any, error) {
	if d.goType == nil {
		ret := make([]any, len(l))
		for i, wv := range l {
			v, err := u.unflatten(indexPath(path, i), wv, d.elem, depth+1)
			if err != nil {
				return nil, err
			}
			ret[i] = v
		}
		return ret, nil
	}

	var ret reflect.Value
	if d.goType.Kind() == reflect.Array {
		if d.goType.Len() != len(l) {
			return nil, ProtocolTypeMismatchError{path, l, fmt.Sprintf("%s of length %d", d, d.goType.Len())}
		}
		ret = reflect.New(d.goType).Elem()
	} else {
		ret = reflect.MakeSlice(d.goType, len(l), len(l))
	}
	for i, wv := range l {
		ep := indexPath(path, i)
		v, err := u.unflatten(ep, wv, d.elem, depth+1)
		if err != nil {
			return nil, err
		}
		if err := setValue(ret.Index(i), v); err != nil {
			return nil, ProtocolTypeMismatchError{ep, wv, d.elem.String()}
		}
	}
	return ret.Interface(), nil
}

func (u *unflattener) unflattenMap(path string, p *Props, d *Descriptor, depth int) (any, error) {
	if d.goType == nil {
		ret := make(map[string]any, p.Len())
		for k, wv := range p.All() {
			v, err := u.unflatten(keyPath(path, k), wv, d.elem, depth+1)
			if err != nil {
				return nil, err
			}
			ret[k] = v
		}
		return ret, nil
	}

	ret := reflect.MakeMapWithSize(d.goType, p.Len())
	for k, wv := range p.All() {
		ep := keyPath(path, k)
		v, err := u.unflatten(ep, wv, d.elem, depth+1)
		if err != nil {
			return nil, err
		}
		ev := reflect.New(d.goType.Elem()).Elem()
		if err := setValue(ev, v); err != nil {
			return nil, ProtocolTypeMismatchError{ep, wv, d.elem.String()}
		}
		ret.SetMapIndex(reflect.ValueOf(k).Convert(d.goType.Key()), ev)
	}
	return ret.Interface(), nil
}
