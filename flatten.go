package rom

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"

	"go.uber.org/zap"
)

// Flatten returns the wire form of v.
//
// Values are converted by the first matching rule:
//
//   - nil, and nil pointers, slices and maps, flatten to nil.
//   - Remote objects (a *[Handle] or a [Wrapper]) flatten to their
//     object reference. Outside of a transaction (inTx false),
//     flattening an uncommitted remote object fails with
//     [UncommittedReferenceError].
//   - Values of registered enum types flatten to the member's name.
//   - bool, int32, int64, float32, float64 and string values flatten
//     to themselves.
//   - Slices and arrays flatten to a []any of their flattened
//     elements.
//   - Maps with string keys flatten to a *[Props] of their flattened
//     values, in key order.
//   - Props flatten to a copy with flattened values.
//   - Values of registered register types flatten to a *Props of
//     their flattened properties, tagged with [TypeProperty] and
//     [ModuleProperty]. Properties that fail to read are logged and
//     omitted.
//
// Any other value is an error.
func (e *Engine) Flatten(v any, inTx bool) (any, error) {
	f := flattener{e: e, inTx: inTx}
	return f.flatten("", v, 0)
}

// FlattenParams flattens every value of p into a new Props. A nil p
// flattens to nil.
func (e *Engine) FlattenParams(p *Props, inTx bool) (*Props, error) {
	if p == nil {
		return nil, nil
	}
	f := flattener{e: e, inTx: inTx}
	return f.flattenProps("", p, 0)
}

// FlattenPending is like [Engine.Flatten], except that an uncommitted
// remote object may be flattened only if pending reports true for its
// handle.
func (e *Engine) FlattenPending(v any, pending func(*Handle) bool) (any, error) {
	f := flattener{e: e, pending: pending}
	return f.flatten("", v, 0)
}

// FlattenParamsPending is like [Engine.FlattenParams], with the
// uncommitted object rule of [Engine.FlattenPending].
func (e *Engine) FlattenParamsPending(p *Props, pending func(*Handle) bool) (*Props, error) {
	if p == nil {
		return nil, nil
	}
	f := flattener{e: e, pending: pending}
	return f.flattenProps("", p, 0)
}

// FlattenResult returns the wire form of v, a value produced by a
// server-side object. It is like [Engine.Flatten], except that remote
// objects, including values of registered remote class types, are
// flattened to the reference that m assigns them.
func (e *Engine) FlattenResult(v any, m RefMinter) (any, error) {
	f := flattener{e: e, minter: m}
	return f.flatten("", v, 0)
}

// flattener is the state of one flattening traversal.
type flattener struct {
	e      *Engine
	inTx   bool
	minter RefMinter
	// pending, if set, reports which uncommitted handles may be
	// flattened. It takes precedence over inTx.
	pending func(*Handle) bool
}

func (f *flattener) allowUncommitted(h *Handle) bool {
	if f.pending != nil {
		return f.pending(h)
	}
	return f.inTx
}

func (f *flattener) flatten(path string, v any, depth int) (any, error) {
	if err := f.e.checkDepth(path, depth); err != nil {
		return nil, err
	}
	if isNil(v) {
		return nil, nil
	}

	if h, ok := remoteHandle(v); ok {
		if f.minter != nil {
			return f.mint(path, v)
		}
		ref, committed := h.state()
		if !committed && !f.allowUncommitted(h) {
			return nil, UncommittedReferenceError{h.TypeName(), ref}
		}
		return ref, nil
	}

	t := reflect.TypeOf(v)
	d := f.e.reg.byGoType(derefType(t))
	if d != nil {
		switch {
		case d.remote:
			if f.minter != nil {
				return f.mint(path, v)
			}
			return nil, UnsupportedTypeError{path, t.String(), fmt.Errorf("%s value has no remote object handle", d)}
		case d.members != nil:
			return f.flattenEnum(path, d, v)
		}
	}

	switch x := v.(type) {
	case bool, int32, int64, float32, float64, string:
		return x, nil
	case *Props:
		return f.flattenProps(path, x, depth)
	case Props:
		return f.flattenProps(path, &x, depth)
	}

	rv := derefZero(reflect.ValueOf(v))
	if !rv.IsValid() {
		return nil, nil
	}
	if _, ok := typeToPrimitive[rv.Type()]; ok {
		return rv.Interface(), nil
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		ret := make([]any, rv.Len())
		for i := range rv.Len() {
			ev, err := f.flatten(indexPath(path, i), rv.Index(i).Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			ret[i] = ev
		}
		return ret, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, UnsupportedTypeError{path, rv.Type().String(), fmt.Errorf("map keys must be strings")}
		}
		if rv.IsNil() {
			return nil, nil
		}
		keys := rv.MapKeys()
		slices.SortFunc(keys, func(a, b reflect.Value) int {
			return cmp.Compare(a.String(), b.String())
		})
		ret := &Props{}
		for _, k := range keys {
			ev, err := f.flatten(keyPath(path, k.String()), rv.MapIndex(k).Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			ret.Set(k.String(), ev)
		}
		return ret, nil
	}

	if d != nil && !d.abstract && d.container == notContainer {
		return f.flattenRegister(path, d, v, depth)
	}
	if unsupportedKinds.Has(rv.Kind()) {
		return nil, UnsupportedTypeError{path, t.String(), fmt.Errorf("%s values have no wire representation", rv.Kind())}
	}
	return nil, typeErr(t, "type is not registered")
}

func (f *flattener) mint(path string, v any) (any, error) {
	ref, err := f.minter.ObjectRef(v)
	if err != nil {
		if path == "" {
			return nil, fmt.Errorf("minting object reference: %w", err)
		}
		return nil, fmt.Errorf("%s: minting object reference: %w", path, err)
	}
	return ref, nil
}

func (f *flattener) flattenEnum(path string, d *Descriptor, v any) (any, error) {
	x := derefZero(reflect.ValueOf(v)).Interface()
	for _, m := range d.members {
		if m.Value == x {
			return m.Name, nil
		}
	}
	return nil, UnknownEnumValueError{path, fmt.Sprint(x), d.String()}
}

// unsetEnum reports whether v is the zero value of a registered enum
// type that has no member with that value.
func (f *flattener) unsetEnum(v any) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() == reflect.Pointer || !rv.IsZero() {
		return false
	}
	d := f.e.reg.byGoType(rv.Type())
	if d == nil || d.members == nil {
		return false
	}
	x := rv.Interface()
	for _, m := range d.members {
		if m.Value == x {
			return false
		}
	}
	return true
}

func (f *flattener) flattenProps(path string, p *Props, depth int) (*Props, error) {
	ret := &Props{}
	for name, v := range p.All() {
		fv, err := f.flatten(fieldPath(path, name), v, depth+1)
		if err != nil {
			return nil, err
		}
		ret.Set(name, fv)
	}
	return ret, nil
}

func (f *flattener) flattenRegister(path string, d *Descriptor, v any, depth int) (*Props, error) {
	ret := &Props{}
	for _, p := range d.props {
		pv, err := readProperty(p, v)
		if err != nil {
			f.e.log.Warn("omitting unreadable property",
				zap.String("type", d.String()),
				zap.String("property", p.Name),
				zap.Error(err))
			continue
		}
		if p.Optional && f.unsetEnum(pv) {
			ret.Set(p.Name, nil)
			continue
		}
		fv, err := f.flatten(fieldPath(path, p.Name), pv, depth+1)
		if err != nil {
			return nil, err
		}
		ret.Set(p.Name, fv)
	}
	ret.Set(TypeProperty, d.name)
	ret.Set(ModuleProperty, d.module)
	return ret, nil
}

// readProperty returns the value of p in v, converting a panicking
// getter into an error.
func readProperty(p Property, v any) (ret any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("property getter panicked: %v", r)
		}
	}()
	return p.Get(v)
}
