package rom

import (
	"fmt"
	"reflect"
)

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func derefZero(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// isNil reports whether v is nil, or a typed nil pointer, slice, map
// or interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// addrOf returns a pointer to a copy of rv, if t is an interface that
// *T implements but T does not.
func addrOf(rv reflect.Value, t reflect.Type) (reflect.Value, bool) {
	if t.Kind() != reflect.Interface || rv.Type().Implements(t) || !reflect.PointerTo(rv.Type()).Implements(t) {
		return reflect.Value{}, false
	}
	p := reflect.New(rv.Type())
	p.Elem().Set(rv)
	return p, true
}

// setValue stores v into the settable dst. A nil v stores the zero
// value. v is stored directly if assignable, or through a newly
// allocated pointer if dst is a pointer to v's type, or an interface
// implemented only by the pointer. If v is a pointer and dst wants
// the pointed-to value, the value is copied.
func setValue(dst reflect.Value, v any) error {
	if v == nil {
		dst.SetZero()
		return nil
	}
	rv := reflect.ValueOf(v)
	t := dst.Type()
	switch {
	case rv.Type().AssignableTo(t):
		dst.Set(rv)
	case t.Kind() == reflect.Interface && reflect.PointerTo(rv.Type()).Implements(t):
		p, _ := addrOf(rv, t)
		dst.Set(p)
	case t.Kind() == reflect.Pointer && rv.Type().AssignableTo(t.Elem()):
		p := reflect.New(t.Elem())
		p.Elem().Set(rv)
		dst.Set(p)
	case rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Type().Elem().AssignableTo(t):
		dst.Set(rv.Elem())
	case rv.Kind() == reflect.Slice && t.Kind() == reflect.Slice:
		s := reflect.MakeSlice(t, rv.Len(), rv.Len())
		for i := range rv.Len() {
			if err := setValue(s.Index(i), rv.Index(i).Interface()); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
		dst.Set(s)
	case rv.Kind() == reflect.Map && t.Kind() == reflect.Map && t.Key().Kind() == reflect.String:
		m := reflect.MakeMapWithSize(t, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			ev := reflect.New(t.Elem()).Elem()
			if err := setValue(ev, iter.Value().Interface()); err != nil {
				return fmt.Errorf("key %v: %w", iter.Key(), err)
			}
			m.SetMapIndex(iter.Key().Convert(t.Key()), ev)
		}
		dst.Set(m)
	default:
		return fmt.Errorf("cannot assign %T to %s", v, t)
	}
	return nil
}
