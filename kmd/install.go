package kmd

import (
	"errors"
	"fmt"
	"slices"

	"github.com/danderson/rom"
)

// TypeRef returns the descriptor for the type reference ref, resolving
// names declared in m through reg.
func (m *Module) TypeRef(ref string, reg *rom.Registry) (*rom.Descriptor, error) {
	return m.resolve(ref, func(name string) *rom.Descriptor {
		return reg.Lookup(m.Name, name)
	})
}

func (m *Module) resolve(ref string, named func(string) *rom.Descriptor) (*rom.Descriptor, error) {
	base, suffixes := splitTypeRef(ref)
	d := rom.PrimitiveNamed(base)
	if d == nil {
		d = named(base)
	}
	if d == nil {
		return nil, fmt.Errorf("unknown type %q in module %s", base, m.Name)
	}
	for _, s := range suffixes {
		if s == "[]" {
			d = rom.ListOf(d)
		} else {
			d = rom.MapOf(d)
		}
	}
	return d, nil
}

// Install registers the types declared in m in reg, as descriptors
// that are not bound to Go types. Enum values unflatten to their
// name, registers to a tagged *[rom.Props] of their properties, and
// remote objects to their handle.
//
// Installing a module twice is a no-op. If a type conflicts with one
// already in reg, Install reports the conflict after registering the
// remaining types.
func (m *Module) Install(reg *rom.Registry) error {
	if err := m.Validate(); err != nil {
		return err
	}

	var errs []error
	installed := map[string]*rom.Descriptor{}
	install := func(d *rom.Descriptor) {
		got, err := reg.Register(d)
		if err != nil {
			errs = append(errs, err)
			return
		}
		installed[d.Name()] = got
	}

	for _, rc := range m.RemoteClasses {
		install(rom.RemoteClass(m.Name, rc.Name))
	}
	for _, ct := range m.ComplexTypes {
		if ct.TypeFormat == FormatEnum {
			install(rom.Enum(m.Name, ct.Name, ct.Values...))
		}
	}

	named := func(name string) *rom.Descriptor { return installed[name] }
	order, err := m.registerOrder()
	if err != nil {
		return err
	}
	for _, ct := range order {
		if ct.Abstract {
			install(rom.Abstract(m.Name, ct.Name))
			continue
		}
		var params []rom.Field
		for _, p := range m.AllProperties(ct) {
			t, err := m.resolve(p.Type, named)
			if err != nil {
				errs = append(errs, fmt.Errorf("register %s: property %q: %w", ct.Name, p.Name, err))
				continue
			}
			params = append(params, rom.Field{Name: p.Name, Type: t, Optional: p.Optional})
		}
		install(rom.Register(m.Name, ct.Name, params, propsConstructor(m.Name, ct.Name, params)))
	}

	if len(errs) > 0 {
		return fmt.Errorf("installing module %s: %w", m.Name, errors.Join(errs...))
	}
	return nil
}

// propsConstructor returns a constructor that builds a tagged Props
// from the given parameters. Absent optional parameters are omitted.
func propsConstructor(module, name string, params []rom.Field) rom.ConstructFunc {
	return func(args []any) (any, error) {
		ret := rom.NewProps()
		for i, f := range params {
			if args[i] != nil {
				ret.Set(f.Name, args[i])
			}
		}
		ret.Set(rom.TypeProperty, name)
		ret.Set(rom.ModuleProperty, module)
		return ret, nil
	}
}

// Check reports every way in which the types in reg differ from the
// types declared in m: missing types, types of the wrong category,
// enums with different members, and registers with different
// abstractness or constructor parameters.
func (m *Module) Check(reg *rom.Registry) error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}
	lookup := func(name string, want rom.Category) *rom.Descriptor {
		d := reg.Lookup(m.Name, name)
		if d == nil {
			bad("%s.%s: not registered", m.Name, name)
			return nil
		}
		if c, _ := rom.Classify(d); c != want {
			bad("%s: registered as %s, want %s", d, c, want)
			return nil
		}
		return d
	}

	for _, rc := range m.RemoteClasses {
		lookup(rc.Name, rom.CategoryRemoteClass)
	}
	for _, ct := range m.ComplexTypes {
		switch ct.TypeFormat {
		case FormatEnum:
			d := lookup(ct.Name, rom.CategoryEnum)
			if d == nil {
				continue
			}
			var got []string
			for _, mem := range d.Members() {
				got = append(got, mem.Name)
			}
			want := slices.Clone(ct.Values)
			slices.Sort(got)
			slices.Sort(want)
			if !slices.Equal(got, want) {
				bad("%s: members %q, want %q", d, got, want)
			}
		case FormatRegister:
			d := lookup(ct.Name, rom.CategoryRegister)
			if d == nil {
				continue
			}
			if d.IsAbstract() != ct.Abstract {
				bad("%s: abstract is %v, want %v", d, d.IsAbstract(), ct.Abstract)
				continue
			}
			if ct.Abstract {
				continue
			}
			errs = append(errs, m.checkParams(reg, d, &ct)...)
		default:
			bad("type %s: unknown type format %q", ct.Name, ct.TypeFormat)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("checking module %s: %w", m.Name, errors.Join(errs...))
	}
	return nil
}

func (m *Module) checkParams(reg *rom.Registry, d *rom.Descriptor, ct *ComplexType) []error {
	var errs []error
	params := map[string]rom.Field{}
	for _, f := range d.Params() {
		params[f.Name] = f
	}
	for _, p := range m.AllProperties(ct) {
		f, ok := params[p.Name]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: missing property %q", d, p.Name))
			continue
		}
		delete(params, p.Name)
		if f.Optional != p.Optional {
			errs = append(errs, fmt.Errorf("%s: property %q optional is %v, want %v", d, p.Name, f.Optional, p.Optional))
		}
		got, err := reg.FieldType(f)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: property %q: %w", d, p.Name, err))
			continue
		}
		want, err := m.TypeRef(p.Type, reg)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: property %q: %w", d, p.Name, err))
			continue
		}
		if !sameShape(got, want) {
			errs = append(errs, fmt.Errorf("%s: property %q has type %s, want %s", d, p.Name, got, want))
		}
	}
	extra := make([]string, 0, len(params))
	for name := range params {
		extra = append(extra, name)
	}
	slices.Sort(extra)
	for _, name := range extra {
		errs = append(errs, fmt.Errorf("%s: undeclared property %q", d, name))
	}
	return errs
}

// sameShape reports whether a and b describe the same wire type.
func sameShape(a, b *rom.Descriptor) bool {
	ca, err := rom.Classify(a)
	if err != nil {
		return false
	}
	cb, err := rom.Classify(b)
	if err != nil || ca != cb {
		return false
	}
	switch {
	case ca.IsPrimitive():
		return a == b
	case ca == rom.CategoryList, ca == rom.CategoryMap:
		return sameShape(a.Elem(), b.Elem())
	}
	return a.Module() == b.Module() && a.Name() == b.Name()
}
