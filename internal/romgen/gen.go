// Package romgen generates Go types for the types declared in a
// module descriptor.
package romgen

import (
	"bytes"
	"errors"
	"fmt"
	"go/format"
	"strings"
	"unicode"

	"github.com/danderson/rom"
	"github.com/danderson/rom/kmd"
)

type generator struct {
	out  bytes.Buffer
	regs bytes.Buffer
	m    *kmd.Module
}

// Module returns Go source for package pkg, declaring a Go type for
// every type of m, and a Register function that adds them to a
// [rom.Registry].
func Module(m *kmd.Module, pkg string) (string, error) {
	if m == nil {
		return "", errors.New("no module provided")
	}
	if err := m.Validate(); err != nil {
		return "", err
	}
	g := generator{m: m}
	if err := g.Module(pkg); err != nil {
		return "", err
	}

	ret, err := format.Source(g.out.Bytes())
	if err != nil {
		return g.out.String(), err
	}
	return string(ret), nil
}

func (g *generator) s(s string) {
	g.out.WriteString(s)
}

func (g *generator) f(msg string, args ...any) {
	fmt.Fprintf(&g.out, msg, args...)
}

func (g *generator) reg(msg string, args ...any) {
	fmt.Fprintf(&g.regs, msg, args...)
}

func (g *generator) Module(pkg string) error {
	g.f(`// Code generated by romgen. DO NOT EDIT.

package %s

import (
	"errors"

	"github.com/danderson/rom"
)

// ModuleName is the name of the %[2]s module.
const ModuleName = %[2]q
`, pkg, g.m.Name)

	for _, rc := range g.m.RemoteClasses {
		g.RemoteClass(rc)
	}
	for _, ct := range g.m.ComplexTypes {
		if ct.TypeFormat == kmd.FormatEnum {
			g.Enum(ct)
		}
	}
	for _, ct := range g.m.ComplexTypes {
		if ct.TypeFormat != kmd.FormatRegister {
			continue
		}
		if err := g.Register(ct); err != nil {
			return err
		}
	}

	g.f(`
// Register adds the types of the %s module to reg.
func Register(reg *rom.Registry) error {
	var errs []error
	register := func(d *rom.Descriptor, err error) {
		if err == nil {
			_, err = reg.Register(d)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
%s
	return errors.Join(errs...)
}
`, g.m.Name, strings.TrimRight(g.regs.String(), "\n"))
	return nil
}

func (g *generator) RemoteClass(rc kmd.RemoteClass) {
	name := publicIdentifier(rc.Name)
	g.f(`
// %[1]s is a wrapper of remote %[2]s.%[3]s objects.
type %[1]s struct{ h *rom.Handle }

// RemoteHandle returns the object's handle.
func (o *%[1]s) RemoteHandle() *rom.Handle { return o.h }
`, name, g.m.Name, rc.Name)
	g.reg("register(rom.NewRemoteClass(ModuleName, %q, func(h *rom.Handle) *%s { return &%[2]s{h} }), nil)\n", rc.Name, name)
}

func (g *generator) Enum(ct kmd.ComplexType) {
	name := publicIdentifier(ct.Name)
	g.f(`
// %[1]s is the enum %[2]s.%[3]s.
type %[1]s string

const (
`, name, g.m.Name, ct.Name)
	consts := make([]string, 0, len(ct.Values))
	for _, v := range ct.Values {
		c := name + valueIdentifier(v)
		consts = append(consts, c)
		g.f("%s %s = %q\n", c, name, v)
	}
	g.s(")\n")
	g.reg("register(rom.NewEnum(ModuleName, %q, %s), nil)\n", ct.Name, strings.Join(consts, ", "))
}

func (g *generator) Register(ct kmd.ComplexType) error {
	name := publicIdentifier(ct.Name)
	if ct.Abstract {
		g.f(`
// %[1]s is implemented by the subtypes of the abstract register %[2]s.%[3]s.
type %[1]s interface {
`, name, g.m.Name, ct.Name)
		if base := g.m.ComplexType(ct.Extends); base != nil && base.Abstract {
			g.f("%s\n", publicIdentifier(base.Name))
		}
		g.f("is%s()\n}\n", name)
		g.reg("register(rom.NewAbstract[%s](ModuleName, %q), nil)\n", name, ct.Name)
		return nil
	}

	g.f(`
// %[1]s is the register %[2]s.%[3]s.
type %[1]s struct {
`, name, g.m.Name, ct.Name)
	for _, p := range g.m.AllProperties(&ct) {
		t, err := g.goType(p.Type, p.Optional)
		if err != nil {
			return fmt.Errorf("register %s: property %q: %w", ct.Name, p.Name, err)
		}
		tag := p.Name
		if p.Optional {
			tag += ",optional"
		}
		g.f("%s %s `rom:%q`\n", publicIdentifier(p.Name), t, tag)
	}
	g.s("}\n")

	for base := g.m.ComplexType(ct.Extends); base != nil; base = g.m.ComplexType(base.Extends) {
		if base.Abstract {
			g.f("\nfunc (%s) is%s() {}\n", name, publicIdentifier(base.Name))
		}
	}
	g.reg("register(rom.NewRegister[%s](ModuleName, %q))\n", name, ct.Name)
	return nil
}

// goType returns the Go type of values of the type reference ref.
func (g *generator) goType(ref string, optional bool) (string, error) {
	if strings.HasSuffix(ref, "[]") {
		elem, err := g.goType(strings.TrimSuffix(ref, "[]"), false)
		if err != nil {
			return "", err
		}
		return "[]" + elem, nil
	}
	if strings.HasSuffix(ref, "<>") {
		elem, err := g.goType(strings.TrimSuffix(ref, "<>"), false)
		if err != nil {
			return "", err
		}
		return "map[string]" + elem, nil
	}

	if d := rom.PrimitiveNamed(ref); d != nil && d != rom.Void {
		return d.GoType().String(), nil
	}
	if g.m.RemoteClass(ref) != nil {
		return "*" + publicIdentifier(ref), nil
	}
	ct := g.m.ComplexType(ref)
	switch {
	case ct == nil:
		return "", fmt.Errorf("unknown type %q", ref)
	case ct.TypeFormat == kmd.FormatRegister && !ct.Abstract && optional:
		return "*" + publicIdentifier(ref), nil
	}
	return publicIdentifier(ref), nil
}

// publicIdentifier returns s as an exported Go identifier.
func publicIdentifier(s string) string {
	if s == "id" {
		return "ID"
	}
	if strings.HasSuffix(s, "Id") {
		s = strings.TrimSuffix(s, "Id") + "ID"
	}
	rs := []rune(s)
	if len(rs) == 0 {
		return "X"
	}
	rs[0] = unicode.ToUpper(rs[0])
	return string(rs)
}

// valueIdentifier returns the enum value v as an identifier suffix.
func valueIdentifier(v string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, v)
}
