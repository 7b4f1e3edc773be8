// Package kmd reads module descriptors, which declare the types of a
// remote object module in a language-neutral way.
//
// A module descriptor is a YAML (or JSON) document:
//
//	name: core
//	remoteClasses:
//	  - name: MediaPipeline
//	complexTypes:
//	  - name: MediaType
//	    typeFormat: ENUM
//	    values: [AUDIO, VIDEO, DATA]
//	  - name: Gain
//	    typeFormat: REGISTER
//	    properties:
//	      - name: id
//	        type: String
//	      - name: volume
//	        type: double
//
// Property types are primitive type names (boolean, int, int64,
// float, double, String), names of types declared in the module, or
// lists ("T[]") and string-keyed maps ("T<>") of those.
package kmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/coreos/go-semver/semver"
	"gopkg.in/yaml.v3"

	"github.com/danderson/rom"
)

// Type formats of complex types.
const (
	FormatEnum     = "ENUM"
	FormatRegister = "REGISTER"
)

// Module is a parsed module descriptor.
type Module struct {
	Name          string        `yaml:"name"`
	Version       string        `yaml:"version"`
	RemoteClasses []RemoteClass `yaml:"remoteClasses"`
	ComplexTypes  []ComplexType `yaml:"complexTypes"`
}

// RemoteClass declares a class of server-side objects.
type RemoteClass struct {
	Name     string `yaml:"name"`
	Extends  string `yaml:"extends"`
	Abstract bool   `yaml:"abstract"`
}

// ComplexType declares an enum or a register.
type ComplexType struct {
	Name       string     `yaml:"name"`
	TypeFormat string     `yaml:"typeFormat"` // ENUM or REGISTER
	Extends    string     `yaml:"extends"`
	Abstract   bool       `yaml:"abstract"`
	Values     []string   `yaml:"values"`     // ENUM only
	Properties []Property `yaml:"properties"` // REGISTER only
}

// Property declares a property of a register.
type Property struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Optional bool   `yaml:"optional"`
}

// Parse parses a module descriptor. The result is not validated, see
// [Module.Validate].
func Parse(data []byte) (*Module, error) {
	var m Module
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing module descriptor: %w", err)
	}
	if m.Name == "" {
		return nil, errors.New("module descriptor missing name")
	}
	return &m, nil
}

// Load reads and parses the module descriptor at path.
func Load(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

const kindRemote = "remote class"

// kinds returns the kind of every type declared in m, by name.
func (m *Module) kinds() map[string]string {
	ret := map[string]string{}
	for _, rc := range m.RemoteClasses {
		ret[rc.Name] = kindRemote
	}
	for _, ct := range m.ComplexTypes {
		ret[ct.Name] = ct.TypeFormat
	}
	return ret
}

// ComplexType returns the complex type with the given name, or nil.
func (m *Module) ComplexType(name string) *ComplexType {
	for i := range m.ComplexTypes {
		if m.ComplexTypes[i].Name == name {
			return &m.ComplexTypes[i]
		}
	}
	return nil
}

// RemoteClass returns the remote class with the given name, or nil.
func (m *Module) RemoteClass(name string) *RemoteClass {
	for i := range m.RemoteClasses {
		if m.RemoteClasses[i].Name == name {
			return &m.RemoteClasses[i]
		}
	}
	return nil
}

// AllProperties returns the properties of the register ct, including
// those inherited from the registers it extends, base first.
func (m *Module) AllProperties(ct *ComplexType) []Property {
	var chain []*ComplexType
	seen := map[string]bool{}
	for c := ct; c != nil && !seen[c.Name]; c = m.ComplexType(c.Extends) {
		seen[c.Name] = true
		chain = append(chain, c)
	}
	var ret []Property
	for i := len(chain) - 1; i >= 0; i-- {
		ret = append(ret, chain[i].Properties...)
	}
	return ret
}

// Validate reports every problem in m: missing or duplicate names,
// unknown type formats, unresolvable type references and inheritance,
// and recursive definitions.
func (m *Module) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if m.Name == "" {
		bad("module has no name")
	}
	if m.Version != "" {
		if _, err := semver.NewVersion(m.Version); err != nil {
			bad("version %q: %v", m.Version, err)
		}
	}

	seen := map[string]bool{}
	declare := func(name string) {
		switch {
		case name == "":
			bad("type with no name")
		case rom.PrimitiveNamed(name) != nil || name == "Props":
			bad("type %s: name is reserved", name)
		case seen[name]:
			bad("type %s: declared more than once", name)
		}
		seen[name] = true
	}
	for _, rc := range m.RemoteClasses {
		declare(rc.Name)
	}
	for _, ct := range m.ComplexTypes {
		declare(ct.Name)
	}

	kinds := m.kinds()
	for _, rc := range m.RemoteClasses {
		if rc.Extends != "" && kinds[rc.Extends] != kindRemote {
			bad("remote class %s: extends unknown remote class %q", rc.Name, rc.Extends)
		}
	}
	for _, ct := range m.ComplexTypes {
		switch ct.TypeFormat {
		case FormatEnum:
			if len(ct.Values) == 0 {
				bad("enum %s: no values", ct.Name)
			}
			vals := map[string]bool{}
			for _, v := range ct.Values {
				if v == "" {
					bad("enum %s: empty value", ct.Name)
				} else if vals[v] {
					bad("enum %s: duplicate value %q", ct.Name, v)
				}
				vals[v] = true
			}
			if ct.Extends != "" || len(ct.Properties) > 0 {
				bad("enum %s: enums cannot have properties or extend other types", ct.Name)
			}
		case FormatRegister:
			if ct.Extends != "" && kinds[ct.Extends] != FormatRegister {
				bad("register %s: extends unknown register %q", ct.Name, ct.Extends)
			}
			if len(ct.Values) > 0 {
				bad("register %s: registers cannot have values", ct.Name)
			}
		default:
			bad("type %s: unknown type format %q", ct.Name, ct.TypeFormat)
		}
	}

	for _, ct := range m.ComplexTypes {
		if ct.TypeFormat != FormatRegister {
			continue
		}
		if m.extendsCycle(ct.Name) {
			bad("register %s: inherits from itself", ct.Name)
			continue
		}
		names := map[string]bool{}
		for _, p := range m.AllProperties(&ct) {
			switch {
			case p.Name == "":
				bad("register %s: property with no name", ct.Name)
			case p.Name == rom.TypeProperty || p.Name == rom.ModuleProperty:
				bad("register %s: property name %q is reserved", ct.Name, p.Name)
			case names[p.Name]:
				bad("register %s: duplicate property %q", ct.Name, p.Name)
			}
			names[p.Name] = true
			if err := m.checkTypeRef(p.Type, kinds); err != nil {
				bad("register %s: property %q: %w", ct.Name, p.Name, err)
			}
		}
	}
	for _, rc := range m.RemoteClasses {
		if m.remoteCycle(rc.Name) {
			bad("remote class %s: inherits from itself", rc.Name)
		}
	}

	if len(errs) == 0 {
		if _, err := m.registerOrder(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("module %s: %w", m.Name, errors.Join(errs...))
	}
	return nil
}

func (m *Module) extendsCycle(name string) bool {
	seen := map[string]bool{}
	for ct := m.ComplexType(name); ct != nil; ct = m.ComplexType(ct.Extends) {
		if seen[ct.Name] {
			return true
		}
		seen[ct.Name] = true
	}
	return false
}

func (m *Module) remoteCycle(name string) bool {
	seen := map[string]bool{}
	for rc := m.RemoteClass(name); rc != nil; rc = m.RemoteClass(rc.Extends) {
		if seen[rc.Name] {
			return true
		}
		seen[rc.Name] = true
	}
	return false
}

// splitTypeRef splits a type reference into its base type name and
// its container suffixes, outermost last.
func splitTypeRef(ref string) (base string, suffixes []string) {
	for {
		switch {
		case strings.HasSuffix(ref, "[]"):
			suffixes = append(suffixes, "[]")
			ref = strings.TrimSuffix(ref, "[]")
		case strings.HasSuffix(ref, "<>"):
			suffixes = append(suffixes, "<>")
			ref = strings.TrimSuffix(ref, "<>")
		default:
			// Suffixes were collected outermost first.
			for i, j := 0, len(suffixes)-1; i < j; i, j = i+1, j-1 {
				suffixes[i], suffixes[j] = suffixes[j], suffixes[i]
			}
			return ref, suffixes
		}
	}
}

func (m *Module) checkTypeRef(ref string, kinds map[string]string) error {
	base, _ := splitTypeRef(ref)
	switch {
	case base == "":
		return fmt.Errorf("invalid type %q", ref)
	case base == "void":
		return errors.New("properties cannot be void")
	case rom.PrimitiveNamed(base) != nil:
		return nil
	case kinds[base] != "":
		return nil
	}
	return fmt.Errorf("unknown type %q", base)
}

// registerOrder returns the registers of m in an order where every
// register comes after the registers it extends or has properties of.
func (m *Module) registerOrder() ([]*ComplexType, error) {
	const (
		visiting = 1
		done     = 2
	)
	state := map[string]int{}
	var ret []*ComplexType
	var visit func(ct *ComplexType) error
	visit = func(ct *ComplexType) error {
		switch state[ct.Name] {
		case visiting:
			return fmt.Errorf("register %s: recursive register definitions are not supported", ct.Name)
		case done:
			return nil
		}
		state[ct.Name] = visiting
		deps := []string{ct.Extends}
		for _, p := range ct.Properties {
			base, _ := splitTypeRef(p.Type)
			deps = append(deps, base)
		}
		for _, dep := range deps {
			if d := m.ComplexType(dep); d != nil && d.TypeFormat == FormatRegister {
				if err := visit(d); err != nil {
					return err
				}
			}
		}
		state[ct.Name] = done
		ret = append(ret, ct)
		return nil
	}
	for i := range m.ComplexTypes {
		if ct := &m.ComplexTypes[i]; ct.TypeFormat == FormatRegister {
			if err := visit(ct); err != nil {
				return nil, err
			}
		}
	}
	return ret, nil
}
