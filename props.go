package rom

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"reflect"
	"slices"
	"strings"
)

// Reserved property names of a flattened register value.
const (
	// TypeProperty carries the simple name of the register's concrete
	// type.
	TypeProperty = "__type__"
	// ModuleProperty carries the name of the module that owns the
	// register's concrete type.
	ModuleProperty = "__module__"
)

// A Prop is one named value of a [Props].
type Prop struct {
	Name  string
	Value any
}

// Props is an ordered set of uniquely named wire values. It is the
// wire form of register values and maps.
//
// The zero value is an empty Props ready to use. Insertion order is
// preserved for reproducible output, but is not significant:
// [Props.Equal] ignores it.
type Props struct {
	entries []Prop
	idx     map[string]int
}

// NewProps returns a Props holding props, in order. Later props
// replace earlier props with the same name.
func NewProps(props ...Prop) *Props {
	ret := &Props{}
	for _, p := range props {
		ret.Set(p.Name, p.Value)
	}
	return ret
}

// Set sets the value of the named property. An existing property is
// replaced in place, otherwise the property is appended.
func (p *Props) Set(name string, value any) {
	if i, ok := p.idx[name]; ok {
		p.entries[i].Value = value
		return
	}
	if p.idx == nil {
		p.idx = map[string]int{}
	}
	p.idx[name] = len(p.entries)
	p.entries = append(p.entries, Prop{name, value})
}

// Get returns the value of the named property, or nil if the
// property is absent.
func (p *Props) Get(name string) any {
	v, _ := p.Lookup(name)
	return v
}

// Lookup returns the value of the named property, and whether it is
// present.
func (p *Props) Lookup(name string) (any, bool) {
	if p == nil {
		return nil, false
	}
	i, ok := p.idx[name]
	if !ok {
		return nil, false
	}
	return p.entries[i].Value, true
}

// Has reports whether the named property is present.
func (p *Props) Has(name string) bool {
	_, ok := p.Lookup(name)
	return ok
}

// Delete removes the named property, if present.
func (p *Props) Delete(name string) {
	if p == nil {
		return
	}
	i, ok := p.idx[name]
	if !ok {
		return
	}
	p.entries = slices.Delete(p.entries, i, i+1)
	delete(p.idx, name)
	for j := i; j < len(p.entries); j++ {
		p.idx[p.entries[j].Name] = j
	}
}

// Len returns the number of properties.
func (p *Props) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// Names returns the property names in insertion order.
func (p *Props) Names() []string {
	if p == nil {
		return nil
	}
	ret := make([]string, 0, len(p.entries))
	for _, e := range p.entries {
		ret = append(ret, e.Name)
	}
	return ret
}

// All iterates over the properties in insertion order.
func (p *Props) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if p == nil {
			return
		}
		for _, e := range p.entries {
			if !yield(e.Name, e.Value) {
				return
			}
		}
	}
}

// Clone returns a deep copy of p.
func (p *Props) Clone() *Props {
	if p == nil {
		return nil
	}
	ret := &Props{
		entries: make([]Prop, len(p.entries)),
		idx:     make(map[string]int, len(p.idx)),
	}
	for i, e := range p.entries {
		ret.entries[i] = Prop{e.Name, cloneWire(e.Value)}
		ret.idx[e.Name] = i
	}
	return ret
}

func cloneWire(v any) any {
	switch x := v.(type) {
	case *Props:
		return x.Clone()
	case []any:
		ret := make([]any, len(x))
		for i, e := range x {
			ret[i] = cloneWire(e)
		}
		return ret
	default:
		return v
	}
}

// Equal reports whether p and o hold the same properties with equal
// values, regardless of order. A nil Props equals an empty one.
func (p *Props) Equal(o *Props) bool {
	if p.Len() != o.Len() {
		return false
	}
	for name, v := range p.All() {
		ov, ok := o.Lookup(name)
		if !ok || !wireEqual(v, ov) {
			return false
		}
	}
	return true
}

func wireEqual(a, b any) bool {
	switch x := a.(type) {
	case *Props:
		y, ok := b.(*Props)
		return ok && x.Equal(y)
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !wireEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

// Map returns the properties as a map, converting nested Props
// recursively. Map is intended for display and tests, since it loses
// property order.
func (p *Props) Map() map[string]any {
	if p == nil {
		return nil
	}
	ret := make(map[string]any, len(p.entries))
	for _, e := range p.entries {
		ret[e.Name] = plainWire(e.Value)
	}
	return ret
}

func plainWire(v any) any {
	switch x := v.(type) {
	case *Props:
		return x.Map()
	case []any:
		ret := make([]any, len(x))
		for i, e := range x {
			ret[i] = plainWire(e)
		}
		return ret
	default:
		return v
	}
}

func (p *Props) String() string {
	if p == nil {
		return "<nil>"
	}
	var ret strings.Builder
	ret.WriteByte('{')
	for i, e := range p.entries {
		if i > 0 {
			ret.WriteString(", ")
		}
		if s, ok := e.Value.(string); ok {
			fmt.Fprintf(&ret, "%s: %q", e.Name, s)
		} else {
			fmt.Fprintf(&ret, "%s: %v", e.Name, e.Value)
		}
	}
	ret.WriteByte('}')
	return ret.String()
}

// MarshalJSON encodes p as a JSON object, with members in insertion
// order.
func (p *Props) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range p.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", e.Name, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into p, preserving member
// order. Nested values are decoded as wire values, see [DecodeJSON].
func (p *Props) UnmarshalJSON(bs []byte) error {
	v, err := DecodeJSON(bs)
	if err != nil {
		return err
	}
	q, ok := v.(*Props)
	if !ok {
		return fmt.Errorf("cannot unmarshal JSON %s into Props", wireTypeName(v))
	}
	*p = *q
	return nil
}
