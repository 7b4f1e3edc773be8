package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/danderson/rom"
)

type indenter struct {
	w          io.Writer
	prefix     string
	indentNext bool
}

func (i *indenter) v(v any) {
	fmt.Fprintf(i, "%v\n", v)
}

func (i *indenter) s(msg string) {
	io.WriteString(i, msg+"\n")
}

func (i *indenter) f(msg string, args ...any) {
	fmt.Fprintf(i, msg+"\n", args...)
}

func (i *indenter) Write(bs []byte) (int, error) {
	ret := 0
	for len(bs) > 0 {
		if i.indentNext {
			i.indentNext = false
			_, err := io.WriteString(i.w, i.prefix)
			if err != nil {
				return ret, err
			}
		}

		wr := bs
		idx := bytes.IndexByte(bs, '\n')
		if idx >= 0 {
			i.indentNext = true
			wr, bs = bs[:idx+1], bs[idx+1:]
		} else {
			bs = nil
		}

		n, err := i.w.Write(wr)
		ret += n
		if err != nil {
			return ret, err
		}
	}
	return ret, nil
}

func (i *indenter) indent(n int) {
	i.prefix = strings.Repeat("  ", n)
}

// describe writes a summary of the shape of d to out: its category
// and wire shape, and its members or constructor parameters.
func describe(out *indenter, reg *rom.Registry, d *rom.Descriptor) {
	out.indent(0)
	cat, err := rom.Classify(d)
	if err != nil {
		out.f("%s: %v", d, err)
		return
	}
	shape, err := rom.WireShapeOf(d)
	if err != nil {
		out.f("%s (%s): %v", d, cat, err)
		return
	}
	if d.IsAbstract() {
		out.f("%s (abstract %s, wire %s)", d, cat, shape)
	} else {
		out.f("%s (%s, wire %s)", d, cat, shape)
	}

	out.indent(1)
	switch cat {
	case rom.CategoryEnum:
		for _, m := range d.Members() {
			out.v(m.Name)
		}
	case rom.CategoryRegister:
		for _, f := range d.Params() {
			t, err := reg.FieldType(f)
			if err != nil {
				out.f("%s: %v", f.Name, err)
				continue
			}
			if f.Optional {
				out.f("%s %s (optional)", f.Name, t)
			} else {
				out.f("%s %s", f.Name, t)
			}
		}
	}
}

// display returns v with wire containers replaced by plain Go maps
// and slices, and remote objects by their string form, for dumping
// with pretty.
func display(v any) any {
	switch x := v.(type) {
	case *rom.Props:
		ret := make(map[string]any, x.Len())
		for k, e := range x.All() {
			ret[k] = display(e)
		}
		return ret
	case []any:
		ret := make([]any, len(x))
		for i, e := range x {
			ret[i] = display(e)
		}
		return ret
	case *rom.Handle:
		if x != nil {
			return x.String()
		}
	case rom.Wrapper:
		if h := x.RemoteHandle(); h != nil {
			return h.String()
		}
	}
	return v
}

func growTo(s []string, n int) []string {
	for len(s) < n {
		s = append(s, "")
	}
	return s
}
