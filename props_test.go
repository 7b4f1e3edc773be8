package rom

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestProps(t *testing.T) {
	p := NewProps(Prop{"b", int32(1)}, Prop{"a", "x"}, Prop{"c", nil})
	if got, want := p.Names(), []string{"b", "a", "c"}; !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	p.Set("a", "y")
	if got, want := p.Names(), []string{"b", "a", "c"}; !slices.Equal(got, want) {
		t.Errorf("Names() after replace = %v, want %v", got, want)
	}
	if got := p.Get("a"); got != "y" {
		t.Errorf(`Get("a") = %v, want "y"`, got)
	}
	if v, ok := p.Lookup("c"); !ok || v != nil {
		t.Errorf(`Lookup("c") = %v, %v, want nil, true`, v, ok)
	}
	if p.Has("d") {
		t.Error(`Has("d") = true, want false`)
	}

	p.Delete("b")
	p.Set("d", true)
	if got, want := p.Names(), []string{"a", "c", "d"}; !slices.Equal(got, want) {
		t.Errorf("Names() after delete = %v, want %v", got, want)
	}
	if got := p.Get("d"); got != true {
		t.Errorf(`Get("d") = %v, want true`, got)
	}
	p.Delete("nope")
	if p.Len() != 3 {
		t.Errorf("Len() = %d, want 3", p.Len())
	}

	var n int
	for range p.All() {
		n++
		break
	}
	if n != 1 {
		t.Errorf("All() did not stop early")
	}

	var nilProps *Props
	if nilProps.Len() != 0 || nilProps.Has("a") || nilProps.Get("a") != nil || nilProps.Names() != nil {
		t.Error("nil Props is not empty")
	}
}

func TestPropsEqual(t *testing.T) {
	a := props("x", int32(1), "y", []any{"a", props("k", 1.5)})
	b := props("y", []any{"a", props("k", 1.5)}, "x", int32(1))
	if !a.Equal(b) || !b.Equal(a) {
		t.Errorf("%v and %v are not equal", a, b)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("cmp.Diff reports reordered props differ (-got+want):\n%s", diff)
	}

	notEqual := []*Props{
		props("x", int32(1)),
		props("x", int64(1), "y", []any{"a", props("k", 1.5)}),
		props("x", int32(1), "y", []any{"a", props("k", 2.5)}),
		props("x", int32(1), "y", []any{"a"}),
		props("x", int32(1), "z", []any{"a", props("k", 1.5)}),
	}
	for _, o := range notEqual {
		if a.Equal(o) {
			t.Errorf("%v equals %v", a, o)
		}
	}

	var nilProps *Props
	if !nilProps.Equal(&Props{}) {
		t.Error("nil Props does not equal empty Props")
	}
}

func TestPropsClone(t *testing.T) {
	inner := props("k", "v")
	list := []any{inner}
	p := props("list", list, "inner", inner)
	c := p.Clone()
	if !c.Equal(p) {
		t.Fatalf("Clone() = %v, want %v", c, p)
	}

	inner.Set("k", "changed")
	list[0] = "changed"
	c.Set("new", true)
	want := props("list", []any{props("k", "v")}, "inner", props("k", "v"), "new", true)
	if diff := cmp.Diff(c, want); diff != "" {
		t.Errorf("Clone() shares state with original (-got+want):\n%s", diff)
	}
}

func TestPropsJSON(t *testing.T) {
	p := props(
		"z", int32(1),
		"a", "str",
		"m", props("q", nil, "b", []any{true, 2.5}),
		TypeProperty, "Gain",
	)
	bs, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	want := `{"z":1,"a":"str","m":{"q":null,"b":[true,2.5]},"__type__":"Gain"}`
	if string(bs) != want {
		t.Errorf("json.Marshal wrong output:\n  got: %s\n want: %s", bs, want)
	}

	var got Props
	if err := json.Unmarshal(bs, &got); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if diff := cmp.Diff(&got, p); diff != "" {
		t.Errorf("json round trip wrong (-got+want):\n%s", diff)
	}
	if got, want := got.Names(), []string{"z", "a", "m", TypeProperty}; !slices.Equal(got, want) {
		t.Errorf("json round trip lost order: got %v, want %v", got, want)
	}

	if err := json.Unmarshal([]byte(`[1,2]`), &got); err == nil {
		t.Error("json.Unmarshal of array into Props succeeded")
	}
}

func TestPropsMap(t *testing.T) {
	p := props("a", int32(1), "b", []any{props("c", "d")})
	want := map[string]any{
		"a": int32(1),
		"b": []any{map[string]any{"c": "d"}},
	}
	if diff := cmp.Diff(p.Map(), want); diff != "" {
		t.Errorf("Map() wrong (-got+want):\n%s", diff)
	}
}
