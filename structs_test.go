package rom

import (
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLowerCamel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ID", "id"},
		{"Volume", "volume"},
		{"MaxBitrate", "maxBitrate"},
		{"URLPath", "urlPath"},
		{"HTTP2Server", "http2Server"},
		{"X", "x"},
		{"already", "already"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := lowerCamel(tc.in); got != tc.want {
			t.Errorf("lowerCamel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

type Inner struct {
	Left  string
	Right string `rom:",optional"`
}

type embedsValue struct {
	Inner
	Top string
}

type embedsPointer struct {
	*Inner
	Top    string
	hidden string
}

type embedsHidden struct {
	hiddenInner
	Top string
}

type hiddenInner struct {
	Left string
}

type duplicateNames struct {
	A string `rom:"x"`
	B string `rom:"x"`
}

func TestStructInfo(t *testing.T) {
	type field struct {
		Name     string
		Optional bool
	}
	tests := []struct {
		in      reflect.Type
		want    []field
		wantErr bool
	}{
		{reflect.TypeFor[Gain](), []field{{"id", false}, {"volume", false}}, false},
		{reflect.TypeFor[Renamed](), []field{{"uri", false}, {"maxDepth", true}, {"media", true}}, false},
		{reflect.TypeFor[embedsValue](), []field{{"left", false}, {"right", true}, {"top", false}}, false},
		{reflect.TypeFor[embedsPointer](), []field{{"left", false}, {"right", true}, {"top", false}}, false},
		{reflect.TypeFor[embedsHidden](), []field{{"top", false}}, false},
		{reflect.TypeFor[Mix](), []field{
			{"name", false},
			{"gains", false},
			{"levels", false},
			{"kind", false},
			{"state", false},
			{"primary", true},
			{"shape", true},
			{"count", false},
			{"ratio", false},
			{"enabled", false},
		}, false},

		{reflect.TypeFor[duplicateNames](), nil, true},
		{reflect.TypeFor[string](), nil, true},
	}

	for _, tc := range tests {
		info, err := getStructInfo(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("getStructInfo(%s) succeeded, want error:\n%s", tc.in, info)
			}
			continue
		}
		if err != nil {
			t.Errorf("getStructInfo(%s) got err: %v", tc.in, err)
			continue
		}
		var got []field
		for _, f := range info.Fields {
			got = append(got, field{f.Name, f.Optional})
		}
		if diff := cmp.Diff(got, tc.want); diff != "" {
			t.Errorf("getStructInfo(%s) wrong fields (-got+want):\n%s", tc.in, diff)
		}
	}
}

func TestStructFieldNilEmbed(t *testing.T) {
	info, err := getStructInfo(reflect.TypeFor[embedsPointer]())
	if err != nil {
		t.Fatal(err)
	}
	left := info.Fields[0]

	var v embedsPointer
	rv := reflect.ValueOf(&v).Elem()
	if got := left.GetWithZero(rv).String(); got != "" {
		t.Errorf("GetWithZero through nil embed = %q, want zero", got)
	}
	if v.Inner != nil {
		t.Error("GetWithZero allocated the embedded struct")
	}
	left.GetWithAlloc(rv).SetString("x")
	if v.Inner == nil || v.Left != "x" {
		t.Errorf("GetWithAlloc did not allocate and set: %+v", v)
	}
}
