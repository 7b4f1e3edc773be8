package rom

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		in      *Descriptor
		want    Category
		wantErr bool
	}{
		{Void, CategoryVoid, false},
		{Bool, CategoryBool, false},
		{Int32, CategoryInt32, false},
		{Int64, CategoryInt64, false},
		{Float32, CategoryFloat32, false},
		{Float64, CategoryFloat64, false},
		{String, CategoryString, false},
		{PropsType, CategoryRegister, false},
		{mediaTypeDesc, CategoryEnum, false},
		{Enum("test", "Empty"), CategoryEnum, false},
		{gainDesc, CategoryRegister, false},
		{shapeDesc, CategoryRegister, false},
		{Register("test", "Dyn", nil, nil), CategoryRegister, false},
		{endpointDesc, CategoryRemoteClass, false},
		{RemoteClass("test", "Dyn"), CategoryRemoteClass, false},
		{ListOf(Int32), CategoryList, false},
		{ListOf(ListOf(gainDesc)), CategoryList, false},
		{ListOf(endpointDesc), CategoryList, false},
		{MapOf(String), CategoryMap, false},
		{MapOf(ListOf(mediaTypeDesc)), CategoryMap, false},

		// A lookalike of a primitive is not a primitive. With a
		// name, it's a register.
		{&Descriptor{name: "int"}, CategoryRegister, false},

		{nil, 0, true},
		{&Descriptor{}, 0, true},
		{ListOf(nil), 0, true},
		{ListOf(&Descriptor{}), 0, true},
		{MapOf(ListOf(nil)), 0, true},
	}

	for _, tc := range tests {
		got, err := Classify(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Classify(%s) = %s, want error", tc.in, got)
			} else if !errors.As(err, new(UnknownTypeError)) {
				t.Errorf("Classify(%s) returned %T, want UnknownTypeError", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Classify(%s) got err: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Classify(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestWireShapeOf(t *testing.T) {
	tests := []struct {
		in   *Descriptor
		want string
	}{
		{Void, "void"},
		{Bool, "boolean"},
		{Int32, "int"},
		{Int64, "int64"},
		{Float32, "float"},
		{Float64, "double"},
		{String, "String"},
		{mediaTypeDesc, "String"},
		{gainDesc, "Props"},
		{PropsType, "Props"},
		{MapOf(gainDesc), "Props"},
		{endpointDesc, "String"},
		{ListOf(gainDesc), "Props[]"},
		{ListOf(ListOf(mediaTypeDesc)), "String[][]"},
		{ListOf(MapOf(Int32)), "Props[]"},
		{ListOf(endpointDesc), "String[]"},
	}

	for _, tc := range tests {
		got, err := WireShapeOf(tc.in)
		if err != nil {
			t.Errorf("WireShapeOf(%s) got err: %v", tc.in, err)
			continue
		}
		if got.String() != tc.want {
			t.Errorf("WireShapeOf(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}

	if got, err := WireShapeOf(ListOf(nil)); err == nil {
		t.Errorf("WireShapeOf(list of nil) = %s, want error", got)
	}
	// Primitive shapes are the singletons, not lookalikes.
	if got, _ := WireShapeOf(ListOf(Int32)); got.Elem() != Int32 {
		t.Errorf("WireShapeOf(int[]).Elem() = %p, want Int32 (%p)", got.Elem(), Int32)
	}
}

func TestCategoryString(t *testing.T) {
	for c := CategoryVoid; c <= CategoryRemoteClass; c++ {
		if got := c.String(); got == "" || got[0] == 'C' {
			t.Errorf("Category(%d).String() = %q, want a name", uint8(c), got)
		}
	}
	if got, want := Category(200).String(), "Category(200)"; got != want {
		t.Errorf("Category(200).String() = %q, want %q", got, want)
	}
	if !CategoryString.IsPrimitive() || CategoryEnum.IsPrimitive() {
		t.Error("IsPrimitive boundary is wrong")
	}
}
