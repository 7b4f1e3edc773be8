// Package codec encodes wire values to bytes and back.
//
// Two encodings are supported: JSON, which preserves the order of
// [rom.Props] members, and CBOR, which is deterministic and encodes
// Props members in canonical key order.
package codec

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/danderson/rom"
)

// Format is a byte encoding of wire values.
type Format uint8

const (
	JSON Format = iota + 1
	CBOR
)

var formatNames = map[Format]string{
	JSON: "json",
	CBOR: "cbor",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

// ParseFormat returns the format with the given name.
func ParseFormat(name string) (Format, error) {
	for f, s := range formatNames {
		if strings.EqualFold(s, name) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown wire format %q", name)
}

// FormatForPath returns the format of a file, according to its
// extension.
func FormatForPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return 0, fmt.Errorf("cannot determine wire format of %q", path)
	}
	return ParseFormat(ext)
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("creating CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:      cbor.DupMapKeyEnforcedAPF,
		IndefLength:    cbor.IndefLengthAllowed,
		DefaultMapType: reflect.TypeFor[map[string]any](),
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("creating CBOR decoder mode: %v", err))
	}
}

// Encode returns the encoding of the wire value v in format f.
func Encode(f Format, v any) ([]byte, error) {
	if !rom.IsWire(v) {
		return nil, fmt.Errorf("cannot encode %T: not a wire value", v)
	}
	switch f {
	case JSON:
		return rom.EncodeJSON(v)
	case CBOR:
		return encMode.Marshal(toCBOR(v))
	}
	return nil, fmt.Errorf("unknown wire format %s", f)
}

// Decode returns the wire value encoded in data in format f.
func Decode(f Format, data []byte) (any, error) {
	switch f {
	case JSON:
		return rom.DecodeJSON(data)
	case CBOR:
		var v any
		if err := decMode.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return fromCBOR(v)
	}
	return nil, fmt.Errorf("unknown wire format %s", f)
}

// toCBOR returns v with Props replaced by maps.
func toCBOR(v any) any {
	switch x := v.(type) {
	case []any:
		ret := make([]any, len(x))
		for i, e := range x {
			ret[i] = toCBOR(e)
		}
		return ret
	case *rom.Props:
		if x == nil {
			return nil
		}
		ret := make(map[string]any, x.Len())
		for k, e := range x.All() {
			ret[k] = toCBOR(e)
		}
		return ret
	default:
		return v
	}
}

var errNotWire = errors.New("not representable as a wire value")

// fromCBOR converts a decoded CBOR value to a wire value. Integers
// become int32 if they fit, and int64 otherwise. Maps become Props
// with members in key order.
func fromCBOR(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, string, float64:
		return x, nil
	case float32:
		return float64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d: %w", x, errNotWire)
		}
		return narrow(int64(x)), nil
	case int64:
		return narrow(x), nil
	case []any:
		ret := make([]any, len(x))
		for i, e := range x {
			w, err := fromCBOR(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			ret[i] = w
		}
		return ret, nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		ret := rom.NewProps()
		for _, k := range keys {
			w, err := fromCBOR(x[k])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			ret.Set(k, w)
		}
		return ret, nil
	}
	return nil, fmt.Errorf("CBOR %T: %w", v, errNotWire)
}

func narrow(v int64) any {
	if v >= math.MinInt32 && v <= math.MaxInt32 {
		return int32(v)
	}
	return v
}
