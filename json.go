package rom

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

// EncodeJSON returns the JSON encoding of the wire value v. Props
// members are written in insertion order.
func EncodeJSON(v any) ([]byte, error) {
	if !IsWire(v) {
		return nil, fmt.Errorf("cannot encode %s as JSON", wireTypeName(v))
	}
	return json.Marshal(v)
}

// DecodeJSON decodes JSON data into a wire value. Objects decode to
// *Props in member order, arrays to []any. Integral numbers decode to
// int32 if they fit, int64 otherwise. Other numbers decode to float64.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeJSONValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

func decodeJSONValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch x := tok.(type) {
	case json.Delim:
		switch x {
		case '{':
			ret := &Props{}
			for dec.More() {
				k, err := dec.Token()
				if err != nil {
					return nil, err
				}
				name, ok := k.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected JSON object key %v", k)
				}
				if ret.Has(name) {
					return nil, fmt.Errorf("duplicate JSON object key %q", name)
				}
				v, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				ret.Set(name, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return ret, nil
		case '[':
			ret := []any{}
			for dec.More() {
				v, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				ret = append(ret, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return ret, nil
		default:
			return nil, fmt.Errorf("unexpected JSON delimiter %v", x)
		}
	case json.Number:
		return jsonNumber(x)
	default:
		// nil, bool, string
		return x, nil
	}
}

func jsonNumber(n json.Number) (any, error) {
	if i, err := n.Int64(); err == nil {
		if i >= math.MinInt32 && i <= math.MaxInt32 {
			return int32(i), nil
		}
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid JSON number %q: %w", n, err)
	}
	return f, nil
}
