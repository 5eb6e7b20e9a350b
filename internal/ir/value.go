package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface for native property values pushed to the
// graphics engine. Only Null, String, Int, Float, Bool, List and Map
// implement it.
type Value interface {
	irValue()
}

// Null is the explicit null value.
type Null struct{}

func (Null) irValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a string value.
type String string

func (String) irValue() {}

// Int is an integer value. Enumerations (slice axis, blend mode) use Int.
type Int int64

func (Int) irValue() {}

// Float is a finite floating point value. NaN and infinities are rejected
// at serialization.
type Float float64

func (Float) irValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) irValue() {}

// List is an ordered list of values.
type List []Value

func (List) irValue() {}

// Map is a string-keyed map of values. Use SortedKeys for deterministic
// iteration.
type Map map[string]Value

func (Map) irValue() {}

// Floats builds a List of Float values.
func Floats(xs ...float64) List {
	out := make(List, len(xs))
	for i, x := range xs {
		out[i] = Float(x)
	}
	return out
}

// Vec3 builds a three element List from a fixed array.
func Vec3(v [3]float64) List {
	return Floats(v[0], v[1], v[2])
}

// Pair is a key/value pair for Map construction.
type Pair struct {
	Key   string
	Value Value
}

// P is shorthand for Pair.
func P(key string, value Value) Pair {
	return Pair{Key: key, Value: value}
}

// NewMap builds a Map from pairs. Later pairs overwrite earlier ones.
func NewMap(pairs ...Pair) Map {
	m := make(Map, len(pairs))
	for _, p := range pairs {
		m[p.Key] = p.Value
	}
	return m
}

// SortedKeys returns keys in UTF-16 code unit order, the order used by
// canonical JSON. Go string comparison orders by UTF-8 bytes, which
// differs for characters outside the BMP.
func (m Map) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	for i := 0; i < len(a16) && i < len(b16); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Equal reports whether two values are structurally equal. Int and Float
// are distinct types: Int(1) does not equal Float(1). A nil Value equals
// only another nil Value.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Null:
		_, ok := b.(Null)
		return ok
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Map:
		bv, ok := b.(Map)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, ok := bv[k]
			if !ok || !Equal(v, other) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON implements json.Marshaler for Map with sorted keys.
// This is not canonical marshaling; use MarshalCanonical for hashing.
func (m Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := MarshalValue(m[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler for List.
func (l List) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := MarshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("list[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalValue marshals a Value to JSON bytes.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Float:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return nil, fmt.Errorf("non-finite float: %v", float64(val))
		}
		return []byte(formatFloat(float64(val))), nil
	case Bool:
		return json.Marshal(bool(val))
	case List:
		return val.MarshalJSON()
	case Map:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// UnmarshalValue decodes JSON into a Value. Numbers written with a
// fraction or exponent become Float, all others Int.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromGo(raw)
}

// FromGo converts decoded JSON, YAML or CUE data into a Value.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case float64:
		return Float(val), nil
	case float32:
		return Float(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			f, err := val.Float64()
			if err != nil {
				return nil, fmt.Errorf("invalid number %s: %w", s, err)
			}
			return Float(f), nil
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return Int(n), nil
	case []any:
		out := make(List, len(val))
		for i, elem := range val {
			e, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = e
		}
		return out, nil
	case []float64:
		return Floats(val...), nil
	case map[string]any:
		out := make(Map, len(val))
		for k, elem := range val {
			e, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			out[k] = e
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
