// Package tree holds the comparable value shape both package files decode
// into: nil, bool, float64, string, []Value and *Map.
package tree

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/mitchellh/copystructure"
)

// Value is one node of a value tree
type Value = any

// Map is a string-keyed map that remembers insertion order.
// Equality ignores order; serialization follows it.
type Map struct {
	keys []string
	vals map[string]Value
}

func init() {
	copystructure.Copiers[reflect.TypeOf(Map{})] = copyMap
}

// NewMap creates an empty ordered map
func NewMap() *Map {
	return &Map{vals: make(map[string]Value)}
}

// MapOf builds a map from alternating key, value arguments
func MapOf(kv ...any) *Map {
	m := NewMap()
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i].(string), Normalize(kv[i+1]))
	}
	return m
}

// Len returns the number of keys
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Get returns the value stored under key
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Set stores value under key; new keys are appended
func (m *Map) Set(key string, value Value) {
	if m.vals == nil {
		m.vals = make(map[string]Value)
	}
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = value
}

// Delete removes key and reports whether it was present
func (m *Map) Delete(key string) bool {
	if m == nil {
		return false
	}
	if _, ok := m.vals[key]; !ok {
		return false
	}
	delete(m.vals, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

func copyMap(v any) (any, error) {
	src := v.(Map)
	dst := Map{
		keys: append([]string(nil), src.keys...),
		vals: make(map[string]Value, len(src.vals)),
	}
	for k, val := range src.vals {
		if val == nil {
			dst.vals[k] = nil
			continue
		}
		c, err := copystructure.Copy(val)
		if err != nil {
			return nil, fmt.Errorf("copy key %q: %w", k, err)
		}
		dst.vals[k] = c
	}
	return dst, nil
}

// Clone returns a deep copy of v
func Clone(v Value) Value {
	if v == nil {
		return nil
	}
	return copystructure.Must(copystructure.Copy(v))
}

// Equal reports structural equality of two normalized trees.
// Map key order is ignored; scalars compare by type and value.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []Value:
		bv, ok := b.([]Value)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case *Map:
		bv, ok := b.(*Map)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for _, k := range av.keys {
			other, ok := bv.Get(k)
			if !ok || !Equal(av.vals[k], other) {
				return false
			}
		}
		return true
	}
	return false
}

// IsContainer reports whether v is a map or a sequence
func IsContainer(v Value) bool {
	switch v.(type) {
	case *Map, []Value:
		return true
	}
	return false
}

// Normalize converts plain Go values (ints, map[string]any, nested
// slices) into the tree shape. Unordered maps get sorted keys.
func Normalize(v any) Value {
	switch x := v.(type) {
	case nil, bool, float64, string, *Map:
		return x
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case []byte:
		return string(x)
	case []Value:
		out := make([]Value, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	case []string:
		out := make([]Value, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			m.Set(k, Normalize(x[k]))
		}
		return m
	case map[any]any:
		keys := make([]string, 0, len(x))
		byKey := make(map[string]any, len(x))
		for k, val := range x {
			ks := fmt.Sprint(k)
			keys = append(keys, ks)
			byKey[ks] = val
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			m.Set(k, Normalize(byKey[k]))
		}
		return m
	}
	return fmt.Sprint(v)
}

// Path addresses a node: string elements select map keys, int elements
// select sequence indexes.
type Path []any

// Append returns a new path with elem added
func (p Path) Append(elem any) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, elem)
}

// String renders the path as dotted keys with bracketed indexes
func (p Path) String() string {
	if len(p) == 0 {
		return "(root)"
	}
	var sb strings.Builder
	for i, e := range p {
		switch x := e.(type) {
		case int:
			sb.WriteString("[" + strconv.Itoa(x) + "]")
		default:
			if i > 0 {
				sb.WriteByte('.')
			}
			sb.WriteString(fmt.Sprint(x))
		}
	}
	return sb.String()
}
