// Package sexp implements the length-prefixed S-expression encoding spoken by
// the dune build daemon's RPC socket.
//
// An atom is written as <decimal-length>:<raw-bytes> and a list as '(' followed
// by its encoded children and ')'. Lengths count bytes, not characters.
package sexp

// Value is a decoded S-expression: an Atom, a List, or a *Map.
type Value interface {
	isValue()
}

// Atom is a raw byte string.
type Atom string

// List is an ordered sequence of values.
type List []Value

// Pair is one (key value) entry of a Map.
type Pair struct {
	Key   Value
	Value Value
}

// Map is a list whose every element is a two-element list. The raw pairs are
// kept in wire order; lookups resolve to the first occurrence of a key.
type Map struct {
	pairs []Pair
	index map[string]int
}

func (Atom) isValue() {}
func (List) isValue() {}
func (*Map) isValue() {}

// NewMap builds a Map from pairs. Duplicate keys are retained in Pairs but
// Get and Lookup only ever see the first one.
func NewMap(pairs ...Pair) *Map {
	m := &Map{index: make(map[string]int, len(pairs))}
	for _, p := range pairs {
		m.add(p)
	}
	return m
}

func (m *Map) add(p Pair) {
	k := keyOf(p.Key)
	if _, dup := m.index[k]; !dup {
		m.index[k] = len(m.pairs)
	}
	m.pairs = append(m.pairs, p)
}

// Len returns the number of distinct keys.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.index)
}

// Get returns the value stored under an atom key.
func (m *Map) Get(key string) (Value, bool) {
	return m.Lookup(Atom(key))
}

// Lookup returns the value stored under an arbitrary key, compared structurally.
func (m *Map) Lookup(key Value) (Value, bool) {
	if m == nil {
		return nil, false
	}
	i, ok := m.index[keyOf(key)]
	if !ok {
		return nil, false
	}
	return m.pairs[i].Value, true
}

// Has reports whether an atom key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Keys returns the distinct keys in first-occurrence order.
func (m *Map) Keys() []Value {
	if m == nil {
		return nil
	}
	keys := make([]Value, 0, len(m.index))
	for i, p := range m.pairs {
		if m.index[keyOf(p.Key)] == i {
			keys = append(keys, p.Key)
		}
	}
	return keys
}

// Pairs returns every pair in wire order, duplicates included.
func (m *Map) Pairs() []Pair {
	if m == nil {
		return nil
	}
	out := make([]Pair, len(m.pairs))
	copy(out, m.pairs)
	return out
}

// keyOf gives a structural identity for a key: its own wire encoding.
func keyOf(v Value) string {
	return string(Encode(v))
}

// AtomOf returns the string of v when v is an atom.
func AtomOf(v Value) (string, bool) {
	a, ok := v.(Atom)
	return string(a), ok
}

// At walks v by list indices. It fails as soon as a step is not a List or the
// index is out of range.
func At(v Value, path ...int) (Value, bool) {
	cur := v
	for _, i := range path {
		l, ok := cur.(List)
		if !ok || i < 0 || i >= len(l) {
			return nil, false
		}
		cur = l[i]
	}
	return cur, true
}

// Field returns the value under key when v is a Map.
func Field(v Value, key string) (Value, bool) {
	m, ok := v.(*Map)
	if !ok {
		return nil, false
	}
	return m.Get(key)
}

// FieldAtom returns the atom under key when v is a Map.
func FieldAtom(v Value, key string) (string, bool) {
	f, ok := Field(v, key)
	if !ok {
		return "", false
	}
	return AtomOf(f)
}

// ToJSON converts v into plain Go values suitable for encoding/json:
// atoms become strings, lists slices, and maps map[string]any. Non-atom map
// keys are rendered in their wire form.
func ToJSON(v Value) any {
	switch t := v.(type) {
	case Atom:
		return string(t)
	case List:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = ToJSON(e)
		}
		return out
	case *Map:
		out := make(map[string]any, t.Len())
		for _, k := range t.Keys() {
			name, ok := AtomOf(k)
			if !ok {
				name = keyOf(k)
			}
			val, _ := t.Lookup(k)
			out[name] = ToJSON(val)
		}
		return out
	default:
		return nil
	}
}
