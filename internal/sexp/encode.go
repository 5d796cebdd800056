package sexp

import "strconv"

// Encode returns the wire form of v.
func Encode(v Value) []byte {
	return AppendEncode(nil, v)
}

// AppendEncode appends the wire form of v to dst.
func AppendEncode(dst []byte, v Value) []byte {
	switch t := v.(type) {
	case Atom:
		dst = strconv.AppendInt(dst, int64(len(t)), 10)
		dst = append(dst, ':')
		dst = append(dst, t...)
	case List:
		dst = append(dst, '(')
		for _, e := range t {
			dst = AppendEncode(dst, e)
		}
		dst = append(dst, ')')
	case *Map:
		dst = append(dst, '(')
		if t != nil {
			for _, p := range t.pairs {
				dst = append(dst, '(')
				dst = AppendEncode(dst, p.Key)
				dst = AppendEncode(dst, p.Value)
				dst = append(dst, ')')
			}
		}
		dst = append(dst, ')')
	}
	return dst
}

// A builds an atom list from strings, a shorthand for request templates.
func A(atoms ...string) List {
	l := make(List, len(atoms))
	for i, a := range atoms {
		l[i] = Atom(a)
	}
	return l
}

// L builds a list from values.
func L(values ...Value) List {
	return List(values)
}

// P builds a pair keyed by an atom.
func P(key string, value Value) Pair {
	return Pair{Key: Atom(key), Value: value}
}
