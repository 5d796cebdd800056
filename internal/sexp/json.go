package sexp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FromJSON converts a JSON document to a Value. Strings, numbers and booleans
// become atoms, arrays lists, objects maps in document order, and null the
// empty list.
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := fromTokens(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("sexp: trailing data after JSON value")
	}
	return v, nil
}

func fromTokens(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			l := List{}
			for dec.More() {
				v, err := fromTokens(dec)
				if err != nil {
					return nil, err
				}
				l = append(l, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return l, nil
		case '{':
			m := NewMap()
			for dec.More() {
				key, err := dec.Token()
				if err != nil {
					return nil, err
				}
				v, err := fromTokens(dec)
				if err != nil {
					return nil, err
				}
				m.add(Pair{Key: Atom(key.(string)), Value: v})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return m, nil
		}
	case string:
		return Atom(t), nil
	case json.Number:
		return Atom(t.String()), nil
	case bool:
		return Atom(strconv.FormatBool(t)), nil
	case nil:
		return List{}, nil
	}
	return nil, fmt.Errorf("sexp: unexpected JSON token %v", tok)
}

// Format renders v in the human-readable notation: bare atoms where they
// are unambiguous, quoted strings otherwise.
func Format(v Value) string {
	var b strings.Builder
	format(&b, v)
	return b.String()
}

func format(b *strings.Builder, v Value) {
	switch t := v.(type) {
	case Atom:
		if bare(string(t)) {
			b.WriteString(string(t))
		} else {
			b.WriteString(strconv.Quote(string(t)))
		}
	case List:
		b.WriteByte('(')
		for i, e := range t {
			if i > 0 {
				b.WriteByte(' ')
			}
			format(b, e)
		}
		b.WriteByte(')')
	case *Map:
		b.WriteByte('(')
		for i, p := range t.Pairs() {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteByte('(')
			format(b, p.Key)
			b.WriteByte(' ')
			format(b, p.Value)
			b.WriteByte(')')
		}
		b.WriteByte(')')
	}
}

func bare(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r <= ' ' || r >= 0x7f || strings.ContainsRune("()\";\\", r) {
			return false
		}
	}
	return true
}
