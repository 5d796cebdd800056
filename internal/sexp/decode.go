package sexp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// MaxAtomSize bounds a single atom's declared length.
const MaxAtomSize = 64 << 20

// SyntaxError reports malformed input and the byte offset it was found at.
type SyntaxError struct {
	Offset int64
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("sexp: syntax error at offset %d: %s", e.Offset, e.Msg)
}

type byteSource interface {
	io.Reader
	io.ByteReader
}

// Decoder reads top-level values from a stream. A value is returned only once
// its closing paren balances; partial input stays buffered across reads.
type Decoder struct {
	br     *bufio.Reader
	src    byteSource
	offset int64
	stack  []List
	// raw holds the bytes of the value being decoded, for Resync
	raw []byte
}

// replay serves bytes handed back by Resync before the underlying source
type replay struct {
	buf  []byte
	next byteSource
}

func (r *replay) ReadByte() (byte, error) {
	if len(r.buf) == 0 {
		return r.next.ReadByte()
	}
	c := r.buf[0]
	r.buf = r.buf[1:]
	return c, nil
}

func (r *replay) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		return r.next.Read(p)
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	br := bufio.NewReader(r)
	return &Decoder{br: br, src: br}
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int64 {
	return d.offset
}

// Open reports whether a value has been started but not yet completed.
func (d *Decoder) Open() bool {
	return len(d.raw) > 0
}

// Discard drops any partially decoded value and everything currently
// buffered. It returns the number of buffered bytes dropped.
func (d *Decoder) Discard() int {
	d.stack = d.stack[:0]
	d.raw = d.raw[:0]
	n := 0
	if r, ok := d.src.(*replay); ok {
		n += len(r.buf)
		d.src = r.next
	}
	if d.br != nil {
		m, _ := d.br.Discard(d.br.Buffered())
		n += m
	}
	d.offset += int64(n)
	return n
}

// Resync abandons the value that failed with a *SyntaxError and resumes
// decoding at the next '(' after that value's first byte, so a well-formed
// value swallowed by a corrupt length prefix is still recovered. It returns
// the number of bytes skipped.
func (d *Decoder) Resync() int {
	d.stack = d.stack[:0]
	if len(d.raw) == 0 {
		return 0
	}
	rest := d.raw[1:]
	skipped := 1
	if i := bytes.IndexByte(rest, '('); i >= 0 {
		skipped += i
		rest = bytes.Clone(rest[i:])
	} else {
		skipped += len(rest)
		rest = nil
	}
	d.raw = d.raw[:0]

	if len(rest) > 0 {
		d.offset -= int64(len(rest))
		if r, ok := d.src.(*replay); ok {
			r.buf = append(rest, r.buf...)
		} else {
			d.src = &replay{buf: rest, next: d.src}
		}
	}
	return skipped
}

// Decode returns the next top-level value. It returns io.EOF when the stream
// ends cleanly between values and io.ErrUnexpectedEOF when it ends mid-value.
func (d *Decoder) Decode() (Value, error) {
	for {
		c, err := d.src.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && len(d.stack) > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		d.offset++
		if len(d.raw) > 0 || !isSpace(c) {
			d.raw = append(d.raw, c)
		}

		switch {
		case c == '(':
			d.stack = append(d.stack, List{})

		case c == ')':
			if len(d.stack) == 0 {
				return nil, &SyntaxError{Offset: d.offset - 1, Msg: "unmatched closing paren"}
			}
			top := d.stack[len(d.stack)-1]
			d.stack = d.stack[:len(d.stack)-1]
			closed := closeList(top)
			if len(d.stack) == 0 {
				d.raw = d.raw[:0]
				return closed, nil
			}
			d.push(closed)

		case c >= '0' && c <= '9':
			atom, err := d.readAtom(c)
			if err != nil {
				return nil, err
			}
			if len(d.stack) == 0 {
				d.raw = d.raw[:0]
				return atom, nil
			}
			d.push(atom)

		case isSpace(c):
			// tolerated between tokens

		default:
			return nil, &SyntaxError{Offset: d.offset - 1, Msg: fmt.Sprintf("unexpected byte %q", c)}
		}
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t'
}

func (d *Decoder) push(v Value) {
	i := len(d.stack) - 1
	d.stack[i] = append(d.stack[i], v)
}

func (d *Decoder) readAtom(first byte) (Atom, error) {
	start := d.offset - 1
	size := int64(first - '0')
	for {
		c, err := d.src.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.ErrUnexpectedEOF
			}
			return "", err
		}
		d.offset++
		d.raw = append(d.raw, c)
		if c == ':' {
			break
		}
		if c < '0' || c > '9' {
			return "", &SyntaxError{Offset: d.offset - 1, Msg: fmt.Sprintf("bad atom length byte %q", c)}
		}
		size = size*10 + int64(c-'0')
		if size > MaxAtomSize {
			return "", &SyntaxError{Offset: start, Msg: "atom length exceeds limit"}
		}
	}

	buf := make([]byte, size)
	n, err := io.ReadFull(d.src, buf)
	d.offset += int64(n)
	d.raw = append(d.raw, buf[:n]...)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return Atom(buf), nil
}

// closeList applies the mapping rule: a list made only of two-element lists
// becomes a Map. The empty list qualifies vacuously.
func closeList(l List) Value {
	for _, e := range l {
		pair, ok := e.(List)
		if !ok || len(pair) != 2 {
			return l
		}
	}
	m := &Map{index: make(map[string]int, len(l))}
	for _, e := range l {
		pair := e.(List)
		m.add(Pair{Key: pair[0], Value: pair[1]})
	}
	return m
}

// Decode decodes every top-level value in b. Input that ends inside a value
// or that closes a list never opened is a *SyntaxError.
func Decode(b []byte) ([]Value, error) {
	d := &Decoder{src: bytes.NewReader(b)}
	var out []Value
	for {
		v, err := d.Decode()
		switch {
		case err == nil:
			out = append(out, v)
		case errors.Is(err, io.EOF):
			return out, nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, &SyntaxError{Offset: d.offset, Msg: "truncated input"}
		default:
			return nil, err
		}
	}
}
