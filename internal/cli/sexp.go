package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vburojevic/dunehmr/internal/output"
	"github.com/vburojevic/dunehmr/internal/sexp"
)

// SexpCmd converts between the daemon wire format and JSON
type SexpCmd struct {
	Decode SexpDecodeCmd `cmd:"" help:"Decode length-prefixed S-expressions (one JSON value per line with --format ndjson)"`
	Encode SexpEncodeCmd `cmd:"" help:"Encode a JSON document as a length-prefixed S-expression"`
}

// SexpDecodeCmd reads a stream of canonical S-expressions
type SexpDecodeCmd struct {
	File string `arg:"" optional:"" type:"existingfile" help:"Input file (default: stdin)"`
}

// Run executes the sexp decode command
func (c *SexpDecodeCmd) Run(globals *Globals) error {
	in, closeIn, err := openInput(globals, c.File)
	if err != nil {
		return outputErrorCommon(globals, codeInvalidInput, err.Error())
	}
	defer closeIn()

	var ndjson *output.NDJSONWriter
	if globals.Format == "ndjson" {
		ndjson = output.NewNDJSONWriter(globals.Stdout)
	}

	dec := sexp.NewDecoder(in)
	for {
		v, err := dec.Decode()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			return outputErrorCommon(globals, codeInvalidInput, fmt.Sprintf("input ends inside a value at offset %d", dec.Offset()))
		case err != nil:
			return outputErrorCommon(globals, codeInvalidInput, err.Error())
		}

		if ndjson != nil {
			if err := ndjson.Write(sexp.ToJSON(v)); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintln(globals.Stdout, sexp.Format(v)); err != nil {
			return err
		}
	}
}

// SexpEncodeCmd turns JSON into the wire format
type SexpEncodeCmd struct {
	File string `arg:"" optional:"" type:"existingfile" help:"Input file (default: stdin)"`
}

// Run executes the sexp encode command
func (c *SexpEncodeCmd) Run(globals *Globals) error {
	in, closeIn, err := openInput(globals, c.File)
	if err != nil {
		return outputErrorCommon(globals, codeInvalidInput, err.Error())
	}
	defer closeIn()

	data, err := io.ReadAll(in)
	if err != nil {
		return outputErrorCommon(globals, codeInvalidInput, err.Error())
	}
	v, err := sexp.FromJSON(data)
	if err != nil {
		return outputErrorCommon(globals, codeInvalidInput, fmt.Sprintf("invalid JSON: %v", err))
	}
	_, err = globals.Stdout.Write(sexp.Encode(v))
	return err
}

func openInput(globals *Globals, path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		if globals.Stdin == nil {
			return os.Stdin, func() {}, nil
		}
		return globals.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}
