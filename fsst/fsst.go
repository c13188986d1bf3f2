// Package fsst provides the dictionary-substitution secondary strategy: a
// Fast Static Symbol Table learned from the training residue replaces
// frequent substrings with one-byte codes.
package fsst

import (
	"fmt"

	gofsst "github.com/levmv/go-fsst"

	"github.com/pbcompress/pbc"
)

// Encoder holds a learned symbol table. The serialized state is the
// dictionary produced by the table builder.
type Encoder struct {
	dict   []byte
	comp   *gofsst.Compressor
	decomp *gofsst.Decompressor
}

// New returns an Encoder with no dictionary; it declines all input until
// Train or Deserialize installs one.
func New() *Encoder { return &Encoder{} }

func (e *Encoder) Train(samples [][]byte) error {
	rows := make([]string, len(samples))
	for i, s := range samples {
		rows[i] = string(s)
	}
	var b gofsst.Builder
	e.dict = b.Build(rows)
	return e.init()
}

func (e *Encoder) init() error {
	comp, err := gofsst.NewCompressor(e.dict)
	if err != nil {
		return fmt.Errorf("fsst: building compressor: %w", err)
	}
	decomp, err := gofsst.NewDecompressor(e.dict)
	if err != nil {
		return fmt.Errorf("fsst: building decompressor: %w", err)
	}
	e.comp, e.decomp = comp, decomp
	return nil
}

func (e *Encoder) Encode(dst, src []byte) ([]byte, bool) {
	if e.comp == nil || len(src) == 0 {
		return dst, false
	}
	out := e.comp.Compress(src)
	if len(out) >= len(src) {
		return dst, false
	}
	return append(dst, out...), true
}

func (e *Encoder) Decode(dst, src []byte, maxOut int) ([]byte, error) {
	if e.decomp == nil {
		return dst, fmt.Errorf("%w: fsst: no dictionary loaded", pbc.ErrDecompress)
	}
	out, err := e.decomp.Decompress(src)
	if err != nil {
		return dst, fmt.Errorf("%w: fsst: %v", pbc.ErrDecompress, err)
	}
	if len(out) > maxOut {
		return dst, fmt.Errorf("%w: fsst: decoded %d bytes, cap %d", pbc.ErrDecompress, len(out), maxOut)
	}
	return append(dst, out...), nil
}

func (e *Encoder) Serialize(dst []byte) []byte { return append(dst, e.dict...) }

func (e *Encoder) Deserialize(blob []byte) error {
	if len(blob) == 0 {
		return fmt.Errorf("%w: missing fsst dictionary", pbc.ErrInvalidPattern)
	}
	e.dict = append([]byte(nil), blob...)
	return e.init()
}
