// Package fse provides the entropy-coding secondary strategy, backed by
// Finite State Entropy coding from github.com/klauspost/compress.
package fse

import (
	"fmt"

	kfse "github.com/klauspost/compress/fse"

	"github.com/pbcompress/pbc"
)

// Encoder entropy-codes the residue of pattern compression. Each encoded
// block carries its own normalized symbol table, so the encoder is stateless
// and its serialized form is empty; short or incompressible inputs are
// declined.
type Encoder struct {
	comp   kfse.Scratch
	decomp kfse.Scratch
}

// New returns a ready Encoder.
func New() *Encoder { return &Encoder{} }

func (e *Encoder) Train([][]byte) error { return nil }

func (e *Encoder) Encode(dst, src []byte) ([]byte, bool) {
	out, err := kfse.Compress(src, &e.comp)
	if err != nil || len(out) >= len(src) {
		return dst, false
	}
	return append(dst, out...), true
}

func (e *Encoder) Decode(dst, src []byte, maxOut int) ([]byte, error) {
	e.decomp.DecompressLimit = maxOut
	out, err := kfse.Decompress(src, &e.decomp)
	if err != nil {
		return dst, fmt.Errorf("%w: fse: %v", pbc.ErrDecompress, err)
	}
	if len(out) > maxOut {
		return dst, fmt.Errorf("%w: fse: decoded %d bytes, cap %d", pbc.ErrDecompress, len(out), maxOut)
	}
	return append(dst, out...), nil
}

func (e *Encoder) Serialize(dst []byte) []byte { return dst }

func (e *Encoder) Deserialize([]byte) error { return nil }
