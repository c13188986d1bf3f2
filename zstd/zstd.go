// Package zstd provides the dictionary-compressor secondary strategy: a
// zstd dictionary trained on the residue of pattern compression, applied
// per record.
package zstd

import (
	"fmt"

	kzstd "github.com/klauspost/compress/zstd"

	"github.com/pbcompress/pbc"
)

// dictSize caps the trained dictionary.
const dictSize = 110 * 1024

const dictID = 0x70626364 // "pbcd"

// Encoder compresses each record with a shared dictionary. When the residue
// sample set is too small to train a dictionary, the encoder degrades to
// dictionary-less zstd and serializes an empty state.
type Encoder struct {
	dict []byte
	enc  *kzstd.Encoder
	dec  *kzstd.Decoder
}

// New returns an Encoder with no dictionary; Train or Deserialize prepares
// it for use.
func New() *Encoder { return &Encoder{} }

func (e *Encoder) Train(samples [][]byte) error {
	dict, err := kzstd.BuildDict(kzstd.BuildDictOptions{
		ID:        dictID,
		Contents:  samples,
		HashBytes: 6,
	})
	if err != nil {
		// Not enough distinct samples to learn from; fall back to plain zstd.
		e.dict = nil
	} else {
		if len(dict) > dictSize {
			dict = dict[:dictSize]
		}
		e.dict = dict
	}
	return e.init()
}

func (e *Encoder) init() error {
	eopts := []kzstd.EOption{
		kzstd.WithEncoderConcurrency(1),
		kzstd.WithEncoderLevel(kzstd.SpeedDefault),
	}
	dopts := []kzstd.DOption{
		kzstd.WithDecoderConcurrency(1),
		kzstd.WithDecoderMaxMemory(pbc.DefaultMaxRecordSize),
	}
	if len(e.dict) > 0 {
		eopts = append(eopts, kzstd.WithEncoderDict(e.dict))
		dopts = append(dopts, kzstd.WithDecoderDicts(e.dict))
	}
	enc, err := kzstd.NewWriter(nil, eopts...)
	if err != nil {
		return fmt.Errorf("zstd: building encoder: %w", err)
	}
	dec, err := kzstd.NewReader(nil, dopts...)
	if err != nil {
		return fmt.Errorf("zstd: building decoder: %w", err)
	}
	e.enc, e.dec = enc, dec
	return nil
}

func (e *Encoder) Encode(dst, src []byte) ([]byte, bool) {
	if e.enc == nil || len(src) == 0 {
		return dst, false
	}
	mark := len(dst)
	dst = e.enc.EncodeAll(src, dst)
	if len(dst)-mark >= len(src) {
		return dst[:mark], false
	}
	return dst, true
}

func (e *Encoder) Decode(dst, src []byte, maxOut int) ([]byte, error) {
	if e.dec == nil {
		return dst, fmt.Errorf("%w: zstd: decoder not initialized", pbc.ErrDecompress)
	}
	mark := len(dst)
	out, err := e.dec.DecodeAll(src, dst)
	if err != nil {
		return dst, fmt.Errorf("%w: zstd: %v", pbc.ErrDecompress, err)
	}
	if len(out)-mark > maxOut {
		return dst, fmt.Errorf("%w: zstd: decoded %d bytes, cap %d", pbc.ErrDecompress, len(out)-mark, maxOut)
	}
	return out, nil
}

func (e *Encoder) Serialize(dst []byte) []byte { return append(dst, e.dict...) }

// Deserialize accepts the pattern-file tail: the trained dictionary, or
// nothing when training fell back to dictionary-less encoding.
func (e *Encoder) Deserialize(blob []byte) error {
	if len(blob) == 0 {
		e.dict = nil
	} else {
		e.dict = append([]byte(nil), blob...)
	}
	return e.init()
}
