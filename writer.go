package pbc

import (
	"fmt"
	"io"
)

// A Writer compresses a stream of records to Dest using the length-prefixed
// framing, so the output is a self-delimiting concatenation that a Reader
// can split without mode tags.
type Writer struct {
	Dest  io.Writer
	Codec *Codec

	buf []byte
}

// WriteRecord compresses one record and writes its frame.
func (w *Writer) WriteRecord(record []byte) error {
	var err error
	w.buf, err = w.Codec.CompressWithLength(w.buf[:0], record)
	if err != nil {
		return err
	}
	_, err = w.Dest.Write(w.buf)
	return err
}

// A Reader decodes a concatenation of length-prefixed frames.
type Reader struct {
	Codec *Codec

	data []byte
	off  int
}

// NewReader returns a reader over a compressed buffer.
func NewReader(codec *Codec, data []byte) *Reader {
	return &Reader{Codec: codec, data: data}
}

// Next decodes and returns the next record, or io.EOF when the buffer is
// exhausted.
func (r *Reader) Next() ([]byte, error) {
	if r.off >= len(r.data) {
		return nil, io.EOF
	}
	out, n, err := r.Codec.DecompressWithLength(nil, r.data[r.off:])
	if err != nil {
		return nil, fmt.Errorf("frame at offset %d: %w", r.off, err)
	}
	r.off += n
	return out, nil
}
