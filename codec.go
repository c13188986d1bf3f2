package pbc

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Compression mode tags. The first byte of a framed record is always one of
// these.
const (
	TagNotCompressed = 0x1B // raw record follows
	TagPBCOnly       = 0x1C // pattern id + filler stream
	TagSecondaryOnly = 0x1D // secondary-encoded raw record
	TagPBCSecondary  = 0x1E // secondary-encoded pattern id + filler stream
)

// symbolSize is the base of the two-byte pattern-id encoding.
const symbolSize = 256

// DefaultMaxRecordSize is the secondary-decode cap used when
// Codec.MaxRecordSize is zero.
const DefaultMaxRecordSize = 1 << 20

// A Codec compresses and decompresses single records against a loaded
// pattern dictionary, composing an optional SecondaryEncoder around the
// filler stream. Compress and Decompress reuse internal scratch space and
// are single-goroutine contracts; use one Codec per goroutine.
type Codec struct {
	// MaxRecordSize bounds the output of the secondary encoder's Decode for
	// TagSecondaryOnly and TagPBCSecondary frames. Raw and pbc-only frames
	// are not checked against it. Zero means DefaultMaxRecordSize.
	MaxRecordSize int

	patterns []*Pattern
	matcher  *Matcher
	enc      SecondaryEncoder
	scratch  []byte
	encBuf   []byte
}

// NewCodec returns a codec using enc as its secondary strategy. A nil enc
// means pbc-only framing.
func NewCodec(enc SecondaryEncoder) *Codec {
	if enc == nil {
		enc = Nop{}
	}
	return &Codec{enc: enc}
}

// NumPatterns returns the size of the loaded dictionary.
func (c *Codec) NumPatterns() int { return len(c.patterns) }

// Patterns returns the loaded dictionary. The slice must not be modified.
func (c *Codec) Patterns() []*Pattern { return c.patterns }

// LoadPatterns consumes a pattern file: an int32 pattern count, that many
// length-prefixed skeletons, and the secondary encoder's state extending to
// the end of the blob. All int32 fields are little-endian.
func (c *Codec) LoadPatterns(blob []byte) error {
	if len(blob) < 4 {
		return fmt.Errorf("%w: truncated pattern file", ErrInvalidPattern)
	}
	n := int(int32(binary.LittleEndian.Uint32(blob)))
	if n < 0 {
		return fmt.Errorf("%w: negative pattern count", ErrInvalidPattern)
	}
	off := 4
	patterns := make([]*Pattern, 0, n)
	for i := 0; i < n; i++ {
		if off+4 > len(blob) {
			return fmt.Errorf("%w: truncated pattern file", ErrInvalidPattern)
		}
		l := int(int32(binary.LittleEndian.Uint32(blob[off:])))
		off += 4
		if l < 0 || off+l > len(blob) {
			return fmt.Errorf("%w: pattern %d extends past end of file", ErrInvalidPattern, i)
		}
		p, err := ParsePattern(blob[off : off+l])
		if err != nil {
			return fmt.Errorf("pattern %d: %w", i, err)
		}
		off += l
		patterns = append(patterns, p)
	}
	if err := c.enc.Deserialize(blob[off:]); err != nil {
		return err
	}
	c.patterns = patterns
	c.matcher = NewMatcher(patterns)
	return nil
}

// AppendPatternFile appends the pattern-file encoding of the skeletons to
// dst, without secondary-encoder state.
func AppendPatternFile(dst []byte, skeletons [][]byte) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(len(skeletons)))
	dst = append(dst, b[:]...)
	for _, s := range skeletons {
		binary.LittleEndian.PutUint32(b[:], uint32(len(s)))
		dst = append(dst, b[:]...)
		dst = append(dst, s...)
	}
	return dst
}

// Compress appends the framed compression of record to dst. The frame leads
// with a mode tag: when a pattern matches, the smaller of pbc-only and
// pbc+secondary wins; otherwise the smaller of secondary-only and raw.
func (c *Codec) Compress(dst, record []byte) ([]byte, error) {
	if c.matcher == nil {
		return dst, fmt.Errorf("%w: no patterns loaded", ErrCompress)
	}
	if id, ok := c.matcher.Match(record); ok {
		c.scratch = c.scratch[:0]
		c.scratch = append(c.scratch, byte(id/symbolSize), byte(id%symbolSize))
		var err error
		c.scratch, err = appendFiller(c.scratch, c.patterns[id], record)
		if err != nil {
			return dst, err
		}
		if out, ok := c.enc.Encode(c.encBuf[:0], c.scratch); ok && len(out) < len(c.scratch) {
			c.encBuf = out
			dst = append(dst, TagPBCSecondary)
			return append(dst, out...), nil
		}
		dst = append(dst, TagPBCOnly)
		return append(dst, c.scratch...), nil
	}
	if out, ok := c.enc.Encode(c.encBuf[:0], record); ok && len(out) < len(record) {
		c.encBuf = out
		dst = append(dst, TagSecondaryOnly)
		return append(dst, out...), nil
	}
	dst = append(dst, TagNotCompressed)
	return append(dst, record...), nil
}

// Decompress appends the record encoded by Compress in `in` to dst.
func (c *Codec) Decompress(dst, in []byte) ([]byte, error) {
	if len(in) < 1 {
		return dst, fmt.Errorf("%w: empty input", ErrDecompress)
	}
	switch in[0] {
	case TagNotCompressed:
		return append(dst, in[1:]...), nil
	case TagSecondaryOnly:
		return c.enc.Decode(dst, in[1:], c.maxRecordSize())
	case TagPBCOnly:
		out, _, err := c.decodeFiller(dst, in[1:], true)
		return out, err
	case TagPBCSecondary:
		buf, err := c.enc.Decode(c.scratch[:0], in[1:], c.maxRecordSize())
		if err != nil {
			return dst, err
		}
		c.scratch = buf
		out, _, err := c.decodeFiller(dst, buf, true)
		return out, err
	default:
		return dst, fmt.Errorf("%w: bad mode tag %#02x", ErrDecompress, in[0])
	}
}

// CompressWithLength appends the tagless framing of record to dst: a 2-byte
// big-endian pattern id and the filler stream with explicit gap lengths, so
// that a concatenation of frames is self-delimiting. Records that match no
// pattern use the sentinel id NumPatterns followed by varint(len) and the
// raw bytes.
func (c *Codec) CompressWithLength(dst, record []byte) ([]byte, error) {
	if c.matcher == nil {
		return dst, fmt.Errorf("%w: no patterns loaded", ErrCompress)
	}
	id, ok := c.matcher.Match(record)
	if !ok {
		n := len(c.patterns)
		dst = append(dst, byte(n/symbolSize), byte(n%symbolSize))
		dst = AppendUvarint(dst, uint32(len(record)))
		return append(dst, record...), nil
	}
	dst = append(dst, byte(id/symbolSize), byte(id%symbolSize))
	return appendFiller(dst, c.patterns[id], record)
}

// DecompressWithLength appends the record at the start of `in` to dst and
// additionally returns the number of input bytes consumed, so concatenated
// frames can be decoded in sequence.
func (c *Codec) DecompressWithLength(dst, in []byte) (out []byte, n int, err error) {
	if len(in) < 2 {
		return dst, 0, fmt.Errorf("%w: truncated frame", ErrDecompress)
	}
	id := int(in[0])*symbolSize + int(in[1])
	if id == len(c.patterns) { // sentinel: unmatched record
		v, vn := ReadUvarint(in[2:])
		if vn <= 0 {
			return dst, 0, fmt.Errorf("%w: bad record length", ErrDecompress)
		}
		end := 2 + vn + int(v)
		if end > len(in) {
			return dst, 0, fmt.Errorf("%w: truncated frame", ErrDecompress)
		}
		return append(dst, in[2+vn:end]...), end, nil
	}
	return c.decodeFiller(dst, in, false)
}

// appendFiller emits the filler stream of record against pattern p: for each
// literal run, the gap before it as varint(len)+bytes (elided before the
// first run of an anchored pattern, a single varint 0 for later empty gaps),
// then the tail when the pattern ends with a wildcard.
func appendFiller(dst []byte, p *Pattern, record []byte) ([]byte, error) {
	cursor := 0
	for i := 0; i < p.runs; i++ {
		run := p.run(i)
		if len(run) == 0 {
			if i != 0 && i != p.runs-1 {
				return dst, fmt.Errorf("%w: interior empty literal run", ErrCompress)
			}
			continue
		}
		j := bytes.Index(record[cursor:], run)
		if j < 0 {
			return dst, fmt.Errorf("%w: literal run %d not found", ErrCompress, i)
		}
		match := cursor + j
		if match == cursor {
			if i > 0 {
				dst = append(dst, 0)
			}
		} else {
			dst = AppendUvarint(dst, uint32(match-cursor))
			dst = append(dst, record[cursor:match]...)
		}
		cursor = match + len(run)
	}
	if p.trailingWild() {
		if cursor < len(record) {
			dst = AppendUvarint(dst, uint32(len(record)-cursor))
			dst = append(dst, record[cursor:]...)
		} else {
			dst = append(dst, 0)
		}
	} else if cursor != len(record) {
		return dst, fmt.Errorf("%w: record extends past anchored pattern end", ErrCompress)
	}
	return dst, nil
}

// decodeFiller inverts appendFiller. `in` starts at the 2-byte pattern id.
// allowBare accepts an id-only frame as the pattern's fully-literal form;
// it is only safe when `in` holds exactly one frame.
func (c *Codec) decodeFiller(dst, in []byte, allowBare bool) (out []byte, n int, err error) {
	if len(in) < 2 {
		return dst, 0, fmt.Errorf("%w: truncated frame", ErrDecompress)
	}
	id := int(in[0])*symbolSize + int(in[1])
	if id >= len(c.patterns) {
		return dst, 0, fmt.Errorf("%w: unknown pattern id %d", ErrDecompress, id)
	}
	p := c.patterns[id]
	if allowBare && len(in) == 2 {
		return append(dst, p.literals...), 2, nil
	}
	off := 2
	gap := func() error {
		v, vn := ReadUvarint(in[off:])
		if vn <= 0 {
			return fmt.Errorf("%w: bad gap length", ErrDecompress)
		}
		off += vn
		if off+int(v) > len(in) {
			return fmt.Errorf("%w: gap extends past end of frame", ErrDecompress)
		}
		dst = append(dst, in[off:off+int(v)]...)
		off += int(v)
		return nil
	}
	if p.pos[1] == p.pos[0] { // leading wildcard
		if err := gap(); err != nil {
			return dst, 0, err
		}
	}
	for i := 0; i < p.runs; i++ {
		run := p.run(i)
		if len(run) == 0 {
			if i != 0 && i != p.runs-1 {
				return dst, 0, fmt.Errorf("%w: interior empty literal run", ErrDecompress)
			}
			continue
		}
		dst = append(dst, run...)
		if i != p.runs-1 {
			if err := gap(); err != nil {
				return dst, 0, err
			}
		}
	}
	return dst, off, nil
}

func (c *Codec) maxRecordSize() int {
	if c.MaxRecordSize > 0 {
		return c.MaxRecordSize
	}
	return DefaultMaxRecordSize
}
