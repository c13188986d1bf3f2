// The pbc package implements pattern-based compression for short textual
// records (log lines, identifiers, URLs, JSON fragments).
//
// Many such corpora share a small set of skeletons: fixed character runs
// interleaved with variable-length gaps. A trained dictionary (see the train
// subpackage) stores those skeletons; each record is then compressed to a
// pattern id plus the bytes that fill the gaps. A pluggable SecondaryEncoder
// can squeeze that residue further. As with the rest of this module's
// components, the parts are meant to be mixed and matched: any type
// satisfying SecondaryEncoder slots into both the codec and the trainer.
package pbc

// A SecondaryEncoder is a general-purpose compressor applied after pattern
// compression, to the pattern-id + filler stream of a matched record or to
// the raw bytes of an unmatched one.
type SecondaryEncoder interface {
	// Train builds the encoder's state from the residue the pattern codec
	// produced for the training corpus. It may be a no-op for stateless
	// strategies.
	Train(samples [][]byte) error

	// Encode appends the encoded form of src to dst. ok is false when the
	// encoder declines (the output would not be smaller than the input, or
	// the input is not encodable); dst is returned unchanged in that case.
	Encode(dst, src []byte) (out []byte, ok bool)

	// Decode appends the decoded form of src to dst. maxOut bounds the
	// decoded size so that a corrupt stream cannot balloon.
	Decode(dst, src []byte, maxOut int) ([]byte, error)

	// Serialize appends the trained state to dst. It is stored after the
	// patterns in the pattern file.
	Serialize(dst []byte) []byte

	// Deserialize reconstructs the trained state from the tail of a pattern
	// file.
	Deserialize(blob []byte) error
}

// Nop is the pbc-only strategy: it has no state and never improves on the
// input.
type Nop struct{}

func (Nop) Train([][]byte) error { return nil }

func (Nop) Encode(dst, src []byte) ([]byte, bool) { return dst, false }

func (Nop) Decode(dst, src []byte, maxOut int) ([]byte, error) {
	return dst, ErrDecompress
}

func (Nop) Serialize(dst []byte) []byte { return dst }

func (Nop) Deserialize([]byte) error { return nil }
