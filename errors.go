package pbc

import "errors"

var (
	// ErrInvalidPattern reports a malformed escape in a pattern skeleton or
	// a corrupt pattern file.
	ErrInvalidPattern = errors.New("pbc: invalid pattern")

	// ErrCompress reports that a matched pattern's literal runs could not be
	// located in the record. With an anchored matcher this indicates a
	// hand-written dictionary with an interior empty literal run.
	ErrCompress = errors.New("pbc: compress failed")

	// ErrDecompress reports a bad mode tag, an unknown pattern id, a
	// malformed varint, or a stream shorter than the pattern structure
	// implies.
	ErrDecompress = errors.New("pbc: decompress failed")
)
