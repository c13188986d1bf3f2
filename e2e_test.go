package pbc_test

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
	kzstd "github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbcompress/pbc"
	"github.com/pbcompress/pbc/fse"
	"github.com/pbcompress/pbc/fsst"
	"github.com/pbcompress/pbc/train"
	pbczstd "github.com/pbcompress/pbc/zstd"
)

var methods = []struct {
	name string
	enc  func() pbc.SecondaryEncoder
}{
	{"pbc_only", func() pbc.SecondaryEncoder { return nil }},
	{"pbc_fse", func() pbc.SecondaryEncoder { return fse.New() }},
	{"pbc_fsst", func() pbc.SecondaryEncoder { return fsst.New() }},
	{"pbc_zstd", func() pbc.SecondaryEncoder { return pbczstd.New() }},
}

func corpus(t *testing.T, seed int64, withNUL bool) [][]byte {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	return train.GenerateRecords(rng, 600, 35, 60, 6, 22, 28, withNUL)
}

// trainBlob trains a dictionary over a sample of records with the given
// secondary method and returns the pattern file.
func trainBlob(t *testing.T, records [][]byte, enc pbc.SecondaryEncoder) []byte {
	t.Helper()
	tr := train.NewTrainer(enc, 4)
	tr.LoadRecords(train.Sample(records, 120))
	blob, err := tr.Train(10)
	require.NoError(t, err)
	return blob
}

func TestEndToEndAllMethods(t *testing.T) {
	for _, withNUL := range []bool{false, true} {
		records := corpus(t, 42, withNUL)
		for _, m := range methods {
			blob := trainBlob(t, records, m.enc())

			// A fresh codec, as a separate process would build it from the
			// pattern file.
			codec := pbc.NewCodec(m.enc())
			require.NoError(t, codec.LoadPatterns(blob), "method %s", m.name)

			var frame, back []byte
			var err error
			for _, r := range records {
				frame, err = codec.Compress(frame[:0], r)
				require.NoError(t, err, "method %s", m.name)
				require.NotEmpty(t, frame)
				assert.Contains(t, []byte{
					pbc.TagNotCompressed, pbc.TagPBCOnly,
					pbc.TagSecondaryOnly, pbc.TagPBCSecondary,
				}, frame[0])

				back, err = codec.Decompress(back[:0], frame)
				require.NoError(t, err, "method %s", m.name)
				require.True(t, bytes.Equal(back, r),
					"method %s: round-trip mismatch", m.name)
			}
		}
	}
}

func TestEndToEndWithLengthFraming(t *testing.T) {
	records := corpus(t, 43, true)
	for _, m := range methods {
		blob := trainBlob(t, records, m.enc())
		codec := pbc.NewCodec(m.enc())
		require.NoError(t, codec.LoadPatterns(blob))

		var stream []byte
		var err error
		for _, r := range records {
			stream, err = codec.CompressWithLength(stream, r)
			require.NoError(t, err)
		}
		r := pbc.NewReader(codec, stream)
		for _, want := range records {
			got, err := r.Next()
			require.NoError(t, err)
			require.True(t, bytes.Equal(got, want), "method %s", m.name)
		}
		_, err = r.Next()
		require.Equal(t, io.EOF, err)
	}
}

// TestCompressionBaselines round-trips the corpus through the
// general-purpose codecs and reports the ratios next to pattern
// compression. Snappy runs per record, like pattern compression; the lz4,
// brotli and zstd baselines see the whole corpus at once, so they are an
// upper bound, not a fair per-record comparison.
func TestCompressionBaselines(t *testing.T) {
	records := corpus(t, 44, false)
	var joined []byte
	rawLen := 0
	for _, r := range records {
		joined = append(joined, r...)
		joined = append(joined, '\n')
		rawLen += len(r)
	}

	// Pattern compression, per record.
	blob := trainBlob(t, records, fse.New())
	codec := pbc.NewCodec(fse.New())
	require.NoError(t, codec.LoadPatterns(blob))
	pbcLen := 0
	var frame []byte
	var err error
	for _, r := range records {
		frame, err = codec.Compress(frame[:0], r)
		require.NoError(t, err)
		pbcLen += len(frame)
	}

	// Snappy, per record.
	snappyLen := 0
	for _, r := range records {
		enc := snappy.Encode(nil, r)
		back, err := snappy.Decode(nil, enc)
		require.NoError(t, err)
		require.True(t, bytes.Equal(back, r))
		snappyLen += len(enc)
	}

	// LZ4, whole corpus.
	var lz4Buf bytes.Buffer
	lw := lz4.NewWriter(&lz4Buf)
	_, err = lw.Write(joined)
	require.NoError(t, err)
	require.NoError(t, lw.Close())
	lr := lz4.NewReader(bytes.NewReader(lz4Buf.Bytes()))
	back, err := io.ReadAll(lr)
	require.NoError(t, err)
	require.True(t, bytes.Equal(back, joined))

	// Brotli, whole corpus.
	var brBuf bytes.Buffer
	bw := brotli.NewWriter(&brBuf)
	_, err = bw.Write(joined)
	require.NoError(t, err)
	require.NoError(t, bw.Close())
	back, err = io.ReadAll(brotli.NewReader(bytes.NewReader(brBuf.Bytes())))
	require.NoError(t, err)
	require.True(t, bytes.Equal(back, joined))

	// Zstd, whole corpus.
	zw, err := kzstd.NewWriter(nil)
	require.NoError(t, err)
	zenc := zw.EncodeAll(joined, nil)
	zr, err := kzstd.NewReader(nil)
	require.NoError(t, err)
	back, err = zr.DecodeAll(zenc, nil)
	require.NoError(t, err)
	require.True(t, bytes.Equal(back, joined))

	t.Logf("raw=%d pbc(per-record)=%d snappy(per-record)=%d lz4(stream)=%d brotli(stream)=%d zstd(stream)=%d",
		rawLen, pbcLen, snappyLen, lz4Buf.Len(), brBuf.Len(), len(zenc))

	assert.Less(t, pbcLen, rawLen, "pattern compression should beat raw on a patterned corpus")
	assert.Less(t, pbcLen, snappyLen, "per-record pattern compression should beat per-record snappy here")
}
