package main

import (
	"flag"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbcompress/pbc/train"
)

// setFlag sets a flag for the duration of the test.
func setFlag(t *testing.T, name, value string) {
	t.Helper()
	holder := flag.Lookup(name)
	require.NotNil(t, holder, "flag %s not found", name)
	prev := holder.Value.String()
	t.Cleanup(func() { require.NoError(t, flag.Set(name, prev)) })
	require.NoError(t, flag.Set(name, value))
}

func writeCorpus(t *testing.T, path string) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(3))
	records := train.GenerateRecords(rng, 300, 30, 45, 5, 18, 24, false)
	var buf []byte
	for _, r := range records {
		buf = append(buf, r...)
		buf = append(buf, '\n')
	}
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return buf
}

func TestTrainCompressDecompressPipeline(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "records.log")
	patternPath := filepath.Join(dir, "patterns.pbc")
	compressedPath := filepath.Join(dir, "records.pbc")
	restoredPath := filepath.Join(dir, "restored.log")

	raw := writeCorpus(t, inputPath)

	for _, m := range []string{"pbc_only", "pbc_fse", "pbc_fsst", "pbc_zstd"} {
		setFlag(t, "compress-method", m)
		setFlag(t, "i", inputPath)
		setFlag(t, "o", patternPath)
		setFlag(t, "pattern-size", "8")
		setFlag(t, "train-data-number", "100")
		setFlag(t, "train-thread-num", "4")
		require.NoError(t, runTrain(), "method %s", m)

		setFlag(t, "p", patternPath)
		setFlag(t, "o", compressedPath)
		require.NoError(t, runCompress(), "method %s", m)

		setFlag(t, "i", compressedPath)
		setFlag(t, "o", restoredPath)
		require.NoError(t, runDecompress(), "method %s", m)

		restored, err := os.ReadFile(restoredPath)
		require.NoError(t, err)
		assert.Equal(t, raw, restored, "method %s", m)

		setFlag(t, "i", inputPath)
	}
}

func TestTestCompressCommand(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "records.log")
	writeCorpus(t, inputPath)

	setFlag(t, "compress-method", "pbc_fse")
	setFlag(t, "i", inputPath)
	setFlag(t, "pattern-size", "8")
	setFlag(t, "train-data-number", "100")
	setFlag(t, "train-thread-num", "0")
	require.NoError(t, runTestCompress())
}

func TestNewEncoderRejectsUnknownMethod(t *testing.T) {
	_, err := newEncoder("lzma")
	assert.Error(t, err)
}
