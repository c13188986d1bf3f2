package zstd

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainingSamples() [][]byte {
	var samples [][]byte
	for i := 0; i < 200; i++ {
		samples = append(samples,
			[]byte(fmt.Sprintf("host=db%d state=up latency_ms=%d region=eu-west", i%7, i)))
	}
	return samples
}

func TestTrainEncodeDecode(t *testing.T) {
	e := New()
	require.NoError(t, e.Train(trainingSamples()))

	src := bytes.Repeat([]byte("host=db3 state=up latency_ms=17 region=eu-west;"), 4)
	out, ok := e.Encode(nil, src)
	require.True(t, ok)
	require.Less(t, len(out), len(src))

	back, err := e.Decode(nil, out, len(src))
	require.NoError(t, err)
	assert.Equal(t, src, back)
}

func TestEncodeDeclinesIncompressible(t *testing.T) {
	e := New()
	require.NoError(t, e.Train(trainingSamples()))

	// A short unique record cannot beat the zstd frame overhead.
	_, ok := e.Encode(nil, []byte("q"))
	assert.False(t, ok)

	_, ok = e.Encode(nil, nil)
	assert.False(t, ok)
}

func TestDecodeHonorsCap(t *testing.T) {
	e := New()
	require.NoError(t, e.Train(trainingSamples()))

	src := bytes.Repeat([]byte("aaaabbbb"), 100)
	out, ok := e.Encode(nil, src)
	require.True(t, ok)

	_, err := e.Decode(nil, out, 16)
	assert.Error(t, err)
}

func TestSerializeDeserialize(t *testing.T) {
	e := New()
	require.NoError(t, e.Train(trainingSamples()))

	src := []byte("host=db5 state=up latency_ms=3 region=eu-west")
	out, ok := e.Encode(nil, src)
	if !ok {
		// Frame overhead beat the dictionary on this record; grow it.
		src = bytes.Repeat(src, 4)
		out, ok = e.Encode(nil, src)
		require.True(t, ok)
	}

	fresh := New()
	require.NoError(t, fresh.Deserialize(e.Serialize(nil)))
	back, err := fresh.Decode(nil, out, len(src))
	require.NoError(t, err)
	assert.Equal(t, src, back)
}
