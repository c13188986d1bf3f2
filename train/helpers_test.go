package train

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pbcompress/pbc"
)

// assertSuperPattern checks that the merged skeleton accepts a record that
// one of its source clusters accepted.
func assertSuperPattern(t *testing.T, merged []byte, record string) {
	t.Helper()
	p, err := pbc.ParsePattern(merged)
	require.NoError(t, err)
	require.True(t, p.Matches([]byte(record)),
		"merged pattern %q does not match %q", merged, record)
}
