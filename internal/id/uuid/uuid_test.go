package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// TestGeneratorNewID ensures generated IDs are unique, valid and version 7.
func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewID()
	require.NoError(t, err)
	id2, err := gen.NewID()
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	parsed, err := goUUID.Parse(id1)
	require.NoError(t, err)
	require.Equal(t, goUUID.Version(7), parsed.Version())
	require.True(t, Valid(id2))
}

func TestValid(t *testing.T) {
	t.Parallel()

	require.False(t, Valid("not-a-uuid"))
	require.False(t, Valid(""))
	require.True(t, Valid("0190b5d2-7a1e-7c3b-9d2a-3f1e2d4c5b6a"))
}
