package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	h, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	require.NotEqual(t, "s3cret-pass", h)

	require.True(t, CheckPassword(h, "s3cret-pass"))
	require.False(t, CheckPassword(h, "wrong"))
	require.False(t, CheckPassword("not-a-hash", "s3cret-pass"))
}

func TestSha256Hex(t *testing.T) {
	require.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		Sha256Hex("hello"))
	require.Len(t, Sha256Hex("anything"), 64)
}
