package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	cases := []struct {
		page, size  int
		from, limit int
	}{
		{1, 10, 0, 10},
		{3, 20, 40, 20},
		{0, 0, 0, DefaultPageSize},
		{-2, 500, 0, DefaultPageSize},
	}
	for _, tc := range cases {
		from, limit := Calculate(tc.page, tc.size)
		require.Equal(t, tc.from, from, "page=%d size=%d", tc.page, tc.size)
		require.Equal(t, tc.limit, limit, "page=%d size=%d", tc.page, tc.size)
	}
}

func TestClampPage(t *testing.T) {
	require.Equal(t, 1, ClampPage(5, 10, 0))
	require.Equal(t, 3, ClampPage(9, 10, 25))
	require.Equal(t, 2, ClampPage(2, 10, 25))
	require.Equal(t, 1, ClampPage(-1, 10, 25))
}

func TestNewMeta(t *testing.T) {
	m := NewMeta(2, 10, 25)
	require.Equal(t, int64(3), m.TotalPages)
	require.True(t, m.HasPrev)
	require.True(t, m.HasNext)

	last := NewMeta(3, 10, 25)
	require.False(t, last.HasNext)

	empty := NewMeta(1, 10, 0)
	require.Zero(t, empty.TotalPages)
	require.False(t, empty.HasPrev)
	require.False(t, empty.HasNext)
}

func TestParseIntDefault(t *testing.T) {
	require.Equal(t, 7, ParseIntDefault("", 7))
	require.Equal(t, 7, ParseIntDefault("x", 7))
	require.Equal(t, 3, ParseIntDefault("3", 7))
}
