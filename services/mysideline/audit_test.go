package mysideline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorSampler(t *testing.T) {
	s := newErrorSampler(3)
	require.True(t, s.empty())
	require.Empty(t, s.summary())

	s.add("first")
	s.add("second")
	require.False(t, s.empty())
	require.Equal(t, "first; second", s.summary())

	s.add("third")
	s.add("fourth")
	s.add("fifth")
	require.Equal(t, "first; second; third (and 2 more)", s.summary())
}
