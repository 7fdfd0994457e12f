package arena

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetAddHasRemove(t *testing.T) {
	s := make(Set[int])
	require.False(t, s.Has(1))
	s.Add(1)
	s.Add(2)
	require.True(t, s.Has(1))
	require.True(t, s.Has(2))
	s.Remove(1)
	require.False(t, s.Has(1))
	require.True(t, s.Has(2))
}

func TestNewSetAndSlice(t *testing.T) {
	s := NewSet(3, 1, 2)
	got := s.Slice()
	sort.Ints(got)
	require.Equal(t, []int{1, 2, 3}, got)
}

func TestSetEqual(t *testing.T) {
	a := NewSet(1, 2, 3)
	b := NewSet(3, 2, 1)
	c := NewSet(1, 2)

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.False(t, c.Equal(a))
}
