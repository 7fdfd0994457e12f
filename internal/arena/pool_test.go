package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolAllocateStableIDs(t *testing.T) {
	var p Pool[int]

	id0, v0 := p.Allocate()
	*v0 = 10
	id1, v1 := p.Allocate()
	*v1 = 20

	require.NotEqual(t, id0, id1)
	require.Equal(t, 10, *p.Get(id0))
	require.Equal(t, 20, *p.Get(id1))
	require.Equal(t, 2, p.Len())
}

func TestPoolSurvivesPageBoundary(t *testing.T) {
	var p Pool[int]
	ids := make([]ID, PageSize+5)
	for i := range ids {
		id, v := p.Allocate()
		*v = i
		ids[i] = id
	}
	for i, id := range ids {
		require.Equal(t, i, *p.Get(id))
	}
}

func TestPoolEachVisitsAllocationOrder(t *testing.T) {
	var p Pool[int]
	for i := 0; i < 10; i++ {
		_, v := p.Allocate()
		*v = i
	}
	var seen []int
	p.Each(func(id ID, v *int) { seen = append(seen, *v) })
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seen)
}

func TestPoolResetClearsButKeepsPages(t *testing.T) {
	var p Pool[int]
	_, v := p.Allocate()
	*v = 42
	p.Reset()
	require.Equal(t, 0, p.Len())
	_, v2 := p.Allocate()
	require.Equal(t, 0, *v2)
}
