package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableGrowNeverShrinks(t *testing.T) {
	tbl := NewTable(0)
	assert.True(t, tbl.Grow(3))
	assert.False(t, tbl.Grow(1))
	assert.Equal(t, 3, tbl.Capacity())
	assert.Equal(t, 0, NewTable(-2).Capacity())
}

func TestTableAllocate(t *testing.T) {
	const after = 2 * time.Second
	now := at(30)

	t.Run("lowest empty slot", func(t *testing.T) {
		tbl := NewTable(3)
		tbl.Put(newIdentity(0, det(0, 0), now, 0))
		slot, occ, ok := tbl.Allocate(now, after, map[int]bool{1: true})
		require.True(t, ok)
		assert.Equal(t, 2, slot)
		assert.Nil(t, occ)
	})

	t.Run("lowest missing occupant", func(t *testing.T) {
		tbl := NewTable(3)
		tbl.Put(newIdentity(0, det(0, 0), now, 0))
		tbl.Put(newIdentity(1, det(0, 0), at(0), 0))
		tbl.Put(newIdentity(2, det(0, 0), at(1), 0))
		slot, occ, ok := tbl.Allocate(now, after, nil)
		require.True(t, ok)
		assert.Equal(t, 1, slot)
		assert.Same(t, occ, mustGet(t, tbl, 1))
	})

	t.Run("longest unseen occupant", func(t *testing.T) {
		tbl := NewTable(2)
		tbl.Put(newIdentity(0, det(0, 0), at(20), 0))
		tbl.Put(newIdentity(1, det(0, 0), at(15), 0))
		slot, _, ok := tbl.Allocate(now, after, nil)
		require.True(t, ok)
		assert.Equal(t, 1, slot)

		slot, _, ok = tbl.Allocate(now, after, map[int]bool{1: true})
		require.True(t, ok)
		assert.Equal(t, 0, slot)
	})

	t.Run("nothing left", func(t *testing.T) {
		tbl := NewTable(1)
		tbl.Put(newIdentity(0, det(0, 0), now, 0))
		_, _, ok := tbl.Allocate(now, after, map[int]bool{0: true})
		assert.False(t, ok)
	})
}

func TestTablePrune(t *testing.T) {
	tbl := NewTable(2)
	tbl.Put(newIdentity(0, det(0, 0), at(0), 0))
	tbl.Put(newIdentity(4, det(0, 0), at(0), 0))
	tbl.Put(newIdentity(3, det(0, 0), at(0), 0))
	assert.Equal(t, []int{3, 4}, tbl.Prune())
	assert.Equal(t, 1, tbl.Len())
}

func mustGet(t *testing.T, tbl *Table, id int) *Identity {
	t.Helper()
	ident, ok := tbl.Get(id)
	require.True(t, ok)
	return ident
}

func TestTableSeedRevivesBeforeOpeningSlots(t *testing.T) {
	const after = 2 * time.Second
	now := at(30)

	tbl := NewTable(3)
	assert.False(t, tbl.Grow(1))
	assert.Equal(t, 1, tbl.Peak())
	tbl.Put(newIdentity(0, det(0, 0), at(0), 0))
	slot, occ, ok := tbl.Allocate(now, after, nil)
	require.True(t, ok)
	assert.Equal(t, 0, slot)
	assert.Same(t, occ, mustGet(t, tbl, 0))

	// Once the peak reaches capacity, empty slots come first again.
	tbl = NewTable(0)
	tbl.Grow(3)
	tbl.Put(newIdentity(0, det(0, 0), at(0), 0))
	slot, occ, ok = tbl.Allocate(now, after, nil)
	require.True(t, ok)
	assert.Equal(t, 1, slot)
	assert.Nil(t, occ)

	assert.True(t, tbl.Seed(5))
	assert.Equal(t, 3, tbl.Peak(), "seeding is not an observation")
}
