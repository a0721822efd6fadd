package track

import (
	"sort"
	"time"
)

// Table owns the live identities and the capacity that bounds their ids.
// Capacity is the larger of the observed peak and the configured seed.
type Table struct {
	capacity   int
	peak       int
	identities map[int]*Identity
}

// NewTable returns an empty table whose capacity is seeded with seed.
func NewTable(seed int) *Table {
	return &Table{capacity: max(seed, 0), identities: make(map[int]*Identity)}
}

// Capacity bounds the id space.
func (t *Table) Capacity() int { return t.capacity }

// Peak is the largest simultaneous detection count seen so far.
func (t *Table) Peak() int { return t.peak }

// Len returns the number of live identities.
func (t *Table) Len() int { return len(t.identities) }

// Grow records a frame's detection count and raises capacity to it if it is
// larger. Capacity never shrinks.
func (t *Table) Grow(n int) bool {
	t.peak = max(t.peak, n)
	return t.Seed(n)
}

// Seed raises capacity to n without counting it as an observation.
func (t *Table) Seed(n int) bool {
	if n <= t.capacity {
		return false
	}
	t.capacity = n
	return true
}

// Get returns the identity in slot id.
func (t *Table) Get(id int) (*Identity, bool) {
	ident, ok := t.identities[id]
	return ident, ok
}

// Put stores ident in its slot, replacing any previous occupant.
func (t *Table) Put(ident *Identity) {
	t.identities[ident.ID] = ident
}

// Sorted returns the live identities in ascending id order.
func (t *Table) Sorted() []*Identity {
	out := make([]*Identity, 0, len(t.identities))
	for _, ident := range t.identities {
		out = append(out, ident)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Allocate picks a slot for a detection no identity claimed. In order it tries
// the lowest empty slot, the lowest slot whose occupant has been missing longer
// than after, and the occupant unseen for longest. While capacity is above the
// observed peak the empty slots exist only because of the seed, so a missing
// occupant is revived before one of them is opened. Slots in taken are never
// returned. The occupant of the returned slot, if any, is returned with it.
// ok is false when no slot qualifies, which only happens if capacity is
// smaller than the frame's detection count.
func (t *Table) Allocate(now time.Time, after time.Duration, taken map[int]bool) (slot int, occupant *Identity, ok bool) {
	seeded := t.peak < t.capacity
	if seeded {
		if id, ident, ok := t.lowestMissing(now, after, taken); ok {
			return id, ident, true
		}
	}
	for id := 0; id < t.capacity; id++ {
		if taken[id] {
			continue
		}
		if _, used := t.identities[id]; !used {
			return id, nil, true
		}
	}
	if !seeded {
		if id, ident, ok := t.lowestMissing(now, after, taken); ok {
			return id, ident, true
		}
	}
	var longest *Identity
	for id := 0; id < t.capacity; id++ {
		ident, used := t.identities[id]
		if !used || taken[id] {
			continue
		}
		if longest == nil || ident.Unseen(now) > longest.Unseen(now) {
			longest = ident
		}
	}
	if longest != nil {
		return longest.ID, longest, true
	}
	return 0, t.identities[0], false
}

func (t *Table) lowestMissing(now time.Time, after time.Duration, taken map[int]bool) (int, *Identity, bool) {
	for id := 0; id < t.capacity; id++ {
		if taken[id] {
			continue
		}
		if ident, used := t.identities[id]; used && ident.Missing(now, after) {
			return id, ident, true
		}
	}
	return 0, nil, false
}

// Prune removes identities whose id is outside [0, capacity) and returns
// their ids.
func (t *Table) Prune() []int {
	var pruned []int
	for id := range t.identities {
		if id < 0 || id >= t.capacity {
			delete(t.identities, id)
			pruned = append(pruned, id)
		}
	}
	sort.Ints(pruned)
	return pruned
}
