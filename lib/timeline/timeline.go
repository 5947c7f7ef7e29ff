package timeline

import (
	"slices"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// DefaultMaxSize is the number of status ids a home timeline retains (HOME_TIMELINE_SIZE)
	DefaultMaxSize = 400
)

// StatusID is the externally assigned, monotonically increasing identifier of a status.
// It is used as the member of a timeline and as its own ordering score.
type StatusID = uint64

// --------------------------------------------------------------------------
// Ranked Timeline
// --------------------------------------------------------------------------

// RankedTimeline is a bounded, ordered set of status ids.
// Members are kept in ascending order, the most recent id is the last element.
//
// Thread-safety: RankedTimeline is not thread-safe. The owner has to serialize
// all access (the db engines hold a per-timeline mutex).
type RankedTimeline struct {
	ids     []StatusID
	maxSize int
}

// New creates an empty timeline retaining at most maxSize ids.
// A maxSize <= 0 selects DefaultMaxSize.
func New(maxSize int) *RankedTimeline {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &RankedTimeline{
		ids:     make([]StatusID, 0, min(maxSize, 64)),
		maxSize: maxSize,
	}
}

// FromIDs creates a timeline from an arbitrary list of ids (used when restoring snapshots).
// Duplicates are dropped and the size bound is applied.
func FromIDs(maxSize int, ids []StatusID) *RankedTimeline {
	tl := New(maxSize)
	tl.ids = append(tl.ids, ids...)
	slices.Sort(tl.ids)
	tl.ids = slices.Compact(tl.ids)
	tl.Trim(tl.maxSize)
	return tl
}

// MaxSize returns the configured size bound of the timeline.
func (tl *RankedTimeline) MaxSize() int {
	return tl.maxSize
}

// Len returns the number of ids in the timeline.
func (tl *RankedTimeline) Len() int {
	return len(tl.ids)
}

// Insert adds id to the timeline. Inserting an id that is already present is a no-op.
// If the timeline exceeds its maximum size afterwards, the oldest (lowest) ids are
// evicted and returned. Note that a non-monotonic id lower than every retained id is
// evicted by the same insert when the timeline is full.
func (tl *RankedTimeline) Insert(id StatusID) (inserted bool, evicted []StatusID) {
	pos, found := slices.BinarySearch(tl.ids, id)
	if found {
		return false, nil
	}
	tl.ids = slices.Insert(tl.ids, pos, id)
	return true, tl.Trim(tl.maxSize)
}

// Remove deletes id from the timeline and reports whether it was present.
func (tl *RankedTimeline) Remove(id StatusID) bool {
	pos, found := slices.BinarySearch(tl.ids, id)
	if !found {
		return false
	}
	tl.ids = slices.Delete(tl.ids, pos, pos+1)
	return true
}

// Trim evicts the oldest ids until at most maxSize ids remain and returns the evicted ids.
// A maxSize <= 0 uses the bound of the timeline. Trim is idempotent.
func (tl *RankedTimeline) Trim(maxSize int) []StatusID {
	if maxSize <= 0 {
		maxSize = tl.maxSize
	}
	excess := len(tl.ids) - maxSize
	if excess <= 0 {
		return nil
	}
	evicted := slices.Clone(tl.ids[:excess])
	tl.ids = slices.Delete(tl.ids, 0, excess)
	return evicted
}

// Rank returns the 0-based ascending position of id.
// The found flag is false if the id is not part of the timeline; rank 0 is a valid rank.
func (tl *RankedTimeline) Rank(id StatusID) (rank int, found bool) {
	return slices.BinarySearch(tl.ids, id)
}

// RevRange returns the ids at the descending positions [start, stop] (inclusive).
// Position 0 is the most recent id. Positions outside the timeline are clamped,
// a negative stop selects everything up to the oldest id.
func (tl *RankedTimeline) RevRange(start, stop int) []StatusID {
	n := len(tl.ids)
	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop {
		return []StatusID{}
	}

	out := make([]StatusID, 0, stop-start+1)
	for p := start; p <= stop; p++ {
		out = append(out, tl.ids[n-1-p])
	}
	return out
}

// RangeByRank returns the ids whose score lies in [minID, maxID], most recent first.
func (tl *RankedTimeline) RangeByRank(minID, maxID StatusID) []StatusID {
	if minID > maxID {
		return []StatusID{}
	}
	lo, _ := slices.BinarySearch(tl.ids, minID)
	hi, found := slices.BinarySearch(tl.ids, maxID)
	if found {
		hi++
	}

	out := make([]StatusID, 0, max(hi-lo, 0))
	for i := hi - 1; i >= lo; i-- {
		out = append(out, tl.ids[i])
	}
	return out
}

// IDs returns a copy of all ids in ascending order.
func (tl *RankedTimeline) IDs() []StatusID {
	return slices.Clone(tl.ids)
}
