package timeline

import (
	"slices"
	"testing"
)

// newFilled creates a timeline containing the given ids
func newFilled(maxSize int, ids ...StatusID) *RankedTimeline {
	tl := New(maxSize)
	for _, id := range ids {
		tl.Insert(id)
	}
	return tl
}

// TestInsertOrdering tests that ids are kept in ascending order regardless of insertion order
func TestInsertOrdering(t *testing.T) {
	tl := newFilled(10, 30, 10, 50, 20, 40)

	if got := tl.IDs(); !slices.Equal(got, []StatusID{10, 20, 30, 40, 50}) {
		t.Errorf("IDs() = %v, want ascending order", got)
	}
	if got := tl.RevRange(0, -1); !slices.Equal(got, []StatusID{50, 40, 30, 20, 10}) {
		t.Errorf("RevRange(0, -1) = %v, want descending order", got)
	}
}

// TestInsertIdempotent tests that pushing the same id twice does not change the timeline
func TestInsertIdempotent(t *testing.T) {
	tl := newFilled(10, 1, 2, 3)
	before := tl.IDs()

	inserted, evicted := tl.Insert(2)
	if inserted {
		t.Error("Insert() of an existing id reported inserted=true")
	}
	if len(evicted) != 0 {
		t.Errorf("Insert() of an existing id evicted %v", evicted)
	}
	if !slices.Equal(before, tl.IDs()) {
		t.Errorf("timeline changed after duplicate insert: %v -> %v", before, tl.IDs())
	}
}

// TestBoundedSize tests that the size never exceeds the configured maximum
func TestBoundedSize(t *testing.T) {
	tl := New(0) // default size
	if tl.MaxSize() != DefaultMaxSize {
		t.Fatalf("MaxSize() = %d, want %d", tl.MaxSize(), DefaultMaxSize)
	}

	for i := 1; i <= DefaultMaxSize+1; i++ {
		tl.Insert(StatusID(i))
		if tl.Len() > DefaultMaxSize {
			t.Fatalf("Len() = %d after %d inserts, exceeds %d", tl.Len(), i, DefaultMaxSize)
		}
	}

	// the smallest id must be evicted, the largest 400 must remain
	if _, found := tl.Rank(1); found {
		t.Error("id 1 should have been evicted")
	}
	ids := tl.IDs()
	if len(ids) != DefaultMaxSize || ids[0] != 2 || ids[len(ids)-1] != DefaultMaxSize+1 {
		t.Errorf("unexpected retained window: first=%d last=%d len=%d", ids[0], ids[len(ids)-1], len(ids))
	}
}

// TestInsertEvictsOldest tests the evicted ids returned by Insert
func TestInsertEvictsOldest(t *testing.T) {
	tl := newFilled(3, 10, 20, 30)

	inserted, evicted := tl.Insert(40)
	if !inserted || !slices.Equal(evicted, []StatusID{10}) {
		t.Errorf("Insert(40) = (%v, %v), want (true, [10])", inserted, evicted)
	}

	// a non-monotonic id below the window is evicted immediately
	inserted, evicted = tl.Insert(5)
	if !inserted || !slices.Equal(evicted, []StatusID{5}) {
		t.Errorf("Insert(5) = (%v, %v), want (true, [5])", inserted, evicted)
	}
	if got := tl.IDs(); !slices.Equal(got, []StatusID{20, 30, 40}) {
		t.Errorf("IDs() = %v, want [20 30 40]", got)
	}
}

// TestRemove tests removing present and absent ids
func TestRemove(t *testing.T) {
	tl := newFilled(10, 10, 20, 30)

	if !tl.Remove(20) {
		t.Error("Remove(20) = false, want true")
	}
	if tl.Remove(20) {
		t.Error("second Remove(20) = true, want false")
	}
	if got := tl.IDs(); !slices.Equal(got, []StatusID{10, 30}) {
		t.Errorf("IDs() = %v, want [10 30]", got)
	}
}

// TestTrim tests explicit trimming
func TestTrim(t *testing.T) {
	tl := newFilled(10, 1, 2, 3, 4, 5)

	if evicted := tl.Trim(3); !slices.Equal(evicted, []StatusID{1, 2}) {
		t.Errorf("Trim(3) evicted %v, want [1 2]", evicted)
	}
	if evicted := tl.Trim(3); len(evicted) != 0 {
		t.Errorf("second Trim(3) evicted %v, want nothing", evicted)
	}
	if evicted := tl.Trim(0); len(evicted) != 0 {
		t.Errorf("Trim(0) with len below max evicted %v", evicted)
	}
}

// TestRank tests rank lookups, including rank 0
func TestRank(t *testing.T) {
	tl := newFilled(10, 10, 20, 30)

	tests := []struct {
		id    StatusID
		rank  int
		found bool
	}{
		{10, 0, true},
		{20, 1, true},
		{30, 2, true},
		{15, 1, false},
		{99, 3, false},
	}
	for _, tt := range tests {
		rank, found := tl.Rank(tt.id)
		if found != tt.found || (found && rank != tt.rank) {
			t.Errorf("Rank(%d) = (%d, %v), want (%d, %v)", tt.id, rank, found, tt.rank, tt.found)
		}
	}
}

// TestRevRange tests clamping of descending position ranges
func TestRevRange(t *testing.T) {
	tl := newFilled(10, 10, 20, 30, 40, 50)

	tests := []struct {
		name        string
		start, stop int
		want        []StatusID
	}{
		{"newest two", 0, 1, []StatusID{50, 40}},
		{"middle", 1, 3, []StatusID{40, 30, 20}},
		{"stop beyond end", 3, 100, []StatusID{20, 10}},
		{"negative start", -5, 0, []StatusID{50}},
		{"start beyond end", 7, 9, []StatusID{}},
		{"inverted", 3, 1, []StatusID{}},
		{"negative stop", 2, -1, []StatusID{30, 20, 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tl.RevRange(tt.start, tt.stop); !slices.Equal(got, tt.want) {
				t.Errorf("RevRange(%d, %d) = %v, want %v", tt.start, tt.stop, got, tt.want)
			}
		})
	}

	if got := New(10).RevRange(0, 10); got == nil || len(got) != 0 {
		t.Errorf("RevRange on empty timeline = %#v, want empty non-nil slice", got)
	}
}

// TestRangeByRank tests score ranges
func TestRangeByRank(t *testing.T) {
	tl := newFilled(10, 10, 20, 30, 40, 50)

	if got := tl.RangeByRank(20, 40); !slices.Equal(got, []StatusID{40, 30, 20}) {
		t.Errorf("RangeByRank(20, 40) = %v", got)
	}
	if got := tl.RangeByRank(15, 35); !slices.Equal(got, []StatusID{30, 20}) {
		t.Errorf("RangeByRank(15, 35) = %v", got)
	}
	if got := tl.RangeByRank(60, 70); len(got) != 0 {
		t.Errorf("RangeByRank(60, 70) = %v, want empty", got)
	}
	if got := tl.RangeByRank(40, 20); len(got) != 0 {
		t.Errorf("RangeByRank(40, 20) = %v, want empty", got)
	}
}

// TestFromIDs tests restoring a timeline from unsorted ids with duplicates
func TestFromIDs(t *testing.T) {
	tl := FromIDs(3, []StatusID{5, 1, 4, 4, 2, 3})
	if got := tl.IDs(); !slices.Equal(got, []StatusID{3, 4, 5}) {
		t.Errorf("FromIDs() = %v, want [3 4 5]", got)
	}
}
