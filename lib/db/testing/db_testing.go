package testing

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"testing"

	"github.com/ValentinKolb/dFeed/lib/db"
	"github.com/ValentinKolb/dFeed/lib/timeline"
)

// DBFactory creates a new, empty TimelineDB whose timelines hold at most maxSize ids.
// A maxSize <= 0 selects timeline.DefaultMaxSize.
type DBFactory func(maxSize int) db.TimelineDB

// RunTimelineDBTests runs the conformance test suite for a TimelineDB implementation.
func RunTimelineDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Insert", func(t *testing.T) {
			testInsert(t, factory(0))
		})

		t.Run("BoundedSize", func(t *testing.T) {
			testBoundedSize(t, factory)
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory(0))
		})

		t.Run("Trim", func(t *testing.T) {
			testTrim(t, factory(0))
		})

		t.Run("Rank", func(t *testing.T) {
			testRank(t, factory(0))
		})

		t.Run("Ranges", func(t *testing.T) {
			testRanges(t, factory(0))
		})

		t.Run("Query", func(t *testing.T) {
			testQuery(t, factory(0))
		})

		t.Run("Isolation", func(t *testing.T) {
			testIsolation(t, factory(0))
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("Concurrent", func(t *testing.T) {
			testConcurrent(t, factory(50))
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory(0))
		})

		t.Run("QueryOffset", func(t *testing.T) {
			testQueryOffset(t, factory(0))
		})

		t.Run("Closed", func(t *testing.T) {
			testClosed(t, factory(0))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.TimelineDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

func fill(t testing.TB, database db.TimelineDB, key string, ids ...timeline.StatusID) {
	t.Helper()
	for _, id := range ids {
		if _, _, err := database.Insert(key, id); err != nil {
			t.Fatalf("Insert(%q, %d) failed: %v", key, id, err)
		}
	}
}

func insert(t *testing.T, database db.TimelineDB, key string, id timeline.StatusID) (bool, int) {
	t.Helper()
	inserted, evicted, err := database.Insert(key, id)
	if err != nil {
		t.Fatalf("Insert(%q, %d) failed: %v", key, id, err)
	}
	return inserted, evicted
}

func remove(t *testing.T, database db.TimelineDB, key string, id timeline.StatusID) bool {
	t.Helper()
	removed, err := database.Remove(key, id)
	if err != nil {
		t.Fatalf("Remove(%q, %d) failed: %v", key, id, err)
	}
	return removed
}

func trim(t *testing.T, database db.TimelineDB, key string, maxSize int) int {
	t.Helper()
	evicted, err := database.Trim(key, maxSize)
	if err != nil {
		t.Fatalf("Trim(%q, %d) failed: %v", key, maxSize, err)
	}
	return evicted
}

func length(t *testing.T, database db.TimelineDB, key string) int {
	t.Helper()
	n, err := database.Len(key)
	if err != nil {
		t.Fatalf("Len(%q) failed: %v", key, err)
	}
	return n
}

func revRange(t *testing.T, database db.TimelineDB, key string, start, stop int) []timeline.StatusID {
	t.Helper()
	ids, err := database.RevRange(key, start, stop)
	if err != nil {
		t.Fatalf("RevRange(%q, %d, %d) failed: %v", key, start, stop, err)
	}
	return ids
}

func rangeByRank(t *testing.T, database db.TimelineDB, key string, minID, maxID timeline.StatusID) []timeline.StatusID {
	t.Helper()
	ids, err := database.RangeByRank(key, minID, maxID)
	if err != nil {
		t.Fatalf("RangeByRank(%q, %d, %d) failed: %v", key, minID, maxID, err)
	}
	return ids
}

func query(t *testing.T, database db.TimelineDB, key string, params timeline.QueryParams) timeline.Result {
	t.Helper()
	res, err := database.Query(key, timeline.ResolveParams(params))
	if err != nil {
		t.Fatalf("Query(%q, %+v) failed: %v", key, params, err)
	}
	return res
}

func expectIDs(t *testing.T, what string, got, want []timeline.StatusID) {
	t.Helper()
	if got == nil {
		t.Errorf("%s: expected an empty slice, got nil", what)
		return
	}
	if !slices.Equal(got, want) {
		t.Errorf("%s: expected %v, got %v", what, want, got)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testInsert(t *testing.T, database db.TimelineDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureRange)

	if inserted, _ := insert(t, database, "alice", 10); !inserted {
		t.Errorf("Expected first insert of 10 to succeed")
	}
	if inserted, _ := insert(t, database, "alice", 10); inserted {
		t.Errorf("Expected second insert of 10 to be a no-op")
	}
	fill(t, database, "alice", 30, 20)

	if n := length(t, database, "alice"); n != 3 {
		t.Errorf("Expected 3 ids, got %d", n)
	}
	expectIDs(t, "RevRange", revRange(t, database, "alice", 0, -1), []timeline.StatusID{30, 20, 10})

	// unknown timelines read as empty
	if n := length(t, database, "nobody"); n != 0 {
		t.Errorf("Expected unknown timeline to be empty, got %d", n)
	}
	expectIDs(t, "RevRange of unknown timeline", revRange(t, database, "nobody", 0, -1), []timeline.StatusID{})
}

func testBoundedSize(t *testing.T, factory DBFactory) {
	database := factory(5)
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureRange)

	for id := timeline.StatusID(1); id <= 8; id++ {
		insert(t, database, "bob", id)
	}
	if n := length(t, database, "bob"); n != 5 {
		t.Errorf("Expected timeline to be bounded to 5, got %d", n)
	}
	expectIDs(t, "newest five", revRange(t, database, "bob", 0, -1), []timeline.StatusID{8, 7, 6, 5, 4})

	// older than the whole window, evicted right away
	if _, evicted := insert(t, database, "bob", 2); evicted != 1 {
		t.Errorf("Expected the late id to be evicted, evicted %d", evicted)
	}
	expectIDs(t, "after late insert", revRange(t, database, "bob", 0, -1), []timeline.StatusID{8, 7, 6, 5, 4})

	// an id inside the window evicts the oldest one
	remove(t, database, "bob", 6)
	insert(t, database, "bob", 9)
	if inserted, evicted := insert(t, database, "bob", 6); !inserted || evicted != 1 {
		t.Errorf("Expected (true, 1) for reinsert, got (%v, %d)", inserted, evicted)
	}
	expectIDs(t, "after reinsert", revRange(t, database, "bob", 0, -1), []timeline.StatusID{9, 8, 7, 6, 5})
}

func testRemove(t *testing.T, database db.TimelineDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureRemove)

	fill(t, database, "carol", 1, 2, 3)

	if !remove(t, database, "carol", 2) {
		t.Errorf("Expected remove of 2 to succeed")
	}
	if remove(t, database, "carol", 2) {
		t.Errorf("Expected second remove of 2 to report false")
	}
	if remove(t, database, "nobody", 1) {
		t.Errorf("Expected remove from unknown timeline to report false")
	}
	expectIDs(t, "after remove", revRange(t, database, "carol", 0, -1), []timeline.StatusID{3, 1})

	// removing everything leaves an empty timeline that can be reused
	remove(t, database, "carol", 1)
	remove(t, database, "carol", 3)
	if n := length(t, database, "carol"); n != 0 {
		t.Errorf("Expected empty timeline, got %d", n)
	}
	insert(t, database, "carol", 4)
	expectIDs(t, "after reuse", revRange(t, database, "carol", 0, -1), []timeline.StatusID{4})
}

func testTrim(t *testing.T, database db.TimelineDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureTrim)

	fill(t, database, "dave", 5, 4, 3, 2, 1)

	if n := trim(t, database, "dave", 3); n != 2 {
		t.Errorf("Expected 2 evicted ids, got %d", n)
	}
	expectIDs(t, "after trim", revRange(t, database, "dave", 0, -1), []timeline.StatusID{5, 4, 3})

	if n := trim(t, database, "dave", 3); n != 0 {
		t.Errorf("Expected trim to be idempotent, evicted %d", n)
	}
	if n := trim(t, database, "dave", 0); n != 0 {
		t.Errorf("Expected trim with default bound to evict nothing, evicted %d", n)
	}
	if n := trim(t, database, "nobody", 1); n != 0 {
		t.Errorf("Expected trim of unknown timeline to evict nothing, evicted %d", n)
	}
}

func testRank(t *testing.T, database db.TimelineDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureRank)

	fill(t, database, "erin", 10, 20, 30)

	for id, want := range map[timeline.StatusID]int{10: 0, 20: 1, 30: 2} {
		rank, found, err := database.Rank("erin", id)
		if err != nil || !found || rank != want {
			t.Errorf("Rank(%d): expected (%d, true), got (%d, %v)", id, want, rank, found)
		}
	}
	if _, found, err := database.Rank("erin", 15); err != nil || found {
		t.Errorf("Expected 15 not to be found")
	}
	if _, found, err := database.Rank("nobody", 10); err != nil || found {
		t.Errorf("Expected lookup in unknown timeline not to find anything")
	}
}

func testRanges(t *testing.T, database db.TimelineDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureRange)

	fill(t, database, "frank", 10, 20, 30, 40, 50)

	expectIDs(t, "RevRange(1,2)", revRange(t, database, "frank", 1, 2), []timeline.StatusID{40, 30})
	expectIDs(t, "RevRange(3,100)", revRange(t, database, "frank", 3, 100), []timeline.StatusID{20, 10})
	expectIDs(t, "RevRange(7,9)", revRange(t, database, "frank", 7, 9), []timeline.StatusID{})
	expectIDs(t, "RangeByRank(20,40)", rangeByRank(t, database, "frank", 20, 40), []timeline.StatusID{40, 30, 20})
	expectIDs(t, "RangeByRank(15,35)", rangeByRank(t, database, "frank", 15, 35), []timeline.StatusID{30, 20})
	expectIDs(t, "RangeByRank(0,100)", rangeByRank(t, database, "frank", 0, 100), []timeline.StatusID{50, 40, 30, 20, 10})
	expectIDs(t, "RangeByRank(41,49)", rangeByRank(t, database, "frank", 41, 49), []timeline.StatusID{})
	expectIDs(t, "RangeByRank(40,20)", rangeByRank(t, database, "frank", 40, 20), []timeline.StatusID{})
}

func testQuery(t *testing.T, database db.TimelineDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureQuery)

	fill(t, database, "grace", 10, 20, 30, 40, 50)

	tests := []struct {
		name      string
		params    timeline.QueryParams
		want      []timeline.StatusID
		wantStale bool
	}{
		{"newest", timeline.QueryParams{Limit: 2}, []timeline.StatusID{50, 40}, false},
		{"since", timeline.QueryParams{}.Since(30), []timeline.StatusID{50, 40}, false},
		{"max", timeline.QueryParams{Limit: 2}.Max(30), []timeline.StatusID{30, 20}, false},
		{"both", timeline.QueryParams{}.Since(10).Max(30), []timeline.StatusID{30, 20}, false},
		{"stale", timeline.QueryParams{}.Since(35), []timeline.StatusID{}, true},
		{"count", timeline.QueryParams{Count: 1}, []timeline.StatusID{50}, false},
	}
	for _, tt := range tests {
		res := query(t, database, "grace", tt.params)
		expectIDs(t, tt.name, res.IDs, tt.want)
		if res.Stale != tt.wantStale {
			t.Errorf("%s: expected stale=%v, got %v", tt.name, tt.wantStale, res.Stale)
		}
	}

	res := query(t, database, "nobody", timeline.QueryParams{})
	expectIDs(t, "unknown timeline", res.IDs, []timeline.StatusID{})
}

func testIsolation(t *testing.T, database db.TimelineDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureRemove)

	fill(t, database, "heidi", 1, 2)
	fill(t, database, "ivan", 3)
	remove(t, database, "heidi", 3)

	if n := length(t, database, "ivan"); n != 1 {
		t.Errorf("Expected operations on heidi not to affect ivan, got len %d", n)
	}

	// keys differing only in a suffix stay separate
	for i := 0; i < 100; i++ {
		insert(t, database, fmt.Sprintf("user-%d", i), timeline.StatusID(i))
	}
	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("user-%d", i)
		expectIDs(t, key, revRange(t, database, key, 0, -1), []timeline.StatusID{timeline.StatusID(i)})
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory(0)
	defer database.Close()

	requireFeature(t, database, db.FeatureSave|db.FeatureLoad)

	for u := 0; u < 20; u++ {
		for id := 1; id <= u+1; id++ {
			insert(t, database, fmt.Sprintf("user-%d", u), timeline.StatusID(id*10+u))
		}
	}
	// an emptied timeline survives the snapshot
	insert(t, database, "empty", 1)
	remove(t, database, "empty", 1)

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	restored := factory(0)
	defer restored.Close()
	insert(t, restored, "stale-key", 1)

	if err := restored.Load(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for u := 0; u < 20; u++ {
		key := fmt.Sprintf("user-%d", u)
		expectIDs(t, key, revRange(t, restored, key, 0, -1), revRange(t, database, key, 0, -1))
	}
	if n := length(t, restored, "stale-key"); n != 0 {
		t.Errorf("Expected Load to replace existing data, found %d ids", n)
	}
	if got := restored.GetInfo().Timelines; got != 21 {
		t.Errorf("Expected 21 timelines after load, got %d", got)
	}

	// loading into a smaller bound trims every timeline
	small := factory(3)
	defer small.Close()
	if err := small.Load(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Load into smaller database failed: %v", err)
	}
	if n := length(t, small, "user-19"); n != 3 {
		t.Errorf("Expected loaded timeline to be trimmed to 3, got %d", n)
	}

	if err := restored.Load(bytes.NewReader([]byte("garbage!garbage!"))); err == nil {
		t.Errorf("Expected Load of invalid data to fail")
	}
}

func testConcurrent(t *testing.T, database db.TimelineDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureQuery)

	const writers = 8
	const perWriter = 200

	var wg sync.WaitGroup
	wg.Add(writers + 1)
	for w := 0; w < writers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, _, err := database.Insert("shared", timeline.StatusID(i*writers+w+1)); err != nil {
					t.Errorf("Insert failed: %v", err)
					return
				}
			}
		}(w)
	}

	// readers must always observe a sorted, bounded page
	go func() {
		defer wg.Done()
		for i := 0; i < perWriter; i++ {
			res, err := database.Query("shared", timeline.ResolveParams(timeline.QueryParams{Limit: timeline.MaxLimit}))
			if err != nil {
				t.Errorf("Query failed: %v", err)
				return
			}
			ids := res.IDs
			for j := 1; j < len(ids); j++ {
				if ids[j-1] <= ids[j] {
					t.Errorf("Expected descending ids, got %v", ids)
					return
				}
			}
		}
	}()
	wg.Wait()

	if n := length(t, database, "shared"); n != 50 {
		t.Errorf("Expected 50 ids after concurrent inserts, got %d", n)
	}
	newest := revRange(t, database, "shared", 0, 0)
	if len(newest) != 1 || newest[0] != writers*perWriter {
		t.Errorf("Expected newest id %d, got %v", writers*perWriter, newest)
	}
}

func testInfo(t *testing.T, database db.TimelineDB) {
	defer database.Close()

	fill(t, database, "judy", 1, 2, 3)
	fill(t, database, "mallory", 4)

	info := database.GetInfo()
	if info.Timelines != 2 {
		t.Errorf("Expected 2 timelines, got %d", info.Timelines)
	}
	if info.MaxTimelineSize != timeline.DefaultMaxSize {
		t.Errorf("Expected default max size %d, got %d", timeline.DefaultMaxSize, info.MaxTimelineSize)
	}
	for _, f := range info.SupportedFeatures {
		if !database.SupportsFeature(f) {
			t.Errorf("Feature %s is listed but not supported", f)
		}
	}
}

func testQueryOffset(t *testing.T, database db.TimelineDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureQuery)

	for id := timeline.StatusID(1); id <= 100; id++ {
		insert(t, database, "kim", id*10)
	}

	for _, offset := range []int{-1, math.MinInt, 99, 100, math.MaxInt - 1, math.MaxInt} {
		for _, params := range []timeline.QueryParams{
			{Limit: 5, Offset: offset},
			{Limit: timeline.MaxLimit + 1, Offset: offset},
			timeline.QueryParams{Limit: 5, Offset: offset}.Max(990),
			timeline.QueryParams{Limit: 5, Offset: offset}.Since(10).Max(990),
		} {
			res := query(t, database, "kim", params)
			if len(res.IDs) > timeline.MaxLimit {
				t.Errorf("offset %d: expected at most %d ids, got %d", offset, timeline.MaxLimit, len(res.IDs))
			}
			if offset >= 99 && len(res.IDs) > 1 {
				t.Errorf("offset %d: expected at most the oldest id, got %v", offset, res.IDs)
			}
		}
	}

	// a negative offset is ignored
	expectIDs(t, "negative offset", query(t, database, "kim", timeline.QueryParams{Limit: 2, Offset: -7}).IDs,
		[]timeline.StatusID{1000, 990})
}

// testClosed checks that a closed database fails loudly instead of reporting empty timelines
func testClosed(t *testing.T, database db.TimelineDB) {
	requireFeature(t, database, db.FeatureInsert|db.FeatureQuery)

	fill(t, database, "leo", 1, 2, 3)
	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	expectUnavailable := func(op string, err error) {
		t.Helper()
		if !errors.Is(err, db.ErrUnavailable) {
			t.Errorf("%s on closed database: expected ErrUnavailable, got %v", op, err)
		}
	}

	_, _, err := database.Insert("leo", 4)
	expectUnavailable("Insert", err)
	_, err = database.Remove("leo", 1)
	expectUnavailable("Remove", err)
	_, err = database.Trim("leo", 1)
	expectUnavailable("Trim", err)
	_, _, err = database.Rank("leo", 1)
	expectUnavailable("Rank", err)
	_, err = database.RevRange("leo", 0, -1)
	expectUnavailable("RevRange", err)
	_, err = database.RangeByRank("leo", 0, 10)
	expectUnavailable("RangeByRank", err)
	_, err = database.Len("leo")
	expectUnavailable("Len", err)
	_, err = database.Query("leo", timeline.ResolveParams(timeline.QueryParams{}))
	expectUnavailable("Query", err)
}
