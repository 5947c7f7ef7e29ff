package testing

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/ValentinKolb/dFeed/lib/store"
	"github.com/ValentinKolb/dFeed/lib/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreFactory creates a new, empty store whose timelines use timeline.DefaultMaxSize.
type StoreFactory func(t *testing.T) store.IStore

// OfflineFactory creates a new, empty store and a function that takes its backing storage offline.
type OfflineFactory func(t *testing.T) (s store.IStore, takeOffline func())

// RunStoreTests runs the behavioural test suite every store.IStore implementation must pass.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("BoundedSize", func(t *testing.T) { testBoundedSize(t, factory(t)) })
		t.Run("IdempotentPush", func(t *testing.T) { testIdempotentPush(t, factory(t)) })
		t.Run("RecencyOrdering", func(t *testing.T) { testRecencyOrdering(t, factory(t)) })
		t.Run("LimitCap", func(t *testing.T) { testLimitCap(t, factory(t)) })
		t.Run("CursorConsistency", func(t *testing.T) { testCursorConsistency(t, factory(t)) })
		t.Run("StaleCursor", func(t *testing.T) { testStaleCursor(t, factory(t)) })
		t.Run("EmptyTimeline", func(t *testing.T) { testEmptyTimeline(t, factory(t)) })
		t.Run("RemoveAndTrim", func(t *testing.T) { testRemoveAndTrim(t, factory(t)) })
		t.Run("PushMany", func(t *testing.T) { testPushMany(t, factory(t)) })
		t.Run("InvalidUser", func(t *testing.T) { testInvalidUser(t, factory(t)) })
		t.Run("ConcurrentPush", func(t *testing.T) { testConcurrentPush(t, factory(t)) })
	})
}

// RunUnavailableTests checks that a store whose backing storage went offline reports
// retryable errors for every operation instead of empty timelines.
func RunUnavailableTests(t *testing.T, name string, factory OfflineFactory) {
	t.Run(name, func(t *testing.T) {
		s, takeOffline := factory(t)
		push(t, s, "alice", 10, 20)
		takeOffline()

		expectRetryable := func(op string, err error) {
			t.Helper()
			require.Error(t, err, op)
			assert.True(t, store.IsRetryable(err), "%s: %v", op, err)
			assert.Equal(t, store.RetCUnavailable, store.CodeOf(err), op)
		}

		expectRetryable("Push", s.Push("alice", 30))
		expectRetryable("PushMany", s.PushMany([]string{"alice", "bob"}, 40))
		expectRetryable("Remove", s.Remove("alice", 10))
		expectRetryable("Trim", s.Trim("alice"))

		page, err := s.Query("alice", timeline.QueryParams{})
		expectRetryable("Query", err)
		assert.Nil(t, page)

		_, err = s.Len("alice")
		expectRetryable("Len", err)
	})
}

func ids(from, to int) []timeline.StatusID {
	out := make([]timeline.StatusID, 0, to-from+1)
	for i := to; i >= from; i-- {
		out = append(out, timeline.StatusID(i))
	}
	return out
}

func push(t *testing.T, s store.IStore, user string, statusIDs ...timeline.StatusID) {
	t.Helper()
	for _, id := range statusIDs {
		require.NoError(t, s.Push(user, id))
	}
}

// newest returns every id of the timeline, newest first, by walking it with max_id cursors
func newest(t *testing.T, s store.IStore, user string) []timeline.StatusID {
	t.Helper()
	var all []timeline.StatusID
	params := timeline.QueryParams{Limit: timeline.MaxLimit}
	for {
		page, err := s.Query(user, params)
		require.NoError(t, err)
		if len(all) > 0 && len(page) > 0 {
			page = page[1:] // max_id is inclusive
		}
		if len(page) == 0 {
			return all
		}
		all = append(all, page...)
		params = timeline.QueryParams{Limit: timeline.MaxLimit}.Max(page[len(page)-1])
	}
}

func testBoundedSize(t *testing.T, s store.IStore) {
	for i := 1; i <= timeline.DefaultMaxSize+1; i++ {
		require.NoError(t, s.Push("alice", timeline.StatusID(i)))
		n, err := s.Len("alice")
		require.NoError(t, err)
		require.LessOrEqual(t, n, timeline.DefaultMaxSize)
	}

	all := newest(t, s, "alice")
	assert.Equal(t, ids(2, timeline.DefaultMaxSize+1), all, "the smallest id must be evicted")
}

func testIdempotentPush(t *testing.T, s store.IStore) {
	push(t, s, "bob", 1, 2, 3)
	before, err := s.Query("bob", timeline.QueryParams{})
	require.NoError(t, err)

	push(t, s, "bob", 2)
	after, err := s.Query("bob", timeline.QueryParams{})
	require.NoError(t, err)

	assert.Equal(t, before, after)
	n, err := s.Len("bob")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func testRecencyOrdering(t *testing.T, s store.IStore) {
	push(t, s, "carol", 17, 3, 99, 42, 1, 58)

	page, err := s.Query("carol", timeline.QueryParams{})
	require.NoError(t, err)
	assert.Equal(t, []timeline.StatusID{99, 58, 42, 17, 3, 1}, page)
}

func testLimitCap(t *testing.T, s store.IStore) {
	for i := 1; i <= 100; i++ {
		require.NoError(t, s.Push("dave", timeline.StatusID(i)))
	}
	for _, limit := range []int{41, 100, 10_000} {
		page, err := s.Query("dave", timeline.QueryParams{Limit: limit})
		require.NoError(t, err)
		assert.Len(t, page, timeline.MaxLimit)
	}
	page, err := s.Query("dave", timeline.QueryParams{Count: 1000})
	require.NoError(t, err)
	assert.Len(t, page, timeline.MaxLimit)

	// no offset can widen a page
	for _, offset := range []int{-1, math.MinInt, 99, 100, math.MaxInt - 1, math.MaxInt} {
		for _, params := range []timeline.QueryParams{
			{Limit: 5, Offset: offset},
			{Limit: 10_000, Offset: offset},
			timeline.QueryParams{Limit: 5, Offset: offset}.Max(99),
			timeline.QueryParams{Limit: 5, Offset: offset}.Since(1).Max(99),
		} {
			page, err := s.Query("dave", params)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(page), timeline.MaxLimit, "params %+v", params)
			if offset >= 99 {
				assert.LessOrEqual(t, len(page), 1, "params %+v", params)
			}
		}
	}
	page, err = s.Query("dave", timeline.QueryParams{Limit: 2, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, []timeline.StatusID{100, 99}, page)
}

func testCursorConsistency(t *testing.T, s store.IStore) {
	push(t, s, "erin", 10, 20, 30, 40, 50)

	page, err := s.Query("erin", timeline.QueryParams{Limit: 10}.Since(20))
	require.NoError(t, err)
	assert.Equal(t, []timeline.StatusID{50, 40, 30}, page)

	page, err = s.Query("erin", timeline.QueryParams{Limit: 2}.Max(30))
	require.NoError(t, err)
	assert.Equal(t, []timeline.StatusID{30, 20}, page)

	// rank 0 is a valid cursor
	page, err = s.Query("erin", timeline.QueryParams{}.Since(10).Max(30))
	require.NoError(t, err)
	assert.Equal(t, []timeline.StatusID{30, 20}, page)

	// count wins over cursors and offset
	page, err = s.Query("erin", timeline.QueryParams{Count: 2, Offset: 3}.Since(40))
	require.NoError(t, err)
	assert.Equal(t, []timeline.StatusID{50, 40}, page)

	page, err = s.Query("erin", timeline.QueryParams{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []timeline.StatusID{40, 30}, page)
}

func testStaleCursor(t *testing.T, s store.IStore) {
	push(t, s, "frank", 10, 20, 30)

	page, err := s.Query("frank", timeline.QueryParams{}.Since(999))
	require.NoError(t, err)
	assert.Empty(t, page)

	page, err = s.Query("frank", timeline.QueryParams{}.Max(25))
	require.NoError(t, err)
	assert.Empty(t, page)

	// one resolving cursor still bounds the page
	page, err = s.Query("frank", timeline.QueryParams{}.Since(10).Max(999))
	require.NoError(t, err)
	assert.Equal(t, []timeline.StatusID{30, 20}, page)
}

func testEmptyTimeline(t *testing.T, s store.IStore) {
	for _, params := range []timeline.QueryParams{
		{},
		{Limit: 5, Offset: 2},
		timeline.QueryParams{}.Since(1),
		timeline.QueryParams{}.Max(1),
		timeline.QueryParams{}.Since(1).Max(2),
		{Count: 3},
	} {
		page, err := s.Query("nobody", params)
		require.NoError(t, err)
		assert.Empty(t, page, "params %+v", params)
	}
	n, err := s.Len("nobody")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testRemoveAndTrim(t *testing.T, s store.IStore) {
	push(t, s, "grace", 1, 2, 3)

	require.NoError(t, s.Remove("grace", 2))
	require.NoError(t, s.Remove("grace", 2), "removing an absent id is a no-op")
	require.NoError(t, s.Remove("nobody", 2))

	page, err := s.Query("grace", timeline.QueryParams{})
	require.NoError(t, err)
	assert.Equal(t, []timeline.StatusID{3, 1}, page)

	require.NoError(t, s.Trim("grace"))
	require.NoError(t, s.Trim("grace"))
	n, err := s.Len("grace")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func testPushMany(t *testing.T, s store.IStore) {
	users := []string{"heidi", "ivan", "judy"}
	require.NoError(t, s.PushMany(users, 100))
	require.NoError(t, s.PushMany(users[:2], 101))
	require.NoError(t, s.PushMany(nil, 102))

	for _, user := range users {
		page, err := s.Query(user, timeline.QueryParams{Count: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
	}
	page, err := s.Query("judy", timeline.QueryParams{})
	require.NoError(t, err)
	assert.Equal(t, []timeline.StatusID{100}, page)
}

func testInvalidUser(t *testing.T, s store.IStore) {
	err := s.Push("", 1)
	require.Error(t, err)
	assert.Equal(t, store.RetCInvalidOperation, store.CodeOf(err))
	assert.False(t, store.IsRetryable(err))

	err = s.PushMany([]string{"ok", ""}, 1)
	require.Error(t, err)
	assert.Equal(t, store.RetCInvalidOperation, store.CodeOf(err))

	n, err := s.Len("ok")
	require.NoError(t, err)
	assert.Zero(t, n, "a rejected fan-out must not touch any timeline")

	assert.Equal(t, store.RetCInvalidOperation, store.CodeOf(s.Remove("", 1)))
	assert.Equal(t, store.RetCInvalidOperation, store.CodeOf(s.Trim("")))
	_, err = s.Query("", timeline.QueryParams{})
	assert.Equal(t, store.RetCInvalidOperation, store.CodeOf(err))
	_, err = s.Len("")
	assert.Equal(t, store.RetCInvalidOperation, store.CodeOf(err))
}

func testConcurrentPush(t *testing.T, s store.IStore) {
	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				id := timeline.StatusID(w*perWriter + i + 1)
				if err := s.Push("mallory", id); err != nil {
					errs <- fmt.Errorf("push %d: %w", id, err)
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	assert.Equal(t, ids(1, writers*perWriter), newest(t, s, "mallory"))
}
