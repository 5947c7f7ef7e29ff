package timeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveParams(t *testing.T) {
	tests := []struct {
		name   string
		params QueryParams
		want   Page
	}{
		{
			name:   "defaults",
			params: QueryParams{},
			want:   Page{Limit: DefaultLimit},
		},
		{
			name:   "limit is capped",
			params: QueryParams{Limit: 500},
			want:   Page{Limit: MaxLimit},
		},
		{
			name:   "cursors are kept",
			params: QueryParams{Limit: 5, Offset: 2}.Since(10).Max(0),
			want:   Page{SinceID: 10, HasSince: true, MaxID: 0, HasMax: true, Limit: 5, Offset: 2},
		},
		{
			name:   "count overrides everything",
			params: QueryParams{Limit: 5, Offset: 3, Count: 7}.Since(10).Max(20),
			want:   Page{Limit: 7},
		},
		{
			name:   "count is capped",
			params: QueryParams{Count: 50},
			want:   Page{Limit: MaxLimit},
		},
		{
			name:   "negative offset",
			params: QueryParams{Offset: -4},
			want:   Page{Limit: DefaultLimit},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveParams(tt.params))
		})
	}
}

func TestPaginate(t *testing.T) {
	tl := newFilled(DefaultMaxSize, 10, 20, 30, 40, 50)

	tests := []struct {
		name      string
		params    QueryParams
		want      []StatusID
		wantStale bool
	}{
		{"newest page", QueryParams{Limit: 2}, []StatusID{50, 40}, false},
		{"all", QueryParams{}, []StatusID{50, 40, 30, 20, 10}, false},
		{"offset", QueryParams{Limit: 2, Offset: 1}, []StatusID{40, 30}, false},
		{"since", QueryParams{Limit: 10}.Since(20), []StatusID{50, 40, 30}, false},
		{"since limited", QueryParams{Limit: 2}.Since(10), []StatusID{50, 40}, false},
		{"since oldest (rank 0)", QueryParams{Limit: 10}.Since(10), []StatusID{50, 40, 30, 20}, false},
		{"since newest", QueryParams{}.Since(50), []StatusID{}, false},
		{"since stale", QueryParams{}.Since(999), []StatusID{}, true},
		{"max", QueryParams{Limit: 2}.Max(30), []StatusID{30, 20}, false},
		{"max oldest", QueryParams{}.Max(10), []StatusID{10}, false},
		{"max stale", QueryParams{}.Max(35), []StatusID{}, true},
		{"both", QueryParams{}.Since(20).Max(40), []StatusID{40, 30}, false},
		{"both rank 0", QueryParams{}.Since(10).Max(30), []StatusID{30, 20}, false},
		{"both limited", QueryParams{Limit: 1}.Since(10).Max(40), []StatusID{40}, false},
		{"both equal", QueryParams{}.Since(30).Max(30), []StatusID{}, false},
		{"both inverted", QueryParams{}.Since(40).Max(20), []StatusID{}, false},
		{"both, only since resolves", QueryParams{}.Since(30).Max(999), []StatusID{50, 40}, true},
		{"both, only max resolves", QueryParams{}.Since(1).Max(20), []StatusID{20, 10}, true},
		{"both stale", QueryParams{}.Since(1).Max(2), []StatusID{}, true},
		{"count drops cursors", QueryParams{Count: 1}.Since(999), []StatusID{50}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Paginate(tl, ResolveParams(tt.params))
			assert.Equal(t, tt.want, res.IDs)
			assert.Equal(t, tt.wantStale, res.Stale)
		})
	}
}

func TestPaginateEmptyTimeline(t *testing.T) {
	tl := New(DefaultMaxSize)

	for _, params := range []QueryParams{
		{},
		{Limit: 40},
		QueryParams{}.Since(1),
		QueryParams{}.Max(1),
		QueryParams{}.Since(1).Max(2),
		{Count: 3},
	} {
		res := Paginate(tl, ResolveParams(params))
		assert.NotNil(t, res.IDs)
		assert.Empty(t, res.IDs, "params %+v", params)
	}
}

func TestPaginateLimitCap(t *testing.T) {
	tl := New(DefaultMaxSize)
	for i := 1; i <= 100; i++ {
		tl.Insert(StatusID(i))
	}

	for _, limit := range []int{41, 100, 1000} {
		res := Paginate(tl, ResolveParams(QueryParams{Limit: limit}))
		assert.Len(t, res.IDs, MaxLimit)
	}

	// the cap holds even when the resolver is bypassed
	res := Paginate(tl, Page{Limit: 1000})
	assert.Len(t, res.IDs, MaxLimit)
}

func TestPaginateOffsetBeyondRange(t *testing.T) {
	tl := New(DefaultMaxSize)
	for i := 1; i <= DefaultMaxSize; i++ {
		tl.Insert(StatusID(i * 10))
	}

	for _, offset := range []int{DefaultMaxSize - 1, DefaultMaxSize, math.MaxInt - 1, math.MaxInt} {
		for _, params := range []QueryParams{
			{Limit: 5, Offset: offset},
			QueryParams{Limit: 5, Offset: offset}.Max(3990),
			QueryParams{Limit: 5, Offset: offset}.Since(10),
			QueryParams{Limit: 5, Offset: offset}.Since(10).Max(3990),
		} {
			res := Paginate(tl, ResolveParams(params))
			assert.LessOrEqual(t, len(res.IDs), 1, "offset %d, params %+v", offset, params)
		}
	}

	// the last position is still reachable
	res := Paginate(tl, ResolveParams(QueryParams{Limit: 5, Offset: DefaultMaxSize - 1}))
	assert.Equal(t, []StatusID{10}, res.IDs)

	// a bypassed resolver with a huge limit and offset stays bounded
	res = Paginate(tl, Page{Limit: math.MaxInt, Offset: 1})
	assert.Len(t, res.IDs, MaxLimit)
	assert.Equal(t, StatusID(3990), res.IDs[0])

	res = Paginate(tl, Page{Limit: 5, Offset: -1})
	assert.Equal(t, []StatusID{4000, 3990, 3980, 3970, 3960}, res.IDs)
}

func TestPaginateRecencyOrdering(t *testing.T) {
	tl := New(DefaultMaxSize)
	for _, id := range []StatusID{7, 3, 99, 42, 1, 18} {
		tl.Insert(id)
	}

	ids := Paginate(tl, ResolveParams(QueryParams{})).IDs
	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i-1], ids[i])
	}
}
