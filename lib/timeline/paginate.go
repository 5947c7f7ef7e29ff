package timeline

// --------------------------------------------------------------------------
// Query Parameters
// --------------------------------------------------------------------------

const (
	// DefaultLimit is the page size used if a query does not request one
	DefaultLimit = 20
	// MaxLimit is the hard cap for the number of ids returned by one query
	MaxLimit = 40
)

// QueryParams holds the raw parameters of a timeline read request.
// SinceID and MaxID are only considered if the matching Has flag is set,
// so a zero id is a valid cursor.
type QueryParams struct {
	SinceID  StatusID // exclusive lower bound
	HasSince bool
	MaxID    StatusID // inclusive upper bound
	HasMax   bool
	Limit    int // requested page size (0 = DefaultLimit)
	Count    int // legacy alias for Limit, overrides everything else when non-zero
	Offset   int // entries to skip from the front of the page
}

// Since returns a copy of p with since_id set.
func (p QueryParams) Since(id StatusID) QueryParams {
	p.SinceID, p.HasSince = id, true
	return p
}

// Max returns a copy of p with max_id set.
func (p QueryParams) Max(id StatusID) QueryParams {
	p.MaxID, p.HasMax = id, true
	return p
}

// Page is a resolved query: cursors, a clamped limit and an offset.
// Pages are produced by ResolveParams and consumed by Paginate.
type Page struct {
	SinceID  StatusID
	HasSince bool
	MaxID    StatusID
	HasMax   bool
	Limit    int
	Offset   int
}

// ResolveParams applies the precedence rules for query parameters:
//
//   - a non-zero Count replaces Limit, resets Offset to 0 and drops both cursors
//   - a Limit <= 0 selects DefaultLimit
//   - the Limit is clamped to MaxLimit
//   - a negative Offset is treated as 0
func ResolveParams(p QueryParams) Page {
	if p.Count != 0 {
		return Page{
			Limit:  clampLimit(p.Count),
			Offset: 0,
		}
	}
	return Page{
		SinceID:  p.SinceID,
		HasSince: p.HasSince,
		MaxID:    p.MaxID,
		HasMax:   p.HasMax,
		Limit:    clampLimit(p.Limit),
		Offset:   max(p.Offset, 0),
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// --------------------------------------------------------------------------
// Cursor Pagination
// --------------------------------------------------------------------------

// RankIndex is the read view the paginator needs from a timeline.
// *RankedTimeline implements it.
type RankIndex interface {
	Len() int
	Rank(id StatusID) (rank int, found bool)
	RevRange(start, stop int) []StatusID
}

// Result is the outcome of a paginated read.
type Result struct {
	IDs   []StatusID // most recent first, never nil
	Stale bool       // a supplied cursor could not be located in the retained window
}

// Paginate translates a page into a descending position range over idx and fetches it.
//
//   - no cursor: the newest ids
//   - since_id: ids strictly newer than since_id (newest first)
//   - max_id: ids at or older than max_id
//   - both: ids in (since_id, max_id]; if only one cursor resolves, that one bounds the range
//
// A cursor that is not part of the timeline makes the range empty (unless the other
// cursor resolves) and marks the result as stale. The page limit is clamped to MaxLimit
// again so callers that skip ResolveParams cannot request unbounded reads, and an
// offset of any size never returns more than MaxLimit ids.
//
// Thread-safety: the caller must ensure idx is not modified while Paginate runs.
func Paginate(idx RankIndex, page Page) Result {
	n := idx.Len()

	// descending positions [lo, hi] that satisfy the cursors
	lo, hi := 0, n-1

	var (
		sinceRank, maxRank   int
		sinceFound, maxFound bool
	)
	if page.HasSince {
		sinceRank, sinceFound = idx.Rank(page.SinceID)
	}
	if page.HasMax {
		maxRank, maxFound = idx.Rank(page.MaxID)
	}

	stale := (page.HasSince && !sinceFound) || (page.HasMax && !maxFound)

	switch {
	case !page.HasSince && !page.HasMax:
		// newest page
	case !sinceFound && !maxFound:
		return Result{IDs: []StatusID{}, Stale: true}
	default:
		if sinceFound {
			// strictly newer than since_id
			hi = n - 2 - sinceRank
		}
		if maxFound {
			// at or older than max_id
			lo = n - 1 - maxRank
		}
	}

	// an offset past the range selects nothing; comparing before adding keeps lo from overflowing
	if n == 0 || lo > hi || max(page.Offset, 0) > hi-lo {
		return Result{IDs: []StatusID{}, Stale: stale}
	}
	lo += max(page.Offset, 0)

	// 0 <= lo <= hi < n here, so RevRange never sees a negative stop
	hi = min(hi, lo+clampLimit(page.Limit)-1)
	return Result{IDs: idx.RevRange(lo, hi), Stale: stale}
}
