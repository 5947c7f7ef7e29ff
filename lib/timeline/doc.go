// Package timeline implements the ranked home timeline of a single user and the
// cursor pagination algorithm used to read it.
//
// Key Components:
//
//   - RankedTimeline: A bounded ordered set of status ids. Each id is its own
//     ordering score, so id order equals chronological order. Inserting beyond the
//     configured size (DefaultMaxSize = 400) evicts the oldest ids first. Re-inserting
//     an id is a no-op.
//
//   - ResolveParams: A pure function resolving the raw request parameters
//     (since_id, max_id, limit, count, offset) into a Page. The legacy count
//     parameter overrides everything else and every limit is capped at MaxLimit.
//
//   - Paginate: Translates a Page into a descending position range over any
//     RankIndex. Cursor ids are located by rank lookup (bounded by the timeline
//     size), never by scanning the full history. A cursor that has fallen out of the
//     retained window yields an empty result that is flagged as stale, not an error.
//
// Position vs. Rank:
//
//	Rank is the ascending 0-based position of an id (the oldest id has rank 0).
//	Clients page by recency, so reads use descending positions where position 0
//	is the most recent id. For a timeline of n ids, rank r equals position n-1-r.
//
// Thread Safety:
//
//	Nothing in this package is synchronized. The db engines own one RankedTimeline
//	per user and hold a per-timeline mutex across insert+evict and across a whole
//	Paginate call, so a read never observes a partially evicted timeline.
package timeline
