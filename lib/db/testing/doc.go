// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.TimelineDB interface.
//
// The package contains:
//   - testing: a conformance suite covering bounded inserts, removal, trimming, rank lookups,
//     range reads, cursor queries, snapshots and concurrent access
//   - benchmark: throughput of the common timeline operations
//
// Example usage:
//
//	factory := func(maxSize int) db.TimelineDB {
//		return maple.NewMapleDB(&maple.DBOptions{MaxTimelineSize: maxSize})
//	}
//
//	dbtesting.RunTimelineDBTests(t, "MapleDB", factory)
//	dbtesting.RunTimelineDBBenchmarks(b, "MapleDB", factory)
package testing
