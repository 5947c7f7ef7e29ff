// Package lstore implements a local, single-node timeline store based on the
// store.IStore interface. It is a thin wrapper around any db.TimelineDB.
//
// Implementation Details:
//
//   - Query Resolution: Query resolves the raw parameters once with timeline.ResolveParams
//     (count overrides limit, offset and cursors; the limit is capped) and hands the
//     resulting page to the db, which paginates atomically per timeline.
//
//   - Stale Cursors: A cursor that left the retained window yields an empty page and a
//     debug log line. It is counted in dfeed_query_stale_total but never returned as
//     an error.
//
//   - Feature Detection: Before executing operations, the store checks if the underlying
//     db.TimelineDB supports the requested feature. Unsupported operations return
//     store.RetCUnsupportedOperation.
//
// Thread Safety:
//
//	All operations are thread-safe. Mutual exclusion per timeline is provided by the
//	db engine, so concurrent pushes for the same user are applied one after another and
//	pushes for different users never block each other.
//
// Usage Example:
//
//	factory := func() db.TimelineDB { return maple.NewMapleDB(nil) }
//	s := lstore.NewLocalStore(factory)
//
//	_ = s.Push("alice", 1001)
//	ids, err := s.Query("alice", timeline.QueryParams{Limit: 20})
//
// Whether the timelines survive a restart depends on the engine: maple keeps them in
// memory, bolt on disk. For replication across nodes use the dstore package.
package lstore
