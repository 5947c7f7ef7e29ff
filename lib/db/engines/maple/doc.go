// Package maple implements db.TimelineDB as a sharded in-memory database.
//
// Key Components:
//
//   - mapleImpl: The database structure implementing db.TimelineDB. It owns the shards,
//     the hash seed and the eviction and insert counters reported by GetInfo.
//
//   - Shard: A partition of the key space backed by an xsync.MapOf from key to Entry.
//     Keys are mapped to shards in two steps: the key is hashed with the seeded
//     FNV-1a function from the util package, then the hash is shifted right by 7 bits
//     and taken modulo the shard count.
//
//   - Entry: One timeline.RankedTimeline guarded by its own mutex. Every operation on a
//     timeline holds this mutex, so an insert and the eviction it causes are atomic and a
//     query sees a single state for its rank lookups and its range fetch. Operations on
//     different timelines never contend.
//
// Timelines are created on the first insert with LoadOrCompute, so concurrent first
// inserts for the same key always share one entry. Removing the last id of a timeline
// keeps the empty entry.
//
// Persistence uses the engine independent snapshot format of the db package. Save copies
// every timeline under its lock; the snapshot is consistent per timeline but not across
// timelines. Load builds a fresh set of shards and swaps them in, trimming timelines that
// exceed the configured size bound.
package maple
