// Package db defines the TimelineDB interface: an ordered-set database that keeps one
// bounded, ranked timeline of status ids per key.
//
// Key Components:
//
//   - TimelineDB Interface: The contract every engine satisfies. Writes (Insert, Remove,
//     Trim) and reads (Rank, RevRange, RangeByRank, Len, Query) address a timeline by its
//     key. A timeline is created by its first insert and is never destroyed, removing its
//     last id leaves an empty timeline. Query runs the cursor paginator of the timeline
//     package atomically against one timeline.
//
//   - Feature Flags: Engines advertise their capabilities through SupportsFeature,
//     for example FeatureDurable for engines that keep data across restarts.
//
//   - Snapshot Format: WriteSnapshot and ReadSnapshot implement an engine independent
//     binary format used by Save and Load, so a snapshot of one engine can be loaded
//     by another (and by the RAFT state machine of the dstore package).
//
//   - Database Information: DatabaseInfo reports the number of timelines, the size bound,
//     an (estimated) size in bytes and engine specific metadata.
//
// Related Packages:
//
// The engines/maple package provides a sharded in-memory engine, engines/bolt a durable
// engine on top of bbolt. The testing package holds the conformance suite
// (RunTimelineDBTests) and benchmarks (RunTimelineDBBenchmarks) every engine runs.
package db
