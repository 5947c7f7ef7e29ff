// Package bolt implements db.TimelineDB on top of bbolt (go.etcd.io/bbolt).
//
// All timelines live under the root bucket "timelines", one nested bucket per key.
// A status id is stored as an 8 byte big-endian key with an empty value, so the cursor
// order of a bucket is the ascending timeline order: First() is the oldest id and
// Last() the newest.
//
// Every write runs in its own bbolt update transaction. An insert and the eviction of
// the oldest ids beyond the size bound commit together. Queries read the bucket inside
// one view transaction and paginate the loaded ids, so they never observe a partial
// write.
//
// Unlike the maple engine the data survives a restart without Save/Load
// (db.FeatureDurable). Save and Load still use the shared snapshot format, so
// snapshots can be moved between engines.
package bolt
