// Package testing provides the behavioural test suite shared by all store.IStore
// implementations (local, replicated and remote). It checks the size bound, idempotent
// pushes, recency ordering, the limit cap, cursor pagination, stale cursors and
// concurrent pushes to one timeline.
package testing
