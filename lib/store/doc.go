// Package store provides the timeline store: a high-level interface over the
// db.TimelineDB engines holding one bounded timeline per user, with unified
// error handling.
//
// Key Components:
//
//   - IStore Interface: The operations of the timeline store (Push, PushMany,
//     Remove, Trim, Query, Len, GetDBInfo). All implementations share this
//     interface, so applications can switch between backends without code changes.
//
//   - Error System: Errors returned by IStore carry a RetCode. IsRetryable reports
//     whether an operation may succeed when repeated (e.g. the cluster was busy or
//     the server unreachable), CodeOf extracts the code of any error.
//
//   - DBFactory: A function type creating the underlying db.TimelineDB, so the
//     engine (maple or bolt) and its maximum timeline size are chosen by the caller.
//
// Implementations:
//
//	- Local Store (lstore): Applies every operation directly to a db.TimelineDB.
//	  Suitable for single-node deployments, durable when backed by the bolt engine.
//	  Available in the "github.com/ValentinKolb/dFeed/lib/store/lstore" package.
//
//	- Distributed Store (dstore): Replicates every write through the Dragonboat
//	  RAFT library and serves reads linearizably from the replicated state machine.
//	  Available in the "github.com/ValentinKolb/dFeed/lib/store/dstore" package.
//
// The conformance suite in the testing subpackage is run against every implementation.
package store
