// Package dstore implements a replicated timeline store using the Dragonboat RAFT
// consensus library. It provides a strongly consistent implementation of the
// store.IStore interface that keeps every timeline identical on all replicas.
//
// Architecture:
//
//   - Store Client (store.go): Implements store.IStore. Writes are serialized into
//     internal.Command values and proposed with SyncPropose, reads are sent to the
//     state machine with SyncRead.
//
//   - State Machine (statemachine.go): A Dragonboat IConcurrentStateMachine that owns a
//     db.TimelineDB (maple or bolt) and applies committed commands to it.
//
//   - Communication Protocol: Defined in the internal package.
//
// Write Operations:
//
//	Push, PushMany, Remove and Trim follow this flow:
//
//	1. The operation is serialized into a Command
//	2. The Command is proposed to the RAFT cluster via SyncPropose
//	3. Once committed, every replica applies it in log order (Update)
//	4. The RetCode of the result is returned to the client
//
//	Because every replica applies the same commands in the same order, insert and
//	eviction happen identically everywhere. PushMany is a single log entry, so the
//	fan-out of one status is never partially applied.
//
// Read Operations:
//
//   - Query and Len use SyncRead (linearizable). The paginator runs inside the state
//     machine against the engine, so a page is computed from a single timeline state.
//
//   - GetDBInfo uses StaleRead, which may return slightly outdated information.
//
// Errors:
//
//	Timeouts, a shard that is not ready or a closed node host are reported as
//	store.RetCUnavailable (store.IsRetryable returns true). ErrSystemBusy is retried
//	up to 5 times before it is reported the same way. Codes returned by the state
//	machine are passed through unchanged.
//
// Snapshots:
//
//	SaveSnapshot and RecoverFromSnapshot use the db Save/Load methods, i.e. the engine
//	independent snapshot format of the db package.
package dstore
