// Package internal defines the wire format between the distributed store and its
// RAFT state machine.
//
// Commands (Push, PushMany, Remove, Trim) are appended to the raft log and therefore
// serialized with a compact binary layout (see Command.Serialize). Queries never leave
// the node, they are passed to the state machine's Lookup as Go values.
package internal
