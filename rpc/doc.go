// Package rpc provides a comprehensive framework for remote procedure calls
// in the dFeed timeline store. It acts as the communication layer
// between clients and servers, enabling operations across network boundaries.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: RPC client implementation of the store.IStore interface,
//     allowing applications to use a remote shard like a local store.
//
//   - server: RPC server components that handle incoming requests and dispatch
//     them to the shards (lstore, bstore, dstore) of a node.
package rpc
