// Package http implements an HTTP-based transport layer for dFeed's RPC
// communication. It provides concrete implementations
// of the transport interfaces defined in the parent package, enabling communication
// between clients and servers over HTTP.
//
// The package focuses on:
//   - Client-side HTTP transport for sending RPC requests to servers
//   - Server-side HTTP transport for receiving and handling RPC requests
//   - Round-robin load balancing across multiple server endpoints
//   - Request routing based on shard IDs
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport interface, managing
//     connections to server endpoints, handling request routing, and implementing
//     retry mechanisms. It uses round-robin selection for load balancing across
//     multiple server endpoints.
//
//   - httpServerTransport: Implements IRPCServerTransport interface, setting up
//     an HTTP server that routes POST /{shardId} requests to the handler and
//     serves the process metrics on GET /metrics in the prometheus text format.
//
// Thread Safety:
//
//	The client transport can be used concurrently once Connect returned. The
//	round-robin counter is updated atomically.
package http
