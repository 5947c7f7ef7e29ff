// Package base implements the framed request/response protocol shared by the
// tcp and unix transports. Protocol specific code (dialing, listening, socket
// options) is injected through IClientConnector and IServerConnector.
//
// Every message travels in a frame of a 20 byte header (shard id, request id,
// payload length) followed by the serialized message. Request ids let many
// requests share one connection: the client writes frames from any goroutine
// and a reader goroutine per connection hands each response to the request
// waiting for it.
//
// Client:
//
//   - ConnectionsPerEndpoint connections are opened per endpoint and used round robin.
//   - A failed attempt is retried on the next connection with exponential backoff.
//   - A broken connection fails its pending requests at once and is redialed.
//
// Server:
//
//   - One goroutine reads the frames of a connection; up to WorkersPerConn requests
//     of that connection are handled concurrently and answered in completion order.
//   - Read buffers come from a sync.Pool, payloads larger than the pooled buffer
//     get a temporary one.
//   - Close stops accepting connections and makes Listen return nil.
package base
