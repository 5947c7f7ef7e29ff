package transport

import (
	"github.com/ValentinKolb/dFeed/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc answers one serialized request addressed to a shard.
// It must always return a serialized response, errors included.
type ServerHandleFunc func(shardId uint64, req []byte) (resp []byte)

// IRPCServerTransport accepts requests from clients and passes them to the handler
type IRPCServerTransport interface {
	// RegisterHandler sets the handler, it must be called before Listen
	RegisterHandler(handler ServerHandleFunc)
	// Listen accepts requests until Close is called or the listener fails
	Listen(config common.ServerConfig) error
	// Ready is closed once Listen accepts requests
	Ready() <-chan struct{}
	// Close stops accepting requests and makes Listen return nil
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport sends serialized requests to a server.
// Send may be called concurrently once Connect returned.
type IRPCClientTransport interface {
	// Connect prepares the connections to the configured endpoints
	Connect(config common.ClientConfig) error
	// Send delivers req to shardId and waits for the response, retrying as configured
	Send(shardId uint64, req []byte) (resp []byte, err error)
	// Close releases all connections
	Close() error
}
