// Package client implements the RPC client of dFeed: a store.IStore that forwards
// every operation to a remote shard via the configured transport and serializer.
//
// Errors keep the store semantics across the wire. A request the transport could
// not deliver becomes a store.Error with RetCUnavailable (store.IsRetryable reports
// true), an operation rejected by the server keeps the return code the server
// reported.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:              []string{"localhost:8080"},
//	    RetryCount:             3,
//	    ConnectionsPerEndpoint: 1,
//	  },
//	}
//
//	s, err := client.NewRPCStore(100, config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	if err != nil {
//	  log.Fatal(err)
//	}
//
//	_ = s.Push("alice", 1001)
//	page, _ := s.Query("alice", timeline.QueryParams{Limit: 20})
//
// Performance Considerations:
//
//   - Fan-out of one status to many followers should use PushMany, which is a single
//     round trip (and a single raft proposal on dstore shards).
//
//   - The binary serializer provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	The store client is safe for concurrent use by multiple goroutines.
package client
