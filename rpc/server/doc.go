// Package server implements the RPC server of dFeed. It hosts any number of
// timeline store shards and routes the requests of a transport to them.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a store.IStore.
//
//   - NewIStoreServerAdapter: Adapter translating RPC messages to store.IStore
//     calls. Failed operations keep their store.RetCode in Message.Code, so the
//     client can tell a retryable outage from a rejected request.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 100, Type: common.ShardTypeLocalIStore},
//	    {ShardID: 200, Type: common.ShardTypeBoltIStore},
//	  },
//	  TimelineSize:  400,
//	  BoltPath:      "data/bolt",
//	  TimeoutSecond: 5,
//	  Transport:     common.ServerTransportConfig{Endpoint: "0.0.0.0:8080"},
//	  LogLevel:      "info",
//	}
//
//	s := server.NewRPCServer(config, tcp.NewTCPServerTransport(), serializer.NewBinarySerializer())
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Shard types, which can be mixed within a single server:
//
//   - ShardTypeLocalIStore (lstore): in-memory maple engine, suitable for single-node
//     deployments, caches and tests.
//
//   - ShardTypeBoltIStore (bstore): bolt engine, one database file per shard below
//     BoltPath. Timelines survive restarts.
//
//   - ShardTypeRemoteIStore (dstore): raft replicated store. RTTMillisecond,
//     SnapshotEntries, CompactionOverhead, DataDir, ReplicaID and ClusterMembers
//     must be configured.
//
// Every handled request increments dfeed_rpc_requests_total{type="..."}, failed
// ones also dfeed_rpc_errors_total.
//
// Thread Safety:
//
//	Requests are handled concurrently. Serve must be called only once.
package server
