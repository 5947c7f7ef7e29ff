// Package common provides the data structures shared by the RPC server, the RPC
// client and the command line interface of dFeed.
//
// Key Components:
//
//   - Message: the single structure used for every request and response. Which
//     fields are set depends on the MessageType (push, pushMany, remove, trim,
//     query, len, dbInfo). Failed responses carry the error text in Err and the
//     store.RetCode in Code so clients can rebuild typed store errors.
//
//   - ServerConfig: shards (lstore, bstore, dstore), timeline size bound, bolt
//     path, RAFT parameters and the transport settings of a server node.
//     Provides the conversion to Dragonboat configurations.
//
//   - ClientConfig: timeout and transport settings of a client.
//
//   - Logger: a formatter for Dragonboat's logger facade, installed for the
//     RAFT loggers and the loggers of this module by InitLoggers.
package common
