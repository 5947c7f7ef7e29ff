// Package tcp implements the TCP socket transport of dFeed's RPC layer on top of
// the framed base transport.
//
// This package builds on the base package's transport functionality, inheriting its
// performance optimizations including connection pooling, buffer reuse, and request
// routing. See the base package documentation for detailed information on the underlying
// transport mechanisms and performance characteristics.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector
//
// The default server read buffer is 512 KB. TCP options (no delay, keep-alive,
// linger, socket buffers) are taken from common.TCPConf and common.SocketConf.
package tcp
