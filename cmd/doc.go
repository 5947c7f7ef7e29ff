// Package cmd implements the command-line interface of dFeed. It provides
// a server command and client commands working on the timelines of a shard.
//
// The package is organized into several subpackages:
//
//   - serve: Starts and configures the dFeed server
//   - tl: Timeline operations (push, fanout, remove, trim, query, len, info, perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dfeed --help for a list of all commands.
package cmd
