// Package fanout moves the fan-out of a published status off the request path.
//
// A publisher hands a Job (push or remove of one status id for a list of recipients)
// to a Dispatcher and returns immediately. The dispatcher buffers jobs in an unbounded
// lock-free multi-producer single-consumer queue (LockFreeMPSC) and a single worker
// applies them to a store.IStore: pushes as one PushMany call, removals one
// timeline at a time.
//
// Flush waits until every job enqueued before it has been applied, Close drains the
// queue and stops the worker. Failures are logged and counted in
// dfeed_fanout_jobs_failed_total; retry policy is left to the caller and the transport.
package fanout
