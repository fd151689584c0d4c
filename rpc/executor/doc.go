// Package executor implements the admission executor of the socket store
// client: a bounded worker pool with a bounded backlog.
//
// Submitted tasks are queued while the backlog has room. When it is full,
// extra workers are started up to the configured maximum; past that the
// submitting goroutine runs the task itself. Overload therefore slows the
// caller down instead of dropping requests or growing memory without bound.
//
// Results and errors of a task are delivered through the returned Future.
// The executor never retries a task.
package executor
