package common

import (
	"errors"
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Sentinel Errors
// --------------------------------------------------------------------------

var (
	// ErrPoolClosed is returned by a connection pool after Close was called
	ErrPoolClosed = errors.New("connection pool closed")

	// ErrNotCheckedOut is returned when a connection is checked in twice
	// or into a pool it was not borrowed from
	ErrNotCheckedOut = errors.New("connection is not checked out from this pool")

	// ErrExecutorShutdown is returned when a task is submitted after Shutdown
	ErrExecutorShutdown = errors.New("executor is shut down")

	// ErrFactoryClosed is returned when a store is requested from a closed client factory
	ErrFactoryClosed = errors.New("client factory closed")
)

// --------------------------------------------------------------------------
// Typed Errors
// --------------------------------------------------------------------------

// ConfigurationError is returned when a client factory is built from invalid tunables.
type ConfigurationError struct {
	Field string // name of the offending option
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration (%s): %s", e.Field, e.Msg)
}

// InvalidSchemeError is returned when a bootstrap URL does not use the transport's scheme.
type InvalidSchemeError struct {
	Expected string
	Actual   string
}

func (e *InvalidSchemeError) Error() string {
	return fmt.Sprintf("illegal scheme in bootstrap URL: expected '%s' but found '%s'", e.Expected, e.Actual)
}

// InvalidArgumentError is returned when a required argument is empty or out of range.
type InvalidArgumentError struct {
	Arg string
	Msg string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Arg, e.Msg)
}

// ExhaustionReason tells which cap prevented a checkout.
type ExhaustionReason string

const (
	ReasonPerNodeCap ExhaustionReason = "per-node connection limit reached"
	ReasonGlobalCap  ExhaustionReason = "global connection limit reached"
)

// PoolExhaustedError is returned when no connection became available
// for a node before the checkout timeout elapsed.
type PoolExhaustedError struct {
	NodeID string
	Reason ExhaustionReason
	Waited time.Duration
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("connection pool exhausted for node %s after %s: %s", e.NodeID, e.Waited.Round(time.Millisecond), e.Reason)
}
