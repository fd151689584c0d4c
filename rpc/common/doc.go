// Package common provides core data structures and utilities shared across
// the socket store client. It defines the message protocol, the error
// taxonomy, socket transport options and the logger integration.
//
// Key Components:
//
//   - Message: Request and response structure exchanged with a store node.
//     Includes factory methods for the supported key-value operations.
//
//   - Errors: ConfigurationError, InvalidSchemeError, InvalidArgumentError and
//     PoolExhaustedError, plus sentinels for closed pools and executors.
//     Match them with errors.As / errors.Is.
//
//   - TransportConfig: TCP and socket buffer options applied on dial.
//
//   - Logger: Custom logging implementation that plugs into Dragonboat's
//     logger package so every package can use logger.GetLogger(name).
package common
