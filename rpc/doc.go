// Package rpc holds the client side of the socket protocol used to talk to the
// nodes of a distributed key-value store.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used by all other packages,
//     including the Message protocol, typed errors, transport options and logging.
//
//   - transport: Connectors that open raw connections to nodes, and the frame
//     codec of the TCP transport.
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - pool: A connection pool with a per-node and a global connection cap.
//
//   - executor: A bounded worker pool with caller-runs backpressure.
//
//   - client: The client factory that assembles pool, executor and serializer
//     from a validated configuration and hands out store handles.
package rpc
