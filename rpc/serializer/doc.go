// Package serializer provides message serialization for the socket store
// client. It defines a common interface and multiple implementations for
// encoding the requests sent to and the responses read from a store node.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - Factory: Pluggable constructor handed to the client factory configuration.
//     ByName resolves the names used on the command line.
//
//   - binarySerializerImpl: Compact flag based format, only present fields are
//     encoded. Recommended and used by default.
//
//   - jsonSerializerImpl: JSON encoding, human readable and useful for debugging.
//
//   - gobSerializerImpl: Go's gob encoding, larger payloads than binary.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use.
package serializer
