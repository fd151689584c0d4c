// Package transport defines the contract between the connection pool and the
// socket implementation used to reach store nodes.
//
//   - IClientConnector: dials and tunes a single connection. The tcp subpackage
//     provides the implementation used by the socket store client factory.
package transport
