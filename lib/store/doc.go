// Package store defines the interface a store handle offers to the routing
// layer above the socket client, and the error type for failures reported by
// a store node.
//
//   - IStore: Set, Get, Has and Delete on one named store of one node.
//     Implemented by client.SocketStore.
//
//   - Error: a return code plus the message sent by the node. Transport
//     failures are not wrapped in Error so callers can tell them apart.
package store
