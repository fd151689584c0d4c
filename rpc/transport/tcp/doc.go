// Package tcp implements the TCP socket transport of the store client.
//
// Key Components:
//
//   - clientConnector: TCP implementation of transport.IClientConnector. It
//     dials with a timeout and applies TCP_NODELAY, keep-alive, linger and
//     socket buffer options from common.TransportConfig.
//
//   - WriteFrame / ReadFrame: the length prefixed frame codec spoken on every
//     pooled connection. A frame carries a request id so responses can be
//     checked against the request that was sent.
package tcp
