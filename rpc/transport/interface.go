package transport

import (
	"context"
	"github.com/ValentinKolb/dkvs/rpc/common"
	"net"
)

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IClientConnector opens raw connections to store nodes. A connection pool uses
// it to create connections lazily and never shares one connection between callers.
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint (host:port),
	// giving up when ctx is done
	Connect(ctx context.Context, endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.TransportConfig) error
}
