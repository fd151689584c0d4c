package cluster

import (
	"context"
	"fmt"
	"net"
	"strconv"
)

// Node describes one member of the cluster as reported by the topology provider
type Node struct {
	ID   int
	Host string
	// SocketPort serves the store protocol used by the socket client
	SocketPort int
	// HTTPPort serves the http api, AdminPort metadata and administration.
	// Both are never used by the socket client.
	HTTPPort  int
	AdminPort int
}

// SocketAddress returns host:port of the store protocol endpoint
func (n Node) SocketAddress() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.SocketPort))
}

func (n Node) String() string {
	return fmt.Sprintf("node %d (%s)", n.ID, n.SocketAddress())
}

// ITopologyProvider supplies the current cluster members
type ITopologyProvider interface {
	Nodes(ctx context.Context) ([]Node, error)
}

// StaticTopology is a fixed member list, e.g. built from bootstrap URLs
type StaticTopology []Node

// Nodes returns a copy of the member list
func (s StaticTopology) Nodes(context.Context) ([]Node, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("topology has no nodes")
	}
	return append([]Node(nil), s...), nil
}
