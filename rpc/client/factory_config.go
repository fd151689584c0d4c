package client

import (
	"fmt"
	"github.com/ValentinKolb/dkvs/rpc/common"
	"github.com/ValentinKolb/dkvs/rpc/pool"
	"github.com/ValentinKolb/dkvs/rpc/serializer"
	"net/url"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultCoreThreads           = 5
	DefaultMaxThreads            = 5
	DefaultMaxQueuedRequests     = 1000
	DefaultMaxConnectionsPerNode = 10
	DefaultMaxTotalConnections   = 50
	DefaultSocketTimeoutMs       = 5000

	// DefaultRoutingTimeoutMs is the factory wide default for routed requests
	DefaultRoutingTimeoutMs = 5000
	// DefaultNodeBannageMs is the factory wide default for how long a failed node is avoided
	DefaultNodeBannageMs = 30000
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// FactoryOptions are the tunables of a SocketStoreClientFactory. Start from
// DefaultFactoryOptions and override single fields. Every numeric field must be
// greater than 0, a zero value is rejected and not replaced by its default.
type FactoryOptions struct {
	CoreThreads       int
	MaxThreads        int
	MaxQueuedRequests int

	MaxConnectionsPerNode int
	MaxTotalConnections   int

	SocketTimeoutMs  int
	RoutingTimeoutMs int
	NodeBannageMs    int

	// Serializer creates the codec for store messages
	Serializer serializer.Factory

	// BootstrapURLs in the form tcp://host:port[,host:port...]
	BootstrapURLs []string

	// Transport holds socket options applied to every new connection
	Transport common.TransportConfig
}

// DefaultFactoryOptions returns the documented defaults for the given bootstrap URLs
func DefaultFactoryOptions(bootstrapURLs ...string) FactoryOptions {
	return FactoryOptions{
		CoreThreads:           DefaultCoreThreads,
		MaxThreads:            DefaultMaxThreads,
		MaxQueuedRequests:     DefaultMaxQueuedRequests,
		MaxConnectionsPerNode: DefaultMaxConnectionsPerNode,
		MaxTotalConnections:   DefaultMaxTotalConnections,
		SocketTimeoutMs:       DefaultSocketTimeoutMs,
		RoutingTimeoutMs:      DefaultRoutingTimeoutMs,
		NodeBannageMs:         DefaultNodeBannageMs,
		Serializer:            serializer.NewBinarySerializer,
		BootstrapURLs:         bootstrapURLs,
		Transport:             common.DefaultTransportConfig(),
	}
}

// --------------------------------------------------------------------------
// Validated Configuration
// --------------------------------------------------------------------------

// FactoryConfig is the validated, immutable configuration of a client factory.
// It is shared read-only by the factory, its pool and its executor.
type FactoryConfig struct {
	coreThreads       int
	maxThreads        int
	maxQueuedRequests int

	maxConnectionsPerNode int
	maxTotalConnections   int

	socketTimeout  time.Duration
	routingTimeout time.Duration
	nodeBannage    time.Duration

	serializer    serializer.Factory
	bootstrapURLs []string
	endpoints     []*url.URL
	transport     common.TransportConfig
}

// NewFactoryConfig validates opts and returns the immutable configuration.
// Bound violations are reported as *common.ConfigurationError, bootstrap URLs
// with a foreign scheme as *common.InvalidSchemeError.
func NewFactoryConfig(opts FactoryOptions) (*FactoryConfig, error) {
	positive := []struct {
		field string
		value int
	}{
		{"CoreThreads", opts.CoreThreads},
		{"MaxThreads", opts.MaxThreads},
		{"MaxQueuedRequests", opts.MaxQueuedRequests},
		{"MaxConnectionsPerNode", opts.MaxConnectionsPerNode},
		{"MaxTotalConnections", opts.MaxTotalConnections},
		{"SocketTimeoutMs", opts.SocketTimeoutMs},
		{"RoutingTimeoutMs", opts.RoutingTimeoutMs},
		{"NodeBannageMs", opts.NodeBannageMs},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return nil, &common.ConfigurationError{Field: p.field, Msg: fmt.Sprintf("must be greater than 0, got %d", p.value)}
		}
	}

	if opts.CoreThreads > opts.MaxThreads {
		return nil, &common.ConfigurationError{Field: "CoreThreads", Msg: fmt.Sprintf(
			"must not exceed MaxThreads (%d > %d)", opts.CoreThreads, opts.MaxThreads)}
	}
	if opts.MaxConnectionsPerNode > opts.MaxTotalConnections {
		return nil, &common.ConfigurationError{Field: "MaxConnectionsPerNode", Msg: fmt.Sprintf(
			"must not exceed MaxTotalConnections (%d > %d)", opts.MaxConnectionsPerNode, opts.MaxTotalConnections)}
	}
	if opts.Serializer == nil {
		return nil, &common.ConfigurationError{Field: "Serializer", Msg: "must not be nil"}
	}
	if opts.Transport.WriteBufferSize < 0 || opts.Transport.ReadBufferSize < 0 {
		return nil, &common.ConfigurationError{Field: "Transport", Msg: "buffer sizes must not be negative"}
	}
	if len(opts.BootstrapURLs) == 0 {
		return nil, &common.ConfigurationError{Field: "BootstrapURLs", Msg: "at least one bootstrap URL is required"}
	}

	var endpoints []*url.URL
	for _, raw := range opts.BootstrapURLs {
		urls, err := ParseBootstrapURL(raw)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, urls...)
	}

	return &FactoryConfig{
		coreThreads:           opts.CoreThreads,
		maxThreads:            opts.MaxThreads,
		maxQueuedRequests:     opts.MaxQueuedRequests,
		maxConnectionsPerNode: opts.MaxConnectionsPerNode,
		maxTotalConnections:   opts.MaxTotalConnections,
		socketTimeout:         time.Duration(opts.SocketTimeoutMs) * time.Millisecond,
		routingTimeout:        time.Duration(opts.RoutingTimeoutMs) * time.Millisecond,
		nodeBannage:           time.Duration(opts.NodeBannageMs) * time.Millisecond,
		serializer:            opts.Serializer,
		bootstrapURLs:         append([]string(nil), opts.BootstrapURLs...),
		endpoints:             endpoints,
		transport:             opts.Transport,
	}, nil
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

func (c *FactoryConfig) CoreThreads() int { return c.coreThreads }
func (c *FactoryConfig) MaxThreads() int { return c.maxThreads }
func (c *FactoryConfig) MaxQueuedRequests() int { return c.maxQueuedRequests }
func (c *FactoryConfig) MaxConnectionsPerNode() int { return c.maxConnectionsPerNode }
func (c *FactoryConfig) MaxTotalConnections() int { return c.maxTotalConnections }
func (c *FactoryConfig) SocketTimeout() time.Duration { return c.socketTimeout }
func (c *FactoryConfig) RoutingTimeout() time.Duration { return c.routingTimeout }
func (c *FactoryConfig) NodeBannage() time.Duration { return c.nodeBannage }
func (c *FactoryConfig) SerializerFactory() serializer.Factory { return c.serializer }
func (c *FactoryConfig) Transport() common.TransportConfig { return c.transport }

// BootstrapURLs returns a copy of the bootstrap URLs as given
func (c *FactoryConfig) BootstrapURLs() []string {
	return append([]string(nil), c.bootstrapURLs...)
}

// Endpoints returns one parsed URL per bootstrap host
func (c *FactoryConfig) Endpoints() []*url.URL {
	out := make([]*url.URL, len(c.endpoints))
	for i, u := range c.endpoints {
		cp := *u
		out[i] = &cp
	}
	return out
}

// PoolConfig returns the bounds for the connection pool
func (c *FactoryConfig) PoolConfig() pool.Config {
	return pool.Config{
		MaxConnectionsPerNode: c.maxConnectionsPerNode,
		MaxTotalConnections:   c.maxTotalConnections,
		SocketTimeout:         c.socketTimeout,
		Transport:             c.transport,
	}
}

// String returns a formatted string representation of the configuration
func (c *FactoryConfig) String() string {
	var sb strings.Builder

	common.WriteSection(&sb, "Bootstrap")
	for i, u := range c.endpoints {
		common.WriteField(&sb, fmt.Sprintf("Node %d", i), u.String())
	}

	common.WriteSection(&sb, "Executor")
	common.WriteField(&sb, "Core Threads", fmt.Sprintf("%d", c.coreThreads))
	common.WriteField(&sb, "Max Threads", fmt.Sprintf("%d", c.maxThreads))
	common.WriteField(&sb, "Max Queued Requests", fmt.Sprintf("%d", c.maxQueuedRequests))

	common.WriteSection(&sb, "Connection Pool")
	common.WriteField(&sb, "Max Connections Per Node", fmt.Sprintf("%d", c.maxConnectionsPerNode))
	common.WriteField(&sb, "Max Total Connections", fmt.Sprintf("%d", c.maxTotalConnections))
	common.WriteField(&sb, "Socket Timeout", c.socketTimeout.String())

	common.WriteSection(&sb, "Routing")
	common.WriteField(&sb, "Routing Timeout", c.routingTimeout.String())
	common.WriteField(&sb, "Node Bannage", c.nodeBannage.String())

	sb.WriteString(c.transport.String())
	return sb.String()
}
