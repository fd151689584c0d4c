package pool

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dkvs/rpc/common"
	"github.com/ValentinKolb/dkvs/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("pool")

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// Config holds the bounds of a connection pool
type Config struct {
	// MaxConnectionsPerNode is a hard cap on live connections to a single node
	MaxConnectionsPerNode int
	// MaxTotalConnections caps live connections across all nodes
	MaxTotalConnections int
	// SocketTimeout bounds a whole checkout, waiting for a free connection and dialing
	SocketTimeout time.Duration
	// Transport is applied to every new connection
	Transport common.TransportConfig
}

func (c Config) validate() error {
	switch {
	case c.MaxConnectionsPerNode <= 0:
		return &common.ConfigurationError{Field: "MaxConnectionsPerNode", Msg: "must be greater than 0"}
	case c.MaxTotalConnections <= 0:
		return &common.ConfigurationError{Field: "MaxTotalConnections", Msg: "must be greater than 0"}
	case c.MaxConnectionsPerNode > c.MaxTotalConnections:
		return &common.ConfigurationError{Field: "MaxConnectionsPerNode", Msg: fmt.Sprintf(
			"must not exceed MaxTotalConnections (%d > %d)", c.MaxConnectionsPerNode, c.MaxTotalConnections)}
	case c.SocketTimeout <= 0:
		return &common.ConfigurationError{Field: "SocketTimeout", Msg: "must be greater than 0"}
	}
	return nil
}

// --------------------------------------------------------------------------
// Pooled Connection
// --------------------------------------------------------------------------

// PooledConn is a connection borrowed from a ConnectionPool. The borrower owns
// it exclusively until it is handed back with Checkin.
type PooledConn struct {
	net.Conn
	nodeID    string
	pool      *ConnectionPool
	unhealthy atomic.Bool
	idleSince time.Time // guarded by pool.mu
}

// NodeID returns the node the connection is bound to
func (c *PooledConn) NodeID() string {
	return c.nodeID
}

// MarkUnhealthy flags the connection after a protocol or I/O error.
// Checkin destroys flagged connections instead of reusing them.
func (c *PooledConn) MarkUnhealthy() {
	c.unhealthy.Store(true)
}

// Healthy reports whether the connection may be reused
func (c *PooledConn) Healthy() bool {
	return !c.unhealthy.Load()
}

// --------------------------------------------------------------------------
// Connection Pool
// --------------------------------------------------------------------------

// nodeConns tracks the connections of a single node
type nodeConns struct {
	idle []*PooledConn
	busy map[*PooledConn]struct{}
	live int // idle + busy + dials in progress
}

// ConnectionPool hands out reusable connections keyed by node under a per-node
// and a global cap. All counters and idle sets are guarded by mu.
type ConnectionPool struct {
	connector transport.IClientConnector
	config    Config

	mu      sync.Mutex
	nodes   map[string]*nodeConns
	total   int
	closed  bool
	changed chan struct{} // closed and replaced on every state change

	metrics   *metrics.Set
	created   *metrics.Counter
	destroyed *metrics.Counter
	exhausted *metrics.Counter
	evicted   *metrics.Counter
}

// NewConnectionPool creates an empty pool. Connections are opened lazily by Checkout.
func NewConnectionPool(connector transport.IClientConnector, config Config) (*ConnectionPool, error) {
	if connector == nil {
		return nil, &common.InvalidArgumentError{Arg: "connector", Msg: "must not be nil"}
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	p := &ConnectionPool{
		connector: connector,
		config:    config,
		nodes:     make(map[string]*nodeConns),
		changed:   make(chan struct{}),
		metrics:   metrics.NewSet(),
	}

	p.created = p.metrics.NewCounter(`dkvs_pool_connections_created_total`)
	p.destroyed = p.metrics.NewCounter(`dkvs_pool_connections_destroyed_total`)
	p.exhausted = p.metrics.NewCounter(`dkvs_pool_checkout_exhausted_total`)
	p.evicted = p.metrics.NewCounter(`dkvs_pool_connections_evicted_total`)
	p.metrics.NewGauge(`dkvs_pool_connections_live`, func() float64 {
		return float64(p.Stats().Live)
	})
	p.metrics.NewGauge(`dkvs_pool_connections_idle`, func() float64 {
		return float64(p.Stats().Idle)
	})

	return p, nil
}

// Config returns the bounds the pool was created with
func (p *ConnectionPool) Config() Config {
	return p.config
}

// Checkout borrows a connection to nodeID (host:port). An idle connection is
// reused first, otherwise a new one is opened if neither the per-node nor the
// global cap would be exceeded. At the global cap the oldest idle connection of
// another node is closed to make room. If no slot can be found the call waits
// for a connection to be returned and fails with *common.PoolExhaustedError.
// Waiting and dialing together take at most SocketTimeout and never outlast ctx.
func (p *ConnectionPool) Checkout(ctx context.Context, nodeID string) (*PooledConn, error) {
	if nodeID == "" {
		return nil, &common.InvalidArgumentError{Arg: "nodeID", Msg: "must not be empty"}
	}

	start := time.Now()
	deadline := start.Add(p.config.SocketTimeout)
	timer := time.NewTimer(p.config.SocketTimeout)
	defer timer.Stop()

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, common.ErrPoolClosed
		}

		n := p.node(nodeID)

		// 1. reuse an idle connection of this node
		if k := len(n.idle); k > 0 {
			conn := n.idle[k-1]
			n.idle[k-1] = nil
			n.idle = n.idle[:k-1]
			n.busy[conn] = struct{}{}
			p.mu.Unlock()
			return conn, nil
		}

		// 2. reserve a slot and open a new connection
		var reason common.ExhaustionReason
		var victim *PooledConn
		switch {
		case n.live >= p.config.MaxConnectionsPerNode:
			reason = common.ReasonPerNodeCap
		case p.total >= p.config.MaxTotalConnections:
			if victim = p.evictOldestIdle(nodeID); victim == nil {
				reason = common.ReasonGlobalCap
				break
			}
			fallthrough
		default:
			n.live++
			p.total++
			p.mu.Unlock()
			if victim != nil {
				Logger.Debugf("Evicted idle connection to %s for %s", victim.nodeID, nodeID)
				p.evicted.Inc()
				p.destroy(victim)
			}
			return p.open(ctx, nodeID, n, deadline)
		}

		// 3. wait for a checkin, a destroyed connection or close
		p.forget(nodeID, n)
		wait := p.changed
		p.mu.Unlock()

		select {
		case <-wait:
		case <-timer.C:
			p.exhausted.Inc()
			err := &common.PoolExhaustedError{NodeID: nodeID, Reason: reason, Waited: time.Since(start)}
			Logger.Warningf("%v", err)
			return nil, err
		case <-ctx.Done():
			return nil, fmt.Errorf("checkout for %s canceled: %w", nodeID, ctx.Err())
		}
	}
}

// Checkin returns a borrowed connection. Healthy connections become idle and
// are reused, unhealthy ones are closed and their slot is freed.
func (p *ConnectionPool) Checkin(conn *PooledConn) error {
	if conn == nil || conn.pool != p {
		return common.ErrNotCheckedOut
	}

	healthy := conn.Healthy()
	if healthy {
		// clear deadlines set by the previous borrower
		if err := conn.Conn.SetDeadline(time.Time{}); err != nil {
			healthy = false
		}
	}

	p.mu.Lock()
	n, ok := p.nodes[conn.nodeID]
	if ok {
		_, ok = n.busy[conn]
	}
	if !ok {
		closed := p.closed
		p.mu.Unlock()
		if closed {
			// already force closed by CloseContext
			_ = conn.Conn.Close()
			return nil
		}
		return common.ErrNotCheckedOut
	}
	delete(n.busy, conn)

	if p.closed || !healthy {
		n.live--
		p.total--
		p.forget(conn.nodeID, n)
		p.broadcast()
		p.mu.Unlock()
		p.destroy(conn)
		return nil
	}

	conn.idleSince = time.Now()
	n.idle = append(n.idle, conn)
	p.broadcast()
	p.mu.Unlock()
	return nil
}

// Close destroys all connections and waits until every borrowed connection was checked in.
func (p *ConnectionPool) Close() error {
	return p.CloseContext(context.Background())
}

// CloseContext refuses new checkouts, destroys idle connections and waits for
// borrowed ones to be checked in (which destroys them). When ctx is done first,
// borrowed connections are closed underneath their borrowers. Idempotent.
func (p *ConnectionPool) CloseContext(ctx context.Context) error {
	p.mu.Lock()
	var idle []*PooledConn
	if !p.closed {
		p.closed = true
		for id, n := range p.nodes {
			idle = append(idle, n.idle...)
			n.live -= len(n.idle)
			p.total -= len(n.idle)
			n.idle = nil
			p.forget(id, n)
		}
		p.broadcast()
		Logger.Infof("Closing connection pool, %d idle connections", len(idle))
	}
	p.mu.Unlock()

	for _, conn := range idle {
		p.destroy(conn)
	}

	for {
		p.mu.Lock()
		if p.total == 0 {
			p.mu.Unlock()
			return nil
		}
		wait := p.changed
		p.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			p.forceClose()
			return ctx.Err()
		}
	}
}

// --------------------------------------------------------------------------
// Statistics
// --------------------------------------------------------------------------

// NodeStats describes the connections of one node
type NodeStats struct {
	Live int
	Idle int
	Busy int
}

// Stats is a consistent snapshot of the pool counters
type Stats struct {
	Live  int
	Idle  int
	Busy  int
	Nodes map[string]NodeStats
}

// Stats returns a snapshot of the pool counters
func (p *ConnectionPool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{Live: p.total, Nodes: make(map[string]NodeStats, len(p.nodes))}
	for id, n := range p.nodes {
		s.Idle += len(n.idle)
		s.Busy += len(n.busy)
		s.Nodes[id] = NodeStats{Live: n.live, Idle: len(n.idle), Busy: len(n.busy)}
	}
	return s
}

// WritePrometheus writes the pool metrics in Prometheus text format
func (p *ConnectionPool) WritePrometheus(w io.Writer) {
	p.metrics.WritePrometheus(w)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// node returns the entry for nodeID, creating it if needed. mu must be held.
func (p *ConnectionPool) node(nodeID string) *nodeConns {
	n, ok := p.nodes[nodeID]
	if !ok {
		n = &nodeConns{busy: make(map[*PooledConn]struct{})}
		p.nodes[nodeID] = n
	}
	return n
}

// forget drops the entry of a node without connections or dials. mu must be held.
func (p *ConnectionPool) forget(nodeID string, n *nodeConns) {
	if n.live == 0 {
		delete(p.nodes, nodeID)
	}
}

// evictOldestIdle removes the longest idle connection of a node other than
// nodeID and releases its slot. The caller closes it after unlocking. mu must be held.
func (p *ConnectionPool) evictOldestIdle(nodeID string) *PooledConn {
	var owner string
	var oldest *nodeConns
	for id, n := range p.nodes {
		if id == nodeID || len(n.idle) == 0 {
			continue
		}
		// idle is ordered by checkin time, the oldest connection comes first
		if oldest == nil || n.idle[0].idleSince.Before(oldest.idle[0].idleSince) {
			owner, oldest = id, n
		}
	}
	if oldest == nil {
		return nil
	}

	conn := oldest.idle[0]
	oldest.idle[0] = nil
	oldest.idle = oldest.idle[1:]
	oldest.live--
	p.total--
	p.forget(owner, oldest)
	return conn
}

// broadcast wakes all waiting checkouts. mu must be held.
func (p *ConnectionPool) broadcast() {
	close(p.changed)
	p.changed = make(chan struct{})
}

// open dials a connection for a slot that was already reserved in n. The dial
// gives up at deadline or when ctx is done, whichever comes first.
func (p *ConnectionPool) open(ctx context.Context, nodeID string, n *nodeConns, deadline time.Time) (*PooledConn, error) {
	release := func() {
		p.mu.Lock()
		n.live--
		p.total--
		p.forget(nodeID, n)
		p.broadcast()
		p.mu.Unlock()
	}

	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	conn, err := p.connector.Connect(dialCtx, nodeID)
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to connect to %s: %w", nodeID, err)
	}
	if err := p.connector.UpgradeConnection(conn, p.config.Transport); err != nil {
		_ = conn.Close()
		release()
		return nil, fmt.Errorf("failed to upgrade connection to %s: %w", nodeID, err)
	}

	pc := &PooledConn{Conn: conn, nodeID: nodeID, pool: p}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = conn.Close()
		release()
		return nil, common.ErrPoolClosed
	}
	n.busy[pc] = struct{}{}
	p.mu.Unlock()

	p.created.Inc()
	Logger.Debugf("Opened %s connection to %s", p.connector.GetName(), nodeID)
	return pc, nil
}

// destroy closes a connection whose slot was already released
func (p *ConnectionPool) destroy(conn *PooledConn) {
	p.destroyed.Inc()
	if err := conn.Conn.Close(); err != nil {
		Logger.Debugf("Error closing connection to %s: %v", conn.nodeID, err)
	}
}

// forceClose closes all borrowed connections. Dials in progress release their own slot.
func (p *ConnectionPool) forceClose() {
	p.mu.Lock()
	var busy []*PooledConn
	for id, n := range p.nodes {
		for conn := range n.busy {
			busy = append(busy, conn)
		}
		n.live -= len(n.busy)
		p.total -= len(n.busy)
		n.busy = make(map[*PooledConn]struct{})
		p.forget(id, n)
	}
	p.broadcast()
	p.mu.Unlock()

	if len(busy) > 0 {
		Logger.Warningf("Force closed %d borrowed connections", len(busy))
	}
	for _, conn := range busy {
		p.destroy(conn)
	}
}
