package client

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dkvs/lib/cluster"
	"github.com/ValentinKolb/dkvs/rpc/common"
	"github.com/ValentinKolb/dkvs/rpc/executor"
	"github.com/ValentinKolb/dkvs/rpc/pool"
	"github.com/ValentinKolb/dkvs/rpc/serializer"
	"github.com/ValentinKolb/dkvs/rpc/transport"
	"github.com/ValentinKolb/dkvs/rpc/transport/tcp"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	gometrics "github.com/rcrowley/go-metrics"
	"io"
	"sync"
	"sync/atomic"
)

var Logger = logger.GetLogger("client")

// storeKey identifies a cached store handle
type storeKey struct {
	store string
	host  string
	port  int
}

// SocketStoreClientFactory creates SocketStore handles for the nodes of a
// cluster. All handles of one factory share one connection pool and one executor.
type SocketStoreClientFactory struct {
	config     *FactoryConfig
	pool       *pool.ConnectionPool
	executor   *executor.Executor
	serializer serializer.IRPCSerializer
	bannage    *cluster.BannageTracker
	registry   gometrics.Registry

	stores *xsync.MapOf[storeKey, *SocketStore]

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewSocketStoreClientFactory creates the executor and the connection pool
// described by config. Connections are opened lazily.
func NewSocketStoreClientFactory(config *FactoryConfig) (*SocketStoreClientFactory, error) {
	return newSocketStoreClientFactory(config, tcp.NewTCPConnector())
}

func newSocketStoreClientFactory(config *FactoryConfig, connector transport.IClientConnector) (*SocketStoreClientFactory, error) {
	if config == nil {
		return nil, &common.InvalidArgumentError{Arg: "config", Msg: "must not be nil"}
	}

	exec, err := executor.NewExecutor(config.CoreThreads(), config.MaxThreads(), config.MaxQueuedRequests(), executor.DefaultKeepAlive)
	if err != nil {
		return nil, err
	}

	p, err := pool.NewConnectionPool(connector, config.PoolConfig())
	if err != nil {
		exec.Shutdown()
		return nil, err
	}

	Logger.Infof("Created %s client factory for %d bootstrap node(s)", connector.GetName(), len(config.endpoints))

	return &SocketStoreClientFactory{
		config:     config,
		pool:       p,
		executor:   exec,
		serializer: config.SerializerFactory()(),
		bannage:    cluster.NewBannageTracker(config.NodeBannage()),
		registry:   gometrics.NewRegistry(),
		stores:     xsync.NewMapOf[storeKey, *SocketStore](),
	}, nil
}

func (f *SocketStoreClientFactory) Config() *FactoryConfig { return f.config }
func (f *SocketStoreClientFactory) Pool() *pool.ConnectionPool { return f.pool }
func (f *SocketStoreClientFactory) Executor() *executor.Executor { return f.executor }

// Bannage returns the tracker of failed nodes. The factory only filters banned
// nodes in NodeStores, banning is up to the caller.
func (f *SocketStoreClientFactory) Bannage() *cluster.BannageTracker { return f.bannage }

// Registry holds the latency timers of all store handles
func (f *SocketStoreClientFactory) Registry() gometrics.Registry { return f.registry }

// ValidateURL checks a raw bootstrap URL. The scheme must be exactly "tcp",
// "TCP://host:port" is rejected.
func (f *SocketStoreClientFactory) ValidateURL(raw string) error {
	_, err := ParseBootstrapURL(raw)
	return err
}

// GetPort returns the port of the store protocol, never the http or admin port
func (f *SocketStoreClientFactory) GetPort(node cluster.Node) int {
	return node.SocketPort
}

// GetStore returns the handle of storeName on host:port. Handles are cached,
// repeated calls with the same arguments return the same handle.
func (f *SocketStoreClientFactory) GetStore(storeName, host string, port int) (*SocketStore, error) {
	switch {
	case storeName == "":
		return nil, &common.InvalidArgumentError{Arg: "storeName", Msg: "must not be empty"}
	case host == "":
		return nil, &common.InvalidArgumentError{Arg: "host", Msg: "must not be empty"}
	case port <= 0 || port > 65535:
		return nil, &common.InvalidArgumentError{Arg: "port", Msg: fmt.Sprintf("%d out of range", port)}
	}
	if f.closed.Load() {
		return nil, common.ErrFactoryClosed
	}

	key := storeKey{storeName, host, port}
	s, _ := f.stores.LoadOrCompute(key, func() *SocketStore {
		timer := gometrics.GetOrRegisterTimer(
			fmt.Sprintf("store.%s.%s:%d.latency", storeName, host, port), f.registry)
		return newSocketStore(storeName, host, port, f.pool, f.executor, f.serializer, f.config.SocketTimeout(), timer)
	})
	// Close may have cleared the cache while the handle was created
	if f.closed.Load() {
		f.stores.Delete(key)
		return nil, common.ErrFactoryClosed
	}
	return s, nil
}

// StoreForNode returns the handle of storeName on the socket port of node
func (f *SocketStoreClientFactory) StoreForNode(storeName string, node cluster.Node) (*SocketStore, error) {
	return f.GetStore(storeName, node.Host, f.GetPort(node))
}

// Topology returns the bootstrap nodes as static topology
func (f *SocketStoreClientFactory) Topology() cluster.ITopologyProvider {
	topo, err := BootstrapTopology(f.config.endpoints)
	if err != nil {
		// endpoints were validated by NewFactoryConfig
		panic(err)
	}
	return topo
}

// NodeStores returns a handle of storeName for every node of topo that is not banned
func (f *SocketStoreClientFactory) NodeStores(ctx context.Context, storeName string, topo cluster.ITopologyProvider) ([]*SocketStore, error) {
	nodes, err := topo.Nodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load topology: %w", err)
	}

	available := f.bannage.Available(nodes)
	if len(available) == 0 {
		return nil, fmt.Errorf("all %d nodes are banned", len(nodes))
	}

	stores := make([]*SocketStore, 0, len(available))
	for _, n := range available {
		s, err := f.StoreForNode(storeName, n)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n, err)
		}
		stores = append(stores, s)
	}
	return stores, nil
}

// WritePrometheus writes the pool and executor metrics in Prometheus text format
func (f *SocketStoreClientFactory) WritePrometheus(w io.Writer) {
	f.pool.WritePrometheus(w)
	f.executor.WritePrometheus(w)
}

// Close shuts down the executor, letting queued requests finish, and then
// closes the connection pool. Connections still borrowed after the socket
// timeout are closed forcibly. Handles must not be used afterwards. Idempotent.
func (f *SocketStoreClientFactory) Close() error {
	f.closeOnce.Do(func() {
		f.closed.Store(true)
		f.executor.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), f.config.SocketTimeout())
		defer cancel()
		if err := f.pool.CloseContext(ctx); err != nil {
			f.closeErr = fmt.Errorf("close connection pool: %w", err)
		}
		f.stores.Clear()
		Logger.Infof("Closed client factory")
	})
	return f.closeErr
}
