package client

import (
	"context"
	"errors"
	"github.com/ValentinKolb/dkvs/lib/cluster"
	"github.com/ValentinKolb/dkvs/lib/store"
	"github.com/ValentinKolb/dkvs/rpc/common"
	"github.com/ValentinKolb/dkvs/rpc/executor"
	"github.com/ValentinKolb/dkvs/rpc/serializer"
	"github.com/ValentinKolb/dkvs/rpc/transport/tcp"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// --------------------------------------------------------------------------
// Test Server
// --------------------------------------------------------------------------

// testServer answers store requests from an in memory map
type testServer struct {
	ln   net.Listener
	ser  serializer.IRPCSerializer
	port int

	mu    sync.Mutex
	data  map[string][]byte
	conns []net.Conn
	wg    sync.WaitGroup
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := &testServer{
		ln:   ln,
		ser:  serializer.NewBinarySerializer(),
		port: ln.Addr().(*net.TCPAddr).Port,
		data: make(map[string][]byte),
	}
	go s.serve()

	t.Cleanup(func() {
		_ = ln.Close()
		s.mu.Lock()
		for _, c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
	return s
}

func (s *testServer) url() string {
	return "tcp://127.0.0.1:" + strconv.Itoa(s.port)
}

func (s *testServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *testServer) handle(conn net.Conn) {
	defer s.wg.Done()
	for {
		id, data, err := tcp.ReadFrame(conn, nil)
		if err != nil {
			return
		}

		var req common.Message
		var resp *common.Message
		if err := s.ser.Deserialize(data, &req); err != nil {
			resp = common.NewErrorResponse(err.Error())
		} else {
			resp = s.apply(req)
		}

		out, _ := s.ser.Serialize(*resp)
		if err := tcp.WriteFrame(conn, id, out); err != nil {
			return
		}
	}
}

func (s *testServer) apply(req common.Message) *common.Message {
	if req.Key == "fail" {
		return common.NewErrorResponse("key fail is not allowed")
	}

	key := req.Store + "/" + req.Key
	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.MsgType {
	case common.MsgTKVSet:
		s.data[key] = append([]byte(nil), req.Value...)
		return common.NewResponse(req.MsgType, nil, true, nil)
	case common.MsgTKVGet:
		v, ok := s.data[key]
		return common.NewResponse(req.MsgType, v, ok, nil)
	case common.MsgTKVHas:
		_, ok := s.data[key]
		return common.NewResponse(req.MsgType, nil, ok, nil)
	case common.MsgTKVDelete:
		_, ok := s.data[key]
		delete(s.data, key)
		return common.NewResponse(req.MsgType, nil, ok, nil)
	default:
		return common.NewErrorResponse("unsupported message type " + req.MsgType.String())
	}
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func newTestFactory(t *testing.T, opts FactoryOptions) *SocketStoreClientFactory {
	t.Helper()
	config, err := NewFactoryConfig(opts)
	if err != nil {
		t.Fatalf("NewFactoryConfig() error = %v", err)
	}
	f, err := NewSocketStoreClientFactory(config)
	if err != nil {
		t.Fatalf("NewSocketStoreClientFactory() error = %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// TestDefaultFactoryOptions tests the documented defaults
func TestDefaultFactoryOptions(t *testing.T) {
	config, err := NewFactoryConfig(DefaultFactoryOptions("tcp://localhost:6666"))
	if err != nil {
		t.Fatalf("NewFactoryConfig() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"CoreThreads", config.CoreThreads(), 5},
		{"MaxThreads", config.MaxThreads(), 5},
		{"MaxQueuedRequests", config.MaxQueuedRequests(), 1000},
		{"MaxConnectionsPerNode", config.MaxConnectionsPerNode(), 10},
		{"MaxTotalConnections", config.MaxTotalConnections(), 50},
		{"SocketTimeout", config.SocketTimeout(), 5000 * time.Millisecond},
		{"RoutingTimeout", config.RoutingTimeout(), DefaultRoutingTimeoutMs * time.Millisecond},
		{"NodeBannage", config.NodeBannage(), DefaultNodeBannageMs * time.Millisecond},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if config.SerializerFactory() == nil {
		t.Errorf("SerializerFactory() is nil")
	}
	if !strings.Contains(config.String(), "tcp://localhost:6666") {
		t.Errorf("String() does not contain the bootstrap URL:\n%s", config.String())
	}
}

// TestNewFactoryConfigValidation tests that invalid tunables fail construction
func TestNewFactoryConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(o *FactoryOptions)
		field  string
	}{
		{"zero core threads", func(o *FactoryOptions) { o.CoreThreads = 0 }, "CoreThreads"},
		{"core above max", func(o *FactoryOptions) { o.CoreThreads = 6 }, "CoreThreads"},
		{"negative queue", func(o *FactoryOptions) { o.MaxQueuedRequests = -1 }, "MaxQueuedRequests"},
		{"per node above total", func(o *FactoryOptions) { o.MaxConnectionsPerNode = 51 }, "MaxConnectionsPerNode"},
		{"zero total", func(o *FactoryOptions) { o.MaxTotalConnections = 0 }, "MaxTotalConnections"},
		{"zero socket timeout", func(o *FactoryOptions) { o.SocketTimeoutMs = 0 }, "SocketTimeoutMs"},
		{"zero routing timeout", func(o *FactoryOptions) { o.RoutingTimeoutMs = 0 }, "RoutingTimeoutMs"},
		{"zero bannage", func(o *FactoryOptions) { o.NodeBannageMs = 0 }, "NodeBannageMs"},
		{"no serializer", func(o *FactoryOptions) { o.Serializer = nil }, "Serializer"},
		{"negative buffer", func(o *FactoryOptions) { o.Transport.ReadBufferSize = -1 }, "Transport"},
		{"no bootstrap URL", func(o *FactoryOptions) { o.BootstrapURLs = nil }, "BootstrapURLs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultFactoryOptions("tcp://localhost:6666")
			tt.modify(&opts)

			_, err := NewFactoryConfig(opts)
			var confErr *common.ConfigurationError
			if !errors.As(err, &confErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if confErr.Field != tt.field {
				t.Errorf("Field = %s, want %s", confErr.Field, tt.field)
			}
		})
	}
}

// TestFactoryConfigIsImmutable tests that the config does not share slices with its options
func TestFactoryConfigIsImmutable(t *testing.T) {
	opts := DefaultFactoryOptions("tcp://a:1", "tcp://b:2")
	config, err := NewFactoryConfig(opts)
	if err != nil {
		t.Fatalf("NewFactoryConfig() error = %v", err)
	}

	opts.BootstrapURLs[0] = "tcp://changed:1"
	config.BootstrapURLs()[1] = "tcp://changed:2"
	config.Endpoints()[0].Host = "changed:3"

	if got := config.BootstrapURLs(); got[0] != "tcp://a:1" || got[1] != "tcp://b:2" {
		t.Errorf("BootstrapURLs() = %v, config was mutated", got)
	}
	if got := config.Endpoints()[0].Host; got != "a:1" {
		t.Errorf("Endpoints()[0].Host = %s, config was mutated", got)
	}
}

// --------------------------------------------------------------------------
// Bootstrap URLs
// --------------------------------------------------------------------------

// TestValidateURL tests the exact, case-sensitive scheme check
func TestValidateURL(t *testing.T) {
	ok, _ := url.Parse("tcp://host:1234")
	if err := ValidateURL(ok); err != nil {
		t.Errorf("ValidateURL(%s) = %v, want nil", ok, err)
	}

	bad, _ := url.Parse("http://host:1234")
	err := ValidateURL(bad)
	var schemeErr *common.InvalidSchemeError
	if !errors.As(err, &schemeErr) {
		t.Fatalf("expected InvalidSchemeError, got %v", err)
	}
	if !strings.Contains(err.Error(), "'tcp'") || !strings.Contains(err.Error(), "'http'") {
		t.Errorf("error %q does not name both schemes", err)
	}

	upper := &url.URL{Scheme: "TCP", Host: "host:1234"}
	if err := ValidateURL(upper); !errors.As(err, &schemeErr) {
		t.Errorf("ValidateURL(%s) = %v, want InvalidSchemeError", upper, err)
	}
}

// TestValidateRawURLIsCaseSensitive tests that the raw string form sees the
// scheme before url.Parse lower-cases it
func TestValidateRawURLIsCaseSensitive(t *testing.T) {
	f := newTestFactory(t, DefaultFactoryOptions("tcp://localhost:6666"))

	parsed, err := url.Parse("TCP://host:1234")
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	if parsed.Scheme != "tcp" {
		t.Fatalf("url.Parse() kept scheme %q", parsed.Scheme)
	}

	var schemeErr *common.InvalidSchemeError
	for _, raw := range []string{"TCP://host:1234", "Tcp://host:1234"} {
		if err := f.ValidateURL(raw); !errors.As(err, &schemeErr) {
			t.Errorf("ValidateURL(%q) = %v, want InvalidSchemeError", raw, err)
		} else if schemeErr.Actual != raw[:3] {
			t.Errorf("Actual = %q, want %q", schemeErr.Actual, raw[:3])
		}
	}
	if err := f.ValidateURL("tcp://host:1234"); err != nil {
		t.Errorf("ValidateURL(tcp://host:1234) = %v, want nil", err)
	}
}

// TestParseBootstrapURL tests the multi-host form and its failures
func TestParseBootstrapURL(t *testing.T) {
	urls, err := ParseBootstrapURL("tcp://node1:6666, node2:6667,[::1]:6668")
	if err != nil {
		t.Fatalf("ParseBootstrapURL() error = %v", err)
	}
	want := []string{"tcp://node1:6666", "tcp://node2:6667", "tcp://[::1]:6668"}
	if len(urls) != len(want) {
		t.Fatalf("got %d URLs, want %d", len(urls), len(want))
	}
	for i, u := range urls {
		if u.String() != want[i] {
			t.Errorf("url %d = %s, want %s", i, u, want[i])
		}
	}

	topo, err := BootstrapTopology(urls)
	if err != nil {
		t.Fatalf("BootstrapTopology() error = %v", err)
	}
	if topo[2].Host != "::1" || topo[2].SocketPort != 6668 || topo[2].ID != 2 {
		t.Errorf("topology node 2 = %+v", topo[2])
	}

	failures := []struct {
		raw    string
		scheme bool
	}{
		{"http://node1:6666", true},
		{"TCP://node1:6666", true},
		{"node1:6666", true},
		{"tcp://node1", false},
		{"tcp://node1:http", false},
		{"tcp://", false},
		{"", false},
	}
	for _, f := range failures {
		_, err := ParseBootstrapURL(f.raw)
		if err == nil {
			t.Errorf("ParseBootstrapURL(%q) succeeded, want error", f.raw)
			continue
		}
		var schemeErr *common.InvalidSchemeError
		if errors.As(err, &schemeErr) != f.scheme {
			t.Errorf("ParseBootstrapURL(%q) = %v, scheme error expected: %v", f.raw, err, f.scheme)
		}
	}
}

// --------------------------------------------------------------------------
// Factory
// --------------------------------------------------------------------------

// TestGetStoreArguments tests argument validation of GetStore
func TestGetStoreArguments(t *testing.T) {
	f := newTestFactory(t, DefaultFactoryOptions("tcp://localhost:6666"))

	tests := []struct {
		name      string
		storeName string
		host      string
		port      int
	}{
		{"empty store name", "", "host", 1234},
		{"empty host", "store", "", 1234},
		{"zero port", "store", "host", 0},
	}
	for _, tt := range tests {
		_, err := f.GetStore(tt.storeName, tt.host, tt.port)
		var argErr *common.InvalidArgumentError
		if !errors.As(err, &argErr) {
			t.Errorf("%s: expected InvalidArgumentError, got %v", tt.name, err)
		}
	}
}

// TestStoresShareResources tests that handles share pool and executor by identity
func TestStoresShareResources(t *testing.T) {
	f := newTestFactory(t, DefaultFactoryOptions("tcp://localhost:6666"))

	a, err := f.GetStore("users", "node-a", 6666)
	if err != nil {
		t.Fatalf("GetStore() error = %v", err)
	}
	b, err := f.GetStore("users", "node-b", 6666)
	if err != nil {
		t.Fatalf("GetStore() error = %v", err)
	}

	if a == b {
		t.Fatalf("handles of different nodes are identical")
	}
	if a.Pool() != b.Pool() || a.Pool() != f.Pool() {
		t.Errorf("handles do not share the factory pool")
	}
	if a.Executor() != b.Executor() || a.Executor() != f.Executor() {
		t.Errorf("handles do not share the factory executor")
	}

	again, _ := f.GetStore("users", "node-a", 6666)
	if again != a {
		t.Errorf("GetStore() did not return the cached handle")
	}
	if a.NodeID() != "node-a:6666" || a.Name() != "users" {
		t.Errorf("handle = %s", a)
	}
}

// TestGetPort tests that the socket port is used, not the http or admin port
func TestGetPort(t *testing.T) {
	f := newTestFactory(t, DefaultFactoryOptions("tcp://localhost:6666"))
	node := cluster.Node{ID: 1, Host: "node1", SocketPort: 6666, HTTPPort: 8080, AdminPort: 6667}

	if port := f.GetPort(node); port != 6666 {
		t.Errorf("GetPort() = %d, want 6666", port)
	}

	s, err := f.StoreForNode("users", node)
	if err != nil {
		t.Fatalf("StoreForNode() error = %v", err)
	}
	if s.Port() != 6666 || s.Host() != "node1" {
		t.Errorf("StoreForNode() = %s", s)
	}
}

// TestNodeStoresSkipsBanned tests that banned nodes get no handle
func TestNodeStoresSkipsBanned(t *testing.T) {
	f := newTestFactory(t, DefaultFactoryOptions("tcp://node0:6666,node1:6666,node2:6666"))
	ctx := testContext(t)

	f.Bannage().Ban(1)
	stores, err := f.NodeStores(ctx, "users", f.Topology())
	if err != nil {
		t.Fatalf("NodeStores() error = %v", err)
	}
	if len(stores) != 2 || stores[0].Host() != "node0" || stores[1].Host() != "node2" {
		t.Errorf("NodeStores() = %v, want node0 and node2", stores)
	}

	f.Bannage().Ban(0)
	f.Bannage().Ban(2)
	if _, err := f.NodeStores(ctx, "users", f.Topology()); err == nil {
		t.Errorf("expected error when all nodes are banned")
	}
}

// TestFactoryClose tests that close is idempotent and rejects new handles
func TestFactoryClose(t *testing.T) {
	config, err := NewFactoryConfig(DefaultFactoryOptions("tcp://localhost:6666"))
	if err != nil {
		t.Fatalf("NewFactoryConfig() error = %v", err)
	}
	f, err := NewSocketStoreClientFactory(config)
	if err != nil {
		t.Fatalf("NewSocketStoreClientFactory() error = %v", err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := f.GetStore("users", "localhost", 6666); !errors.Is(err, common.ErrFactoryClosed) {
		t.Errorf("expected ErrFactoryClosed, got %v", err)
	}
	if _, err := f.Executor().Submit(func() error { return nil }); !errors.Is(err, common.ErrExecutorShutdown) {
		t.Errorf("expected ErrExecutorShutdown, got %v", err)
	}
}

// TestGetStoreDuringClose tests that no handle survives a concurrent close
func TestGetStoreDuringClose(t *testing.T) {
	for round := 0; round < 20; round++ {
		config, err := NewFactoryConfig(DefaultFactoryOptions("tcp://localhost:6666"))
		if err != nil {
			t.Fatalf("NewFactoryConfig() error = %v", err)
		}
		f, err := NewSocketStoreClientFactory(config)
		if err != nil {
			t.Fatalf("NewSocketStoreClientFactory() error = %v", err)
		}

		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					_, err := f.GetStore("store-"+strconv.Itoa(i), "localhost", 6000+g)
					if err != nil && !errors.Is(err, common.ErrFactoryClosed) {
						t.Errorf("GetStore() error = %v", err)
					}
				}
			}(g)
		}
		if err := f.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		wg.Wait()

		if n := f.stores.Size(); n != 0 {
			t.Fatalf("round %d: %d handles cached after Close", round, n)
		}
	}
}

// --------------------------------------------------------------------------
// Socket Store
// --------------------------------------------------------------------------

// TestSocketStoreOperations tests all store operations against a live server
func TestSocketStoreOperations(t *testing.T) {
	srv := startTestServer(t)
	f := newTestFactory(t, DefaultFactoryOptions(srv.url()))
	ctx := testContext(t)

	s, err := f.GetStore("users", "127.0.0.1", srv.port)
	if err != nil {
		t.Fatalf("GetStore() error = %v", err)
	}

	if err := s.Set(ctx, "alice", []byte("admin")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, found, err := s.Get(ctx, "alice")
	if err != nil || !found || string(value) != "admin" {
		t.Errorf("Get() = %q, %v, %v", value, found, err)
	}

	// stores are separate namespaces
	other, _ := f.GetStore("groups", "127.0.0.1", srv.port)
	if found, err := other.Has(ctx, "alice"); err != nil || found {
		t.Errorf("groups.Has() = %v, %v, want false", found, err)
	}

	if found, err := s.Has(ctx, "alice"); err != nil || !found {
		t.Errorf("Has() = %v, %v, want true", found, err)
	}
	if deleted, err := s.Delete(ctx, "alice"); err != nil || !deleted {
		t.Errorf("Delete() = %v, %v, want true", deleted, err)
	}
	if _, found, err := s.Get(ctx, "alice"); err != nil || found {
		t.Errorf("Get() after Delete() found = %v, err = %v", found, err)
	}

	// all requests ran one after another over one connection
	if stats := f.Pool().Stats(); stats.Live != 1 || stats.Idle != 1 {
		t.Errorf("pool stats = %+v, want one idle connection", stats)
	}
	if n := s.Latency().Count(); n != 5 {
		t.Errorf("latency count = %d, want 5", n)
	}
}

// TestSocketStoreRemoteError tests that node errors are typed and keep the connection
func TestSocketStoreRemoteError(t *testing.T) {
	srv := startTestServer(t)
	f := newTestFactory(t, DefaultFactoryOptions(srv.url()))
	ctx := testContext(t)

	s, _ := f.GetStore("users", "127.0.0.1", srv.port)

	err := s.Set(ctx, "fail", []byte("x"))
	var storeErr *store.Error
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected *store.Error, got %v", err)
	}
	if storeErr.Code != store.RetCRemoteError {
		t.Errorf("Code = %s, want %s", storeErr.Code, store.RetCRemoteError)
	}

	if stats := f.Pool().Stats(); stats.Live != 1 || stats.Idle != 1 {
		t.Errorf("pool stats = %+v, connection should be reused", stats)
	}
}

// TestSocketStoreUnreachableNode tests that dial failures surface and free the slot
func TestSocketStoreUnreachableNode(t *testing.T) {
	// reserve a port nobody listens on
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	opts := DefaultFactoryOptions("tcp://127.0.0.1:" + strconv.Itoa(port))
	opts.SocketTimeoutMs = 500
	f := newTestFactory(t, opts)

	s, _ := f.GetStore("users", "127.0.0.1", port)
	if _, _, err := s.Get(testContext(t), "alice"); err == nil {
		t.Fatalf("expected error for unreachable node")
	}
	if stats := f.Pool().Stats(); stats.Live != 0 {
		t.Errorf("pool stats = %+v, failed dial kept its slot", stats)
	}
}

// TestSocketStoreAsync tests requests submitted through the shared executor
func TestSocketStoreAsync(t *testing.T) {
	srv := startTestServer(t)
	f := newTestFactory(t, DefaultFactoryOptions(srv.url()))
	ctx := testContext(t)

	s, _ := f.GetStore("users", "127.0.0.1", srv.port)

	var futures []*executor.Future
	for i := 0; i < 20; i++ {
		fut, err := s.SetAsync(ctx, "key-"+strconv.Itoa(i), []byte(strconv.Itoa(i)))
		if err != nil {
			t.Fatalf("SetAsync() error = %v", err)
		}
		futures = append(futures, fut)
	}
	for _, fut := range futures {
		if err := fut.Wait(ctx); err != nil {
			t.Fatalf("SetAsync().Wait() error = %v", err)
		}
	}

	get, err := s.GetAsync(ctx, "key-7")
	if err != nil {
		t.Fatalf("GetAsync() error = %v", err)
	}
	value, found, err := get.Wait(ctx)
	if err != nil || !found || string(value) != "7" {
		t.Errorf("GetAsync().Wait() = %q, %v, %v", value, found, err)
	}

	if stats := f.Pool().Stats(); stats.Live > f.Config().MaxConnectionsPerNode() {
		t.Errorf("pool stats = %+v, per node cap exceeded", stats)
	}
}
