package client

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dkvs/lib/store"
	"github.com/ValentinKolb/dkvs/rpc/common"
	"github.com/ValentinKolb/dkvs/rpc/executor"
	"github.com/ValentinKolb/dkvs/rpc/pool"
	"github.com/ValentinKolb/dkvs/rpc/serializer"
	"github.com/ValentinKolb/dkvs/rpc/transport/tcp"
	gometrics "github.com/rcrowley/go-metrics"
	"net"
	"strconv"
	"sync/atomic"
	"time"
)

var _ store.IStore = (*SocketStore)(nil)

// SocketStore is the store.IStore of one named store on one node. It borrows a
// connection from the shared pool for every request and never owns the pool
// or the executor, both belong to the factory that created it.
type SocketStore struct {
	name   string
	host   string
	port   int
	nodeID string

	pool       *pool.ConnectionPool
	executor   *executor.Executor
	serializer serializer.IRPCSerializer
	timeout    time.Duration

	requestID atomic.Uint64
	latency   gometrics.Timer
}

func newSocketStore(
	name, host string,
	port int,
	pool *pool.ConnectionPool,
	executor *executor.Executor,
	serializer serializer.IRPCSerializer,
	timeout time.Duration,
	latency gometrics.Timer,
) *SocketStore {
	return &SocketStore{
		name:       name,
		host:       host,
		port:       port,
		nodeID:     net.JoinHostPort(host, strconv.Itoa(port)),
		pool:       pool,
		executor:   executor,
		serializer: serializer,
		timeout:    timeout,
		latency:    latency,
	}
}

func (s *SocketStore) Host() string { return s.host }
func (s *SocketStore) Port() int { return s.port }

// NodeID returns host:port, the key of this store's connections in the pool
func (s *SocketStore) NodeID() string { return s.nodeID }

// Pool returns the shared connection pool
func (s *SocketStore) Pool() *pool.ConnectionPool { return s.pool }

// Executor returns the shared executor
func (s *SocketStore) Executor() *executor.Executor { return s.executor }

// Latency returns the request latency timer of this store
func (s *SocketStore) Latency() gometrics.Timer { return s.latency }

func (s *SocketStore) String() string {
	return fmt.Sprintf("store %s on %s", s.name, s.nodeID)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (s *SocketStore) Name() string {
	return s.name
}

func (s *SocketStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.invoke(ctx, common.NewSetRequest(s.name, key, value))
	return err
}

func (s *SocketStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp, err := s.invoke(ctx, common.NewGetRequest(s.name, key))
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Ok, nil
}

func (s *SocketStore) Has(ctx context.Context, key string) (bool, error) {
	resp, err := s.invoke(ctx, common.NewHasRequest(s.name, key))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (s *SocketStore) Delete(ctx context.Context, key string) (bool, error) {
	resp, err := s.invoke(ctx, common.NewDeleteRequest(s.name, key))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

// --------------------------------------------------------------------------
// Asynchronous requests
// --------------------------------------------------------------------------

// SetAsync submits a Set to the shared executor
func (s *SocketStore) SetAsync(ctx context.Context, key string, value []byte) (*executor.Future, error) {
	return s.executor.Submit(func() error {
		return s.Set(ctx, key, value)
	})
}

// AsyncGet is the pending result of GetAsync
type AsyncGet struct {
	future *executor.Future
	value  []byte
	loaded bool
}

// Done is closed once the request has finished
func (a *AsyncGet) Done() <-chan struct{} {
	return a.future.Done()
}

// Wait blocks until the request has finished or ctx is done
func (a *AsyncGet) Wait(ctx context.Context) ([]byte, bool, error) {
	if err := a.future.Wait(ctx); err != nil {
		return nil, false, err
	}
	return a.value, a.loaded, nil
}

// GetAsync submits a Get to the shared executor. If the executor is saturated
// the request runs on the calling goroutine before GetAsync returns.
func (s *SocketStore) GetAsync(ctx context.Context, key string) (*AsyncGet, error) {
	a := &AsyncGet{}
	f, err := s.executor.Submit(func() (err error) {
		a.value, a.loaded, err = s.Get(ctx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	a.future = f
	return a, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// invoke sends one request over a leased connection and reads its response.
// I/O and protocol errors flag the connection so the pool destroys it on checkin.
// Errors reported by the node are returned as *store.Error and keep the connection.
func (s *SocketStore) invoke(ctx context.Context, req *common.Message) (*common.Message, error) {
	defer s.latency.UpdateSince(time.Now())

	reqBytes, err := s.serializer.Serialize(*req)
	if err != nil {
		return nil, fmt.Errorf("serialize %s request: %w", req.MsgType, err)
	}

	conn, err := s.pool.Checkout(ctx, s.nodeID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.pool.Checkin(conn); err != nil {
			Logger.Warningf("Checkin of connection to %s failed: %v", s.nodeID, err)
		}
	}()

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.MarkUnhealthy()
		return nil, fmt.Errorf("set deadline on connection to %s: %w", s.nodeID, err)
	}

	id := s.requestID.Add(1)
	if err := tcp.WriteFrame(conn, id, reqBytes); err != nil {
		conn.MarkUnhealthy()
		return nil, fmt.Errorf("send %s request to %s: %w", req.MsgType, s.nodeID, err)
	}

	respID, respBytes, err := tcp.ReadFrame(conn, nil)
	if err != nil {
		conn.MarkUnhealthy()
		return nil, fmt.Errorf("read %s response from %s: %w", req.MsgType, s.nodeID, err)
	}
	if respID != id {
		conn.MarkUnhealthy()
		return nil, store.NewError(store.RetCInvalidResponse,
			fmt.Sprintf("response id %d does not match request id %d", respID, id))
	}

	resp := &common.Message{}
	if err := s.serializer.Deserialize(respBytes, resp); err != nil {
		conn.MarkUnhealthy()
		return nil, store.NewError(store.RetCInvalidResponse, err.Error())
	}

	if resp.MsgType == common.MsgTError || resp.Err != "" {
		return nil, store.NewError(store.RetCRemoteError, resp.Err)
	}
	if resp.MsgType != req.MsgType {
		return nil, store.NewError(store.RetCInvalidResponse,
			fmt.Sprintf("unexpected message type %s, expected %s", resp.MsgType, req.MsgType))
	}

	return resp, nil
}
