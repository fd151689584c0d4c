// Package client implements the socket store client factory of the dkvs key-value store.
//
// A SocketStoreClientFactory is built once from a validated FactoryConfig. It owns one
// executor.Executor and one pool.ConnectionPool and hands out SocketStore handles, one
// per (store, host, port). Handles borrow the shared pool and executor, they never own them.
//
// Key Components:
//
//   - FactoryOptions / FactoryConfig: the tunables with their defaults and the validated,
//     immutable configuration built from them by NewFactoryConfig.
//
//   - ValidateURL / ParseBootstrapURL: bootstrap URLs must use the tcp scheme, e.g.
//     tcp://node1:6666,node2:6666.
//
//   - SocketStoreClientFactory: creates the shared resources and caches store handles.
//
//   - SocketStore: implements store.IStore over length prefixed frames on a leased connection.
//
// Usage Example:
//
//	config, err := client.NewFactoryConfig(client.DefaultFactoryOptions("tcp://localhost:6666"))
//	if err != nil {
//	  return err
//	}
//	factory, err := client.NewSocketStoreClientFactory(config)
//	if err != nil {
//	  return err
//	}
//	defer factory.Close()
//
//	users, _ := factory.GetStore("users", "localhost", 6666)
//	_ = users.Set(ctx, "alice", []byte("admin"))
//	value, found, _ := users.Get(ctx, "alice")
//
// No request is retried. Failures are returned to the caller, which may ban the node
// through the factory's BannageTracker and pick another one.
package client
