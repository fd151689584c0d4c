package kv

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dkvs/cmd/util"
	"github.com/ValentinKolb/dkvs/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	factory  *client.SocketStoreClientFactory
	rpcStore *client.SocketStore

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value store operations",
		PersistentPreRunE:  setupKVClient,
		PersistentPostRunE: closeKVClient,
	}
)

func init() {
	key := "store"
	KeyValueCommands.PersistentFlags().String(key, "default", util.WrapString("Name of the store to use"))
	key = "node"
	KeyValueCommands.PersistentFlags().Int(key, -1, util.WrapString("Index of the bootstrap node to talk to (-1 picks the first one that is not banned)"))

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(benchCmd)
}

// setupKVClient creates the client factory and the store handle
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := util.InitLogging(); err != nil {
		return err
	}

	config, err := util.GetFactoryConfig()
	if err != nil {
		return err
	}

	factory, err = client.NewSocketStoreClientFactory(config)
	if err != nil {
		return err
	}

	storeName := viper.GetString("store")
	nodes, err := factory.Topology().Nodes(cmd.Context())
	if err != nil {
		return err
	}

	if idx := viper.GetInt("node"); idx >= 0 {
		if idx >= len(nodes) {
			return fmt.Errorf("node %d does not exist, %d bootstrap nodes are configured", idx, len(nodes))
		}
		rpcStore, err = factory.StoreForNode(storeName, nodes[idx])
		return err
	}

	stores, err := factory.NodeStores(cmd.Context(), storeName, factory.Topology())
	if err != nil {
		return err
	}
	rpcStore = stores[0]
	return nil
}

// closeKVClient releases the connections of the factory
func closeKVClient(_ *cobra.Command, _ []string) error {
	if factory == nil {
		return nil
	}
	return factory.Close()
}

// requestContext bounds a single command by the routing timeout
func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), factory.Config().RoutingTimeout())
}
