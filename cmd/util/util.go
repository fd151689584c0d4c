package util

import (
	"fmt"
	"github.com/ValentinKolb/dkvs/rpc/client"
	"github.com/ValentinKolb/dkvs/rpc/common"
	"github.com/ValentinKolb/dkvs/rpc/serializer"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupFactoryFlags adds the client factory flags to a command
func SetupFactoryFlags(cmd *cobra.Command) {
	key := "bootstrap-urls"
	cmd.PersistentFlags().String(key, "tcp://localhost:6666", WrapString("Bootstrap URL of the cluster (tcp://host:port[,host:port...]). Multiple URLs can be separated by ';'"))

	key = "core-threads"
	cmd.PersistentFlags().Int(key, client.DefaultCoreThreads, WrapString("Number of workers the executor keeps running"))

	key = "max-threads"
	cmd.PersistentFlags().Int(key, client.DefaultMaxThreads, WrapString("Maximum number of executor workers"))

	key = "max-queued-requests"
	cmd.PersistentFlags().Int(key, client.DefaultMaxQueuedRequests, WrapString("Backlog size of the executor. Requests beyond it run on the submitting goroutine"))

	key = "max-connections-per-node"
	cmd.PersistentFlags().Int(key, client.DefaultMaxConnectionsPerNode, WrapString("Maximum number of connections to a single node"))

	key = "max-total-connections"
	cmd.PersistentFlags().Int(key, client.DefaultMaxTotalConnections, WrapString("Maximum number of connections to all nodes"))

	key = "socket-timeout-ms"
	cmd.PersistentFlags().Int(key, client.DefaultSocketTimeoutMs, WrapString("Timeout for connecting, waiting for a pooled connection and a single request (in ms)"))

	key = "routing-timeout-ms"
	cmd.PersistentFlags().Int(key, client.DefaultRoutingTimeoutMs, WrapString("Timeout for routed requests (in ms)"))

	key = "node-bannage-ms"
	cmd.PersistentFlags().Int(key, client.DefaultNodeBannageMs, WrapString("How long a failed node is not used (in ms)"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the socket write buffer (in KB, 0 keeps the OS default)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the socket read buffer (in KB, 0 keeps the OS default)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval (in seconds, 0 disables keepalive)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, -1, WrapString("The linger time (in seconds, negative keeps the OS default)"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dkvs")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetFactoryOptions reads the client factory options from viper
func GetFactoryOptions() (client.FactoryOptions, error) {
	s, err := serializer.ByName(viper.GetString("serializer"))
	if err != nil {
		return client.FactoryOptions{}, err
	}

	var urls []string
	for _, u := range strings.Split(viper.GetString("bootstrap-urls"), ";") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}

	return client.FactoryOptions{
		CoreThreads:           viper.GetInt("core-threads"),
		MaxThreads:            viper.GetInt("max-threads"),
		MaxQueuedRequests:     viper.GetInt("max-queued-requests"),
		MaxConnectionsPerNode: viper.GetInt("max-connections-per-node"),
		MaxTotalConnections:   viper.GetInt("max-total-connections"),
		SocketTimeoutMs:       viper.GetInt("socket-timeout-ms"),
		RoutingTimeoutMs:      viper.GetInt("routing-timeout-ms"),
		NodeBannageMs:         viper.GetInt("node-bannage-ms"),
		Serializer:            s,
		BootstrapURLs:         urls,
		Transport: common.TransportConfig{
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
				TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
			},
		},
	}, nil
}

// GetFactoryConfig reads and validates the client factory configuration
func GetFactoryConfig() (*client.FactoryConfig, error) {
	opts, err := GetFactoryOptions()
	if err != nil {
		return nil, err
	}
	config, err := client.NewFactoryConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("invalid client configuration: %w", err)
	}
	return config, nil
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// InitLogging sets the level of all loggers from the log-level flag
func InitLogging() error {
	return common.InitLoggers(viper.GetString("log-level"))
}
