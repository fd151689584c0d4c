package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dkvs/cmd/util"
	"github.com/spf13/cobra"
)

// configCmd validates the client configuration and prints it
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate and print the client configuration",
	Long: `Validate and print the client configuration. The configuration can be set via command line
flags or environment variables. The format of the environment variables is DKVS_<flag>
(e.g. DKVS_SOCKET_TIMEOUT_MS=2000). Variables are also read from .env and .env.local`,
	RunE: func(cmd *cobra.Command, _ []string) error {
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
		fmt.Println(config.String())
		return nil
	},
}
