package commands

import (
	"github.com/spf13/cobra"

	"github.com/minisc/minisc/cmd/minisc/handlers"
)

// Serve returns the serve command.
func Serve() *cobra.Command {
	var flags handlers.ServeFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the provisioning workflows over HTTP",
		Long: `Serve starts the HTTP API.

Routes:
  POST /deploy/head-node
  POST /deploy/worker-nodes
  POST /cluster-info
  POST /teardown
  GET  /healthz
  GET  /metrics

Request bodies overlay the configuration loaded from --config and the
environment.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Serve(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.ConfigPath, "config", "c", "", "Path to base configuration file")
	cmd.Flags().StringVarP(&flags.Provider, "provider", "p", "", "Default cloud provider (aws, azure)")
	cmd.Flags().StringVarP(&flags.Addr, "addr", "a", ":8080", "Listen address")
	cmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}
