// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/minisc/minisc/cmd/minisc/handlers"
)

// Root returns the root command for the minisc CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "minisc",
		Short:         "Provision minimal Kubernetes clusters on AWS and Azure",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Cluster lifecycle
	cmd.AddCommand(Deploy())
	cmd.AddCommand(Destroy())
	cmd.AddCommand(Info())
	cmd.AddCommand(Helm())

	// Utility
	cmd.AddCommand(Serve())
	cmd.AddCommand(Keygen())
	cmd.AddCommand(Version())

	return cmd
}

// bindClusterFlags registers the flags shared by every command that targets
// a cluster.
func bindClusterFlags(cmd *cobra.Command, flags *handlers.ClusterFlags) {
	cmd.Flags().StringVarP(&flags.ConfigPath, "config", "c", "", "Path to cluster configuration file")
	cmd.Flags().StringVarP(&flags.Provider, "provider", "p", "", "Cloud provider (aws, azure)")
	cmd.Flags().StringVarP(&flags.Region, "region", "r", "", "Region or Azure location")
	cmd.Flags().StringVarP(&flags.ClusterTag, "cluster-tag", "t", "", "Tag identifying the cluster's resources")
	cmd.Flags().StringVar(&flags.KeyName, "key-name", "", "SSH key pair name registered with the provider")
	cmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable debug logging")
}
