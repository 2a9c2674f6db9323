package commands

import (
	"github.com/spf13/cobra"

	"github.com/minisc/minisc/cmd/minisc/handlers"
)

// Info returns the info command.
func Info() *cobra.Command {
	var flags handlers.ClusterFlags

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show nodes, Helm releases and pods of a cluster",
		Long: `Info connects to the head node over SSH and lists the cluster's nodes,
Helm releases and pods.

Requires ssh.private_key_path in the configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Info(cmd.Context(), flags)
		},
	}

	bindClusterFlags(cmd, &flags)
	return cmd
}

// Helm returns the helm command.
func Helm() *cobra.Command {
	var flags handlers.ClusterFlags

	cmd := &cobra.Command{
		Use:   "helm",
		Short: "Install the configured Helm charts on the head node",
		Long: `Helm waits for Helm on the head node, adds the configured repositories and
installs the configured charts. Charts that are already installed are skipped;
a failing chart does not stop the others.

Requires ssh.private_key_path in the configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Helm(cmd.Context(), flags)
		},
	}

	bindClusterFlags(cmd, &flags)
	return cmd
}
