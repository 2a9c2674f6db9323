package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/minisc/minisc/cmd/minisc/handlers"
	"github.com/minisc/minisc/internal/cluster"
)

// Deploy returns the deploy command.
func Deploy() *cobra.Command {
	var flags handlers.DeployFlags

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a head node and worker nodes",
		Long: `Deploy provisions a minimal Kubernetes cluster.

Resources are created in order:
  - Network and subnet (VPC or virtual network)
  - Security boundary (security group or network security group)
  - Head node, booted with kubeadm init
  - Worker nodes, once a join token is available

The join token is read from --join-token. Without it, minisc prompts for
the token when stdin is a terminal.

Components:
  all       head node and workers (default)
  master    head node only
  workers   workers joining an existing head node

Examples:
  minisc deploy -p aws -r us-east-1 --key-name ops
  minisc deploy -p azure -c minisc.yaml --component master
  minisc deploy -p aws --component workers --join-token abcdef.0123456789abcdef`,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			switch flags.Component {
			case cluster.ComponentAll, cluster.ComponentHead, cluster.ComponentWorkers:
			default:
				return fmt.Errorf("invalid --component %q: must be one of all, master, workers", flags.Component)
			}
			if flags.Workers < 0 {
				return fmt.Errorf("invalid --workers %d: must not be negative", flags.Workers)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Deploy(cmd.Context(), flags)
		},
	}

	bindClusterFlags(cmd, &flags.ClusterFlags)
	cmd.Flags().StringVar(&flags.Component, "component", cluster.ComponentAll, "What to deploy: all, master, workers")
	cmd.Flags().IntVarP(&flags.Workers, "workers", "w", 0, "Number of worker nodes (default from config)")
	cmd.Flags().StringVarP(&flags.InstanceType, "instance-type", "i", "", "Instance type or VM size for every node")
	cmd.Flags().StringVar(&flags.JoinToken, "join-token", "", "kubeadm join token for worker nodes")

	return cmd
}
