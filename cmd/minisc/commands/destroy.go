package commands

import (
	"github.com/spf13/cobra"

	"github.com/minisc/minisc/cmd/minisc/handlers"
)

// Destroy returns the destroy command.
//
// The destroy command removes every resource carrying the cluster tag in
// dependency order: instances, network interfaces and public addresses,
// security groups, routing and gateways, subnets, networks.
func Destroy() *cobra.Command {
	var (
		flags handlers.ClusterFlags
		yes   bool
	)

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Destroy a cluster and all associated resources",
		Long: `Destroy removes all cluster resources from the provider.

Every resource tagged with the cluster tag is deleted, including:
  - Instances (head node and workers)
  - Network interfaces and public IP addresses
  - Security groups
  - Route tables and internet gateways
  - Subnets and networks

Failures are reported per resource. Run destroy again to retry what is left;
resources already removed are skipped.

Example:
  minisc destroy -p aws -t my-cluster --yes

WARNING: This operation is irreversible.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Destroy(cmd.Context(), flags, yes)
		},
	}

	bindClusterFlags(cmd, &flags)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}
