package commands

import (
	"github.com/spf13/cobra"

	"github.com/minisc/minisc/cmd/minisc/handlers"
)

// Keygen returns the keygen command.
func Keygen() *cobra.Command {
	var flags handlers.KeygenFlags

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an SSH key pair for cluster access",
		RunE: func(_ *cobra.Command, _ []string) error {
			return handlers.Keygen(flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Name, "name", "n", "minisc", "Key file name")
	cmd.Flags().StringVarP(&flags.Dir, "dir", "d", "", "Output directory (default ~/.ssh)")
	cmd.Flags().IntVarP(&flags.Bits, "bits", "b", 4096, "RSA key size")

	return cmd
}
