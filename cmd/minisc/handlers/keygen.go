package handlers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/minisc/minisc/internal/util/keygen"
)

// KeygenFlags are the keygen command's inputs.
type KeygenFlags struct {
	Name string
	Dir  string
	Bits int
}

// userHomeDir is replaced in tests.
var userHomeDir = os.UserHomeDir

// Keygen writes a new SSH key pair for cluster access and prints the
// settings that use it.
func Keygen(flags KeygenFlags) error {
	dir := flags.Dir
	if dir == "" {
		home, err := userHomeDir()
		if err != nil {
			return fmt.Errorf("failed to locate home directory: %w", err)
		}
		dir = filepath.Join(home, ".ssh")
	}

	pair, err := keygen.GenerateRSAKeyPair(flags.Bits)
	if err != nil {
		return err
	}
	privatePath, publicPath, err := pair.Write(dir, flags.Name)
	if err != nil {
		return err
	}
	fingerprint, err := pair.Fingerprint()
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Private key: %s\n", privatePath)
	fmt.Fprintf(stdout, "Public key:  %s\n", publicPath)
	fmt.Fprintf(stdout, "Fingerprint: %s\n\n", fingerprint)
	fmt.Fprintln(stdout, "Add to your config:")
	fmt.Fprintln(stdout, "  ssh:")
	fmt.Fprintf(stdout, "    private_key_path: %s\n", privatePath)
	fmt.Fprintf(stdout, "    public_key_path: %s\n", publicPath)
	return nil
}
