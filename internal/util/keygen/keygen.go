package keygen

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// KeyPair holds an RSA key pair in ready-to-use formats.
type KeyPair struct {
	// PrivateKey is the RSA private key in PEM-encoded PKCS#1 format.
	PrivateKey []byte
	// PublicKey is the public key in OpenSSH authorized_keys format.
	PublicKey []byte
}

// GenerateRSAKeyPair generates a new RSA key pair with the specified bit size.
// Common bit sizes are 2048 (minimum recommended) and 4096 (high security).
func GenerateRSAKeyPair(bits int) (*KeyPair, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA private key: %w", err)
	}

	if err := privateKey.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate RSA private key: %w", err)
	}

	privateKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	publicKey, err := ssh.NewPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH public key: %w", err)
	}

	return &KeyPair{
		PrivateKey: privateKeyPEM,
		PublicKey:  ssh.MarshalAuthorizedKey(publicKey),
	}, nil
}

// Fingerprint returns the SHA256 fingerprint of the public key, as printed
// by ssh-keygen -l.
func (k *KeyPair) Fingerprint() (string, error) {
	pub, _, _, _, err := ssh.ParseAuthorizedKey(k.PublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to parse public key: %w", err)
	}
	return ssh.FingerprintSHA256(pub), nil
}

// Write stores the pair as <dir>/<name> (mode 0600) and <dir>/<name>.pub.
// Existing files are never overwritten.
func (k *KeyPair) Write(dir, name string) (privatePath, publicPath string, err error) {
	if strings.ContainsRune(name, filepath.Separator) || name == "" {
		return "", "", fmt.Errorf("invalid key name %q", name)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", "", fmt.Errorf("failed to create key directory: %w", err)
	}

	privatePath = filepath.Join(dir, name)
	publicPath = privatePath + ".pub"

	if err := writeNew(privatePath, k.PrivateKey, 0o600); err != nil {
		return "", "", err
	}
	if err := writeNew(publicPath, k.PublicKey, 0o644); err != nil {
		_ = os.Remove(privatePath)
		return "", "", err
	}
	return privatePath, publicPath, nil
}

func writeNew(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm) //nolint:gosec // path is built from operator input
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
