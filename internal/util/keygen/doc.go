// Package keygen generates RSA key pairs for SSH access to cluster nodes.
//
// Keys are produced in PEM format (private) and OpenSSH authorized_keys
// format (public). The public half is referenced by ssh.public_key_path;
// the private half is used by minisc to reach the head node.
package keygen
