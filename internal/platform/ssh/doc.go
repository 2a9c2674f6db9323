// Package ssh runs commands on cluster nodes over SSH.
//
// Connect dials with retry because a freshly launched node accepts TCP
// connections only after its boot sequence. A Session runs any number of
// commands; each Run reports the exit status alongside stdout and stderr
// instead of treating a non-zero exit as a transport error.
package ssh
