// Package infrastructure provisions the network and security boundary of a
// cluster.
//
// Every step is lookup-or-create keyed by the cluster tag, so running the
// phase twice returns the same identifiers and creates nothing new. A
// failure aborts the phase without compensating for what already exists.
package infrastructure
