// Package labels builds the tag sets attached to every provider resource.
//
// Tags are the only link between a cluster and its resources: lookups and
// teardown filter on [KeyCluster], so every resource minisc creates must
// carry it.
package labels
