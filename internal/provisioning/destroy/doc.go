// Package destroy tears a cluster down.
//
// Resources are found by the cluster tag and removed in reverse dependency
// order: instances, security groups, route tables, internet gateways,
// subnets, networks. A failed delete is recorded and the walk continues, so
// a single run removes everything that can be removed and the returned
// [Result] lists what is left for a retry.
package destroy
