// Package aws implements cloud.InfrastructureManager on Amazon EC2.
//
// All resources are found through the minisc.io/cluster tag rather than by
// name, because EC2 names are only a Name tag. Create calls attach tags in
// the same request through TagSpecifications, so a resource is never
// visible untagged.
package aws
