// Package azure implements cloud.InfrastructureManager on Azure Resource
// Manager.
//
// Everything for a cluster lives in one resource group. The head node is a
// virtual machine with its own public IP and NIC; workers are a single
// virtual machine scale set. Azure routes subnets to the internet without a
// gateway resource, so gateway operations are no-ops.
package azure
