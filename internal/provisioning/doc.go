// Package provisioning provides shared types, interfaces, and orchestration for cluster provisioning.
//
// # Subpackages
//
//   - infrastructure/: Network and security boundary
//   - compute/: Head node, worker pool, image selection
//   - destroy/: Resource cleanup and teardown
//
// # Core Types
//
// Context carries configuration, state, infrastructure client, observer and metrics.
// Phase defines a provisioning step with Name() and Provision() methods.
// State accumulates results from each phase (topology, boundary, nodes).
package provisioning
