package provisioning

import "github.com/minisc/minisc/internal/cloud"

// State holds the shared results of provisioning phases.
// It is progressively populated as each phase completes and is passed
// to subsequent phases that need earlier results.
type State struct {
	// Infrastructure results (populated by infrastructure provisioner)
	Topology *cloud.NetworkTopology
	Boundary *cloud.SecurityBoundary

	// Compute results (populated by compute provisioner)
	Head    *cloud.ProvisionedNode
	Workers []cloud.ProvisionedNode

	// JoinToken is supplied by the operator before workers launch.
	JoinToken cloud.JoinToken
}

// NewState creates an empty provisioning state.
func NewState() *State {
	return &State{}
}

// HeadAddress returns the address workers join, or "" before the head runs.
func (s *State) HeadAddress() string {
	if s.Head == nil {
		return ""
	}
	return s.Head.Address()
}
