package destroy

import (
	"fmt"

	"github.com/minisc/minisc/internal/provisioning"
)

// Provisioner runs a teardown of the configured cluster as a phase.
type Provisioner struct {
	// Last holds the result of the most recent run.
	Last *Result
}

// NewProvisioner creates a new destroy provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return phase
}

// Provision destroys the cluster and all associated resources. It returns
// the aggregated failures; the full result is kept in Last.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	p.Last = Teardown(ctx, ctx.Config.ClusterTag)
	if err := p.Last.Err(); err != nil {
		return fmt.Errorf("failed to remove %d resource(s): %w", len(p.Last.Failed), err)
	}
	return nil
}
