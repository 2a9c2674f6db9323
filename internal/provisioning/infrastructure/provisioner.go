package infrastructure

import (
	"github.com/minisc/minisc/internal/provisioning"
)

// Provisioner handles infrastructure provisioning (network, security boundary).
type Provisioner struct{}

// NewProvisioner creates a new infrastructure provisioner.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return "infrastructure"
}

// Provision implements the provisioning.Phase interface.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	if err := p.ProvisionNetwork(ctx); err != nil {
		return err
	}
	return p.ProvisionSecurity(ctx)
}

// ProvisionNetwork ensures the network and stores the topology in state.
func (p *Provisioner) ProvisionNetwork(ctx *provisioning.Context) error {
	_, err := EnsureNetwork(ctx)
	return err
}

// ProvisionSecurity ensures the security boundary for the network in state.
func (p *Provisioner) ProvisionSecurity(ctx *provisioning.Context) error {
	if ctx.State.Topology == nil {
		return errNoTopology
	}
	rules, err := Rules(ctx.Config)
	if err != nil {
		return err
	}
	if cidr, open := OpenAdminAccess(ctx.Config); open {
		ctx.Observer.Printf("[%s] Warning: admin_cidrs includes %s, so SSH, the Kubernetes API and NodePorts accept traffic from anywhere. Set security.admin_cidrs to restrict them.", securityPhase, cidr)
	}
	_, err = EnsureSecurityBoundary(ctx, ctx.State.Topology.NetworkID, rules)
	return err
}
