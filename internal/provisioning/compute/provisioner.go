package compute

import (
	"errors"
	"fmt"

	"github.com/minisc/minisc/internal/bootscript"
	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/provisioning"
)

var errNoInfrastructure = errors.New("network and security boundary must be provisioned before nodes")

// Provisioner handles node provisioning (head node, worker pool).
type Provisioner struct {
	renderer *bootscript.Renderer
}

// NewProvisioner creates a compute provisioner rendering boot scripts with
// renderer.
func NewProvisioner(renderer *bootscript.Renderer) *Provisioner {
	return &Provisioner{renderer: renderer}
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return phase
}

// Provision implements the provisioning.Phase interface. It launches the
// head node and waits until it is running with an address.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	return p.ProvisionHead(ctx)
}

// ProvisionHead launches the head node into the network in state and
// waits for it to run.
func (p *Provisioner) ProvisionHead(ctx *provisioning.Context) error {
	if ctx.State.Topology == nil || ctx.State.Boundary == nil {
		return errNoInfrastructure
	}

	spec, err := HeadSpec(ctx.Config)
	if err != nil {
		return err
	}
	head, err := p.LaunchHead(ctx, ctx.State.Boundary, ctx.State.Topology.SubnetID, spec)
	if err != nil {
		return err
	}

	running, err := WaitForRunning(ctx, []cloud.ProvisionedNode{*head})
	if err != nil {
		return fmt.Errorf("head node %s: %w", head.InstanceID, err)
	}
	ctx.State.Head = &running[0]
	return nil
}

// ProvisionWorkers launches the configured worker count with the join token
// in state and waits for them to run.
func (p *Provisioner) ProvisionWorkers(ctx *provisioning.Context) error {
	if ctx.State.Topology == nil || ctx.State.Boundary == nil {
		return errNoInfrastructure
	}

	spec, err := WorkerSpec(ctx.Config)
	if err != nil {
		return err
	}
	workers, err := p.LaunchWorkers(ctx, ctx.State.Boundary, ctx.State.Topology.SubnetID, spec, spec.Count, ctx.State.JoinToken)
	if err != nil {
		return err
	}

	running, err := WaitForRunning(ctx, workers)
	if err != nil {
		return fmt.Errorf("workers: %w", err)
	}
	ctx.State.Workers = running
	return nil
}
