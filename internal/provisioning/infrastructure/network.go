package infrastructure

import (
	"context"
	"errors"
	"fmt"

	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/provisioning"
	"github.com/minisc/minisc/internal/util/labels"
	"github.com/minisc/minisc/internal/util/naming"
	"github.com/minisc/minisc/internal/util/retry"
)

const networkPhase = "network"

var (
	// ErrCIDRMismatch is returned when the tagged network exists with a
	// different address range than configured.
	ErrCIDRMismatch = errors.New("existing network has a different CIDR")

	// ErrSubnetParent is returned when the subnet does not belong to the
	// cluster network.
	ErrSubnetParent = errors.New("subnet does not belong to the cluster network")

	errNoTopology = errors.New("network must be provisioned before the security boundary")
)

// EnsureNetwork looks up or creates the cluster network, waits for it to be
// available and ensures DNS, internet gateway, subnet and route table. The
// result is stored in ctx.State.Topology.
func EnsureNetwork(ctx *provisioning.Context) (*cloud.NetworkTopology, error) {
	cfg := ctx.Config
	tag := cfg.ClusterTag
	obs := ctx.Observer

	nw, err := ensureNetwork(ctx)
	if err != nil {
		return nil, err
	}

	if err := waitForNetwork(ctx, nw); err != nil {
		return nil, err
	}

	if err := ctx.Infra.EnableNetworkDNS(ctx, nw.ID); err != nil {
		return nil, fmt.Errorf("failed to enable DNS on network %s: %w", nw.ID, err)
	}

	gw, err := ctx.Infra.EnsureInternetGateway(ctx, tag, nw.ID, resourceTags(cfg.ClusterTag, cfg.Tags, naming.Gateway(tag)))
	if err != nil {
		return nil, fmt.Errorf("failed to ensure internet gateway: %w", err)
	}
	if gw.ID != "" {
		obs.Printf("[%s] Internet gateway %s attached to %s", networkPhase, gw.ID, nw.ID)
	}

	subnet, err := ctx.Infra.EnsureSubnet(ctx, tag, nw.ID, cfg.Network.SubnetCIDR, resourceTags(tag, cfg.Tags, naming.Subnet(tag)))
	if err != nil {
		return nil, fmt.Errorf("failed to ensure subnet: %w", err)
	}
	if subnet.NetworkID != nw.ID {
		return nil, fmt.Errorf("%w: subnet %s is in %s, want %s", ErrSubnetParent, subnet.ID, subnet.NetworkID, nw.ID)
	}
	obs.Printf("[%s] Subnet %s (%s) ready", networkPhase, subnet.ID, cfg.Network.SubnetCIDR)

	rt, err := ctx.Infra.EnsureRouteTable(ctx, tag, nw.ID, subnet.ID, gw.ID, resourceTags(tag, cfg.Tags, naming.RouteTable(tag)))
	if err != nil {
		return nil, fmt.Errorf("failed to ensure route table: %w", err)
	}
	obs.Printf("[%s] Route table %s routes 0.0.0.0/0 for subnet %s", networkPhase, rt.ID, subnet.ID)

	topology := &cloud.NetworkTopology{
		NetworkID:       nw.ID,
		SubnetID:        subnet.ID,
		SubnetNetworkID: subnet.NetworkID,
		RouteTableID:    rt.ID,
		GatewayID:       gw.ID,
		CIDR:            nw.CIDR,
		SubnetCIDR:      cfg.Network.SubnetCIDR,
		Region:          ctx.Infra.Region(),
	}
	ctx.State.Topology = topology
	return topology, nil
}

// ensureNetwork returns the tagged network, creating it when absent.
func ensureNetwork(ctx *provisioning.Context) (*cloud.Network, error) {
	cfg := ctx.Config
	tag := cfg.ClusterTag
	name := naming.Network(tag)

	nw, err := ctx.Infra.FindNetwork(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to look up network: %w", err)
	}

	if nw != nil {
		if nw.CIDR != cfg.Network.CIDR {
			return nil, fmt.Errorf("%w: %s has %s, configured %s", ErrCIDRMismatch, nw.ID, nw.CIDR, cfg.Network.CIDR)
		}
		provisioning.LogResourceExists(ctx.Observer, networkPhase, "network", name, nw.ID)
		ctx.Metrics.CountResource(tag, "network", provisioning.ActionExists)
		return nw, nil
	}

	provisioning.LogResourceCreating(ctx.Observer, networkPhase, "network", name)
	nw, err = ctx.Infra.CreateNetwork(ctx, tag, cfg.Network.CIDR, resourceTags(tag, cfg.Tags, name))
	if err != nil {
		ctx.Metrics.CountResource(tag, "network", provisioning.ActionFailed)
		return nil, fmt.Errorf("failed to create network: %w", err)
	}
	provisioning.LogResourceCreated(ctx.Observer, networkPhase, "network", name, nw.ID)
	ctx.Metrics.CountResource(tag, "network", provisioning.ActionCreated)
	return nw, nil
}

// waitForNetwork polls until the network reports available. The wait is
// bounded by Timeouts.NetworkAvailable and by the caller's context.
func waitForNetwork(ctx *provisioning.Context, nw *cloud.Network) error {
	if nw.State == cloud.NetworkAvailable {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, ctx.Timeouts.NetworkAvailable)
	defer cancel()

	ctx.Observer.Printf("[%s] Waiting for network %s to become available...", networkPhase, nw.ID)
	err := retry.Poll(waitCtx, ctx.Timeouts.PollInterval, 0, func(pollCtx context.Context) (bool, error) {
		current, err := ctx.Infra.GetNetwork(pollCtx, nw.ID)
		if err != nil {
			return false, err
		}
		return current.State == cloud.NetworkAvailable, nil
	})
	return provisioning.WaitError("network "+nw.ID+" available", ctx, err)
}

// resourceTags builds the tag set for a named cluster resource.
func resourceTags(tag string, extra map[string]string, name string) map[string]string {
	return labels.NewLabelBuilder(tag).Merge(extra).WithName(name).Build()
}
