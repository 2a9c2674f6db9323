package destroy

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/multierr"

	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/provisioning"
	"github.com/minisc/minisc/internal/util/retry"
)

const phase = "destroy"

// teardown carries one run over a cluster tag.
type teardown struct {
	ctx *provisioning.Context
	tag string
	res *Result
}

// Teardown removes every resource tagged with tag. It never stops at the
// first failure; the result lists each deleted and each failed resource.
// Resources that are already gone count as deleted. A tag with nothing left
// yields an empty result.
func Teardown(ctx *provisioning.Context, tag string) *Result {
	td := &teardown{ctx: ctx, tag: tag, res: &Result{}}
	ctx.Observer.Printf("[%s] Tearing down cluster %s", phase, tag)

	td.terminateInstances()
	td.deleteSecurityGroups()
	td.deleteRouteTables()
	td.deleteGateways()
	td.deleteSubnets()
	td.deleteNetworks()

	if n := len(td.res.Failed); n > 0 {
		ctx.Observer.Printf("[%s] Teardown of %s left %d resource(s) behind", phase, tag, n)
	} else {
		ctx.Observer.Printf("[%s] Teardown of %s removed %d resource(s)", phase, tag, len(td.res.Deleted))
	}
	return td.res
}

// terminateInstances terminates live instances and waits until every
// instance of the cluster is terminated. Instances already shutting down are
// waited for but not terminated again.
func (td *teardown) terminateInstances() {
	ctx := td.ctx
	nodes, err := ctx.Infra.ListInstances(ctx, td.tag, "")
	if err != nil {
		td.res.failed(KindInstance, td.tag, fmt.Errorf("failed to list instances: %w", err))
		return
	}

	var all, live []string
	for _, n := range nodes {
		switch n.State {
		case cloud.NodeTerminated:
			continue
		case cloud.NodeShuttingDown:
		default:
			live = append(live, n.InstanceID)
		}
		all = append(all, n.InstanceID)
	}
	if len(all) == 0 {
		return
	}

	if len(live) > 0 {
		for _, id := range live {
			provisioning.LogResourceDeleting(ctx.Observer, phase, KindInstance, id)
		}
		if err := ctx.Infra.TerminateInstances(ctx, live); err != nil && !cloud.IsNotFound(err) {
			for _, id := range live {
				td.fail(KindInstance, id, fmt.Errorf("failed to terminate: %w", err))
			}
			all = without(all, live)
		}
	}

	pending := make(map[string]bool, len(all))
	for _, id := range all {
		pending[id] = true
	}
	if len(pending) == 0 {
		return
	}

	waitCtx, cancel := context.WithTimeout(ctx, ctx.Timeouts.InstanceTerminated)
	defer cancel()

	err = retry.Poll(waitCtx, ctx.Timeouts.PollInterval, 0, func(pollCtx context.Context) (bool, error) {
		ids := keys(pending)
		current, err := ctx.Infra.DescribeInstances(pollCtx, ids)
		if err != nil {
			return false, err
		}
		seen := make(map[string]bool, len(current))
		for _, n := range current {
			seen[n.InstanceID] = true
			if n.State == cloud.NodeTerminated {
				delete(pending, n.InstanceID)
				td.ok(KindInstance, n.InstanceID)
			}
		}
		// gone from the provider entirely
		for _, id := range ids {
			if !seen[id] {
				delete(pending, id)
				td.ok(KindInstance, id)
			}
		}
		return len(pending) == 0, nil
	})
	if err != nil {
		err = provisioning.WaitError("instances to terminate", ctx, err)
		for _, id := range keys(pending) {
			td.fail(KindInstance, id, err)
		}
	}
}

func (td *teardown) deleteSecurityGroups() {
	groups, err := td.ctx.Infra.ListSecurityGroups(td.ctx, td.tag)
	if err != nil {
		td.res.failed(KindSecurityGroup, td.tag, fmt.Errorf("failed to list security groups: %w", err))
		return
	}
	for _, sg := range groups {
		td.remove(KindSecurityGroup, sg.ID, func(c context.Context) error {
			return td.ctx.Infra.DeleteSecurityGroup(c, sg.ID)
		})
	}
}

// deleteRouteTables removes subnet associations and then the table. The
// main table of a network goes with the network.
func (td *teardown) deleteRouteTables() {
	ctx := td.ctx
	tables, err := ctx.Infra.ListRouteTables(ctx, td.tag)
	if err != nil {
		td.res.failed(KindRouteTable, td.tag, fmt.Errorf("failed to list route tables: %w", err))
		return
	}
	for _, rt := range tables {
		if rt.Main {
			continue
		}
		var assocErr error
		for _, assoc := range rt.AssociationIDs {
			if err := ctx.Infra.DisassociateRouteTable(ctx, assoc); err != nil && !cloud.IsNotFound(err) {
				assocErr = multierr.Append(assocErr, fmt.Errorf("failed to disassociate %s: %w", assoc, err))
			}
		}
		if assocErr != nil {
			td.fail(KindRouteTable, rt.ID, assocErr)
			continue
		}
		td.remove(KindRouteTable, rt.ID, func(c context.Context) error {
			return ctx.Infra.DeleteRouteTable(c, rt.ID)
		})
	}
}

func (td *teardown) deleteGateways() {
	ctx := td.ctx
	gateways, err := ctx.Infra.ListGateways(ctx, td.tag)
	if err != nil {
		td.res.failed(KindGateway, td.tag, fmt.Errorf("failed to list internet gateways: %w", err))
		return
	}
	for _, gw := range gateways {
		var detachErr error
		for _, networkID := range gw.AttachedNetworkIDs {
			if err := ctx.Infra.DetachGateway(ctx, gw.ID, networkID); err != nil && !cloud.IsNotFound(err) {
				detachErr = multierr.Append(detachErr, fmt.Errorf("failed to detach from %s: %w", networkID, err))
			}
		}
		if detachErr != nil {
			td.fail(KindGateway, gw.ID, detachErr)
			continue
		}
		td.remove(KindGateway, gw.ID, func(c context.Context) error {
			return ctx.Infra.DeleteGateway(c, gw.ID)
		})
	}
}

func (td *teardown) deleteSubnets() {
	subnets, err := td.ctx.Infra.ListSubnets(td.ctx, td.tag)
	if err != nil {
		td.res.failed(KindSubnet, td.tag, fmt.Errorf("failed to list subnets: %w", err))
		return
	}
	for _, sn := range subnets {
		td.remove(KindSubnet, sn.ID, func(c context.Context) error {
			return td.ctx.Infra.DeleteSubnet(c, sn.ID)
		})
	}
}

func (td *teardown) deleteNetworks() {
	networks, err := td.ctx.Infra.ListNetworks(td.ctx, td.tag)
	if err != nil {
		td.res.failed(KindNetwork, td.tag, fmt.Errorf("failed to list networks: %w", err))
		return
	}
	for _, nw := range networks {
		td.remove(KindNetwork, nw.ID, func(c context.Context) error {
			return td.ctx.Infra.DeleteNetwork(c, nw.ID)
		})
	}
}

// remove deletes one resource, retrying while the provider still sees
// dependents. Not found counts as deleted; auth failures are not retried.
func (td *teardown) remove(kind, id string, del func(context.Context) error) {
	ctx := td.ctx
	provisioning.LogResourceDeleting(ctx.Observer, phase, kind, id)

	deleteCtx, cancel := context.WithTimeout(ctx, ctx.Timeouts.Delete)
	defer cancel()

	err := retry.WithExponentialBackoff(deleteCtx, func() error {
		err := del(deleteCtx)
		switch {
		case err == nil, cloud.IsNotFound(err):
			return nil
		case errors.Is(err, cloud.ErrProviderAuth):
			return retry.Fatal(err)
		default:
			return err
		}
	},
		retry.WithMaxRetries(ctx.Timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(ctx.Timeouts.RetryInitialDelay),
	)
	if err != nil {
		td.fail(kind, id, err)
		return
	}
	td.ok(kind, id)
}

func (td *teardown) ok(kind, id string) {
	td.res.deleted(kind, id)
	provisioning.LogResourceDeleted(td.ctx.Observer, phase, kind, id)
	td.ctx.Metrics.CountResource(td.tag, kind, provisioning.ActionDeleted)
}

func (td *teardown) fail(kind, id string, err error) {
	td.res.failed(kind, id, err)
	provisioning.LogResourceFailed(td.ctx.Observer, phase, kind, id, err)
	td.ctx.Metrics.CountResource(td.tag, kind, provisioning.ActionFailed)
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func without(all, drop []string) []string {
	skip := make(map[string]bool, len(drop))
	for _, id := range drop {
		skip[id] = true
	}
	var out []string
	for _, id := range all {
		if !skip[id] {
			out = append(out, id)
		}
	}
	return out
}
