package compute

import (
	"context"
	"fmt"
	"strings"

	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/provisioning"
	"github.com/minisc/minisc/internal/util/retry"
)

// WaitForRunning polls until every node is running and has an address, and
// returns the refreshed nodes in the input order. The wait is bounded by
// Timeouts.InstanceRunning. A node that terminates while waiting fails the
// wait immediately.
func WaitForRunning(ctx *provisioning.Context, nodes []cloud.ProvisionedNode) ([]cloud.ProvisionedNode, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.InstanceID
	}

	waitCtx, cancel := context.WithTimeout(ctx, ctx.Timeouts.InstanceRunning)
	defer cancel()

	ctx.Observer.Printf("[%s] Waiting for %d instance(s) to run: %s", phase, len(ids), strings.Join(ids, ", "))

	var refreshed []cloud.ProvisionedNode
	err := retry.Poll(waitCtx, ctx.Timeouts.PollInterval, 0, func(pollCtx context.Context) (bool, error) {
		current, err := ctx.Infra.DescribeInstances(pollCtx, ids)
		if err != nil {
			return false, err
		}

		byID := make(map[string]cloud.ProvisionedNode, len(current))
		for _, n := range current {
			byID[n.InstanceID] = n
		}

		ready := make([]cloud.ProvisionedNode, 0, len(ids))
		for _, id := range ids {
			n, ok := byID[id]
			if !ok {
				return false, nil
			}
			switch n.State {
			case cloud.NodeShuttingDown, cloud.NodeTerminated:
				return false, fmt.Errorf("instance %s is %s", id, n.State)
			case cloud.NodeRunning:
				if n.Address() == "" {
					return false, nil
				}
			default:
				return false, nil
			}
			ready = append(ready, n)
		}
		refreshed = ready
		return true, nil
	})
	if err != nil {
		return nil, provisioning.WaitError(fmt.Sprintf("%d instance(s) running", len(ids)), ctx, err)
	}

	for _, n := range refreshed {
		ctx.Observer.Printf("[%s] %s %s running at %s", phase, n.Role, n.InstanceID, n.Address())
	}
	return refreshed, nil
}
