package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	azruntime "github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v6"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"

	"github.com/minisc/minisc/internal/cloud"
	"github.com/minisc/minisc/internal/util/labels"
	"github.com/minisc/minisc/internal/util/naming"
	"github.com/minisc/minisc/internal/util/retry"
)

// deleteWithRetry runs a delete, retrying while ARM reports the resource is
// still in use.
func deleteWithRetry[T any](ctx context.Context, c *Client, op string, begin func(ctx context.Context) (*azruntime.Poller[T], error)) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Delete)
	defer cancel()

	return retry.WithExponentialBackoff(ctx, func() error {
		poller, err := begin(ctx)
		_, err = wait(ctx, c, op, poller, err)
		switch {
		case err == nil:
			return nil
		case isRetryable(err):
			return err
		default:
			return retry.Fatal(err)
		}
	},
		retry.WithMaxRetries(c.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
}

// collect drains a pager, treating a missing resource group as empty.
func collect[P, T any](ctx context.Context, op string, pager *azruntime.Pager[P], items func(P) []*T) ([]*T, error) {
	var out []*T
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			if err = wrap(op, err); cloud.IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		for _, item := range items(page) {
			if item != nil {
				out = append(out, item)
			}
		}
	}
	return out, nil
}

func (c *Client) ListSecurityGroups(ctx context.Context, tag string) ([]cloud.SecurityGroup, error) {
	nsgs, err := collect(ctx, "ListNetworkSecurityGroups", c.nsgs.NewListPager(c.resourceGroup, nil),
		func(p armnetwork.SecurityGroupsClientListResponse) []*armnetwork.SecurityGroup { return p.Value })
	if err != nil {
		return nil, err
	}
	var groups []cloud.SecurityGroup
	for _, nsg := range nsgs {
		if ownedBy(nsg.Tags, tag) {
			groups = append(groups, cloud.SecurityGroup{ID: str(nsg.ID), Name: str(nsg.Name)})
		}
	}
	return groups, nil
}

func (c *Client) DeleteSecurityGroup(ctx context.Context, id string) error {
	rid, err := arm.ParseResourceID(id)
	if err != nil {
		return cloud.NewOperationError("DeleteNetworkSecurityGroup", cloud.ErrNotFound, err)
	}
	return deleteWithRetry(ctx, c, "DeleteNetworkSecurityGroup",
		func(ctx context.Context) (*azruntime.Poller[armnetwork.SecurityGroupsClientDeleteResponse], error) {
			return c.nsgs.BeginDelete(ctx, rid.ResourceGroupName, rid.Name, nil)
		})
}

func (c *Client) ListRouteTables(ctx context.Context, tag string) ([]cloud.RouteTable, error) {
	tables, err := collect(ctx, "ListRouteTables", c.routeTables.NewListPager(c.resourceGroup, nil),
		func(p armnetwork.RouteTablesClientListResponse) []*armnetwork.RouteTable { return p.Value })
	if err != nil {
		return nil, err
	}
	var out []cloud.RouteTable
	for _, rt := range tables {
		if ownedBy(rt.Tags, tag) {
			out = append(out, *toRouteTable(rt))
		}
	}
	return out, nil
}

// DisassociateRouteTable clears the route table from a subnet. The
// association ID on Azure is the subnet ID.
func (c *Client) DisassociateRouteTable(ctx context.Context, associationID string) error {
	return c.setSubnetRouteTable(ctx, associationID, nil)
}

func (c *Client) DeleteRouteTable(ctx context.Context, id string) error {
	rid, err := arm.ParseResourceID(id)
	if err != nil {
		return cloud.NewOperationError("DeleteRouteTable", cloud.ErrNotFound, err)
	}
	return deleteWithRetry(ctx, c, "DeleteRouteTable",
		func(ctx context.Context) (*azruntime.Poller[armnetwork.RouteTablesClientDeleteResponse], error) {
			return c.routeTables.BeginDelete(ctx, rid.ResourceGroupName, rid.Name, nil)
		})
}

// ListGateways returns nothing; there is no gateway resource on Azure.
func (c *Client) ListGateways(_ context.Context, _ string) ([]cloud.Gateway, error) {
	return nil, nil
}

func (c *Client) DetachGateway(_ context.Context, _, _ string) error {
	return nil
}

func (c *Client) DeleteGateway(_ context.Context, _ string) error {
	return nil
}

// ListSubnets lists the subnets of the cluster network, which carry no tags
// of their own.
func (c *Client) ListSubnets(ctx context.Context, tag string) ([]cloud.Subnet, error) {
	subnets, err := collect(ctx, "ListSubnets", c.subnets.NewListPager(c.resourceGroup, naming.Network(tag), nil),
		func(p armnetwork.SubnetsClientListResponse) []*armnetwork.Subnet { return p.Value })
	if err != nil {
		return nil, err
	}
	out := make([]cloud.Subnet, 0, len(subnets))
	for _, s := range subnets {
		out = append(out, *toSubnet(s, ""))
	}
	return out, nil
}

func (c *Client) DeleteSubnet(ctx context.Context, id string) error {
	rid, err := arm.ParseResourceID(id)
	if err == nil && rid.Parent == nil {
		err = fmt.Errorf("no parent network in %q", id)
	}
	if err != nil {
		return cloud.NewOperationError("DeleteSubnet", cloud.ErrNotFound, err)
	}
	return deleteWithRetry(ctx, c, "DeleteSubnet",
		func(ctx context.Context) (*azruntime.Poller[armnetwork.SubnetsClientDeleteResponse], error) {
			return c.subnets.BeginDelete(ctx, rid.ResourceGroupName, rid.Parent.Name, rid.Name, nil)
		})
}

func (c *Client) ListNetworks(ctx context.Context, tag string) ([]cloud.Network, error) {
	vnets, err := collect(ctx, "ListVirtualNetworks", c.vnets.NewListPager(c.resourceGroup, nil),
		func(p armnetwork.VirtualNetworksClientListResponse) []*armnetwork.VirtualNetwork { return p.Value })
	if err != nil {
		return nil, err
	}
	var out []cloud.Network
	for _, v := range vnets {
		if ownedBy(v.Tags, tag) {
			out = append(out, *toNetwork(v))
		}
	}
	return out, nil
}

// DeleteNetwork deletes the virtual network. The resource group goes with
// it only when minisc created it for the same cluster and nothing else is
// left in it.
func (c *Client) DeleteNetwork(ctx context.Context, id string) error {
	rid, err := arm.ParseResourceID(id)
	if err != nil {
		return cloud.NewOperationError("DeleteVirtualNetwork", cloud.ErrNotFound, err)
	}
	vnet, err := c.vnets.Get(ctx, rid.ResourceGroupName, rid.Name, nil)
	if err != nil {
		return wrap("GetVirtualNetwork", err)
	}
	tag := tagValue(vnet.Tags, labels.KeyCluster)

	if err := deleteWithRetry(ctx, c, "DeleteVirtualNetwork",
		func(ctx context.Context) (*azruntime.Poller[armnetwork.VirtualNetworksClientDeleteResponse], error) {
			return c.vnets.BeginDelete(ctx, rid.ResourceGroupName, rid.Name, nil)
		}); err != nil {
		return err
	}
	return c.deleteResourceGroupIfOwned(ctx, rid.ResourceGroupName, tag)
}

func (c *Client) deleteResourceGroupIfOwned(ctx context.Context, name, tag string) error {
	if tag == "" {
		return nil
	}
	resp, err := c.groups.Get(ctx, name, nil)
	if err != nil {
		if err = wrap("GetResourceGroup", err); cloud.IsNotFound(err) {
			return nil
		}
		return err
	}
	if tagValue(resp.Tags, labels.KeyManagedBy) != labels.ManagedByMinisc || tagValue(resp.Tags, labels.KeyCluster) != tag {
		return nil
	}

	left, err := collect(ctx, "ListResourceGroupResources", c.resources.NewListByResourceGroupPager(name, nil),
		func(p armresources.ClientListByResourceGroupResponse) []*armresources.GenericResourceExpanded { return p.Value })
	if err != nil {
		return err
	}
	if len(left) > 0 {
		return nil
	}

	poller, err := c.groups.BeginDelete(ctx, name, nil)
	if _, err := wait(ctx, c, "DeleteResourceGroup", poller, err); err != nil && !cloud.IsNotFound(err) {
		return err
	}
	return nil
}
